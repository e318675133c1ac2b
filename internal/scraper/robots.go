package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

// DefaultRobotsCacheSize bounds how many hosts' robots.txt are remembered.
const DefaultRobotsCacheSize = 64

// RobotsTxtAuditor fetches and enforces robots.txt per host.
type RobotsTxtAuditor struct {
	fetcher *Fetcher
	logger  *slog.Logger
	mu      sync.Mutex
	// A nil entry means the host has no usable robots.txt.
	cache *lru.Cache[string, *robotstxt.RobotsData]
}

// NewRobotsTxtAuditor creates an auditor remembering up to size hosts.
func NewRobotsTxtAuditor(fetcher *Fetcher, size int, logger *slog.Logger) (*RobotsTxtAuditor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = DefaultRobotsCacheSize
	}
	cache, err := lru.New[string, *robotstxt.RobotsData](size)
	if err != nil {
		return nil, fmt.Errorf("robots cache: %w", err)
	}
	return &RobotsTxtAuditor{fetcher: fetcher, logger: logger, cache: cache}, nil
}

// IsAllowed reports whether robots.txt permits userAgent to fetch targetURL.
// A missing or unreadable robots.txt allows everything.
func (r *RobotsTxtAuditor) IsAllowed(ctx context.Context, targetURL string, userAgent string) (bool, error) {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid url: %w", err)
	}

	data, err := r.getOrFetch(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		r.logger.Debug("robots.txt unavailable, defaulting to allow", "host", u.Host, "err", err)
		return true, nil
	}
	if data == nil {
		return true, nil
	}
	return data.TestAgent(u.EscapedPath(), userAgent), nil
}

// Sitemaps returns the Sitemap lines of host's robots.txt.
func (r *RobotsTxtAuditor) Sitemaps(ctx context.Context, host string) []string {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	data, err := r.getOrFetch(ctx, strings.TrimSuffix(host, "/"))
	if err != nil || data == nil {
		return nil
	}
	return data.Sitemaps
}

func (r *RobotsTxtAuditor) getOrFetch(ctx context.Context, host string) (*robotstxt.RobotsData, error) {
	if data, ok := r.cache.Get(host); ok {
		return data, nil
	}

	// One fetch per host even under concurrent callers.
	r.mu.Lock()
	defer r.mu.Unlock()
	if data, ok := r.cache.Get(host); ok {
		return data, nil
	}

	result, err := r.fetcher.Fetch(ctx, host+"/robots.txt")
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	if result.Error != "" {
		r.cache.Add(host, nil)
		return nil, fmt.Errorf("fetch robots.txt: %s", result.Error)
	}

	data, err := robotstxt.FromStatusAndBytes(result.StatusCode, result.Body)
	if err != nil {
		r.cache.Add(host, nil)
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	r.cache.Add(host, data)
	return data, nil
}

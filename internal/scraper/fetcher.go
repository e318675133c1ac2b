// Package scraper acquires suno.com documents for the extraction engine:
// plain HTTP fetches with a browser TLS fingerprint, headless rendering for
// the client-side workspace, and saved snapshots on disk. It also audits
// robots.txt and discovers song pages from sitemaps.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/stylus/internal/bypass"
	"github.com/FranksOps/stylus/internal/fingerprint"
	"github.com/FranksOps/stylus/pkg/httpclient"
	"github.com/FranksOps/stylus/pkg/ratelimit"
	"github.com/FranksOps/stylus/pkg/useragent"
	"github.com/google/uuid"
)

// maxBody bounds how much of a response is kept.
const maxBody = 16 << 20

// FetchConfig holds the settings for a Fetcher.
type FetchConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Cookie is a Cookie header value seeded for CookieURL, typically a
	// logged-in suno.com session.
	Cookie    string
	CookieURL string

	UserAgents  *useragent.Pool
	Fingerprint fingerprint.Profile
	Proxy       *url.URL
	Limiter     *ratelimit.Limiter
	Detectors   []bypass.Detector

	// InsecureSkipVerify disables TLS verification. Tests only.
	InsecureSkipVerify bool
}

// FetchResult records one HTTP exchange. Transport failures are kept in
// Error so callers can still log the attempt.
type FetchResult struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	FinalURL     string        `json:"finalUrl"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"statusCode"`
	Headers      http.Header   `json:"headers"`
	Body         []byte        `json:"-"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
	DetectedBot  bool          `json:"detectedBot"`
	DetectionSrc string        `json:"detectionSrc,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Fetcher performs paced GET requests with a fingerprinted transport.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
	logger *slog.Logger
}

// NewFetcher builds a Fetcher from cfg.
func NewFetcher(cfg FetchConfig, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Cookie != "" {
		cfg.UseCookieJar = true
	}

	transport, err := fingerprint.Transport(fingerprint.Options{
		Profile:            cfg.Fingerprint,
		Proxy:              cfg.Proxy,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		UserAgents:   cfg.UserAgents,
	})
	if err != nil {
		return nil, fmt.Errorf("fetcher client: %w", err)
	}

	if cfg.Cookie != "" {
		target := cfg.CookieURL
		if target == "" {
			target = "https://suno.com/"
		}
		if err := client.SeedCookies(target, cfg.Cookie); err != nil {
			return nil, err
		}
	}

	return &Fetcher{config: cfg, client: client, logger: logger}, nil
}

// Fetch GETs targetURL. The returned error is non-nil only when the request
// could not be built or ctx was cancelled while pacing; network failures are
// reported in FetchResult.Error.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string) (*FetchResult, error) {
	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	result := &FetchResult{
		ID:        uuid.NewString(),
		URL:       targetURL,
		FinalURL:  targetURL,
		Method:    http.MethodGet,
		CreatedAt: time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := f.client.Do(ctx, req)
	if err != nil {
		result.Duration = time.Since(start)
		result.Error = fmt.Sprintf("request failed: %v", err)
		f.logger.Debug("fetch failed", "url", targetURL, "err", err)
		return result, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	result.Duration = time.Since(start)
	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.Body = body
	if resp.Request != nil && resp.Request.URL != nil {
		result.FinalURL = resp.Request.URL.String()
	}
	if err != nil {
		result.Error = fmt.Sprintf("read body: %v", err)
		return result, nil
	}

	if src, ok := bypass.Analyze(&bypass.Response{
		StatusCode: result.StatusCode,
		Header:     result.Headers,
		Body:       result.Body,
		FinalURL:   result.FinalURL,
	}, f.config.Detectors); ok {
		result.DetectedBot = true
		result.DetectionSrc = src
	}

	f.logger.Debug("fetched", "url", targetURL, "status", result.StatusCode, "bytes", len(body), "duration", result.Duration)
	return result, nil
}

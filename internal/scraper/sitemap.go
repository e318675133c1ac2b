package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/oxffaa/gopher-parse-sitemap"
)

// maxSitemapDepth bounds sitemap index recursion.
const maxSitemapDepth = 3

// SitemapFetcher fetches sitemaps and sitemap indexes.
type SitemapFetcher struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewSitemapFetcher initializes a new SitemapFetcher.
func NewSitemapFetcher(fetcher *Fetcher, logger *slog.Logger) *SitemapFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SitemapFetcher{fetcher: fetcher, logger: logger}
}

// FetchSitemap returns every location in a sitemap, following sitemap
// indexes. Nested sitemaps that fail are logged and skipped.
func (s *SitemapFetcher) FetchSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	return s.fetch(ctx, sitemapURL, 0)
}

func (s *SitemapFetcher) fetch(ctx context.Context, sitemapURL string, depth int) ([]string, error) {
	s.logger.Debug("fetching sitemap", "url", sitemapURL, "depth", depth)

	result, err := s.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		return nil, fmt.Errorf("fetch sitemap: %w", err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("fetch sitemap: %s", result.Error)
	}
	if result.DetectedBot {
		return nil, fmt.Errorf("%w: %s (%s)", ErrChallenged, sitemapURL, result.DetectionSrc)
	}
	if result.StatusCode >= 400 {
		return nil, &StatusError{URL: sitemapURL, StatusCode: result.StatusCode}
	}

	var urls []string
	err = sitemap.Parse(bytes.NewReader(result.Body), func(e sitemap.Entry) error {
		urls = append(urls, e.GetLocation())
		return nil
	})
	if err == nil && len(urls) > 0 {
		return urls, nil
	}

	var nested []string
	indexErr := sitemap.ParseIndex(bytes.NewReader(result.Body), func(e sitemap.IndexEntry) error {
		nested = append(nested, e.GetLocation())
		return nil
	})
	if indexErr != nil || len(nested) == 0 {
		cause := errors.Join(err, indexErr)
		if cause == nil {
			cause = errors.New("no entries")
		}
		return nil, fmt.Errorf("parse %s as sitemap or index: %w", sitemapURL, cause)
	}
	if depth >= maxSitemapDepth {
		return nil, fmt.Errorf("sitemap index %s nested deeper than %d", sitemapURL, maxSitemapDepth)
	}

	for _, u := range nested {
		if err := ctx.Err(); err != nil {
			return urls, err
		}
		found, err := s.fetch(ctx, u, depth+1)
		if err != nil {
			s.logger.Warn("failed to fetch nested sitemap", "url", u, "err", err)
			continue
		}
		urls = append(urls, found...)
	}
	return urls, nil
}

// Discover returns the distinct song locators listed in the sitemap, in
// sitemap order.
func (s *SitemapFetcher) Discover(ctx context.Context, sitemapURL string, norm *extract.Normalizer) ([]string, error) {
	urls, err := s.FetchSitemap(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(urls))
	locators := make([]string, 0, len(urls))
	for _, u := range urls {
		loc, ok := norm.Normalize(u, sitemapURL)
		if !ok || seen[loc] {
			continue
		}
		seen[loc] = true
		locators = append(locators, loc)
	}
	s.logger.Info("sitemap discovery finished", "sitemap", sitemapURL, "entries", len(urls), "locators", len(locators))
	return locators, nil
}

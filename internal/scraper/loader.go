package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/metrics"
)

// Loader turns a location into a parsed document for the extraction engine.
type Loader interface {
	Load(ctx context.Context, location string) (*extract.Page, error)
}

// HTTPLoader loads server-rendered pages with a Fetcher. Challenge pages fail
// with ErrChallenged; error statuses fail with *StatusError.
type HTTPLoader struct {
	fetcher *Fetcher
	// Auditor, when set, refuses URLs robots.txt disallows for AgentToken.
	Auditor    *RobotsTxtAuditor
	AgentToken string
	logger     *slog.Logger
}

// NewHTTPLoader wraps fetcher.
func NewHTTPLoader(fetcher *Fetcher, logger *slog.Logger) *HTTPLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPLoader{fetcher: fetcher, AgentToken: "stylus", logger: logger}
}

// Load implements Loader.
func (l *HTTPLoader) Load(ctx context.Context, location string) (*extract.Page, error) {
	if l.Auditor != nil {
		allowed, err := l.Auditor.IsAllowed(ctx, location, l.AgentToken)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %s", ErrDisallowed, location)
		}
	}

	res, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		metrics.RecordFetch("http", res.StatusCode, res.Duration, errors.New(res.Error))
		return nil, fmt.Errorf("load %s: %s", location, res.Error)
	}
	metrics.RecordFetch("http", res.StatusCode, res.Duration, nil)

	if res.DetectedBot {
		metrics.RecordChallenge(res.DetectionSrc)
		l.logger.Warn("challenge page detected", "url", location, "source", res.DetectionSrc, "status", res.StatusCode)
		return nil, fmt.Errorf("%w: %s (%s)", ErrChallenged, location, res.DetectionSrc)
	}
	if res.StatusCode >= 400 {
		return nil, &StatusError{URL: location, StatusCode: res.StatusCode}
	}

	page, err := extract.NewPage(res.FinalURL, bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", location, err)
	}
	return page, nil
}

// FileLoader loads saved markup from disk. Links in the snapshot are resolved
// against BaseURL.
type FileLoader struct {
	BaseURL string
}

// DefaultSnapshotBase is the document URL assumed for saved snapshots.
const DefaultSnapshotBase = "https://suno.com/me"

// Load implements Loader; location is a file path.
func (l FileLoader) Load(ctx context.Context, location string) (*extract.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	f, err := os.Open(filepath.Clean(location))
	if err != nil {
		metrics.RecordFetch("file", 0, time.Since(start), err)
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	base := l.BaseURL
	if base == "" {
		base = DefaultSnapshotBase
	}
	page, err := extract.NewPage(base, f)
	metrics.RecordFetch("file", 0, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", location, err)
	}
	return page, nil
}

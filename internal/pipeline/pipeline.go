// Package pipeline runs batch passes over stored records: importing
// discovered locators and enriching records by loading each song page.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/scraper"
	"github.com/FranksOps/stylus/internal/storage"
	"github.com/FranksOps/stylus/internal/store"
	"github.com/FranksOps/stylus/pkg/ratelimit"
)

// Stats summarises an enrichment pass.
type Stats struct {
	Visited   int `json:"visited"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Pipeline loads song pages one at a time and merges what the engine finds
// into the store.
type Pipeline struct {
	Loader  scraper.Loader
	Engine  *extract.Engine
	Store   *store.Store
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger

	// Force revisits records that already have every field.
	Force bool
	// Limit caps the number of pages visited; zero means no cap.
	Limit int
	// OnScrape observes every scrape result, e.g. for metrics.
	OnScrape func(extract.Result)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Import stores locators as bare records, keeping any fields already known.
func (p *Pipeline) Import(ctx context.Context, locators []string) (store.MergeResult, error) {
	if p.Store == nil {
		return store.MergeResult{}, errors.New("pipeline: store is nil")
	}
	records := make([]storage.Record, 0, len(locators))
	for _, loc := range locators {
		records = append(records, storage.Record{Locator: loc})
	}
	return p.Store.SaveURLs(ctx, records)
}

// Targets lists the stored locators an enrichment pass would visit.
func (p *Pipeline) Targets(ctx context.Context) ([]string, error) {
	records, err := p.Store.URLs(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, r := range records {
		if !p.Force && r.Title != "" && r.Prompt != "" && r.ImageURL != "" {
			continue
		}
		out = append(out, r.Locator)
		if p.Limit > 0 && len(out) == p.Limit {
			break
		}
	}
	return out, nil
}

// Enrich visits locators (or Targets when locators is empty) and merges the
// current-page record of each into the store. A challenge aborts the pass;
// other load failures are counted and skipped.
func (p *Pipeline) Enrich(ctx context.Context, locators []string) (Stats, error) {
	var stats Stats
	if p.Loader == nil || p.Engine == nil || p.Store == nil {
		return stats, errors.New("pipeline: loader, engine and store are required")
	}
	if len(locators) == 0 {
		var err error
		if locators, err = p.Targets(ctx); err != nil {
			return stats, err
		}
	}
	log := p.logger()
	log.Info("enrichment started", "targets", len(locators))

	for _, loc := range locators {
		if p.Limiter != nil {
			if err := p.Limiter.Wait(ctx); err != nil {
				return stats, err
			}
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Visited++
		rec, err := p.visit(ctx, loc)
		if errors.Is(err, scraper.ErrChallenged) {
			stats.Failed++
			return stats, fmt.Errorf("enrichment stopped after %d pages: %w", stats.Visited, err)
		}
		if err != nil {
			stats.Failed++
			log.Warn("enrichment load failed", "url", loc, "err", err, "temporary", scraper.IsTemporary(err))
			continue
		}

		res, err := p.Store.SaveURLs(ctx, []storage.Record{rec})
		if err != nil {
			return stats, err
		}
		if res.Updated > 0 || res.Added > 0 {
			stats.Updated++
		} else {
			stats.Unchanged++
		}
	}

	log.Info("enrichment finished", "visited", stats.Visited, "updated", stats.Updated, "failed", stats.Failed)
	return stats, nil
}

func (p *Pipeline) visit(ctx context.Context, loc string) (storage.Record, error) {
	page, err := p.Loader.Load(ctx, loc)
	if err != nil {
		return storage.Record{}, err
	}

	res := p.Engine.ScrapeAll(page)
	if p.OnScrape != nil {
		p.OnScrape(res)
	}
	for _, r := range res.Records {
		if r.Locator == loc {
			return r, nil
		}
	}
	// Song pages rarely link to themselves; read the page-level fields.
	return p.Engine.ExtractFields(page, loc, nil), nil
}

package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/FranksOps/stylus/internal/metrics"
	"github.com/FranksOps/stylus/internal/pipeline"
	"github.com/FranksOps/stylus/internal/scraper"
)

func newEnrichCmd(a *app) *cobra.Command {
	var (
		kind  string
		force bool
		limit int
	)

	cmd := &cobra.Command{
		Use:   "enrich [url...]",
		Short: "Visit stored song pages to fill in missing titles, prompts and images",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			if kind == loaderAuto || kind == loaderFile {
				kind = loaderHTTP
			}
			loader, release, err := a.newLoader(kind, "")
			if err != nil {
				return err
			}
			defer release()

			p := &pipeline.Pipeline{
				Loader:   loader,
				Engine:   a.engine(),
				Store:    s,
				Logger:   a.logger,
				Force:    force,
				Limit:    limit,
				OnScrape: metrics.RecordScrape,
			}
			// The http loader already paces through its fetcher.
			if kind == loaderRender {
				p.Limiter = a.limiter()
			}

			targets := args
			if len(targets) == 0 {
				if targets, err = p.Targets(ctx); err != nil {
					return err
				}
			}
			if len(targets) == 0 {
				fmt.Fprintln(a.out, dimStyle.Render("Every stored song is already complete."))
				return nil
			}

			stats, err := p.Enrich(ctx, targets)
			fmt.Fprintf(a.out, "Visited %d pages: %s, %d unchanged, %d failed\n",
				stats.Visited, successStyle.Render(fmt.Sprintf("%d updated", stats.Updated)), stats.Unchanged, stats.Failed)
			return err
		},
	}

	cmd.Flags().StringVar(&kind, "loader", loaderHTTP, "how to load song pages: http or render")
	cmd.Flags().BoolVar(&force, "force", false, "revisit records that already have every field")
	cmd.Flags().IntVar(&limit, "limit", 0, "visit at most this many pages (0 means all)")
	return cmd
}

func newSitemapCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sitemap [sitemap-url]",
		Short: "Discover song pages from sitemaps and store them as links",
		Long: `Read a sitemap (or sitemap index) and store every song page it lists.
Without an argument the sitemaps advertised in the robots.txt of each
configured host are used. Run enrich afterwards to fill in the fields.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := a.fetcher()
			if err != nil {
				return err
			}
			engine := a.engine()
			sf := scraper.NewSitemapFetcher(f, a.logger)

			sitemaps := args
			if len(sitemaps) == 0 {
				auditor, err := scraper.NewRobotsTxtAuditor(f, a.cfg.Fetch.RobotsCacheSize, a.logger)
				if err != nil {
					return err
				}
				for _, host := range a.cfg.Heuristics.Hosts {
					sitemaps = append(sitemaps, auditor.Sitemaps(ctx, host)...)
				}
				if len(sitemaps) == 0 {
					for _, host := range a.cfg.Heuristics.Hosts {
						sitemaps = append(sitemaps, (&url.URL{Scheme: "https", Host: host, Path: "/sitemap.xml"}).String())
					}
				}
			}

			var found []string
			seen := map[string]bool{}
			for _, sm := range sitemaps {
				locs, err := sf.Discover(ctx, sm, engine.Normalizer())
				if err != nil {
					a.logger.Warn("sitemap failed", "sitemap", sm, "err", err)
					continue
				}
				for _, loc := range locs {
					if !seen[loc] {
						seen[loc] = true
						found = append(found, loc)
					}
				}
			}

			fmt.Fprintf(a.out, "Found %d song pages in %d sitemaps\n", len(found), len(sitemaps))
			if dryRun || len(found) == 0 {
				for _, loc := range found {
					fmt.Fprintln(a.out, loc)
				}
				return nil
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			p := &pipeline.Pipeline{Engine: engine, Store: s, Logger: a.logger}
			res, err := p.Import(ctx, found)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("Stored %d new links (%d total)", res.Added, res.Total)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print discovered pages without storing them")
	return cmd
}

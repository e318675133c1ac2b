package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FranksOps/stylus/internal/config"
	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/fingerprint"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/metrics"
	"github.com/FranksOps/stylus/internal/scraper"
	"github.com/FranksOps/stylus/internal/store"
	"github.com/FranksOps/stylus/pkg/ratelimit"
	"github.com/FranksOps/stylus/pkg/useragent"
)

// app carries what every command needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer

	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:           "stylus",
		Short:         "Collect suno.com song links, titles, style prompts and cover art",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./stylus.yaml)")
	pf.String("storage-backend", "", "record store backend: json, sqlite or postgres")
	pf.String("storage-dsn", "", "record store file path or postgres connection string")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")
	pf.String("cookie", "", "Cookie header of a signed-in suno.com session")
	pf.String("proxy", "", "proxy URL for outbound requests")

	for key, flag := range map[string]string{
		"storage.backend": "storage-backend",
		"storage.dsn":     "storage-dsn",
		"log.level":       "log-level",
		"log.format":      "log-format",
		"fetch.cookie":    "cookie",
		"fetch.proxy":     "proxy",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag))
	}

	root.AddCommand(
		newScrapeCmd(a),
		newSongCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newDeleteCmd(a),
		newClearCmd(a),
		newExportCmd(a),
		newCopyCmd(a),
		newEnrichCmd(a),
		newSitemapCmd(a),
		newKeywordsCmd(a),
		newSearchCmd(a),
		newReportCmd(a),
		newLogsCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := config.NewLogger(cfg.Log, a.errOut)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// openStore opens the configured backend once per process.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	backend, err := store.OpenBackend(ctx, a.cfg.Storage.Backend, a.cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Storage.Backend, err)
	}
	a.store = store.New(backend, a.logger)
	return a.store, nil
}

func (a *app) engine() *extract.Engine {
	return extract.New(a.cfg.Heuristics, a.logger)
}

// background returns a bus with the store-backed context registered.
func (a *app) background(ctx context.Context) (*messaging.Bus, *messaging.BackgroundHandler, error) {
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	bus := messaging.NewBus(a.logger)
	bg := messaging.NewBackgroundHandler(s, nil, a.logger)
	bus.Register(messaging.TargetBackground, bg)
	return bus, bg, nil
}

func (a *app) userAgents() *useragent.Pool {
	return useragent.NewPool(a.cfg.Fetch.UserAgents, useragent.Rotation(a.cfg.Fetch.Rotation))
}

func (a *app) limiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(a.cfg.Fetch.RPS, a.cfg.Fetch.Jitter)
}

func (a *app) fetcher() (*scraper.Fetcher, error) {
	fc := a.cfg.Fetch
	profile, err := fingerprint.ParseProfile(fc.Fingerprint)
	if err != nil {
		return nil, err
	}
	cfg := scraper.FetchConfig{
		Timeout:      fc.Timeout,
		MaxRedirects: fc.MaxRedirects,
		Cookie:       fc.Cookie,
		UserAgents:   a.userAgents(),
		Fingerprint:  profile,
		Limiter:      a.limiter(),
	}
	if fc.Proxy != "" {
		if cfg.Proxy, err = config.ParseProxy(fc.Proxy); err != nil {
			return nil, err
		}
	}
	return scraper.NewFetcher(cfg, a.logger)
}

// Loader kinds accepted by --loader.
const (
	loaderAuto   = "auto"
	loaderHTTP   = "http"
	loaderRender = "render"
	loaderFile   = "file"
)

// resolveLoader picks a loader kind for location. auto means a file when
// location exists on disk and http otherwise.
func resolveLoader(kind, location string) string {
	kind = strings.ToLower(kind)
	if kind != "" && kind != loaderAuto {
		return kind
	}
	if _, err := os.Stat(location); err == nil {
		return loaderFile
	}
	return loaderHTTP
}

// newLoader builds the loader named by kind. The returned func releases it.
func (a *app) newLoader(kind, baseURL string) (scraper.Loader, func() error, error) {
	noop := func() error { return nil }

	switch kind {
	case loaderFile:
		return scraper.FileLoader{BaseURL: baseURL}, noop, nil

	case loaderHTTP:
		f, err := a.fetcher()
		if err != nil {
			return nil, nil, err
		}
		l := scraper.NewHTTPLoader(f, a.logger)
		if a.cfg.Fetch.RespectRobots {
			auditor, err := scraper.NewRobotsTxtAuditor(f, a.cfg.Fetch.RobotsCacheSize, a.logger)
			if err != nil {
				return nil, nil, err
			}
			l.Auditor = auditor
		}
		return l, noop, nil

	case loaderRender:
		rc := a.cfg.Render
		r, err := scraper.NewRenderLoader(scraper.RenderConfig{
			Headless:     rc.Headless,
			NoSandbox:    rc.NoSandbox,
			BrowserBin:   rc.BrowserBin,
			ControlURL:   rc.ControlURL,
			Proxy:        a.cfg.Fetch.Proxy,
			Timeout:      rc.Timeout,
			WaitSelector: rc.WaitSelector,
			WaitTimeout:  rc.WaitTimeout,
			Scrolls:      rc.Scrolls,
			ScrollPause:  rc.ScrollPause,
			UserAgent:    a.userAgents().Next(),
			Cookie:       a.cfg.Fetch.Cookie,
		}, a.logger)
		if err != nil {
			return nil, nil, err
		}
		return r, r.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown loader %q (want auto, http, render or file)", kind)
}

// openPage loads location and registers a page context for it on bus.
func (a *app) openPage(ctx context.Context, bus *messaging.Bus, kind, baseURL, location string) (*messaging.PageHandler, error) {
	kind = resolveLoader(kind, location)
	loader, release, err := a.newLoader(kind, baseURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(); err != nil {
			a.logger.Warn("failed to release loader", "loader", kind, "err", err)
		}
	}()

	a.logger.Info("loading page", "location", location, "loader", kind)
	page, err := loader.Load(ctx, location)
	if err != nil {
		return nil, err
	}

	h := messaging.NewPageHandler(a.engine(), page, bus, a.logger)
	h.OnScrape = metrics.RecordScrape
	bus.Register(messaging.TargetPage, h)
	return h, nil
}

// addLoaderFlags registers the flags shared by page-loading commands.
func addLoaderFlags(cmd *cobra.Command, kind, base *string) {
	cmd.Flags().StringVar(kind, "loader", loaderAuto, "how to load the page: auto, http, render or file")
	cmd.Flags().StringVar(base, "base", scraper.DefaultSnapshotBase, "document URL assumed for saved snapshots")
}

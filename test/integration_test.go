//go:build integration

package test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/fingerprint"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/pipeline"
	"github.com/FranksOps/stylus/internal/scraper"
	"github.com/FranksOps/stylus/internal/storage/sqlite"
	"github.com/FranksOps/stylus/internal/store"
	"github.com/FranksOps/stylus/pkg/ratelimit"
	"github.com/FranksOps/stylus/pkg/useragent"
)

// mockSuno serves a signed-in workspace, song pages, robots.txt and a
// sitemap. /song/blocked answers like a Cloudflare challenge.
func mockSuno(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nDisallow: /private/\nSitemap: http://%s/sitemap.xml\n", r.Host)
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>http://%[1]s/song/abc123</loc></url>
  <url><loc>http://%[1]s/song/def456</loc></url>
  <url><loc>http://%[1]s/about</loc></url>
</urlset>`, r.Host)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session_id"); err != nil || c.Value != "123456" {
			http.Redirect(w, r, "/sign-in", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Workspace | Suno</title></head><body>
<div role="row">
  <img src="https://cdn2.suno.ai/image_abc123.jpeg?width=100">
  <a href="/song/abc123">Neon Rain</a>
  <div class="css-ingj1g">dreamy synthwave, female vocals</div>
</div>
<div role="row">
  <a href="/song/def456">Static Bloom</a>
</div>
</body></html>`)
	})
	mux.HandleFunc("/sign-in", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>Sign in to continue</body></html>`)
	})
	mux.HandleFunc("/song/def456", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head>
<title>Static Bloom | Suno</title>
<meta property="og:image" content="https://cdn2.suno.ai/image_def456.jpeg">
</head><body>
<h1>Static Bloom</h1>
<div data-testid="style-prompt">lofi, piano, rainy night ambience</div>
</body></html>`)
	})
	mux.HandleFunc("/song/blocked", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "cloudflare")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `<html><body>cf-browser-verification</body></html>`)
	})
	mux.HandleFunc("/private/song", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// anyHost accepts the loopback test server as a song host.
func anyHost() *extract.Engine {
	h := extract.DefaultHeuristics()
	h.Hosts = nil
	return extract.New(h, quietLogger())
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	b, err := sqlite.New(filepath.Join(t.TempDir(), "stylus.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	s := store.New(b, quietLogger())
	t.Cleanup(func() { s.Close() })
	return s
}

func newFetcher(t *testing.T, cfg scraper.FetchConfig) *scraper.Fetcher {
	t.Helper()
	cfg.Timeout = 5 * time.Second
	cfg.Fingerprint = fingerprint.ProfileGo
	f, err := scraper.NewFetcher(cfg, quietLogger())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}
	return f
}

func TestIntegration_WorkspaceScrapeAndEnrich(t *testing.T) {
	ctx := context.Background()
	srv := mockSuno(t)

	fetcher := newFetcher(t, scraper.FetchConfig{
		Cookie:     "session_id=123456",
		CookieURL:  srv.URL,
		UserAgents: useragent.NewPool([]string{"IntegrationTest-UA"}, useragent.RotateSequential),
		Limiter:    ratelimit.NewLimiter(0, 0),
	})
	loader := scraper.NewHTTPLoader(fetcher, quietLogger())
	auditor, err := scraper.NewRobotsTxtAuditor(fetcher, 8, quietLogger())
	if err != nil {
		t.Fatalf("failed to create auditor: %v", err)
	}
	loader.Auditor = auditor

	engine := anyHost()
	s := newStore(t)

	// 1. Scrape the workspace through the message contract
	page, err := loader.Load(ctx, srv.URL+"/me")
	if err != nil {
		t.Fatalf("failed to load workspace: %v", err)
	}
	bus := messaging.NewBus(quietLogger())
	bus.Register(messaging.TargetBackground, messaging.NewBackgroundHandler(s, nil, quietLogger()))
	bus.Register(messaging.TargetPage, messaging.NewPageHandler(engine, page, bus, quietLogger()))

	scraped, err := bus.Send(ctx, messaging.TargetPage, messaging.Request{Action: messaging.ActionGetAllURLs})
	if err != nil || !scraped.Success {
		t.Fatalf("scrape failed: %v %+v", err, scraped)
	}
	if len(scraped.URLs) != 2 {
		t.Fatalf("expected 2 records, got %+v", scraped.URLs)
	}
	save, _ := messaging.NewRequest(messaging.ActionSaveURLs, scraped.URLs)
	if res, err := bus.Send(ctx, messaging.TargetBackground, save); err != nil || !res.Success {
		t.Fatalf("save failed: %v %+v", err, res)
	}
	bus.Wait()

	// 2. Enrich the incomplete record from its own song page
	p := &pipeline.Pipeline{Loader: loader, Engine: engine, Store: s, Logger: quietLogger()}
	targets, err := p.Targets(ctx)
	if err != nil {
		t.Fatalf("failed to list targets: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected both records to be incomplete, got %v", targets)
	}
	stats, err := p.Enrich(ctx, []string{srv.URL + "/song/def456"})
	if err != nil {
		t.Fatalf("enrich failed: %v", err)
	}
	if stats.Updated != 1 {
		t.Errorf("expected 1 updated record, got %+v", stats)
	}

	records, err := s.URLs(ctx)
	if err != nil {
		t.Fatalf("failed to read store: %v", err)
	}
	var bloom bool
	for _, r := range records {
		if r.Locator != srv.URL+"/song/def456" {
			continue
		}
		bloom = true
		if r.Title != "Static Bloom" || r.Prompt != "lofi, piano, rainy night ambience" {
			t.Errorf("expected enriched fields, got %+v", r)
		}
		if r.ImageURL != "https://cdn2.suno.ai/image_large_def456.jpeg" {
			t.Errorf("expected high resolution image, got %q", r.ImageURL)
		}
	}
	if !bloom {
		t.Errorf("enriched record missing from store: %+v", records)
	}
}

func TestIntegration_SignedOutWorkspace(t *testing.T) {
	srv := mockSuno(t)
	loader := scraper.NewHTTPLoader(newFetcher(t, scraper.FetchConfig{}), quietLogger())

	_, err := loader.Load(context.Background(), srv.URL+"/me")
	if !errors.Is(err, scraper.ErrChallenged) {
		t.Fatalf("expected sign-in wall to be refused, got %v", err)
	}
}

func TestIntegration_ChallengeStopsEnrichment(t *testing.T) {
	ctx := context.Background()
	srv := mockSuno(t)
	s := newStore(t)

	p := &pipeline.Pipeline{
		Loader:  scraper.NewHTTPLoader(newFetcher(t, scraper.FetchConfig{}), quietLogger()),
		Engine:  anyHost(),
		Store:   s,
		Limiter: ratelimit.NewLimiter(50, 0),
		Logger:  quietLogger(),
	}
	stats, err := p.Enrich(ctx, []string{srv.URL + "/song/blocked", srv.URL + "/song/def456"})
	if !errors.Is(err, scraper.ErrChallenged) {
		t.Fatalf("expected challenge to stop the pass, got %v", err)
	}
	if stats.Visited != 1 || stats.Failed != 1 {
		t.Errorf("expected the pass to stop at the first page, got %+v", stats)
	}
}

func TestIntegration_RobotsAndSitemap(t *testing.T) {
	ctx := context.Background()
	srv := mockSuno(t)
	fetcher := newFetcher(t, scraper.FetchConfig{})

	loader := scraper.NewHTTPLoader(fetcher, quietLogger())
	auditor, err := scraper.NewRobotsTxtAuditor(fetcher, 8, quietLogger())
	if err != nil {
		t.Fatalf("failed to create auditor: %v", err)
	}
	loader.Auditor = auditor
	if _, err := loader.Load(ctx, srv.URL+"/private/song"); !errors.Is(err, scraper.ErrDisallowed) {
		t.Errorf("expected robots.txt to disallow /private/, got %v", err)
	}

	host := srv.Listener.Addr().String()
	sitemaps := auditor.Sitemaps(ctx, "http://"+host)
	if len(sitemaps) != 1 {
		t.Fatalf("expected one advertised sitemap, got %v", sitemaps)
	}

	engine := anyHost()
	locs, err := scraper.NewSitemapFetcher(fetcher, quietLogger()).Discover(ctx, sitemaps[0], engine.Normalizer())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("expected 2 song pages, got %v", locs)
	}

	s := newStore(t)
	res, err := (&pipeline.Pipeline{Engine: engine, Store: s}).Import(ctx, locs)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if res.Added != 2 {
		t.Errorf("expected 2 imported links, got %+v", res)
	}
}

package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestWaitBounded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// A selector that never matches blocks until its context ends.
	start := time.Now()
	err := waitBounded(ctx, 50*time.Millisecond, func(wctx context.Context) error {
		<-wctx.Done()
		return wctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected the wait to time out, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Expected the wait to stop after its own timeout, took %v", elapsed)
	}
	if ctx.Err() != nil {
		t.Errorf("Expected the page context to outlive the wait, got %v", ctx.Err())
	}

	if err := waitBounded(ctx, time.Second, func(context.Context) error { return nil }); err != nil {
		t.Errorf("Expected a matching wait to succeed, got %v", err)
	}
}

func TestRenderConfig_Defaults(t *testing.T) {
	tests := []struct {
		name        string
		cfg         RenderConfig
		timeout     time.Duration
		waitTimeout time.Duration
	}{
		{"zero config", RenderConfig{}, 45 * time.Second, DefaultWaitTimeout},
		{"explicit wait", RenderConfig{Timeout: 30 * time.Second, WaitTimeout: 2 * time.Second}, 30 * time.Second, 2 * time.Second},
		{"wait longer than page", RenderConfig{Timeout: 8 * time.Second, WaitTimeout: 20 * time.Second}, 8 * time.Second, 4 * time.Second},
		{"short page timeout", RenderConfig{Timeout: 6 * time.Second}, 6 * time.Second, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.withDefaults()
			if got.Timeout != tt.timeout || got.WaitTimeout != tt.waitTimeout {
				t.Errorf("withDefaults() = timeout %v wait %v, want %v and %v", got.Timeout, got.WaitTimeout, tt.timeout, tt.waitTimeout)
			}
			if got.ScrollPause != 750*time.Millisecond {
				t.Errorf("Expected default scroll pause, got %v", got.ScrollPause)
			}
		})
	}
}

// Needs a local Chrome or Chromium; set STYLUS_TEST_BROWSER=1 to run.
func TestRenderLoader_WaitSelectorMiss(t *testing.T) {
	if os.Getenv("STYLUS_TEST_BROWSER") == "" {
		t.Skip("STYLUS_TEST_BROWSER not set, skipping headless render test")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(songPage))
	}))
	defer ts.Close()

	r, err := NewRenderLoader(RenderConfig{
		Headless:     true,
		NoSandbox:    true,
		BrowserBin:   os.Getenv("STYLUS_TEST_BROWSER_BIN"),
		Timeout:      20 * time.Second,
		WaitSelector: "#never-rendered",
		WaitTimeout:  500 * time.Millisecond,
	}, nil)
	if err != nil {
		t.Fatalf("Failed to start browser: %v", err)
	}
	defer r.Close()

	page, err := r.Load(context.Background(), ts.URL+"/song/abc123")
	if err != nil {
		t.Fatalf("Expected the page to be captured despite the missing selector: %v", err)
	}
	if page.Title() != "Neon Rain | Suno" {
		t.Errorf("Unexpected title %q", page.Title())
	}
}

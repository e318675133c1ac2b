package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/FranksOps/stylus/internal/api"
	"github.com/FranksOps/stylus/internal/export"
	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/scraper"
	"github.com/FranksOps/stylus/internal/storage"
	"github.com/FranksOps/stylus/internal/storage/jsonbackend"
	"github.com/FranksOps/stylus/internal/store"
)

const workspace = `<html><head><title>Workspace | Suno</title></head><body>
<div role="row">
  <img src="https://cdn2.suno.ai/image_abc123.jpeg?width=100">
  <a href="/song/abc123">Neon Rain</a>
  <div class="css-ingj1g">dreamy synthwave, female vocals</div>
</div>
<div role="row">
  <a href="/song/def456?sh=xyz">Static Bloom</a>
  <div class="css-ingj1g">lofi, piano, rainy night ambience</div>
</div>
</body></html>`

// env isolates configuration and returns the store path.
func env(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv("STYLUS_LOG_LEVEL", "error")
	dsn := filepath.Join(dir, "data.json")
	t.Setenv("STYLUS_STORAGE_DSN", dsn)
	return dsn
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(&out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workspace.html")
	if err := os.WriteFile(path, []byte(workspace), 0o644); err != nil {
		t.Fatalf("Failed to write snapshot: %v", err)
	}
	return path
}

func TestScrapeListExport(t *testing.T) {
	env(t)
	snapshot := writeSnapshot(t)

	out, err := run(t, "scrape", snapshot)
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	if !strings.Contains(out, "Saved 2 songs (2 new, 0 updated, 2 stored)") {
		t.Errorf("Unexpected scrape output %q", out)
	}

	// A second scrape merges rather than duplicating
	out, err = run(t, "scrape", "--loader", "file", snapshot)
	if err != nil {
		t.Fatalf("Failed to rescrape: %v", err)
	}
	if !strings.Contains(out, "0 new") || !strings.Contains(out, "2 stored") {
		t.Errorf("Expected rescrape to add nothing, got %q", out)
	}

	out, err = run(t, "list", "--json")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	var records []storage.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("Failed to decode list output: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].Locator != "https://suno.com/song/abc123" || records[0].Prompt != "dreamy synthwave, female vocals" {
		t.Errorf("Unexpected first record %+v", records[0])
	}
	if records[0].ImageURL != "https://cdn2.suno.ai/image_large_abc123.jpeg" {
		t.Errorf("Expected high resolution image, got %q", records[0].ImageURL)
	}
	if records[1].Locator != "https://suno.com/song/def456" {
		t.Errorf("Expected query to be stripped, got %q", records[1].Locator)
	}

	out, err = run(t, "list")
	if err != nil || !strings.Contains(out, "Neon Rain") || !strings.Contains(out, "2 songs") {
		t.Errorf("Unexpected table output %q (%v)", out, err)
	}

	tsv := filepath.Join(t.TempDir(), "out", "urls.txt")
	if _, err := run(t, "export", "--format", "tsv", "--fields", "url,title", "--out", tsv); err != nil {
		t.Fatalf("Failed to export: %v", err)
	}
	data, err := os.ReadFile(tsv)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	want := "https://suno.com/song/abc123\tNeon Rain\nhttps://suno.com/song/def456\tStatic Bloom"
	if string(data) != want {
		t.Errorf("Expected %q, got %q", want, data)
	}

	out, err = run(t, "export", "--out", "-")
	if err != nil {
		t.Fatalf("Failed to export json: %v", err)
	}
	var doc export.Document
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("Failed to decode json export: %v", err)
	}
	if len(doc.URLs) != 2 || doc.Songs == nil || doc.ExportedAt.IsZero() {
		t.Errorf("Unexpected export document %+v", doc)
	}
}

func TestDeleteAndClear(t *testing.T) {
	env(t)
	if _, err := run(t, "scrape", writeSnapshot(t)); err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}

	out, err := run(t, "delete", "https://suno.com/song/abc123")
	if err != nil || !strings.Contains(out, "Deleted") {
		t.Fatalf("Failed to delete: %q %v", out, err)
	}
	out, _ = run(t, "delete", "https://suno.com/song/abc123")
	if !strings.Contains(out, "Nothing stored") {
		t.Errorf("Expected second delete to be a no-op, got %q", out)
	}

	if _, err := run(t, "clear"); err == nil {
		t.Error("Expected clear without --yes to fail")
	}
	if _, err := run(t, "clear", "--yes"); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	out, _ = run(t, "list", "--json")
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("Expected empty list after clear, got %q", out)
	}
}

func TestKeywordsAndSearch(t *testing.T) {
	env(t)
	if _, err := run(t, "scrape", writeSnapshot(t)); err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}

	out, err := run(t, "keywords", "--json", "--top", "2")
	if err != nil {
		t.Fatalf("Failed to rank keywords: %v", err)
	}
	var counts []struct {
		Keyword string `json:"keyword"`
		Count   int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &counts); err != nil {
		t.Fatalf("Failed to decode keywords: %v", err)
	}
	if len(counts) != 2 {
		t.Errorf("Expected 2 keywords, got %d", len(counts))
	}

	out, err = run(t, "search", "--json", "piano")
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if !strings.Contains(out, "def456") || strings.Contains(out, "abc123") {
		t.Errorf("Expected only the piano song, got %s", out)
	}

	out, err = run(t, "report", "--format", "json")
	if err != nil || !strings.Contains(out, `"totalUrls": 2`) {
		t.Errorf("Unexpected report %q (%v)", out, err)
	}
}

func TestSongCommand(t *testing.T) {
	env(t)
	path := filepath.Join(t.TempDir(), "song.html")
	page := `<html><head><title>Neon Rain | Suno</title></head><body><h1>Neon Rain</h1></body></html>`
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatalf("Failed to write song page: %v", err)
	}

	out, err := run(t, "song", path, "--base", "https://suno.com/song/abc123")
	if err != nil || !strings.Contains(out, "Song saved") {
		t.Fatalf("Failed to save song: %q %v", out, err)
	}
	out, err = run(t, "list", "--songs", "--json")
	if err != nil || !strings.Contains(out, "Neon Rain") {
		t.Errorf("Expected saved song in list, got %q (%v)", out, err)
	}
}

func TestLogsAgainstServer(t *testing.T) {
	dsn := env(t)
	b, err := jsonbackend.New(dsn)
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := messaging.NewBus(logger)
	bg := messaging.NewBackgroundHandler(store.New(b, logger), nil, logger)
	bus.Register(messaging.TargetBackground, bg)
	bg.Logs().Add(messaging.LogEntry{Level: "warn", Message: "prompt not found"})

	srv := httptest.NewServer(api.NewServer(bus, extract.New(extract.DefaultHeuristics(), logger), logger).Router(gin.TestMode))
	defer srv.Close()

	out, err := run(t, "logs", "show", "--server", srv.URL)
	if err != nil {
		t.Fatalf("Failed to show logs: %v", err)
	}
	if !strings.Contains(out, "[WARN    ] prompt not found") {
		t.Errorf("Unexpected logs output %q", out)
	}

	if _, err := run(t, "logs", "clear", "--server", srv.URL); err != nil {
		t.Fatalf("Failed to clear logs: %v", err)
	}
	if len(bg.Logs().Entries()) != 0 {
		t.Errorf("Expected server log to be cleared")
	}

	srv.Close()
	if _, err := run(t, "logs", "show", "--server", srv.URL); !errors.Is(err, messaging.ErrNoListener) {
		t.Errorf("Expected ErrNoListener once the server is gone, got %v", err)
	}
}

func TestResolveLoader(t *testing.T) {
	snapshot := writeSnapshot(t)
	tests := []struct {
		kind, location, want string
	}{
		{"auto", snapshot, loaderFile},
		{"", "https://suno.com/me", loaderHTTP},
		{"render", "https://suno.com/me", loaderRender},
		{"HTTP", snapshot, loaderHTTP},
	}
	for _, tt := range tests {
		if got := resolveLoader(tt.kind, tt.location); got != tt.want {
			t.Errorf("resolveLoader(%q, %q) = %q, want %q", tt.kind, tt.location, got, tt.want)
		}
	}
}

func TestNotice(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no listener", fmt.Errorf("send: %w", messaging.ErrNoListener), "Nothing is listening"},
		{"challenge", fmt.Errorf("%w: cloudflare", scraper.ErrChallenged), "bot challenge"},
		{"signed out", &scraper.StatusError{URL: "https://suno.com/me", StatusCode: 401}, "signed-in session"},
		{"clipboard", export.ErrNoClipboard, "clipboard"},
		{"other", errors.New("boom"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := notice(tt.err)
			if tt.want == "" {
				if got != "" {
					t.Errorf("Expected no notice, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Expected notice containing %q, got %q", tt.want, got)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	env(t)
	if _, err := run(t, "list", "--storage-backend", "redis"); err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Expected configuration error, got %v", err)
	}
}

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/storage"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		res  extract.Result
		want string
	}{
		{"empty", extract.Result{}, "empty"},
		{"ok", extract.Result{Records: []storage.Record{{Locator: "https://suno.com/song/a"}}}, "ok"},
		{"degraded", extract.Result{Diagnostics: extract.Diagnostics{Failures: []string{"probe: boom"}}}, "degraded"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.res); got != tt.want {
			t.Errorf("%s: Outcome() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	RecordScrape(extract.Result{
		Records: []storage.Record{{Locator: "https://suno.com/song/abc123"}},
		Diagnostics: extract.Diagnostics{
			LocatorHits: map[string]int{"anchors": 1},
			FieldHits:   map[string]int{"prompt:class-fingerprint": 1},
		},
	})
	RecordFetch("http", 200, 250*time.Millisecond, nil)
	RecordFetch("http", 0, time.Second, errors.New("dial failed"))
	RecordChallenge("Cloudflare")

	ts := httptest.NewServer(Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("Failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`stylus_scrapes_total{outcome="ok"}`,
		`stylus_locator_hits_total{strategy="anchors"}`,
		`stylus_field_hits_total{field="prompt",strategy="class-fingerprint"}`,
		`stylus_fetches_total{loader="http",status="200"}`,
		`stylus_fetches_total{loader="http",status="error"}`,
		`stylus_challenges_total{source="Cloudflare"}`,
		`stylus_fetch_duration_seconds_bucket`,
		`stylus_scrape_records_bucket`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

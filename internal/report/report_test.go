package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/stylus/internal/storage"
)

func sampleRecords() []storage.Record {
	return []storage.Record{
		{Locator: "https://suno.com/song/a", Title: "Neon Rain", Prompt: "synthwave, female vocals", ImageURL: "https://cdn2.suno.ai/image_large_a.jpeg"},
		{Locator: "https://suno.com/song/b", Title: "Drive", Prompt: "synthwave, retro"},
		{Locator: "https://suno.com/song/c"},
	}
}

func TestGenerateSummary(t *testing.T) {
	last := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	songs := []storage.SongRecord{{URL: "https://suno.com/song/a", StylePrompt: "synthwave"}}

	summary := GenerateSummary(songs, sampleRecords(), last, 2)

	if summary.TotalSongs != 1 || summary.TotalURLs != 3 {
		t.Errorf("expected 1 song and 3 urls, got %d and %d", summary.TotalSongs, summary.TotalURLs)
	}
	if summary.WithTitle != 2 || summary.WithPrompt != 2 || summary.WithImage != 1 || summary.Complete != 1 {
		t.Errorf("unexpected coverage %+v", summary)
	}
	if !summary.LastUpdate.Equal(last) {
		t.Errorf("expected last update %v, got %v", last, summary.LastUpdate)
	}
	if len(summary.TopKeywords) != 2 || summary.TopKeywords[0].Keyword != "synthwave" || summary.TopKeywords[0].Count != 3 {
		t.Errorf("unexpected keywords %+v", summary.TopKeywords)
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, Summary{TotalURLs: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"totalUrls": 5`) {
		t.Errorf("expected JSON to contain totalUrls: 5, got %s", buf.String())
	}
	if strings.Contains(buf.String(), "Records") {
		t.Errorf("records should not be part of the JSON summary")
	}
}

func TestWriteText(t *testing.T) {
	summary := GenerateSummary(nil, sampleRecords(), time.Time{}, 5)
	var buf bytes.Buffer
	if err := WriteText(&buf, summary); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"URLs:         3", "complete:   1 (33%)", "Last update:  never", "synthwave"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected text to contain %q, got:\n%s", want, out)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	records := append(sampleRecords(), storage.Record{Locator: "https://suno.com/song/x", Title: `<script>alert(1)</script>`})
	var buf bytes.Buffer
	if err := WriteHTML(&buf, GenerateSummary(nil, records, time.Now(), 5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "<title>Stylus Collection</title>") {
		t.Errorf("expected HTML title")
	}
	if !strings.Contains(out, `src="https://cdn2.suno.ai/image_large_a.jpeg"`) {
		t.Errorf("expected gallery thumbnail")
	}
	if !strings.Contains(out, ">https://suno.com/song/c</a>") {
		t.Errorf("expected untitled record to fall back to its url")
	}
	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Errorf("expected record titles to be escaped")
	}
}

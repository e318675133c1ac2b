package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/storage/jsonbackend"
	"github.com/FranksOps/stylus/internal/store"
)

const workspace = `
<html><head><title>Workspace | Suno</title></head><body>
<div role="row">
  <a href="/song/abc123">My Song</a>
  <div class="css-ingj1g">chill, lofi, piano</div>
</div>
<div role="row">
  <a href="/song/def456">Other Song</a>
</div>
</body></html>`

func newBackground(t *testing.T) *BackgroundHandler {
	t.Helper()
	b, err := jsonbackend.New(filepath.Join(t.TempDir(), "stylus.json"))
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}
	return NewBackgroundHandler(store.New(b, nil), nil, nil)
}

func newPage(t *testing.T, bus *Bus) *PageHandler {
	t.Helper()
	p, err := extract.ParsePage("https://suno.com/me", workspace)
	if err != nil {
		t.Fatalf("Failed to parse page: %v", err)
	}
	return NewPageHandler(extract.New(extract.DefaultHeuristics(), nil), p, bus, nil)
}

func TestBus_NoListener(t *testing.T) {
	bus := NewBus(nil)
	_, err := bus.Send(context.Background(), TargetPage, Request{Action: ActionGetAllURLs})
	if !errors.Is(err, ErrNoListener) {
		t.Fatalf("Expected ErrNoListener, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Register(TargetPage, HandlerFunc(func(context.Context, Request) Response { return Response{Success: true} }))
	if _, err := bus.Send(ctx, TargetPage, Request{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	bus.Unregister(TargetPage)
	if _, err := bus.Send(context.Background(), TargetPage, Request{}); !errors.Is(err, ErrNoListener) {
		t.Errorf("Expected ErrNoListener after unregister, got %v", err)
	}
}

func TestScrapeAndSaveFlow(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(nil)
	bg := newBackground(t)
	bus.Register(TargetBackground, bg)
	page := newPage(t, bus)

	var observed int
	page.OnScrape = func(res extract.Result) { observed = len(res.Records) }
	bus.Register(TargetPage, page)

	res, err := bus.Send(ctx, TargetPage, Request{Action: ActionGetAllURLs})
	if err != nil || !res.Success {
		t.Fatalf("Failed to scrape: %v %+v", err, res)
	}
	if len(res.URLs) != 2 {
		t.Fatalf("Expected 2 urls, got %d", len(res.URLs))
	}
	if observed != 2 {
		t.Errorf("Expected observer to see 2 records, got %d", observed)
	}

	save, err := NewRequest(ActionSaveURLs, res.URLs)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	saved, err := bus.Send(ctx, TargetBackground, save)
	if err != nil || !saved.Success {
		t.Fatalf("Failed to save: %v %+v", err, saved)
	}
	if saved.Merge == nil || saved.Merge.Added != 2 {
		t.Errorf("Expected 2 added, got %+v", saved.Merge)
	}

	stored, _ := bus.Send(ctx, TargetBackground, Request{Action: ActionGetAllURLs})
	if len(stored.URLs) != 2 || stored.URLs[0].Prompt != "chill, lofi, piano" {
		t.Errorf("Unexpected stored urls %+v", stored.URLs)
	}

	// The scrape posted its diagnostics to the background debug log
	bus.Wait()
	logs, _ := bus.Send(ctx, TargetBackground, Request{Action: ActionGetDebugLogs})
	if len(logs.Logs) == 0 || !strings.Contains(logs.Logs[0].Message, "scraped 2 records") {
		t.Errorf("Expected scrape log entry, got %+v", logs.Logs)
	}

	del, _ := bus.Send(ctx, TargetBackground, Request{Action: ActionDeleteURL, URL: "https://suno.com/song/abc123"})
	if !del.Success || del.Removed == nil || !*del.Removed {
		t.Errorf("Expected delete to remove record, got %+v", del)
	}
	stored, _ = bus.Send(ctx, TargetBackground, Request{Action: ActionGetAllURLs})
	if len(stored.URLs) != 1 {
		t.Errorf("Expected 1 url after delete, got %d", len(stored.URLs))
	}
}

func TestSaveURLs_AcceptsBareStrings(t *testing.T) {
	bg := newBackground(t)
	ctx := context.Background()

	res := bg.Handle(ctx, Request{Action: ActionSaveURLs, URLs: json.RawMessage(`["https://suno.com/song/x1", {"url":"https://suno.com/song/x2"}]`)})
	if !res.Success || res.Merge.Added != 2 {
		t.Fatalf("Expected 2 records added, got %+v", res)
	}

	bad := bg.Handle(ctx, Request{Action: ActionSaveURLs, URLs: json.RawMessage(`{"not":"a list"}`)})
	if bad.Success || bad.Error == "" {
		t.Errorf("Expected failure for malformed payload, got %+v", bad)
	}
}

func TestSongFlow(t *testing.T) {
	ctx := context.Background()
	bg := newBackground(t)

	p, _ := extract.ParsePage("https://suno.com/song/neon", `<html><body><h1>Neon Rain</h1></body></html>`)
	page := NewPageHandler(extract.New(extract.DefaultHeuristics(), nil), p, nil, nil)

	got := page.Handle(ctx, Request{Action: ActionExtractSongData})
	if !got.Success || got.Data == nil || got.Data.Title != "Neon Rain" {
		t.Fatalf("Unexpected extract response %+v", got)
	}

	req, _ := NewRequest(ActionSaveSongData, got.Data)
	if res := bg.Handle(ctx, req); !res.Success {
		t.Fatalf("Failed to save song: %s", res.Error)
	}
	songs := bg.Handle(ctx, Request{Action: ActionGetAllSongs})
	if len(songs.Songs) != 1 || songs.Songs[0].SavedAt.IsZero() {
		t.Fatalf("Unexpected songs %+v", songs.Songs)
	}

	if res := bg.Handle(ctx, Request{Action: ActionDeleteSong, URL: "https://suno.com/song/neon"}); !res.Success {
		t.Fatalf("Failed to delete song: %s", res.Error)
	}
	songs = bg.Handle(ctx, Request{Action: ActionGetAllSongs})
	if len(songs.Songs) != 0 {
		t.Errorf("Expected no songs after delete, got %d", len(songs.Songs))
	}

	// Empty collections encode as [] rather than being omitted
	raw, _ := json.Marshal(songs)
	if !strings.Contains(string(raw), `"songs":[]`) {
		t.Errorf("Expected empty songs array in %s", raw)
	}
}

func TestPageInfo(t *testing.T) {
	page := newPage(t, nil)
	res := page.Handle(context.Background(), Request{Action: ActionGetPageInfo})
	if !res.Success || res.PageInfo == nil {
		t.Fatalf("Unexpected response %+v", res)
	}
	if res.PageInfo.Title != "Workspace | Suno" || len(res.PageInfo.AllURLs) != 2 {
		t.Errorf("Unexpected page info %+v", res.PageInfo)
	}

	unknown := page.Handle(context.Background(), Request{Action: ActionSaveURLs})
	if unknown.Success {
		t.Errorf("Expected page context to reject store actions")
	}
}

func TestDebugLog_Ring(t *testing.T) {
	l := NewDebugLog(DefaultDebugLogSize)
	for i := range 130 {
		l.Add(LogEntry{Message: fmt.Sprintf("msg %d", i)})
	}

	entries := l.Entries()
	if len(entries) != DefaultDebugLogSize {
		t.Fatalf("Expected %d entries, got %d", DefaultDebugLogSize, len(entries))
	}
	if entries[0].Message != "msg 30" || entries[len(entries)-1].Message != "msg 129" {
		t.Errorf("Unexpected ring order: first %q, last %q", entries[0].Message, entries[len(entries)-1].Message)
	}
	if entries[0].ID == "" || entries[0].Level != "info" || entries[0].Timestamp.IsZero() {
		t.Errorf("Expected defaults to be filled in, got %+v", entries[0])
	}

	l.Clear()
	if len(l.Entries()) != 0 {
		t.Errorf("Expected empty log after clear")
	}
}

func TestClearAll(t *testing.T) {
	ctx := context.Background()
	bg := newBackground(t)

	bg.Handle(ctx, Request{Action: ActionSaveURLs, URLs: json.RawMessage(`["https://suno.com/song/z"]`)})
	bg.Handle(ctx, Request{Action: ActionDebugLog, Data: json.RawMessage(`{"level":"error","message":"boom"}`)})

	if res := bg.Handle(ctx, Request{Action: ActionClearAll}); !res.Success {
		t.Fatalf("Failed to clear: %s", res.Error)
	}
	urls := bg.Handle(ctx, Request{Action: ActionGetAllURLs})
	logs := bg.Handle(ctx, Request{Action: ActionGetDebugLogs})
	if len(urls.URLs) != 0 || len(logs.Logs) != 0 {
		t.Errorf("Expected everything cleared, got %d urls and %d logs", len(urls.URLs), len(logs.Logs))
	}

	if res := bg.Handle(ctx, Request{Action: "bogus"}); res.Success {
		t.Errorf("Expected unknown action to fail")
	}
}

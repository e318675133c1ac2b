// Package messaging is the request/response contract between the page
// context (which owns a loaded document) and the background context (which
// owns the record store). Every request gets exactly one response.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/FranksOps/stylus/internal/extract"
	"github.com/FranksOps/stylus/internal/storage"
	"github.com/FranksOps/stylus/internal/store"
)

// ErrNoListener is returned when a request targets a context that has no
// registered handler, for example when no song page is loaded.
var ErrNoListener = errors.New("no listener for target")

// Target names a receiving context.
type Target string

const (
	TargetPage       Target = "page"
	TargetBackground Target = "background"
)

// Action names a request.
type Action string

const (
	ActionExtractSongData Action = "extractSongData"
	ActionGetAllURLs      Action = "getAllUrls"
	ActionGetPageInfo     Action = "getPageInfo"
	ActionSaveSongData    Action = "saveSongData"
	ActionSaveURLs        Action = "saveUrls"
	ActionGetAllSongs     Action = "getAllSongs"
	ActionDeleteSong      Action = "deleteSong"
	ActionDeleteURL       Action = "deleteUrl"
	ActionClearURLs       Action = "clearUrls"
	ActionClearAll        Action = "clearAll"
	ActionDebugLog        Action = "debugLog"
	ActionGetDebugLogs    Action = "getDebugLogs"
	ActionClearDebugLogs  Action = "clearDebugLogs"
)

// Request is one message. Only the fields relevant to Action are read.
type Request struct {
	Action Action `json:"action"`
	// URL identifies the song or record for delete actions.
	URL string `json:"url,omitempty"`
	// Data carries a SongRecord for saveSongData or a LogEntry for debugLog.
	Data json.RawMessage `json:"data,omitempty"`
	// URLs carries records for saveUrls; bare URL strings are accepted.
	URLs json.RawMessage `json:"urls,omitempty"`
}

// Response is the single reply to a Request.
type Response struct {
	Success     bool                 `json:"success"`
	Error       string               `json:"error,omitempty"`
	Data        *storage.SongRecord  `json:"data,omitempty"`
	URLs        []storage.Record     `json:"urls,omitzero"`
	Songs       []storage.SongRecord `json:"songs,omitzero"`
	PageInfo    *PageInfo            `json:"pageInfo,omitempty"`
	Logs        []LogEntry           `json:"logs,omitzero"`
	Merge       *store.MergeResult   `json:"merge,omitempty"`
	Removed     *bool                `json:"removed,omitempty"`
	Diagnostics *extract.Diagnostics `json:"diagnostics,omitempty"`
}

// PageInfo summarises the loaded page.
type PageInfo struct {
	URL      string             `json:"url"`
	Title    string             `json:"title"`
	SongData storage.SongRecord `json:"songData"`
	AllURLs  []storage.Record   `json:"allUrls"`
}

// Failure builds an unsuccessful response.
func Failure(err error) Response {
	return Response{Success: false, Error: err.Error()}
}

// NewRequest builds a request with data encoded as JSON.
func NewRequest(action Action, data any) (Request, error) {
	req := Request{Action: action}
	if data == nil {
		return req, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Request{}, fmt.Errorf("encode %s payload: %w", action, err)
	}
	if action == ActionSaveURLs {
		req.URLs = raw
	} else {
		req.Data = raw
	}
	return req, nil
}

// Handler answers requests for one context.
type Handler interface {
	Handle(ctx context.Context, req Request) Response
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response { return f(ctx, req) }

// Bus routes requests to the handler registered for their target.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Target]Handler
	inflight sync.WaitGroup
	logger   *slog.Logger
}

// NewBus creates an empty bus. A nil logger falls back to slog.Default().
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{handlers: map[Target]Handler{}, logger: logger}
}

// Register installs h for target, replacing any previous handler.
func (b *Bus) Register(target Target, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[target] = h
}

// Unregister removes the handler for target.
func (b *Bus) Unregister(target Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, target)
}

func (b *Bus) handler(target Target) (Handler, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[target]
	return h, ok
}

// Send delivers req and waits for the response. It fails with ErrNoListener
// when nothing is registered for target.
func (b *Bus) Send(ctx context.Context, target Target, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	h, ok := b.handler(target)
	if !ok {
		return Response{}, fmt.Errorf("%w: %s (%s)", ErrNoListener, target, req.Action)
	}
	return h.Handle(ctx, req), nil
}

// Post delivers req without waiting and discards the response. Use Wait to
// drain posted messages before shutdown.
func (b *Bus) Post(target Target, req Request) {
	h, ok := b.handler(target)
	if !ok {
		b.logger.Debug("dropping posted message", "target", target, "action", req.Action)
		return
	}
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		if res := h.Handle(context.Background(), req); !res.Success {
			b.logger.Debug("posted message failed", "target", target, "action", req.Action, "err", res.Error)
		}
	}()
}

// Wait blocks until every posted message has been handled.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

// rawJSON encodes v, or returns nil if it cannot be encoded.
func rawJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

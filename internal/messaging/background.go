package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/FranksOps/stylus/internal/storage"
	"github.com/FranksOps/stylus/internal/store"
)

// BackgroundHandler serves store-backed actions and keeps the debug log.
type BackgroundHandler struct {
	store  *store.Store
	logs   *DebugLog
	logger *slog.Logger
}

// NewBackgroundHandler wires a handler over s. A nil logs ring gets the
// default size.
func NewBackgroundHandler(s *store.Store, logs *DebugLog, logger *slog.Logger) *BackgroundHandler {
	if logs == nil {
		logs = NewDebugLog(DefaultDebugLogSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BackgroundHandler{store: s, logs: logs, logger: logger}
}

// Logs exposes the debug ring.
func (h *BackgroundHandler) Logs() *DebugLog { return h.logs }

func (h *BackgroundHandler) fail(action Action, err error) Response {
	h.logger.Error("background request failed", "action", action, "err", err)
	return Failure(err)
}

// Handle implements Handler.
func (h *BackgroundHandler) Handle(ctx context.Context, req Request) Response {
	switch req.Action {
	case ActionSaveSongData:
		var song storage.SongRecord
		if err := json.Unmarshal(req.Data, &song); err != nil {
			return h.fail(req.Action, fmt.Errorf("decode song: %w", err))
		}
		if err := h.store.SaveSong(ctx, song); err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true}

	case ActionGetAllSongs:
		songs, err := h.store.Songs(ctx)
		if err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true, Songs: songs}

	case ActionDeleteSong:
		removed, err := h.store.DeleteSong(ctx, req.URL)
		if err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true, Removed: &removed}

	case ActionSaveURLs:
		records, _, err := storage.DecodeRecords(req.URLs)
		if err != nil {
			return h.fail(req.Action, err)
		}
		res, err := h.store.SaveURLs(ctx, records)
		if err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true, Merge: &res}

	case ActionGetAllURLs:
		urls, err := h.store.URLs(ctx)
		if err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true, URLs: urls}

	case ActionDeleteURL:
		removed, err := h.store.DeleteURL(ctx, req.URL)
		if err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true, Removed: &removed}

	case ActionClearURLs:
		if err := h.store.ClearURLs(ctx); err != nil {
			return h.fail(req.Action, err)
		}
		return Response{Success: true}

	case ActionClearAll:
		if err := h.store.Clear(ctx); err != nil {
			return h.fail(req.Action, err)
		}
		h.logs.Clear()
		return Response{Success: true}

	case ActionDebugLog:
		var entry LogEntry
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &entry); err != nil {
				return h.fail(req.Action, fmt.Errorf("decode log entry: %w", err))
			}
		}
		h.logs.Add(entry)
		return Response{Success: true}

	case ActionGetDebugLogs:
		return Response{Success: true, Logs: h.logs.Entries()}

	case ActionClearDebugLogs:
		h.logs.Clear()
		return Response{Success: true}
	}

	return Failure(fmt.Errorf("unknown action %q", req.Action))
}

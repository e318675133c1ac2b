// Package store owns the persisted song and URL collections. Every
// read-modify-write cycle goes through one Store so concurrent saves cannot
// lose updates within a process.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/stylus/internal/storage"
	"github.com/FranksOps/stylus/internal/storage/jsonbackend"
	"github.com/FranksOps/stylus/internal/storage/postgres"
	"github.com/FranksOps/stylus/internal/storage/sqlite"
)

// Store serialises access to the record collections held in a Backend.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	logger  *slog.Logger
	now     func() time.Time
}

// MergeResult reports what a SaveURLs call changed.
type MergeResult struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Total   int `json:"total"`
}

// OpenBackend builds the backend named by kind ("json", "sqlite" or "postgres").
func OpenBackend(ctx context.Context, kind, dsn string) (storage.Backend, error) {
	switch strings.ToLower(kind) {
	case "json", "":
		return jsonbackend.New(dsn)
	case "sqlite":
		return sqlite.New(dsn)
	case "postgres", "postgresql":
		return postgres.New(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, kind)
	}
}

// New wraps backend. A nil logger falls back to slog.Default().
func New(backend storage.Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close releases the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) loadURLs(ctx context.Context) ([]storage.Record, bool, error) {
	values, err := s.backend.Get(ctx, storage.KeyURLs)
	if err != nil {
		return nil, false, fmt.Errorf("read urls: %w", err)
	}
	return storage.DecodeRecords(values[storage.KeyURLs])
}

func (s *Store) loadSongs(ctx context.Context) ([]storage.SongRecord, error) {
	values, err := s.backend.Get(ctx, storage.KeySongs)
	if err != nil {
		return nil, fmt.Errorf("read songs: %w", err)
	}
	return storage.DecodeSongs(values[storage.KeySongs])
}

func (s *Store) writeSongs(ctx context.Context, songs []storage.SongRecord) error {
	data, err := json.Marshal(songs)
	if err != nil {
		return fmt.Errorf("encode songs: %w", err)
	}
	if err := s.backend.Set(ctx, map[string][]byte{storage.KeySongs: data}); err != nil {
		return fmt.Errorf("write songs: %w", err)
	}
	return nil
}

func (s *Store) writeURLs(ctx context.Context, records []storage.Record, touch bool) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode urls: %w", err)
	}
	values := map[string][]byte{storage.KeyURLs: data}
	if touch {
		ts, err := json.Marshal(s.now())
		if err != nil {
			return fmt.Errorf("encode timestamp: %w", err)
		}
		values[storage.KeyLastURLUpdate] = ts
	}
	if err := s.backend.Set(ctx, values); err != nil {
		return fmt.Errorf("write urls: %w", err)
	}
	return nil
}

// SaveSong upserts a song snapshot keyed by its URL. New entries get SavedAt,
// replaced entries keep it and get UpdatedAt.
func (s *Store) SaveSong(ctx context.Context, song storage.SongRecord) error {
	if song.URL == "" {
		return fmt.Errorf("save song: empty url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	songs, err := s.loadSongs(ctx)
	if err != nil {
		return err
	}

	now := s.now()
	replaced := false
	for i := range songs {
		if songs[i].URL == song.URL {
			song.SavedAt = songs[i].SavedAt
			song.UpdatedAt = now
			songs[i] = song
			replaced = true
			break
		}
	}
	if !replaced {
		song.SavedAt = now
		song.UpdatedAt = time.Time{}
		songs = append(songs, song)
	}

	if err := s.writeSongs(ctx, songs); err != nil {
		return err
	}
	s.logger.Debug("saved song", "url", song.URL, "replaced", replaced)
	return nil
}

// Songs returns every saved song in insertion order.
func (s *Store) Songs(ctx context.Context) ([]storage.SongRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSongs(ctx)
}

// DeleteSong removes the song with the given URL. It reports whether an entry
// was removed; a missing URL is not an error.
func (s *Store) DeleteSong(ctx context.Context, url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	songs, err := s.loadSongs(ctx)
	if err != nil {
		return false, err
	}

	kept := songs[:0]
	removed := false
	for _, song := range songs {
		if !removed && song.URL == url {
			removed = true
			continue
		}
		kept = append(kept, song)
	}
	if !removed {
		return false, nil
	}
	return true, s.writeSongs(ctx, kept)
}

// SaveURLs merges records into the stored collection. Known locators have
// their non-empty fields overlaid, unknown ones are appended in the given
// order, and the last-update timestamp is refreshed.
func (s *Store) SaveURLs(ctx context.Context, records []storage.Record) (MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, _, err := s.loadURLs(ctx)
	if err != nil {
		return MergeResult{}, err
	}

	index := make(map[string]int, len(stored))
	for i, r := range stored {
		index[r.Locator] = i
	}

	var res MergeResult
	for _, r := range records {
		if r.Locator == "" {
			continue
		}
		if i, ok := index[r.Locator]; ok {
			merged := stored[i].Merge(r)
			if merged != stored[i] {
				stored[i] = merged
				res.Updated++
			}
			continue
		}
		index[r.Locator] = len(stored)
		stored = append(stored, r)
		res.Added++
	}
	res.Total = len(stored)

	if err := s.writeURLs(ctx, stored, true); err != nil {
		return MergeResult{}, err
	}
	s.logger.Debug("merged urls", "added", res.Added, "updated", res.Updated, "total", res.Total)
	return res, nil
}

// URLs returns the stored URL records. Legacy bare-string entries are
// rewritten in the canonical shape on the way out.
func (s *Store) URLs(ctx context.Context) ([]storage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, legacy, err := s.loadURLs(ctx)
	if err != nil {
		return nil, err
	}
	if legacy {
		if err := s.writeURLs(ctx, records, false); err != nil {
			s.logger.Warn("failed to migrate legacy url entries", "err", err)
		} else {
			s.logger.Info("migrated legacy url entries", "count", len(records))
		}
	}
	return records, nil
}

// DeleteURL removes exactly one record by locator and reports whether it was
// present.
func (s *Store) DeleteURL(ctx context.Context, locator string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, _, err := s.loadURLs(ctx)
	if err != nil {
		return false, err
	}

	for i, r := range records {
		if r.Locator == locator {
			records = append(records[:i], records[i+1:]...)
			return true, s.writeURLs(ctx, records, false)
		}
	}
	return false, nil
}

// ClearURLs drops every URL record and the last-update timestamp.
func (s *Store) ClearURLs(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, storage.KeyURLs, storage.KeyLastURLUpdate); err != nil {
		return fmt.Errorf("clear urls: %w", err)
	}
	return nil
}

// Clear wipes the whole key space.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

// LastUpdate returns when URLs were last saved, or the zero time.
func (s *Store) LastUpdate(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.backend.Get(ctx, storage.KeyLastURLUpdate)
	if err != nil {
		return time.Time{}, fmt.Errorf("read last update: %w", err)
	}
	raw, ok := values[storage.KeyLastURLUpdate]
	if !ok {
		return time.Time{}, nil
	}
	var ts time.Time
	if err := json.Unmarshal(raw, &ts); err != nil {
		return time.Time{}, fmt.Errorf("decode last update: %w", err)
	}
	return ts, nil
}

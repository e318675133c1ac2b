package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Keys used in the flat key-value space.
const (
	KeySongs         = "savedSongs"
	KeyURLs          = "savedUrls"
	KeyLastURLUpdate = "lastUrlUpdate"
)

// ErrUnknownBackend is returned when a configured backend name is not recognised.
var ErrUnknownBackend = errors.New("unknown storage backend")

// Record is one scraped song entry. Locator is the canonical song URL and the
// deduplication key.
type Record struct {
	Locator  string `json:"url"`
	Title    string `json:"title"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl"`
}

// Merge overlays the non-empty fields of next onto r. Empty values never
// blank a stored field.
func (r Record) Merge(next Record) Record {
	if next.Title != "" {
		r.Title = next.Title
	}
	if next.Prompt != "" {
		r.Prompt = next.Prompt
	}
	if next.ImageURL != "" {
		r.ImageURL = next.ImageURL
	}
	return r
}

// SongRecord is the detailed snapshot of a single song page.
type SongRecord struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Lyrics      string    `json:"lyrics"`
	StylePrompt string    `json:"stylePrompt"`
	Tags        []string  `json:"tags"`
	Timestamp   time.Time `json:"timestamp"`
	SavedAt     time.Time `json:"savedAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Backend is a flat key-value space holding JSON documents. Missing keys are
// simply absent from the map returned by Get.
type Backend interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	// Set writes every key in values as one unit.
	Set(ctx context.Context, values map[string][]byte) error
	Delete(ctx context.Context, keys ...string) error
	Clear(ctx context.Context) error
	Close() error
}

// DecodeRecords reads a stored URL collection. Entries written by older
// versions were bare URL strings; those are lifted into Record. The second
// return value reports whether any legacy entry was seen.
func DecodeRecords(data []byte) ([]Record, bool, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return []Record{}, false, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, false, fmt.Errorf("decode records: %w", err)
	}

	records := make([]Record, 0, len(raw))
	legacy := false
	for _, item := range raw {
		trimmed := bytes.TrimSpace(item)
		if len(trimmed) > 0 && trimmed[0] == '"' {
			var s string
			if err := json.Unmarshal(trimmed, &s); err != nil {
				return nil, false, fmt.Errorf("decode legacy record: %w", err)
			}
			legacy = true
			if s != "" {
				records = append(records, Record{Locator: s})
			}
			continue
		}

		var r Record
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, false, fmt.Errorf("decode record: %w", err)
		}
		if r.Locator == "" {
			continue
		}
		records = append(records, r)
	}
	return records, legacy, nil
}

// DecodeSongs reads a stored song collection.
func DecodeSongs(data []byte) ([]SongRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []SongRecord{}, nil
	}
	var songs []SongRecord
	if err := json.Unmarshal(data, &songs); err != nil {
		return nil, fmt.Errorf("decode songs: %w", err)
	}
	if songs == nil {
		songs = []SongRecord{}
	}
	return songs, nil
}

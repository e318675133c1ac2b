// Package export turns stored records into the files and clipboard text the
// user takes away: a full JSON dump, a tab-separated selection, and a plain
// text copy of the debug log.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/FranksOps/stylus/internal/messaging"
	"github.com/FranksOps/stylus/internal/storage"
)

// ErrNoClipboard is returned when the host has no usable clipboard utility.
var ErrNoClipboard = errors.New("clipboard unavailable")

// Field selects a column of the tab-separated export.
type Field string

const (
	FieldURL    Field = "url"
	FieldTitle  Field = "title"
	FieldPrompt Field = "prompt"
	FieldImage  Field = "image"
)

// DefaultFields is the selection used when none is given. The image column
// is opt-in.
var DefaultFields = []Field{FieldURL, FieldTitle, FieldPrompt}

// ParseFields reads a comma separated field list such as "url,prompt".
// Order is preserved and repeats are dropped. An empty string yields
// DefaultFields.
func ParseFields(s string) ([]Field, error) {
	if strings.TrimSpace(s) == "" {
		return append([]Field(nil), DefaultFields...), nil
	}

	var out []Field
	seen := map[Field]bool{}
	for part := range strings.SplitSeq(s, ",") {
		f := Field(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}
		switch f {
		case FieldURL, FieldTitle, FieldPrompt, FieldImage:
		default:
			return nil, fmt.Errorf("unknown export field %q", part)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, errors.New("no export fields selected")
	}
	return out, nil
}

func (f Field) value(r storage.Record) string {
	switch f {
	case FieldURL:
		return r.Locator
	case FieldTitle:
		return r.Title
	case FieldPrompt:
		return r.Prompt
	case FieldImage:
		return r.ImageURL
	}
	return ""
}

// Document is the full JSON export.
type Document struct {
	Songs      []storage.SongRecord `json:"songs"`
	URLs       []storage.Record     `json:"urls"`
	ExportedAt time.Time            `json:"exportedAt"`
}

// NewDocument stamps songs and urls with the export time. Nil collections
// are written as empty arrays.
func NewDocument(songs []storage.SongRecord, urls []storage.Record, now time.Time) Document {
	if songs == nil {
		songs = []storage.SongRecord{}
	}
	if urls == nil {
		urls = []storage.Record{}
	}
	return Document{Songs: songs, URLs: urls, ExportedAt: now.UTC()}
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

var cellReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// FormatTSV renders one line per record with the selected fields joined by
// tabs. There is no header row and no quoting; embedded tabs and newlines
// are flattened to spaces so every record stays on one line.
func FormatTSV(records []storage.Record, fields []Field) string {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	lines := make([]string, 0, len(records))
	parts := make([]string, len(fields))
	for _, r := range records {
		for i, f := range fields {
			parts[i] = cellReplacer.Replace(f.value(r))
		}
		lines = append(lines, strings.Join(parts, "\t"))
	}
	return strings.Join(lines, "\n")
}

// FormatDebugLogs renders entries one per line as
// "[time] [LEVEL   ] message {data}".
func FormatDebugLogs(entries []messaging.LogEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] [%-8s] %s",
			e.Timestamp.Local().Format(time.DateTime),
			strings.ToUpper(e.Level),
			e.Message,
		)
		if len(e.Data) > 0 && string(e.Data) != "null" {
			b.WriteByte(' ')
			b.Write(e.Data)
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

// clipboardWrite is swapped out in tests.
var clipboardWrite = clipboard.WriteAll

// Copy places text on the system clipboard.
func Copy(text string) error {
	if clipboard.Unsupported {
		return ErrNoClipboard
	}
	if err := clipboardWrite(text); err != nil {
		return fmt.Errorf("%w: %v", ErrNoClipboard, err)
	}
	return nil
}

// DataFileName is the default name of the full JSON export.
func DataFileName(t time.Time) string {
	return "suno-data-" + t.UTC().Format(time.DateOnly) + ".json"
}

// URLsFileName is the default name of the tab-separated export.
func URLsFileName(t time.Time) string {
	return "suno-urls-" + t.UTC().Format(time.DateOnly) + ".txt"
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	return nil
}

package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDebugLogSize is how many entries the background context keeps.
const DefaultDebugLogSize = 100

// LogEntry is one diagnostic message.
type LogEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DebugLog is a ring buffer of the most recent entries.
type DebugLog struct {
	mu      sync.Mutex
	entries []LogEntry
	next    int
	full    bool
}

// NewDebugLog creates a ring holding up to size entries.
func NewDebugLog(size int) *DebugLog {
	if size <= 0 {
		size = DefaultDebugLogSize
	}
	return &DebugLog{entries: make([]LogEntry, size)}
}

// Add stores e, filling in ID and Timestamp when missing, and returns it.
func (l *DebugLog) Add(e LogEntry) LogEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Level == "" {
		e.Level = "info"
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return e
}

// Entries returns the stored entries, oldest first.
func (l *DebugLog) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		return append([]LogEntry{}, l.entries[:l.next]...)
	}
	out := make([]LogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.next:]...)
	return append(out, l.entries[:l.next]...)
}

// Clear drops every entry.
func (l *DebugLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.entries)
	l.next = 0
	l.full = false
}

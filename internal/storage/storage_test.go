package storage

import (
	"context"
	"testing"
)

func TestRecord_Merge(t *testing.T) {
	stored := Record{Locator: "L", Title: "A", Prompt: ""}
	got := stored.Merge(Record{Locator: "L", Title: "", Prompt: "B"})

	want := Record{Locator: "L", Title: "A", Prompt: "B"}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}

	// Empty values never blank a stored field
	got = got.Merge(Record{Locator: "L"})
	if got != want {
		t.Errorf("expected merge with empty record to be a no-op, got %+v", got)
	}
}

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantCount  int
		wantLegacy bool
		wantErr    bool
	}{
		{name: "empty", data: "", wantCount: 0},
		{name: "null", data: "null", wantCount: 0},
		{
			name:      "canonical",
			data:      `[{"url":"https://suno.com/song/a","title":"A","prompt":"","imageUrl":""}]`,
			wantCount: 1,
		},
		{
			name:       "legacy strings",
			data:       `["https://suno.com/song/a", {"url":"https://suno.com/song/b"}]`,
			wantCount:  2,
			wantLegacy: true,
		},
		{
			name:      "entries without url dropped",
			data:      `[{"title":"orphan"}]`,
			wantCount: 0,
		},
		{name: "malformed", data: `{"url":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, legacy, err := DecodeRecords([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeRecords() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(records) != tt.wantCount {
				t.Errorf("expected %d records, got %d", tt.wantCount, len(records))
			}
			if legacy != tt.wantLegacy {
				t.Errorf("expected legacy=%v, got %v", tt.wantLegacy, legacy)
			}
		})
	}
}

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	return map[string][]byte{}, nil
}
func (m *mockBackend) Set(ctx context.Context, values map[string][]byte) error { return nil }
func (m *mockBackend) Delete(ctx context.Context, keys ...string) error        { return nil }
func (m *mockBackend) Clear(ctx context.Context) error                         { return nil }
func (m *mockBackend) Close() error                                            { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}

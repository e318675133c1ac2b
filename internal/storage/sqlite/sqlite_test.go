package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteBackend(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "stylus.db")
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()

	err = b.Set(ctx, map[string][]byte{
		"savedUrls":     []byte(`[{"url":"https://suno.com/song/a"}]`),
		"lastUrlUpdate": []byte(`"2026-01-01T00:00:00Z"`),
	})
	if err != nil {
		t.Fatalf("Failed to set values: %v", err)
	}

	got, err := b.Get(ctx, "savedUrls", "lastUrlUpdate", "savedSongs")
	if err != nil {
		t.Fatalf("Failed to get values: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(got))
	}
	if string(got["savedUrls"]) != `[{"url":"https://suno.com/song/a"}]` {
		t.Errorf("Unexpected savedUrls value %s", got["savedUrls"])
	}

	// Upsert replaces
	err = b.Set(ctx, map[string][]byte{"savedUrls": []byte(`[]`)})
	if err != nil {
		t.Fatalf("Failed to overwrite value: %v", err)
	}
	got, _ = b.Get(ctx, "savedUrls")
	if string(got["savedUrls"]) != `[]` {
		t.Errorf("Expected overwritten value, got %s", got["savedUrls"])
	}

	if err := b.Delete(ctx, "savedUrls"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	got, _ = b.Get(ctx, "savedUrls", "lastUrlUpdate")
	if len(got) != 1 {
		t.Errorf("Expected 1 key after delete, got %d", len(got))
	}

	if err := b.Clear(ctx); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	got, _ = b.Get(ctx, "lastUrlUpdate")
	if len(got) != 0 {
		t.Errorf("Expected empty store after clear, got %d keys", len(got))
	}

	got, err = b.Get(ctx)
	if err != nil || len(got) != 0 {
		t.Errorf("Expected empty result for no keys, got %v (err %v)", got, err)
	}
}

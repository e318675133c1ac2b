package jsonbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/FranksOps/stylus/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// jsonBackend keeps the whole key space in one JSON object on disk.
type jsonBackend struct {
	mu   sync.Mutex
	path string
}

// New creates a file-backed storage.Backend. The file is created lazily on
// the first write.
func New(filePath string) (storage.Backend, error) {
	if dir := filepath.Dir(filePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	b := &jsonBackend{path: filePath}

	// Fail early on a corrupt file rather than on the first user action
	if _, err := b.load(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *jsonBackend) load() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	space := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &space); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", b.path, err)
	}
	return space, nil
}

func (b *jsonBackend) persist(space map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(space, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".stylus-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func (b *jsonBackend) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	space, err := b.load()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := space[k]; ok {
			out[k] = []byte(v)
		}
	}
	return out, nil
}

func (b *jsonBackend) Set(ctx context.Context, values map[string][]byte) error {
	for k, v := range values {
		if !json.Valid(v) {
			return fmt.Errorf("value for %q is not valid JSON", k)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	space, err := b.load()
	if err != nil {
		return err
	}
	for k, v := range values {
		space[k] = json.RawMessage(v)
	}
	return b.persist(space)
}

func (b *jsonBackend) Delete(ctx context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	space, err := b.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(space, k)
	}
	return b.persist(space)
}

func (b *jsonBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.persist(map[string]json.RawMessage{})
}

func (b *jsonBackend) Close() error {
	return nil
}

package marker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// File keeps markers in a JSON object on disk so they survive restarts.
// The file is read once on open and rewritten on every Set.
type File struct {
	path string
	mu   sync.Mutex
	keys map[string]bool
}

func OpenFile(path string) (*File, error) {
	f := &File{path: path, keys: make(map[string]bool)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read marker file: %w", err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.keys); err != nil {
		return nil, fmt.Errorf("failed to decode marker file: %w", err)
	}
	return f, nil
}

func (f *File) Has(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *File) Set(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return nil
	}
	f.keys[key] = true
	data, err := json.MarshalIndent(f.keys, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		delete(f.keys, key)
		return fmt.Errorf("failed to write marker file: %w", err)
	}
	return nil
}

// Package kv persists small JSON documents under well-known keys.
//
// It plays the role of browser local storage for the session identity, the
// simulated durable store and the holdings cache.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Store is a flat key value store.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// GetJSON decodes the value stored under key into v.
func GetJSON(s Store, key string, v any) error {
	data, err := s.Get(key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("cannot decode %q: %w", key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cannot encode %q: %w", key, err)
	}
	return s.Set(key, data)
}

// Memory is an in-memory Store. Its zero value is ready to use.
type Memory struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{m: make(map[string][]byte)} }

func (s *Memory) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (s *Memory) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string][]byte)
	}
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *Memory) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// Dir is a Store that keeps one file per key in a folder.
//
// Writes go through a temporary file and a rename, so a reader never sees a
// partially written value.
type Dir struct {
	path string
	mu   sync.Mutex
}

// OpenDir returns a Store rooted at path, creating the folder if needed.
func OpenDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create store folder %q: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// filename escapes every byte of key outside letters, digits and "-_.~", so
// that distinct keys never share a file.
func (d *Dir) filename(key string) string {
	return filepath.Join(d.path, url.QueryEscape(key)+".json")
}

func (d *Dir) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(d.filename(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return data, err
}

func (d *Dir) Set(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.CreateTemp(d.path, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := f.Write(value); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), d.filename(key))
}

func (d *Dir) Delete(key string) error {
	err := os.Remove(d.filename(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

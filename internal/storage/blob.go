// Package storage persists tick and candle partitions. Destinations are
// modeled as key-value blob stores with prefix listing; the shipped
// implementation is filesystem-rooted and works equally against a local data
// directory or a mounted bucket.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// BlobStore is the narrow storage contract the pipeline consumes.
type BlobStore interface {
	// ListKeys returns all keys under prefix, sorted ascending.
	ListKeys(prefix string) ([]string, error)

	// Get reads the blob at key. Missing keys return an error satisfying
	// os.IsNotExist semantics via errors.Is(err, fs.ErrNotExist).
	Get(key string) ([]byte, error)

	// Put writes the blob at key and returns the written location, used
	// only for logging.
	Put(key string, data []byte) (string, error)
}

// FSStore implements BlobStore on a directory tree. Keys are
// forward-slash-separated paths relative to Root.
type FSStore struct {
	Root string
	Name string
}

var _ BlobStore = (*FSStore)(nil)

// NewFSStore creates a store rooted at dir. name identifies the sink in
// logs and written-location lists.
func NewFSStore(dir, name string) *FSStore {
	return &FSStore{Root: dir, Name: name}
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.Root, filepath.FromSlash(key))
}

// ListKeys walks Root/prefix and returns the keys of all regular files
// found, sorted ascending.
func (s *FSStore) ListKeys(prefix string) ([]string, error) {
	base := s.path(prefix)
	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Get reads the blob at key.
func (s *FSStore) Get(key string) ([]byte, error) {
	return os.ReadFile(s.path(key))
}

// Put writes the blob at key, creating parent directories as needed.
func (s *FSStore) Put(key string, data []byte) (string, error) {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("creating dir for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	loc := s.Name + ":" + key
	if s.Name == "" {
		loc = p
	}
	return loc, nil
}

// Exists reports whether any key lives under prefix.
func Exists(store BlobStore, prefix string) (bool, error) {
	keys, err := store.ListKeys(prefix)
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

// trimExt strips a file extension chain like ".manifest.json" or ".parquet".
func trimExt(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

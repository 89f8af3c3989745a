// Package jsonstore persists launch artefacts as JSON files under a data
// directory, one file per key, grouped by collection directory.
package jsonstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Collections used by the launch layer.
const (
	CollectionDeployments  = "deployments"
	CollectionBridges      = "deployments/bridges"
	CollectionApplications = "cex-applications"
)

// ErrNotFound is returned when a key has no file.
var ErrNotFound = errors.New("record not found")

// Store reads and writes JSON documents. Writes are serialised and atomic.
type Store struct {
	mu   sync.RWMutex
	root string
}

// New creates a store rooted at dir. The directory is created lazily.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

// SanitizeKey normalises a key into a safe file name stem.
func SanitizeKey(key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return out, nil
}

// Path returns the file path for a key in a collection.
func (s *Store) Path(collection, key string) (string, error) {
	clean, err := SanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(collection), clean+".json"), nil
}

// Put writes v as indented JSON.
func (s *Store) Put(collection, key string, v interface{}) error {
	path, err := s.Path(collection, key)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, key, err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(path, data)
}

// Get reads the document for key into v.
func (s *Store) Get(collection, key string, v interface{}) error {
	path, err := s.Path(collection, key)
	if err != nil {
		return err
	}

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
		}
		return fmt.Errorf("read %s/%s: %w", collection, key, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return nil
}

// Exists reports whether key has a document.
func (s *Store) Exists(collection, key string) bool {
	path, err := s.Path(collection, key)
	if err != nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// List returns the sorted keys of a collection. A missing collection is empty.
func (s *Store) List(collection string) ([]string, error) {
	dir := filepath.Join(s.root, filepath.FromSlash(collection))

	s.mu.RLock()
	entries, err := os.ReadDir(dir)
	s.mu.RUnlock()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes a document. Missing documents are not an error.
func (s *Store) Delete(collection, key string) error {
	path, err := s.Path(collection, key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s/%s: %w", collection, key, err)
	}
	return nil
}

// WriteFile writes a raw file (for example a Markdown checklist) into a
// collection directory. The name is used as given after base-name cleaning.
func (s *Store) WriteFile(collection, name string, data []byte) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(s.root, filepath.FromSlash(collection), name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

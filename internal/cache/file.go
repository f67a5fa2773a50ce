package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a small persistent key/value store backed by a single
// JSON file. It plays the role a browser's localStorage plays for the
// theme fast path: installation-scoped, survives restarts, best effort.
// All I/O failures are logged and swallowed; readers then simply miss.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileStore loads the store at path, creating parent directories as
// needed. A missing or unreadable file yields an empty store.
func NewFileStore(path string) *FileStore {
	s := &FileStore{path: path, data: make(map[string]string)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("file store: read failed, starting empty", "path", path, "error", err)
		}
		return s
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		slog.Warn("file store: corrupt contents, starting empty", "path", path, "error", err)
		s.data = make(map[string]string)
	}
	return s
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores the value and flushes to disk. The flush writes a temp
// file and renames it so a crash never leaves a half-written store.
func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.flushLocked()
}

func (s *FileStore) flushLocked() {
	raw, err := json.Marshal(s.data)
	if err != nil {
		slog.Warn("file store: marshal failed", "path", s.path, "error", err)
		return
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("file store: create directory failed", "path", dir, "error", err)
		return
	}
	tmp, err := os.CreateTemp(dir, ".kv-*")
	if err != nil {
		slog.Warn("file store: temp file failed", "path", s.path, "error", err)
		return
	}
	name := tmp.Name()
	_, werr := tmp.Write(raw)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(name)
		slog.Warn("file store: write failed", "path", s.path, "write_error", werr, "close_error", cerr)
		return
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		slog.Warn("file store: rename failed", "path", s.path, "error", err)
	}
}

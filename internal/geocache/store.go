package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/heritage-atlas/heritage-cli/internal/fsutil"
)

// Store is durable storage behind a Cache.
type Store interface {
	// Load returns every persisted entry keyed by address.
	Load(ctx context.Context) (map[string]Entry, error)
	// Upsert inserts or replaces the given entries.
	Upsert(ctx context.Context, entries []Entry) error
	// Delete removes the given addresses. Unknown addresses are ignored.
	Delete(ctx context.Context, addresses []string) error
	Close() error
}

const fileFormatVersion = 1

type fileDoc struct {
	Version int              `json:"version"`
	Entries map[string]Entry `json:"entries"`
}

// FileStore keeps the cache in a single JSON document that is rewritten
// atomically on every Upsert or Delete.
type FileStore struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
}

// NewFileStore returns a FileStore for path. The file need not exist yet.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

// Load implements Store. A missing file is an empty cache.
func (s *FileStore) Load(_ context.Context) (map[string]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	out := make(map[string]Entry, len(s.entries))
	for k, e := range s.entries {
		out[k] = e
	}
	return out, nil
}

func (s *FileStore) loadLocked() error {
	if s.entries != nil {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.entries = make(map[string]Entry)
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "geocache: read %s", s.path)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return eris.Wrapf(err, "geocache: decode %s", s.path)
	}
	if doc.Version != fileFormatVersion {
		return eris.Errorf("geocache: %s has unsupported version %d", s.path, doc.Version)
	}

	s.entries = make(map[string]Entry, len(doc.Entries))
	for addr, e := range doc.Entries {
		e.Address = addr
		s.entries[addr] = e
	}
	return nil
}

// Upsert implements Store.
func (s *FileStore) Upsert(_ context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	for _, e := range entries {
		s.entries[e.Address] = e
	}
	return s.writeLocked()
}

// Delete implements Store.
func (s *FileStore) Delete(_ context.Context, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	for _, a := range addresses {
		delete(s.entries, a)
	}
	return s.writeLocked()
}

func (s *FileStore) writeLocked() error {
	doc := fileDoc{Version: fileFormatVersion, Entries: s.entries}
	return fsutil.WriteAtomic(s.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return eris.Wrap(enc.Encode(doc), "geocache: encode")
	})
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

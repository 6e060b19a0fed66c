package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// FileStore keeps the whole snapshot in a single JSON document. Each
// mutation re-reads the file, applies the change and atomically replaces
// the file (temp write, fsync, rename) while holding mu, so concurrent
// writers inside the process cannot lose each other's updates.
type FileStore struct {
	path   string
	mu     sync.Mutex
	logger zerolog.Logger

	// rename is swapped in tests to simulate a crash before the swap.
	rename func(oldpath, newpath string) error
}

// NewFileStore returns a store backed by the JSON file at path. The file
// and its directory are created on first write.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With().Str("component", "file_store").Logger(),
		rename: os.Rename,
	}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// GetGroup returns the items tracked by groupID, or an empty group.
func (s *FileStore) GetGroup(_ context.Context, groupID string) Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.load()[groupID]
	if !ok {
		return Group{}
	}
	return group
}

// GetAll returns the full snapshot.
func (s *FileStore) GetAll(_ context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// AddItem inserts or overwrites an item, creating the group when needed.
func (s *FileStore) AddItem(_ context.Context, groupID, itemID string, item TrackedItem) error {
	if item.LastPrices == nil {
		item.LastPrices = Prices{}
	}
	return s.mutate(func(snap Snapshot) bool {
		group, ok := snap[groupID]
		if !ok {
			group = Group{}
			snap[groupID] = group
		}
		group[itemID] = item
		return true
	})
}

// RemoveItem deletes an item and drops the group once it is empty.
func (s *FileStore) RemoveItem(_ context.Context, groupID, itemID string) (bool, error) {
	removed := false
	err := s.mutate(func(snap Snapshot) bool {
		group, ok := snap[groupID]
		if !ok {
			return false
		}
		if _, ok := group[itemID]; !ok {
			return false
		}
		delete(group, itemID)
		if len(group) == 0 {
			delete(snap, groupID)
		}
		removed = true
		return true
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// UpdateLastPrices replaces the baseline of an existing item. Missing items
// are ignored: an untrack that raced with a sweep is not an error.
func (s *FileStore) UpdateLastPrices(_ context.Context, groupID, itemID string, prices Prices) error {
	return s.mutate(func(snap Snapshot) bool {
		item, ok := snap[groupID][itemID]
		if !ok {
			return false
		}
		item.LastPrices = prices.Clone()
		if item.LastPrices == nil {
			item.LastPrices = Prices{}
		}
		snap[groupID][itemID] = item
		return true
	})
}

// Close is a no-op; the file is not held open between calls.
func (s *FileStore) Close() error {
	return nil
}

// mutate runs one read-modify-write cycle. fn reports whether it changed
// the snapshot; unchanged snapshots are not rewritten.
func (s *FileStore) mutate(fn func(Snapshot) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.load()
	if !fn(snap) {
		return nil
	}
	snap.prune()
	return s.write(snap)
}

func (s *FileStore) load() Snapshot {
	snap, err := s.read()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("tracked store unreadable, treating as empty")
		return Snapshot{}
	}
	return snap
}

func (s *FileStore) read() (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Snapshot{}, nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode store: %w", err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	snap.prune()
	return snap, nil
}

func (s *FileStore) write(snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return ioError("create store directory", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return ioError("encode store", err)
	}

	tmpPath := s.path + ".tmp"
	if err := writeFileSync(tmpPath, data); err != nil {
		os.Remove(tmpPath)
		return ioError("write temp store", err)
	}

	if err := s.rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return ioError("replace store", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

var _ Store = (*FileStore)(nil)

// Package file stores sync state as one JSON document per collection on the
// local filesystem.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/sercha-sitesync/internal/adapters/driven/statedoc"
	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SyncStateStore = (*StateStore)(nil)

// StateFileName is the document name inside each collection directory.
const StateFileName = "state.json"

// StateStore keeps <root>/<collection>/state.json.
// Writes go to a temporary file in the same directory which is synced and
// renamed over the document, so readers see the old or new state in full.
type StateStore struct {
	root   string
	logger *slog.Logger
}

// NewStateStore creates a store rooted at dir.
func NewStateStore(dir string, logger *slog.Logger) *StateStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateStore{root: dir, logger: logger}
}

// Path returns the document path for a collection.
func (s *StateStore) Path(collection string) string {
	return filepath.Join(s.root, collection, StateFileName)
}

// Load reads the document. Missing, unreadable or corrupt documents yield an
// empty state and a warning; Load itself never fails.
func (s *StateStore) Load(ctx context.Context, collection string) (*domain.SyncState, error) {
	path := s.Path(collection)
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("could not read state, starting fresh", "path", path, "error", err)
		}
		return domain.NewSyncState(), nil
	}

	state, err := statedoc.Decode(data)
	if err != nil {
		s.logger.Warn("state document is corrupt, starting fresh", "path", path, "error", err)
		return domain.NewSyncState(), nil
	}
	return state, nil
}

// Save atomically replaces the document.
func (s *StateStore) Save(ctx context.Context, collection string, state *domain.SyncState) error {
	data, err := statedoc.Encode(state)
	if err != nil {
		return err
	}

	path := s.Path(collection)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, StateFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	committed = true

	syncDir(dir)
	return nil
}

// List returns the collections that have a state document.
func (s *StateStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list state dir: %w", err)
	}

	out := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.Path(e.Name())); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Ping checks that the root directory is usable.
func (s *StateStore) Ping(ctx context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("state dir %s: %w", s.root, err)
	}
	return nil
}

// syncDir flushes the directory entry after a rename. Not all platforms
// support fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// Package ledger persists the set of already-analyzed identity keys and
// selects the next posting to analyze.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/amishk599/a11yjobs/internal/model"
)

// Ensure FileStore implements model.LedgerStore.
var _ model.LedgerStore = (*FileStore)(nil)

// FileStore keeps the ledger in a pretty-printed JSON file. It holds an
// exclusive lock on "<path>.lock" from Open until Close, so two runs can
// never read-modify-write the same ledger at once.
type FileStore struct {
	path string
	lock *flock.Flock
}

// Open locks the ledger at path. It returns model.ErrLedgerLocked if another
// process holds the lock. The ledger file itself need not exist yet.
func Open(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking ledger %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", path, model.ErrLedgerLocked)
	}
	return &FileStore{path: path, lock: lock}, nil
}

// Path returns the ledger file path.
func (s *FileStore) Path() string { return s.path }

// Load reads the ledger. A missing or blank file is an empty ledger.
func (s *FileStore) Load() (model.Ledger, error) {
	return Read(s.path)
}

// Read loads the ledger at path without taking the lock. The snapshot may
// be one entry behind a concurrent analysis run.
func Read(path string) (model.Ledger, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.Ledger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return model.Ledger{}, nil
	}

	l := model.Ledger{}
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}
	return l, nil
}

// Save writes the ledger to a temp file next to the target, syncs it and
// renames it into place, so a crash leaves either the old or the new ledger.
func (s *FileStore) Save(l model.Ledger) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

// Close releases the ledger lock.
func (s *FileStore) Close() error {
	return s.lock.Unlock()
}

// ReadOnlyStore wraps a store so that Save is a no-op. Used for dry runs.
type ReadOnlyStore struct {
	inner model.LedgerStore
}

func NewReadOnlyStore(inner model.LedgerStore) *ReadOnlyStore {
	return &ReadOnlyStore{inner: inner}
}

func (s *ReadOnlyStore) Load() (model.Ledger, error) { return s.inner.Load() }
func (s *ReadOnlyStore) Save(model.Ledger) error     { return nil }

// CheckStrategy returns model.ErrStrategyMismatch if any key in l was not
// produced by id's strategy. Switching strategy on an existing ledger would
// otherwise reprocess every posting once.
func CheckStrategy(l model.Ledger, id model.Identifier) error {
	for key := range l {
		if !id.Owns(key) {
			return fmt.Errorf("key %q is foreign to strategy %q: %w", key, id.Strategy(), model.ErrStrategyMismatch)
		}
	}
	return nil
}

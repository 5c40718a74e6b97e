// Package gobstore persists embedding snapshots as a single gob file.
//
// Publish writes the new snapshot to a temporary file next to the target and
// renames it into place, so readers see either the previous or the new
// snapshot and never a partial one. Writers from several processes are
// serialised through an advisory lock file.
package gobstore

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/kozaktomas/sightmatch/internal/database"
)

const lockRetryDelay = 100 * time.Millisecond

// Store is a file-backed database.EmbeddingStoreWriter.
type Store struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	cached  *database.EmbeddingSnapshot
	modTime time.Time
	size    int64
}

var _ database.EmbeddingStoreWriter = (*Store)(nil)

// New returns a store persisting to path. The directory is created on first publish.
func New(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the snapshot file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the published snapshot, or nil when none exists. The decoded
// snapshot is cached until the file changes.
func (s *Store) Load(ctx context.Context) (*database.EmbeddingSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat embedding snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return s.cached, nil
	}

	snap, err := readSnapshot(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.cached, s.modTime, s.size = snap, info.ModTime(), info.Size()
	return snap, nil
}

// Publish atomically replaces the stored snapshot. The generation is set to
// one past the currently published one.
func (s *Store) Publish(ctx context.Context, snap *database.EmbeddingSnapshot) error {
	if snap == nil {
		return errors.New("snapshot is nil")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("snapshot lock %s is held by another process", s.lock.Path())
	}
	defer func() { _ = s.lock.Unlock() }()

	var generation int64
	current, err := readSnapshot(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return err
	default:
		generation = current.Generation
	}

	out := *snap
	out.Generation = generation + 1
	if out.BuiltAt.IsZero() {
		out.BuiltAt = time.Now().UTC()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&out); err != nil {
		return fmt.Errorf("encode embedding snapshot: %w", err)
	}
	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return err
	}

	snap.Generation = out.Generation
	snap.BuiltAt = out.BuiltAt
	return nil
}

func readSnapshot(path string) (*database.EmbeddingSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("open embedding snapshot: %w", err)
	}
	defer f.Close()

	var snap database.EmbeddingSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode embedding snapshot %s: %w", path, err)
	}
	if snap.Vectors == nil {
		snap.Vectors = map[string][]float32{}
	}
	return &snap, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename snapshot into place: %w", err)
	}
	return nil
}

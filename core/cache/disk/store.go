package disk

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700

	// tempPrefix marks in-flight writes. Size accounting and pruning skip
	// these files.
	tempPrefix = ".tmp-"
)

// store is the size-bounded file tree shared by Cache and BlockCache.
// Entries are written to a temp file and renamed into place, so readers
// never observe a partial entry.
type store struct {
	dir            string       // root directory
	shardPrefixLen int          // leading name chars used as a subdirectory
	dirPerm        os.FileMode  // permissions for created directories
	maxBytes       int64        // size limit (0 = unlimited)
	bytes          atomic.Int64 // current total size of committed entries
	pruneMu        sync.Mutex   // serializes prune operations
}

func newStore(dir string) store {
	return store{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
}

// init validates the configuration, creates the root and loads the size of
// entries left by earlier processes.
func (s *store) init(name string) error {
	if s.dir == "" {
		return errors.New(name + " dir is empty")
	}
	if s.shardPrefixLen < 0 {
		return errors.New(name + " shard prefix length must be >= 0")
	}
	if s.maxBytes < 0 {
		return errors.New(name + " max bytes must be >= 0")
	}
	if err := os.MkdirAll(s.dir, s.dirPerm); err != nil {
		return err
	}
	size, err := dirSize(s.dir)
	if err != nil {
		return err
	}
	s.bytes.Store(size)
	return nil
}

// MaxBytes returns the configured size limit (0 = unlimited).
func (s *store) MaxBytes() int64 {
	return s.maxBytes
}

// SizeBytes returns the current size in bytes.
func (s *store) SizeBytes() int64 {
	return s.bytes.Load()
}

// Prune removes the oldest entries until the store is at or below
// targetBytes and returns the number of bytes freed.
func (s *store) Prune(targetBytes int64) (int64, error) {
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	freed, remaining, err := pruneDir(s.dir, max(targetBytes, 0))
	if err != nil {
		return 0, err
	}
	s.bytes.Store(remaining)
	return freed, nil
}

// entryPath maps an entry name under root, sharded by its leading chars.
func (s *store) entryPath(root, name string) string {
	if s.shardPrefixLen <= 0 {
		return filepath.Join(root, name)
	}
	prefixLen := min(s.shardPrefixLen, len(name))
	return filepath.Join(root, name[:prefixLen], name)
}

// reserve makes room for need bytes, pruning if required. It reports false
// when the entry can never fit.
func (s *store) reserve(need int64) (bool, error) {
	if s.maxBytes <= 0 {
		return true, nil
	}
	if need > s.maxBytes {
		return false, nil
	}
	if s.SizeBytes()+need <= s.maxBytes {
		return true, nil
	}
	if _, err := s.Prune(s.maxBytes - need); err != nil {
		return false, err
	}
	return s.SizeBytes()+need <= s.maxBytes, nil
}

// commit writes the content of r to path unless an entry already exists
// there. Entries that do not fit within the size limit are dropped
// silently.
func (s *store) commit(path string, r io.Reader) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) //nolint:errcheck // no-op after a successful rename

	written, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	ok, err := s.reserve(written)
	if err != nil || !ok {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil
		}
		return err
	}
	s.bytes.Add(written)
	return nil
}

// remove deletes the entry at path, if present.
func (s *store) remove(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	s.bytes.Add(-info.Size())
	return nil
}

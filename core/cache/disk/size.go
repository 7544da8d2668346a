package disk

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type cacheEntry struct {
	path    string
	size    int64
	modTime time.Time
}

func isTempName(name string) bool {
	return strings.HasPrefix(name, tempPrefix)
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || isTempName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	return total, err
}

func pruneDir(root string, targetBytes int64) (freed int64, remaining int64, err error) {
	entries := make([]cacheEntry, 0)
	var total int64

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || isTempName(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size := info.Size()
		total += size
		entries = append(entries, cacheEntry{
			path:    path,
			size:    size,
			modTime: info.ModTime(),
		})
		return nil
	})
	if errors.Is(walkErr, os.ErrNotExist) {
		return 0, 0, nil
	}
	if walkErr != nil {
		return 0, 0, walkErr
	}

	remaining = total
	if remaining <= targetBytes {
		return 0, remaining, nil
	}

	slices.SortFunc(entries, func(a, b cacheEntry) int {
		if c := a.modTime.Compare(b.modTime); c != 0 {
			return c
		}
		return strings.Compare(a.path, b.path)
	})

	for _, entry := range entries {
		if remaining <= targetBytes {
			break
		}
		if err := os.Remove(entry.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return freed, remaining, err
		}
		remaining -= entry.size
		freed += entry.size
	}

	return freed, remaining, nil
}

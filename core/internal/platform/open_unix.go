//go:build unix

package platform

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/meigma/asar/core/internal/asartype"
)

// OpenFileNoFollow opens a file without following symlinks.
// Returns asartype.ErrSymlink if the path is a symbolic link.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	if info, err := root.Lstat(name); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		return nil, asartype.ErrSymlink
	}
	f, err := root.OpenFile(name, os.O_RDONLY|syscall.O_NOFOLLOW, 0)
	if err != nil {
		if errors.Is(err, syscall.ELOOP) {
			return nil, asartype.ErrSymlink
		}
		return nil, err
	}
	return f, nil
}

//go:build !unix

package platform

import (
	"io/fs"
	"os"

	"github.com/meigma/asar/core/internal/asartype"
)

// OpenFileNoFollow opens a file without following symlinks.
// Returns asartype.ErrSymlink if the path is a symbolic link.
func OpenFileNoFollow(root *os.Root, name string) (*os.File, error) {
	info, err := root.Lstat(name)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, asartype.ErrSymlink
	}
	return root.Open(name)
}

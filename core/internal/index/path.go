package index

import (
	"fmt"
	"strings"

	"github.com/meigma/asar/core/internal/asartype"
)

// Split breaks a slash-separated archive path into validated segments.
//
// Leading, trailing, and repeated separators are ignored, so "/a//b/" and
// "a/b" are equivalent. The root ("", ".", "/") yields no segments.
func Split(p string) ([]string, error) {
	p = strings.Trim(p, Separator)
	if p == "" || p == "." {
		return nil, nil
	}
	parts := strings.Split(p, Separator)
	segments := parts[:0]
	for _, part := range parts {
		if part == "" {
			continue
		}
		if err := ValidateName(part); err != nil {
			return nil, err
		}
		segments = append(segments, part)
	}
	return segments, nil
}

// ValidateName checks a single path segment.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty path component", asartype.ErrInvalidPath)
	case name == "." || name == "..":
		return fmt.Errorf("%w: relative path component %q", asartype.ErrInvalidPath, name)
	case strings.Contains(name, Separator):
		return fmt.Errorf("%w: component %q contains %q", asartype.ErrInvalidPath, name, Separator)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: component %q contains NUL", asartype.ErrInvalidPath, name)
	}
	return nil
}

// Join renders segments as a slash-separated path.
func Join(segments []string) string {
	return strings.Join(segments, Separator)
}

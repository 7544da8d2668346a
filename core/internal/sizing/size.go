// Package sizing provides overflow-checked conversions between the unsigned
// sizes stored in archive headers and the signed offsets used for I/O.
package sizing

import (
	"io"
	"math"
)

// ToInt64 converts a uint64 to int64, returning overflowErr if it doesn't fit.
func ToInt64(size uint64, overflowErr error) (int64, error) {
	if size > uint64(math.MaxInt64) {
		return 0, overflowErr
	}
	return int64(size), nil
}

// AddInt64 adds two non-negative int64 values, returning (result, false) on
// overflow or negative input.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// ReadAllWithLimit reads r to EOF, failing with overflowErr if it holds more
// than maxSize bytes.
func ReadAllWithLimit(r io.Reader, maxSize int64, overflowErr error) ([]byte, error) {
	if maxSize < 0 || maxSize == math.MaxInt64 {
		return nil, overflowErr
	}
	data, err := io.ReadAll(&io.LimitedReader{R: r, N: maxSize + 1})
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, overflowErr
	}
	return data, nil
}

// Package header encodes and decodes the archive header.
//
// The header is two nested length-prefixed records (the pickle layout used
// by other implementations of the format) wrapping the JSON index text:
//
//	u32le(4) | u32le(8+A) | u32le(4+A) | u32le(L) | text[L] | zero[A-L]
//
// where L is the text length and A is L rounded up to a multiple of 4. The
// first record holds only the length of the second; the second holds the
// text as a length-prefixed, 4-byte aligned string. The whole header is
// 16+A bytes and file content begins immediately after it.
package header

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/meigma/asar/core/internal/asartype"
	"github.com/meigma/asar/core/internal/index"
)

const (
	// PrefixSize is the size of the outer record: its own payload length
	// followed by the inner record length.
	PrefixSize = 8

	// fieldSize is the width of every length field.
	fieldSize = 4

	// alignment is the boundary the text payload is padded to.
	alignment = 4
)

// Align rounds n up to the next multiple of 4.
func Align(n uint64) uint64 {
	return (n + alignment - 1) &^ (alignment - 1)
}

// Size returns the total encoded header length for a text of textLen bytes.
func Size(textLen uint64) uint64 {
	return PrefixSize + PrefixSize + Align(textLen)
}

// Encode serializes root into header bytes.
func Encode(root *index.Node) ([]byte, error) {
	if root == nil || !root.IsDir() {
		return nil, errors.New("header: root must be a directory")
	}
	text, err := json.Marshal(root)
	if err != nil {
		return nil, fmt.Errorf("header: encode index: %w", err)
	}
	return EncodeText(text)
}

// EncodeText wraps already-serialized index text in the header records.
func EncodeText(text []byte) ([]byte, error) {
	textLen := uint64(len(text))
	aligned := Align(textLen)
	total := Size(textLen)
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("header: %w: %d byte index", asartype.ErrSizeOverflow, textLen)
	}

	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:], fieldSize)
	binary.LittleEndian.PutUint32(buf[4:], uint32(PrefixSize+aligned)) //nolint:gosec // bounded above
	binary.LittleEndian.PutUint32(buf[8:], uint32(fieldSize+aligned))  //nolint:gosec // bounded above
	binary.LittleEndian.PutUint32(buf[12:], uint32(textLen))           //nolint:gosec // bounded above
	copy(buf[16:], text)
	return buf, nil
}

// ParsePrefix reads the outer record and returns the inner record length.
// The full header is PrefixSize + the returned length bytes long.
func ParsePrefix(prefix []byte) (uint32, error) {
	if len(prefix) < PrefixSize {
		return 0, fmt.Errorf("%w: prefix is %d bytes, need %d", asartype.ErrFormat, len(prefix), PrefixSize)
	}
	if size := binary.LittleEndian.Uint32(prefix[0:]); size != fieldSize {
		return 0, fmt.Errorf("%w: outer record length %d, want %d", asartype.ErrFormat, size, fieldSize)
	}
	inner := binary.LittleEndian.Uint32(prefix[4:])
	if inner < PrefixSize {
		return 0, fmt.Errorf("%w: inner record length %d too small", asartype.ErrFormat, inner)
	}
	return inner, nil
}

// DecodeInner extracts and parses the index text from the inner record.
func DecodeInner(inner []byte) (*index.Node, error) {
	text, err := innerText(inner)
	if err != nil {
		return nil, err
	}
	return DecodeText(text)
}

// Decode parses a complete header.
func Decode(data []byte) (*index.Node, error) {
	innerLen, err := ParsePrefix(data)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)-PrefixSize) < uint64(innerLen) {
		return nil, fmt.Errorf("%w: inner record declares %d bytes, %d available", asartype.ErrFormat, innerLen, len(data)-PrefixSize)
	}
	return DecodeInner(data[PrefixSize : PrefixSize+int(innerLen)])
}

// DecodeText parses index JSON into a tree.
func DecodeText(text []byte) (*index.Node, error) {
	var root index.Node
	if err := json.Unmarshal(text, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", asartype.ErrFormat, err)
	}
	if !root.IsDir() {
		return nil, fmt.Errorf("%w: root entry is not a directory", asartype.ErrFormat)
	}
	return &root, nil
}

// innerText validates the inner record and returns the unpadded text.
func innerText(inner []byte) ([]byte, error) {
	if len(inner) < PrefixSize {
		return nil, fmt.Errorf("%w: inner record is %d bytes", asartype.ErrFormat, len(inner))
	}
	payload := uint64(binary.LittleEndian.Uint32(inner[0:]))
	if payload+fieldSize != uint64(len(inner)) {
		return nil, fmt.Errorf("%w: inner payload length %d does not match record length %d", asartype.ErrFormat, payload, len(inner))
	}
	textLen := uint64(binary.LittleEndian.Uint32(inner[4:]))
	if textLen > payload-fieldSize {
		return nil, fmt.Errorf("%w: text length %d exceeds payload %d", asartype.ErrFormat, textLen, payload-fieldSize)
	}
	return inner[PrefixSize : PrefixSize+textLen], nil
}

package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// dirJSON is the wire form of a directory.
type dirJSON struct {
	Files map[string]*Node `json:"files"`
}

// fileJSON is the wire form of a file. Offsets are decimal strings so that
// readers limited to double-precision numbers keep them exact.
type fileJSON struct {
	Size       uint64     `json:"size"`
	Offset     string     `json:"offset,omitempty"`
	Executable bool       `json:"executable,omitempty"`
	Unpacked   bool       `json:"unpacked,omitempty"`
	Integrity  *Integrity `json:"integrity,omitempty"`
}

// nodeJSON accepts either form when decoding.
type nodeJSON struct {
	Files      map[string]*Node `json:"files"`
	Size       *json.Number     `json:"size"`
	Offset     json.RawMessage  `json:"offset"`
	Executable bool             `json:"executable"`
	Unpacked   bool             `json:"unpacked"`
	Integrity  *Integrity       `json:"integrity"`
	Link       *string          `json:"link"`
}

// MarshalJSON implements json.Marshaler.
func (n *Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case KindDirectory:
		files := n.Children
		if files == nil {
			files = map[string]*Node{}
		}
		return json.Marshal(dirJSON{Files: files})
	case KindFile:
		fj := fileJSON{
			Size:       n.Size,
			Executable: n.Executable,
			Unpacked:   n.Unpacked,
			Integrity:  n.Integrity,
		}
		if !n.Unpacked {
			fj.Offset = strconv.FormatUint(n.Offset, 10)
		}
		return json.Marshal(fj)
	default:
		return nil, fmt.Errorf("index: cannot encode node of kind %d", n.Kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
//
// A record with a "files" member is a directory; anything else must be a
// file with a size and, unless unpacked, an offset.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw nodeJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	if raw.Files != nil {
		if raw.Size != nil || len(raw.Offset) > 0 {
			return errors.New("index: entry has both files and size/offset")
		}
		for name, child := range raw.Files {
			if err := ValidateName(name); err != nil {
				return fmt.Errorf("index: %w", err)
			}
			if child == nil {
				return fmt.Errorf("index: entry %q is null", name)
			}
		}
		*n = Node{Kind: KindDirectory, Children: raw.Files}
		return nil
	}

	if raw.Link != nil {
		return fmt.Errorf("index: link entries are not supported (target %q)", *raw.Link)
	}
	if raw.Size == nil {
		return errors.New("index: file entry missing size")
	}
	size, err := strconv.ParseUint(raw.Size.String(), 10, 64)
	if err != nil {
		return fmt.Errorf("index: invalid size %q", raw.Size.String())
	}

	file := Node{
		Kind:       KindFile,
		Size:       size,
		Executable: raw.Executable,
		Unpacked:   raw.Unpacked,
		Integrity:  raw.Integrity,
	}
	switch {
	case len(raw.Offset) > 0:
		off, err := parseOffset(raw.Offset)
		if err != nil {
			return err
		}
		file.Offset = off
	case !raw.Unpacked:
		return errors.New("index: file entry missing offset")
	}
	*n = file
	return nil
}

// parseOffset accepts the canonical decimal string as well as a bare number.
func parseOffset(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	off, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("index: invalid offset %s", raw)
	}
	return off, nil
}

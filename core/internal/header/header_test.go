package header

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/asar/core/internal/asartype"
	"github.com/meigma/asar/core/internal/index"
)

func sampleTree(t *testing.T) *index.Node {
	t.Helper()

	root := index.NewDirectory()
	require.NoError(t, root.Insert([]string{"a.txt"}, index.NewFile(0, 5)))
	exe := index.NewFile(5, 6)
	exe.Executable = true
	require.NoError(t, root.Insert([]string{"dir", "b.txt"}, exe))
	withHash := index.NewFile(11, 3)
	withHash.Integrity = &index.Integrity{
		Algorithm: "SHA256",
		Hash:      "abc123",
		BlockSize: 4 << 20,
		Blocks:    []string{"abc123"},
	}
	require.NoError(t, root.Insert([]string{"dir", "nested", "c.bin"}, withHash))
	unpacked := index.NewFile(0, 42)
	unpacked.Unpacked = true
	require.NoError(t, root.Insert([]string{"native.node"}, unpacked))
	_, err := root.MkdirAll([]string{"empty"})
	require.NoError(t, err)
	return root
}

func TestAlign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 4},
		{3, 4},
		{4, 4},
		{5, 8},
		{12, 12},
		{13, 16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Align(tt.in), "Align(%d)", tt.in)
		assert.Equal(t, Align(tt.in), Align(Align(tt.in)), "Align not idempotent for %d", tt.in)
	}
}

func TestEncode_EmptyRootLayout(t *testing.T) {
	t.Parallel()

	data, err := Encode(index.NewDirectory())
	require.NoError(t, err)

	text := `{"files":{}}`
	require.Len(t, data, 16+len(text))
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(data[0:]))
	assert.Equal(t, uint32(8+12), binary.LittleEndian.Uint32(data[4:]))
	assert.Equal(t, uint32(4+12), binary.LittleEndian.Uint32(data[8:]))
	assert.Equal(t, uint32(12), binary.LittleEndian.Uint32(data[12:]))
	assert.Equal(t, text, string(data[16:]))
}

func TestEncodeText_Padding(t *testing.T) {
	t.Parallel()

	for textLen := range 9 {
		text := make([]byte, textLen)
		for i := range text {
			text[i] = 'x'
		}
		data, err := EncodeText(text)
		require.NoError(t, err)

		aligned := int(Align(uint64(textLen)))
		require.Len(t, data, 16+aligned)
		assert.Equal(t, Size(uint64(textLen)), uint64(len(data)))
		assert.Equal(t, uint32(8+aligned), binary.LittleEndian.Uint32(data[4:]))
		assert.Equal(t, uint32(4+aligned), binary.LittleEndian.Uint32(data[8:]))
		assert.Equal(t, uint32(textLen), binary.LittleEndian.Uint32(data[12:]))
		for _, b := range data[16+textLen:] {
			assert.Zero(t, b, "padding must be zero")
		}
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	data, err := Encode(root)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, root, decoded)

	innerLen, err := ParsePrefix(data[:PrefixSize])
	require.NoError(t, err)
	assert.Equal(t, len(data), PrefixSize+int(innerLen))
}

func TestDecode_IgnoresExtraPadding(t *testing.T) {
	t.Parallel()

	text := []byte(`{"files":{"a":{"size":1,"offset":"0"}}}`)
	std, err := EncodeText(text)
	require.NoError(t, err)

	// Rebuild with four extra padding bytes declared in both lengths.
	inner := make([]byte, len(std)-PrefixSize+4)
	copy(inner, std[PrefixSize:])
	binary.LittleEndian.PutUint32(inner[0:], binary.LittleEndian.Uint32(std[8:])+4)
	data := make([]byte, PrefixSize, PrefixSize+len(inner))
	binary.LittleEndian.PutUint32(data[0:], 4)
	binary.LittleEndian.PutUint32(data[4:], uint32(len(inner)))
	data = append(data, inner...)

	root, err := Decode(data)
	require.NoError(t, err)
	child, ok := root.Child("a")
	require.True(t, ok)
	assert.Equal(t, uint64(1), child.Size)
}

func TestDecode_FormatErrors(t *testing.T) {
	t.Parallel()

	valid, err := Encode(sampleTree(t))
	require.NoError(t, err)

	corrupt := func(mutate func([]byte) []byte) []byte {
		c := make([]byte, len(valid))
		copy(c, valid)
		return mutate(c)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short prefix", valid[:6]},
		{"bad outer width", corrupt(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[0:], 8)
			return b
		})},
		{"truncated inner", valid[:len(valid)-4]},
		{"inner payload mismatch", corrupt(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[8:], binary.LittleEndian.Uint32(b[8:])+4)
			return b
		})},
		{"text length beyond payload", corrupt(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[12:], binary.LittleEndian.Uint32(b[8:]))
			return b
		})},
		{"invalid json", func() []byte {
			d, _ := EncodeText([]byte(`{"files":`)) //nolint:errcheck // fixed input
			return d
		}()},
		{"root is a file", func() []byte {
			d, _ := EncodeText([]byte(`{"size":1,"offset":"0"}`)) //nolint:errcheck // fixed input
			return d
		}()},
		{"file without offset", func() []byte {
			d, _ := EncodeText([]byte(`{"files":{"a":{"size":1}}}`)) //nolint:errcheck // fixed input
			return d
		}()},
		{"name with separator", func() []byte {
			d, _ := EncodeText([]byte(`{"files":{"a/b":{"size":1,"offset":"0"}}}`)) //nolint:errcheck // fixed input
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, asartype.ErrFormat)
		})
	}
}

func TestDecodeText_OffsetForms(t *testing.T) {
	t.Parallel()

	root, err := DecodeText([]byte(`{"files":{"s":{"size":2,"offset":"7"},"n":{"size":3,"offset":9}}}`))
	require.NoError(t, err)

	s, ok := root.Child("s")
	require.True(t, ok)
	assert.Equal(t, uint64(7), s.Offset)

	n, ok := root.Child("n")
	require.True(t, ok)
	assert.Equal(t, uint64(9), n.Offset)
}

package asar

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
)

// IntegrityAlgorithm is the only hash algorithm recorded in integrity metadata.
const IntegrityAlgorithm = "SHA256"

// DefaultIntegrityBlockSize is the block size used by ComputeIntegrity when
// none is given.
const DefaultIntegrityBlockSize = 4 << 20

// ComputeIntegrity hashes r to EOF, recording the whole-content hash and one
// hash per blockSize bytes. blockSize <= 0 selects DefaultIntegrityBlockSize.
func ComputeIntegrity(r io.Reader, blockSize int) (*Integrity, error) {
	if blockSize <= 0 {
		blockSize = DefaultIntegrityBlockSize
	}
	whole := digest.SHA256.Digester()
	blocks := make([]string, 0, 1)
	buf := make([]byte, blockSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			_, _ = whole.Hash().Write(buf[:n]) //nolint:errcheck // hash writes never fail
			blocks = append(blocks, digest.SHA256.FromBytes(buf[:n]).Encoded())
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("compute integrity: %w", err)
		}
	}
	if len(blocks) == 0 {
		// Empty content still has one (empty) block.
		blocks = append(blocks, digest.SHA256.FromBytes(nil).Encoded())
	}
	return &Integrity{
		Algorithm: IntegrityAlgorithm,
		Hash:      whole.Digest().Encoded(),
		BlockSize: blockSize,
		Blocks:    blocks,
	}, nil
}

// integrityDigest converts integrity metadata into a digest of the whole
// content. ok is false when the metadata is absent or not SHA256.
func integrityDigest(integ *Integrity) (digest.Digest, bool) {
	if integ == nil || !strings.EqualFold(integ.Algorithm, IntegrityAlgorithm) {
		return "", false
	}
	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(integ.Hash))
	if d.Validate() != nil {
		return "", false
	}
	return d, true
}

// verifyContent checks data against integ. Missing or unsupported metadata
// verifies trivially.
func verifyContent(path string, data []byte, integ *Integrity) error {
	want, ok := integrityDigest(integ)
	if !ok {
		return nil
	}
	if got := digest.SHA256.FromBytes(data); got != want {
		return fmt.Errorf("%w: %s: got %s, want %s", ErrIntegrity, path, got.Encoded(), want.Encoded())
	}
	return nil
}

// verifyingReader checks the content hash when the stream reaches EOF.
type verifyingReader struct {
	rc       io.ReadCloser
	path     string
	verifier digest.Verifier
	want     digest.Digest
	err      error
}

func newVerifyingReader(rc io.ReadCloser, path string, want digest.Digest) *verifyingReader {
	return &verifyingReader{rc: rc, path: path, verifier: want.Verifier(), want: want}
}

func (v *verifyingReader) Read(p []byte) (int, error) {
	if v.err != nil {
		return 0, v.err
	}
	n, err := v.rc.Read(p)
	if n > 0 {
		_, _ = v.verifier.Write(p[:n]) //nolint:errcheck // hash writes never fail
	}
	if err == io.EOF && !v.verifier.Verified() {
		v.err = fmt.Errorf("%w: %s: content does not match %s", ErrIntegrity, v.path, v.want)
		return n, v.err
	}
	return n, err
}

func (v *verifyingReader) Close() error {
	return v.rc.Close()
}

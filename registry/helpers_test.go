package registry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	asar "github.com/meigma/asar/core"
)

var testFiles = map[string]string{
	"package.json":        `{"name":"app"}`,
	"lib/index.js":        "module.exports = 42;\n",
	"lib/util/strings.js": strings.Repeat("x", 100_000),
}

// testArchive builds an archive of testFiles.
func testArchive(t *testing.T) []byte {
	t.Helper()
	w := asar.NewWriter(asar.WithComputeIntegrity(0))
	for _, path := range []string{"package.json", "lib/index.js", "lib/util/strings.js"} {
		require.NoError(t, w.AddBytes(path, []byte(testFiles[path])))
	}
	var buf bytes.Buffer
	_, err := w.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

//go:build integration

package integration

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/asar"
)

// --- Registry Container Setup ---

var (
	registryOnce sync.Once
	registryAddr string
	registryErr  error
)

// getRegistry returns the shared registry address, starting the container if needed.
// The container is shared across all tests.
func getRegistry(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	registryOnce.Do(func() {
		registryAddr, registryErr = startRegistryContainer(context.Background())
	})

	if registryErr != nil {
		tb.Fatalf("start registry container: %v", registryErr)
	}

	return registryAddr
}

// startRegistryContainer starts a registry:2 container and returns the host:port address.
func startRegistryContainer(ctx context.Context) (string, error) {
	req := testcontainers.ContainerRequest{
		Image:        "registry:2",
		ExposedPorts: []string{"5000/tcp"},
		WaitingFor:   wait.ForHTTP("/v2/").WithPort("5000/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start registry container: %w", err)
	}

	// Cleanup is handled by the testcontainers reaper.

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve registry host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5000/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve registry port: %w", err)
	}

	return fmt.Sprintf("%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}

// --- Test Client Factory ---

// newTestClient creates a client configured for the local test registry.
func newTestClient(tb testing.TB, opts ...asar.Option) *asar.Client {
	tb.Helper()

	// The local registry speaks plain HTTP and has no auth.
	allOpts := append([]asar.Option{asar.WithPlainHTTP(true), asar.WithAnonymous()}, opts...)

	client, err := asar.NewClient(allOpts...)
	require.NoError(tb, err, "create test client")

	return client
}

// --- Test Reference Helpers ---

// testRef generates a unique reference for a test to avoid collisions.
func testRef(registryAddr, testName string) string {
	return fmt.Sprintf("%s/test/%s:latest", registryAddr, testName)
}

// testRefWithTag generates a reference with a specific tag.
func testRefWithTag(registryAddr, testName, tag string) string {
	return fmt.Sprintf("%s/test/%s:%s", registryAddr, testName, tag)
}

// --- Test Data Helpers ---

// newArchiveWriter builds a writer holding the given files.
func newArchiveWriter(tb testing.TB, files map[string][]byte, opts ...asar.WriterOption) *asar.Writer {
	tb.Helper()

	w := asar.NewWriter(opts...)
	for _, path := range sortedPaths(files) {
		require.NoError(tb, w.AddBytes(path, files[path]), "AddBytes(%q)", path)
	}
	return w
}

// pushFiles pushes an archive of files to ref and returns its manifest.
func pushFiles(tb testing.TB, client *asar.Client, ref string, files map[string][]byte, opts ...asar.PushOption) *asar.Manifest {
	tb.Helper()

	manifest, err := client.Push(context.Background(), ref, newArchiveWriter(tb, files), opts...)
	require.NoError(tb, err, "Push(%q)", ref)
	return manifest
}

// makeRepeatedContent creates size bytes of a repeating text pattern.
func makeRepeatedContent(size int) []byte {
	pattern := []byte("This is a repeating pattern for range testing. ")
	result := make([]byte, 0, size)
	for len(result) < size {
		result = append(result, pattern...)
	}
	return result[:size]
}

// makeRandomContent creates random binary content.
func makeRandomContent(size int) []byte {
	data := make([]byte, size)
	_, _ = rand.Read(data)
	return data
}

func sortedPaths(files map[string][]byte) []string {
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// --- Standard Test Fixtures ---

// smallArchive is a flat archive with three small files.
var smallArchive = map[string][]byte{
	"hello.txt":   []byte("Hello, World!"),
	"readme.md":   []byte("# Test Archive\n\nThis is a test."),
	"config.json": []byte(`{"version": 1, "name": "test"}`),
}

// nestedArchive contains nested directories.
var nestedArchive = map[string][]byte{
	"root.txt":          []byte("root file"),
	"dir1/a.txt":        []byte("file a in dir1"),
	"dir1/b.txt":        []byte("file b in dir1"),
	"dir1/sub/c.txt":    []byte("file c in dir1/sub"),
	"dir2/x.txt":        []byte("file x in dir2"),
	"dir2/deep/y.txt":   []byte("file y in dir2/deep"),
	"dir2/deep/z.txt":   []byte("file z in dir2/deep"),
	"empty/placeholder": []byte(""),
}

// largeArchive contains files big enough to span many chunks.
var largeArchive = map[string][]byte{
	"large.txt":  makeRepeatedContent(512 * 1024),
	"random.bin": makeRandomContent(64 * 1024),
	"small.txt":  []byte("tiny"),
}

// --- Assertion Helpers ---

// assertFilesMatch verifies that an archive holds the expected files with
// correct content through both buffered and streamed reads.
func assertFilesMatch(tb testing.TB, archive *asar.Archive, expected map[string][]byte) {
	tb.Helper()

	ctx := context.Background()
	for path, want := range expected {
		got, err := archive.ReadAll(ctx, path)
		require.NoError(tb, err, "ReadAll(%q)", path)
		require.Equal(tb, want, got, "content mismatch for %q", path)

		rc, err := archive.OpenStream(ctx, path)
		require.NoError(tb, err, "OpenStream(%q)", path)
		streamed := readAllAndClose(tb, rc)
		require.Equal(tb, want, streamed, "stream mismatch for %q", path)
	}
}

func readAllAndClose(tb testing.TB, rc io.ReadCloser) []byte {
	tb.Helper()

	data, err := io.ReadAll(rc)
	require.NoError(tb, err, "read stream")
	require.NoError(tb, rc.Close(), "close stream")
	return data
}

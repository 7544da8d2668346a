package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	asar "github.com/meigma/asar/core"
	"github.com/meigma/asar/core/cache/disk"
	"github.com/meigma/asar/core/testutil"
	"github.com/meigma/asar/registry/oras"
	"github.com/meigma/asar/registry/registrytest"
)

const testRef = "registry.example.com/acme/app"

func pushTestArchive(t *testing.T, c *Client, tag string, opts ...PushOption) ([]byte, *ArchiveManifest) {
	t.Helper()
	data := testArchive(t)
	m, err := c.Push(context.Background(), testRef+":"+tag, bytes.NewReader(data), int64(len(data)), opts...)
	require.NoError(t, err)
	return data, m
}

func TestClient_PushPullRoundTrip(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))

	var mu sync.Mutex
	var events []asar.ProgressEvent
	data, pushed := pushTestArchive(t, c, "v1",
		WithTags("latest"),
		WithProgress(func(e asar.ProgressEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}),
	)

	assert.Equal(t, int64(len(data)), pushed.Size())
	assert.Equal(t, digest.FromBytes(data), pushed.ArchiveDescriptor().Digest)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, asar.StagePushingArchive, last.Stage)
	assert.Equal(t, uint64(len(data)), last.BytesDone)

	for _, tag := range []string{"v1", "latest"} {
		got, ok := oci.Tagged(tag)
		require.True(t, ok, tag)
		assert.Equal(t, pushed.Digest(), got)
	}

	archive, err := c.Pull(context.Background(), testRef+":latest")
	require.NoError(t, err)
	assert.Equal(t, pushed.Digest(), archive.Manifest().Digest())

	for path, want := range testFiles {
		got, err := archive.ReadAll(context.Background(), path)
		require.NoError(t, err, path)
		assert.Equal(t, want, string(got), path)
	}
	names, err := archive.List("lib")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"index.js", "util"}, names)
}

func TestClient_Pull_LazyRanges(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	pushTestArchive(t, c, "v1")

	archive, err := c.Pull(context.Background(), testRef+":v1")
	require.NoError(t, err)
	// One probe when opening the blob, then two header reads.
	assert.Equal(t, int32(3), oci.RangeRequests())

	rc, err := archive.OpenStream(context.Background(), "lib/util/strings.js")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, testFiles["lib/util/strings.js"], buf.String())
	assert.Equal(t, int32(4), oci.RangeRequests(), "a stream is one range request")
}

func TestClient_Push_ManifestStructure(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	created := "2024-01-02T03:04:05Z"
	_, m := pushTestArchive(t, c, "v1", WithAnnotations(map[string]string{
		"org.example.note":        "hello",
		ocispec.AnnotationCreated: created,
	}))

	raw := m.Raw()
	assert.Equal(t, ocispec.MediaTypeImageManifest, raw.MediaType)
	assert.Equal(t, ArtifactType, raw.ArtifactType)
	assert.Equal(t, 2, raw.SchemaVersion)
	assert.Equal(t, ocispec.MediaTypeEmptyJSON, raw.Config.MediaType)
	assert.Equal(t, ocispec.DescriptorEmptyJSON.Digest, raw.Config.Digest)
	assert.Empty(t, raw.Config.Data)
	require.Len(t, raw.Layers, 1)
	assert.Equal(t, MediaTypeArchive, raw.Layers[0].MediaType)
	assert.Equal(t, "hello", m.Annotations()["org.example.note"])
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), m.Created())
	assert.Equal(t, m.Digest(), digest.FromBytes(m.Bytes()))

	_, ok := oci.Blob(ocispec.DescriptorEmptyJSON.Digest)
	assert.True(t, ok, "empty config blob pushed")
}

func TestClient_Push_DefaultCreated(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(registrytest.NewMemory(t)))
	before := time.Now().UTC().Add(-time.Second)
	_, m := pushTestArchive(t, c, "v1")
	assert.False(t, m.Created().Before(before.Truncate(time.Second)))
}

func TestClient_Push_Errors(t *testing.T) {
	t.Parallel()

	data := testArchive(t)
	size := int64(len(data))

	tests := []struct {
		name    string
		ref     string
		size    int64
		opts    []PushOption
		setup   func(*registrytest.Memory)
		wantErr error
	}{
		{name: "digest reference", ref: testRef + "@" + digest.FromBytes(data).String(), size: size, wantErr: ErrInvalidReference},
		{name: "no tag", ref: testRef, size: size, wantErr: ErrInvalidReference},
		{name: "malformed reference", ref: ":::bad", size: size, wantErr: ErrInvalidReference},
		{name: "wrong digest", ref: testRef + ":v1", size: size, opts: []PushOption{WithArchiveDigest(digest.FromString("other"))}, wantErr: ErrDigestMismatch},
		{name: "invalid digest", ref: testRef + ":v1", size: size, opts: []PushOption{WithArchiveDigest("sha256:nope")}, wantErr: ErrDigestMismatch},
		{
			name: "registry not found", ref: testRef + ":v1", size: size,
			setup:   func(m *registrytest.Memory) { m.FailPushes(fmt.Errorf("%w: repo", oras.ErrNotFound)) },
			wantErr: ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			oci := registrytest.NewMemory(t)
			if tt.setup != nil {
				tt.setup(oci)
			}
			_, err := New(WithOCIClient(oci)).Push(context.Background(), tt.ref, bytes.NewReader(data), tt.size, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("negative size", func(t *testing.T) {
		t.Parallel()
		_, err := New(WithOCIClient(registrytest.NewMemory(t))).Push(context.Background(), testRef+":v1", bytes.NewReader(data), -1)
		require.Error(t, err)
	})
}

func TestClient_Push_WithArchiveDigest(t *testing.T) {
	t.Parallel()

	data := testArchive(t)
	c := New(WithOCIClient(registrytest.NewMemory(t)))
	m, err := c.Push(context.Background(), testRef+":v1", bytes.NewReader(data), int64(len(data)),
		WithArchiveDigest(digest.FromBytes(data)))
	require.NoError(t, err)
	assert.Equal(t, digest.FromBytes(data), m.ArchiveDescriptor().Digest)
}

func TestClient_Fetch(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	_, pushed := pushTestArchive(t, c, "v1")

	t.Run("by tag", func(t *testing.T) {
		t.Parallel()
		m, err := c.Fetch(context.Background(), testRef+":v1")
		require.NoError(t, err)
		assert.Equal(t, pushed.Digest(), m.Digest())
		assert.Equal(t, pushed.ArchiveDescriptor(), m.ArchiveDescriptor())
	})

	t.Run("by digest", func(t *testing.T) {
		t.Parallel()
		m, err := c.Fetch(context.Background(), testRef+"@"+pushed.Digest().String())
		require.NoError(t, err)
		assert.Equal(t, pushed.Bytes(), m.Bytes())
	})

	t.Run("unknown tag", func(t *testing.T) {
		t.Parallel()
		_, err := c.Fetch(context.Background(), testRef+":missing")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no tag", func(t *testing.T) {
		t.Parallel()
		_, err := c.Fetch(context.Background(), testRef)
		require.ErrorIs(t, err, ErrInvalidReference)
	})
}

func TestClient_Fetch_RejectsForeignManifests(t *testing.T) {
	t.Parallel()

	layer := ocispec.Descriptor{MediaType: MediaTypeArchive, Digest: digest.FromString("a"), Size: 1}
	other := ocispec.Descriptor{MediaType: "application/octet-stream", Digest: digest.FromString("b"), Size: 1}

	tests := []struct {
		name     string
		manifest ocispec.Manifest
		wantErr  error
	}{
		{
			name:     "artifact type",
			manifest: ocispec.Manifest{MediaType: ocispec.MediaTypeImageManifest, ArtifactType: "application/other", Layers: []ocispec.Descriptor{layer}},
			wantErr:  ErrInvalidManifest,
		},
		{
			name:     "media type",
			manifest: ocispec.Manifest{MediaType: ocispec.MediaTypeImageIndex, ArtifactType: ArtifactType, Layers: []ocispec.Descriptor{layer}},
			wantErr:  ErrInvalidManifest,
		},
		{
			name:     "no archive layer",
			manifest: ocispec.Manifest{MediaType: ocispec.MediaTypeImageManifest, ArtifactType: ArtifactType, Layers: []ocispec.Descriptor{other}},
			wantErr:  ErrMissingArchive,
		},
		{
			name:     "extra layer",
			manifest: ocispec.Manifest{MediaType: ocispec.MediaTypeImageManifest, ArtifactType: ArtifactType, Layers: []ocispec.Descriptor{layer, other}},
			wantErr:  ErrInvalidManifest,
		},
		{
			name:     "two archive layers",
			manifest: ocispec.Manifest{MediaType: ocispec.MediaTypeImageManifest, ArtifactType: ArtifactType, Layers: []ocispec.Descriptor{layer, layer}},
			wantErr:  ErrInvalidManifest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			oci := registrytest.NewMemory(t)
			_, err := oci.PushManifest(context.Background(), testRef, "bad", &tt.manifest)
			require.NoError(t, err)
			_, err = New(WithOCIClient(oci)).Fetch(context.Background(), testRef+":bad")
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Fetch_ManifestCache(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	mc := testutil.NewMockCache()
	c := New(WithOCIClient(oci), WithManifestCache(mc))
	_, pushed := pushTestArchive(t, c, "v1")

	_, err := c.Fetch(context.Background(), testRef+":v1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), oci.ManifestGets())
	cached, ok := mc.GetBytes(pushed.Digest())
	require.True(t, ok)
	assert.Equal(t, pushed.Bytes(), cached)

	m, err := c.Fetch(context.Background(), testRef+":v1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), oci.ManifestGets(), "served from cache")
	assert.Equal(t, pushed.Digest(), m.Digest())

	_, err = c.Fetch(context.Background(), testRef+":v1", WithSkipCache())
	require.NoError(t, err)
	assert.Equal(t, int32(2), oci.ManifestGets())

	mc.SetBytes(pushed.Digest(), []byte(`{"corrupt":true}`))
	m, err = c.Fetch(context.Background(), testRef+":v1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), oci.ManifestGets(), "corrupt entry refetched")
	assert.Equal(t, pushed.Bytes(), m.Bytes())
	cached, _ = mc.GetBytes(pushed.Digest())
	assert.Equal(t, pushed.Bytes(), cached, "corrupt entry replaced")
}

func TestClient_Pull_BlockCache(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	pushTestArchive(t, c, "v1")

	bc, err := disk.NewBlockCache(t.TempDir())
	require.NoError(t, err)

	for range 2 {
		archive, err := c.Pull(context.Background(), testRef+":v1", WithBlockCache(bc))
		require.NoError(t, err)
		got, err := archive.ReadAll(context.Background(), "lib/index.js")
		require.NoError(t, err)
		assert.Equal(t, testFiles["lib/index.js"], string(got))
	}
	assert.Positive(t, bc.SizeBytes())
	// Opening the blob probes it on every pull; everything else after the
	// first pull comes from cached blocks.
	first := oci.RangeRequests()
	archive, err := c.Pull(context.Background(), testRef+":v1", WithBlockCache(bc))
	require.NoError(t, err)
	_, err = archive.ReadAll(context.Background(), "package.json")
	require.NoError(t, err)
	assert.Equal(t, first+1, oci.RangeRequests())
}

func TestClient_Pull_Progress(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(registrytest.NewMemory(t)))
	pushTestArchive(t, c, "v1")

	var stages []asar.ProgressStage
	_, err := c.Pull(context.Background(), testRef+":v1", WithPullProgress(func(e asar.ProgressEvent) {
		stages = append(stages, e.Stage)
	}))
	require.NoError(t, err)
	assert.Equal(t, []asar.ProgressStage{
		asar.StageFetchingManifest, asar.StageFetchingManifest,
		asar.StageFetchingHeader, asar.StageFetchingHeader,
	}, stages)
}

func TestClient_Pull_ReaderOptions(t *testing.T) {
	t.Parallel()

	c := New(WithOCIClient(registrytest.NewMemory(t)))
	pushTestArchive(t, c, "v1")

	content := testutil.NewMockCache()
	archive, err := c.Pull(context.Background(), testRef+":v1",
		WithReaderOptions(asar.WithCache(content), asar.WithVerifyIntegrity(true)))
	require.NoError(t, err)
	_, err = archive.ReadAll(context.Background(), "package.json")
	require.NoError(t, err)
	assert.Positive(t, content.Len())
}

func TestClient_Pull_SizeMismatch(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	data, pushed := pushTestArchive(t, c, "v1")

	manifest := pushed.Raw()
	manifest.Layers[0].Size = int64(len(data)) + 1
	_, err := oci.PushManifest(context.Background(), testRef, "bad", &manifest)
	require.NoError(t, err)

	_, err = c.Pull(context.Background(), testRef+":bad")
	require.ErrorIs(t, err, ErrSizeMismatch)
}

func TestClient_Pull_MissingBlob(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	_, pushed := pushTestArchive(t, c, "v1")

	oci.DeleteBlob(pushed.ArchiveDescriptor().Digest)

	_, err := c.Pull(context.Background(), testRef+":v1")
	require.Error(t, err)
	assert.Equal(t, int32(1), oci.Invalidations())
}

func TestClient_Tag(t *testing.T) {
	t.Parallel()

	oci := registrytest.NewMemory(t)
	c := New(WithOCIClient(oci))
	_, pushed := pushTestArchive(t, c, "v1")

	require.NoError(t, c.Tag(context.Background(), testRef+":stable", pushed.Digest().String()))
	got, ok := oci.Tagged("stable")
	require.True(t, ok)
	assert.Equal(t, pushed.Digest(), got)

	err := c.Tag(context.Background(), testRef+"@"+pushed.Digest().String(), pushed.Digest().String())
	require.ErrorIs(t, err, ErrInvalidReference)

	err = c.Tag(context.Background(), testRef+":x", "not-a-digest")
	require.ErrorIs(t, err, ErrInvalidReference)

	err = c.Tag(context.Background(), testRef+":x", digest.FromString("missing").String())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMapOCIError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mapOCIError(nil))
	assert.ErrorIs(t, mapOCIError(oras.ErrNotFound), ErrNotFound)
	assert.ErrorIs(t, mapOCIError(oras.ErrInvalidReference), ErrInvalidReference)
	assert.ErrorIs(t, mapOCIError(oras.ErrDigestMismatch), ErrDigestMismatch)
	assert.ErrorIs(t, mapOCIError(oras.ErrSizeMismatch), ErrDigestMismatch)
	assert.ErrorIs(t, mapOCIError(oras.ErrManifestInvalid), ErrInvalidManifest)

	other := errors.New("boom")
	assert.Equal(t, other, mapOCIError(other))
}

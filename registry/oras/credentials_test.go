package oras

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2/registry/remote/auth"
)

func TestStaticCredentials(t *testing.T) {
	t.Parallel()

	store := StaticCredentials("https://ghcr.io/", "user", "pass")
	ctx := context.Background()

	cred, err := store.Get(ctx, "ghcr.io")
	require.NoError(t, err)
	assert.Equal(t, "user", cred.Username)
	assert.Equal(t, "pass", cred.Password)

	cred, err = store.Get(ctx, "quay.io")
	require.NoError(t, err)
	assert.Equal(t, auth.EmptyCredential, cred)

	assert.ErrorIs(t, store.Put(ctx, "ghcr.io", auth.Credential{}), errReadOnlyStore)
	assert.ErrorIs(t, store.Delete(ctx, "ghcr.io"), errReadOnlyStore)
}

func TestStaticToken_DockerHubAliases(t *testing.T) {
	t.Parallel()

	store := StaticToken("docker.io", "tok")
	for _, host := range []string{"docker.io", "registry-1.docker.io", "index.docker.io:443"} {
		cred, err := store.Get(context.Background(), host)
		require.NoError(t, err)
		assert.Equal(t, "tok", cred.AccessToken, host)
	}
}

type mapStore struct {
	creds map[string]auth.Credential
	gets  []string
}

func (m *mapStore) Get(_ context.Context, addr string) (auth.Credential, error) {
	m.gets = append(m.gets, addr)
	return m.creds[addr], nil
}

func (m *mapStore) Put(_ context.Context, addr string, cred auth.Credential) error {
	m.creds[addr] = cred
	return nil
}

func (m *mapStore) Delete(_ context.Context, addr string) error {
	delete(m.creds, addr)
	return nil
}

func TestDockerHubStore(t *testing.T) {
	t.Parallel()

	inner := &mapStore{creds: map[string]auth.Credential{
		"https://index.docker.io/v1/": {Username: "hub", Password: "secret"},
	}}
	store := &dockerHubStore{Store: inner}

	cred, err := store.Get(context.Background(), "registry-1.docker.io")
	require.NoError(t, err)
	assert.Equal(t, "hub", cred.Username)

	inner.gets = nil
	cred, err = store.Get(context.Background(), "ghcr.io")
	require.NoError(t, err)
	assert.True(t, isEmptyCredential(cred))
	assert.Equal(t, []string{"ghcr.io"}, inner.gets, "non Docker Hub hosts are looked up once")
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"ghcr.io":                     "ghcr.io",
		"https://ghcr.io/v2/":         "ghcr.io",
		"http://localhost:5000":       "localhost:5000",
		"https://index.docker.io/v1/": "index.docker.io",
	}
	for in, want := range tests {
		assert.Equal(t, want, hostOf(in), in)
	}
}

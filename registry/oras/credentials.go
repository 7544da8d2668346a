package oras

import (
	"context"
	"errors"
	"net"
	"strings"

	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"
)

var errReadOnlyStore = errors.New("oci: static credential store is read-only")

// Docker Hub is stored under several names depending on the tool that
// wrote the config.
var dockerHubAliases = []string{
	"https://index.docker.io/v1/",
	"index.docker.io",
	"registry-1.docker.io",
	"docker.io",
}

// DefaultCredentialStore reads ~/.docker/config.json and any credential
// helpers it configures.
func DefaultCredentialStore() (credentials.Store, error) {
	store, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		return nil, err
	}
	return &dockerHubStore{Store: store}, nil
}

// StaticCredentials returns a read-only store holding a username and
// password for one registry.
func StaticCredentials(registry, username, password string) credentials.Store {
	return &staticStore{
		host: hostOf(registry),
		cred: auth.Credential{Username: username, Password: password},
	}
}

// StaticToken returns a read-only store holding a bearer token for one
// registry.
func StaticToken(registry, token string) credentials.Store {
	return &staticStore{
		host: hostOf(registry),
		cred: auth.Credential{AccessToken: token},
	}
}

type staticStore struct {
	host string
	cred auth.Credential
}

func (s *staticStore) Get(_ context.Context, serverAddress string) (auth.Credential, error) {
	host := hostOf(serverAddress)
	if host == s.host || (isDockerHub(host) && isDockerHub(s.host)) {
		return s.cred, nil
	}
	return auth.EmptyCredential, nil
}

func (s *staticStore) Put(context.Context, string, auth.Credential) error {
	return errReadOnlyStore
}

func (s *staticStore) Delete(context.Context, string) error {
	return errReadOnlyStore
}

// dockerHubStore retries Docker Hub lookups under each known alias.
type dockerHubStore struct {
	credentials.Store
}

func (s *dockerHubStore) Get(ctx context.Context, serverAddress string) (auth.Credential, error) {
	cred, err := s.Store.Get(ctx, serverAddress)
	if err == nil && !isEmptyCredential(cred) {
		return cred, nil
	}
	if !isDockerHub(hostOf(serverAddress)) {
		return cred, err
	}
	for _, alias := range dockerHubAliases {
		if alias == serverAddress {
			continue
		}
		if alt, altErr := s.Store.Get(ctx, alias); altErr == nil && !isEmptyCredential(alt) {
			return alt, nil
		}
	}
	return cred, err
}

// hostOf strips the scheme and path from a server address, keeping the port.
func hostOf(addr string) string {
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimPrefix(addr, "http://")
	addr, _, _ = strings.Cut(addr, "/")
	return addr
}

func isDockerHub(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	switch host {
	case "docker.io", "index.docker.io", "registry-1.docker.io":
		return true
	}
	return false
}

func isEmptyCredential(cred auth.Credential) bool {
	return cred.Username == "" && cred.Password == "" && cred.AccessToken == "" && cred.RefreshToken == ""
}

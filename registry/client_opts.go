package registry

import (
	"log/slog"
	"time"

	"oras.land/oras-go/v2/registry/remote/credentials"

	"github.com/meigma/asar/core/cache"
	"github.com/meigma/asar/registry/oras"
)

// Option configures a Client.
type Option func(*Client)

// WithOCIClient sets a custom OCI client.
//
// Pass-through options such as WithPlainHTTP and WithDockerConfig are
// ignored when a custom client is provided.
func WithOCIClient(c OCIClient) Option {
	return func(client *Client) {
		client.oci = c
	}
}

// WithLogger sets the logger for registry operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithManifestCache caches archive manifests by digest.
//
// Tags are always resolved against the registry; only the immutable
// manifest bytes are cached.
func WithManifestCache(mc cache.Cache) Option {
	return func(c *Client) {
		c.manifestCache = mc
	}
}

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithPlainHTTP(enabled))
	}
}

// WithDockerConfig reads credentials from ~/.docker/config.json.
func WithDockerConfig() Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithDockerConfig())
	}
}

// WithCredentialStore sets the credential store for authentication.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithCredentialStore(store))
	}
}

// WithStaticCredentials sets a username and password for one registry.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithStaticCredentials(registry, username, password))
	}
}

// WithStaticToken sets a bearer token for one registry.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithStaticToken(registry, token))
	}
}

// WithAnonymous disables authentication.
func WithAnonymous() Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithAnonymous())
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithUserAgent(ua))
	}
}

// WithAuthHeaderCacheTTL sets how long auth headers for range reads are
// reused. Zero disables caching.
func WithAuthHeaderCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.orasOpts = append(c.orasOpts, oras.WithAuthHeaderCacheTTL(ttl))
	}
}

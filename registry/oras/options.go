package oras

import (
	"log/slog"
	"time"

	"oras.land/oras-go/v2/registry/remote/credentials"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger for registry operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCredentialStore sets the credential store for authentication.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) {
		c.credStore = store
	}
}

// WithStaticCredentials sets static username/password credentials for a registry.
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) {
		c.credStore = StaticCredentials(registry, username, password)
	}
}

// WithStaticToken sets a bearer token for a registry.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) {
		c.credStore = StaticToken(registry, token)
	}
}

// WithDockerConfig reads credentials from ~/.docker/config.json.
// If the docker config cannot be loaded the client falls back to no
// credentials.
func WithDockerConfig() Option {
	return func(c *Client) {
		store, err := DefaultCredentialStore()
		if err != nil {
			return
		}
		c.credStore = store
	}
}

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) {
		c.plainHTTP = enabled
	}
}

// WithAnonymous disables all authentication, including credential store lookups.
func WithAnonymous() Option {
	return func(c *Client) {
		c.anonymous = true
	}
}

// WithUserAgent sets the User-Agent header for requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithAuthHeaderCacheTTL sets the TTL for cached auth headers.
// A zero or negative duration disables caching.
func WithAuthHeaderCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.authHeaderCache = newAuthHeaderCache(ttl)
	}
}

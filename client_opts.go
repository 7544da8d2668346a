package asar

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"oras.land/oras-go/v2/registry/remote/credentials"

	corecache "github.com/meigma/asar/core/cache"
	coredisk "github.com/meigma/asar/core/cache/disk"
	"github.com/meigma/asar/registry"
	"github.com/meigma/asar/registry/oras"
)

// Option configures a Client.
type Option func(*Client) error

// Default cache size limits for WithCacheDir.
const (
	DefaultContentCacheSize  int64 = 100 << 20 // 100 MB
	DefaultBlockCacheSize    int64 = 50 << 20  // 50 MB
	DefaultManifestCacheSize int64 = 10 << 20  // 10 MB
)

// --- Authentication Options ---

// WithDockerConfig enables reading credentials from ~/.docker/config.json.
// This is the recommended way to authenticate with registries.
func WithDockerConfig() Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithDockerConfig())
		return nil
	}
}

// WithCredentialStore sets a custom credential store.
func WithCredentialStore(store credentials.Store) Option {
	return func(c *Client) error {
		if store == nil {
			return errors.New("credential store is nil")
		}
		c.orasOpts = append(c.orasOpts, oras.WithCredentialStore(store))
		return nil
	}
}

// WithStaticCredentials sets static username/password credentials for a registry.
// The registry parameter should be the registry host (e.g., "ghcr.io").
func WithStaticCredentials(registry, username, password string) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithStaticCredentials(registry, username, password))
		return nil
	}
}

// WithStaticToken sets a static bearer token for a registry.
func WithStaticToken(registry, token string) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithStaticToken(registry, token))
		return nil
	}
}

// WithAnonymous forces anonymous access, ignoring any configured credentials.
func WithAnonymous() Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithAnonymous())
		return nil
	}
}

// --- Transport Options ---

// WithPlainHTTP enables plain HTTP (no TLS) for registries.
// This is useful for local development registries.
func WithPlainHTTP(enabled bool) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithPlainHTTP(enabled))
		return nil
	}
}

// WithUserAgent sets the User-Agent header for registry requests.
func WithUserAgent(ua string) Option {
	return func(c *Client) error {
		c.orasOpts = append(c.orasOpts, oras.WithUserAgent(ua))
		return nil
	}
}

// WithAuthHeaderCacheTTL sets how long auth headers for range reads are
// reused. Negative values are rejected; zero disables the cache.
func WithAuthHeaderCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl < 0 {
			return errors.New("auth header cache TTL must be non-negative")
		}
		c.orasOpts = append(c.orasOpts, oras.WithAuthHeaderCacheTTL(ttl))
		return nil
	}
}

// WithOCIClient replaces the ORAS client. Authentication and transport
// options are ignored when it is set.
func WithOCIClient(oci registry.OCIClient) Option {
	return func(c *Client) error {
		c.oci = oci
		return nil
	}
}

// --- Caching Options ---

// WithCacheDir enables all caches with default sizes in subdirectories of dir.
//
// This creates:
//   - dir/content/   - file content cache (100 MB)
//   - dir/blocks/    - HTTP range block cache (50 MB)
//   - dir/manifests/ - manifest cache (10 MB)
//
// For custom sizes or selective caching, use the individual cache options.
func WithCacheDir(dir string) Option {
	return func(c *Client) error {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
		for _, opt := range []Option{
			WithContentCacheDir(filepath.Join(dir, "content")),
			WithBlockCacheDir(filepath.Join(dir, "blocks")),
			WithManifestCacheDir(filepath.Join(dir, "manifests")),
		} {
			if err := opt(c); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithContentCacheDir enables file content caching in dir with
// [DefaultContentCacheSize].
func WithContentCacheDir(dir string) Option {
	return func(c *Client) error {
		cache, err := coredisk.New(dir, coredisk.WithMaxBytes(DefaultContentCacheSize))
		if err != nil {
			return err
		}
		c.contentCache = cache
		return nil
	}
}

// WithBlockCacheDir enables HTTP range block caching in dir with
// [DefaultBlockCacheSize].
func WithBlockCacheDir(dir string) Option {
	return func(c *Client) error {
		cache, err := coredisk.NewBlockCache(dir, coredisk.WithBlockMaxBytes(DefaultBlockCacheSize))
		if err != nil {
			return err
		}
		c.blockCache = cache
		return nil
	}
}

// WithManifestCacheDir enables manifest caching in dir with
// [DefaultManifestCacheSize].
func WithManifestCacheDir(dir string) Option {
	return func(c *Client) error {
		cache, err := coredisk.New(dir, coredisk.WithMaxBytes(DefaultManifestCacheSize))
		if err != nil {
			return err
		}
		c.manifestCache = cache
		return nil
	}
}

// WithContentCache sets a custom content cache implementation.
func WithContentCache(cache corecache.Cache) Option {
	return func(c *Client) error {
		c.contentCache = cache
		return nil
	}
}

// WithBlockCache sets a custom block cache implementation.
func WithBlockCache(cache corecache.BlockCache) Option {
	return func(c *Client) error {
		c.blockCache = cache
		return nil
	}
}

// WithManifestCache sets a custom manifest cache implementation.
func WithManifestCache(cache corecache.Cache) Option {
	return func(c *Client) error {
		c.manifestCache = cache
		return nil
	}
}

// WithLogger sets a logger for the client.
// The logger is propagated to the registry client and pulled archives.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

package oras

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultAuthHeaderCacheTTL     = time.Minute
	defaultAuthHeaderCacheMaxSize = 100
)

// authHeaderCache holds Authorization header values per registry host.
// Entries expire after the TTL and the least recently used host is evicted
// once the cache is full.
type authHeaderCache struct {
	ttl     time.Duration
	maxSize int
	lru     *expirable.LRU[string, string]
}

// newAuthHeaderCache returns nil when ttl is not positive, which disables
// caching.
func newAuthHeaderCache(ttl time.Duration) *authHeaderCache {
	return newAuthHeaderCacheWithSize(ttl, defaultAuthHeaderCacheMaxSize)
}

func newAuthHeaderCacheWithSize(ttl time.Duration, maxSize int) *authHeaderCache {
	if ttl <= 0 {
		return nil
	}
	if maxSize <= 0 {
		maxSize = defaultAuthHeaderCacheMaxSize
	}
	return &authHeaderCache{
		ttl:     ttl,
		maxSize: maxSize,
		lru:     expirable.NewLRU[string, string](maxSize, nil, ttl),
	}
}

func (c *authHeaderCache) get(host string) (string, bool) {
	return c.lru.Get(host)
}

func (c *authHeaderCache) set(host, value string) {
	c.lru.Add(host, value)
}

func (c *authHeaderCache) invalidate(host string) {
	c.lru.Remove(host)
}

func (c *authHeaderCache) len() int {
	return c.lru.Len()
}

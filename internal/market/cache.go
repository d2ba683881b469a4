package market

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultQuoteTTL    = 60 * time.Second
	DefaultEarningsTTL = time.Hour
)

// Cache is a TTL map owned by one provider. Only successful lookups are
// stored; failures are never cached.
type Cache[V any] struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewCache returns a cache whose entries expire after ttl unless Set is given
// an explicit duration.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &Cache[V]{
		store: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	raw, ok := c.store.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Set stores v under key. A non-positive ttl uses the cache default.
func (c *Cache[V]) Set(key string, v V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.store.Set(key, v, ttl)
}

func (c *Cache[V]) Invalidate(key string) {
	c.store.Delete(key)
}

func (c *Cache[V]) Flush() {
	c.store.Flush()
}

func (c *Cache[V]) Len() int {
	return c.store.ItemCount()
}

package schema

import (
	"context"
	"time"

	"github.com/coocood/freecache"
	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// CachedRegistry puts a byte-bounded TTL cache in front of a slow Registry (for example one
// backed by RPC). Misses are not cached, so a schema registered upstream is picked up on the
// next lookup.
type CachedRegistry struct {
	inner Registry
	cache *freecache.Cache
	ttl   time.Duration
}

var _ Registry = (*CachedRegistry)(nil)

// NewCachedRegistry wraps inner with a cache of sizeBytes (freecache enforces a 512KiB minimum).
// A zero ttl keeps entries until evicted.
func NewCachedRegistry(inner Registry, sizeBytes int, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{
		inner: inner,
		cache: freecache.NewCache(sizeBytes),
		ttl:   ttl,
	}
}

func (c *CachedRegistry) Lookup(ctx context.Context, componentID string) (Schema, error) {
	key := []byte(componentID)
	if bz, err := c.cache.Get(key); err == nil {
		var s Schema
		if err := json.Unmarshal(bz, &s); err == nil {
			return s, nil
		}
		c.cache.Del(key)
	}

	s, err := c.inner.Lookup(ctx, componentID)
	if err != nil {
		return Schema{}, err
	}

	bz, err := json.Marshal(s)
	if err != nil {
		return Schema{}, eris.Wrap(err, "failed to encode schema for cache")
	}
	// Set only fails when the entry is larger than 1/1024 of the cache, which just means we skip
	// caching it.
	_ = c.cache.Set(key, bz, int(c.ttl/time.Second))
	return s, nil
}

// HitRate reports the fraction of lookups served from the cache.
func (c *CachedRegistry) HitRate() float64 {
	return c.cache.HitRate()
}

package proximity

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/airmap/internal/cache/keys"
	"github.com/mohammed-shakir/airmap/internal/core/model"
	"github.com/mohammed-shakir/airmap/internal/core/observability"
)

type cachedEntry struct {
	res Result
	ok  bool
}

// CachedResolver memoises ResolveNearest per (lat, lng, radius) at 8
// decimals. Absent results are cached, errors are not.
type CachedResolver struct {
	next  *Resolver
	layer string
	lru   *expirable.LRU[string, cachedEntry]
}

func NewCachedResolver(next *Resolver, layer string, size int, ttl time.Duration) *CachedResolver {
	if size <= 0 {
		size = 4096
	}
	return &CachedResolver{
		next:  next,
		layer: layer,
		lru:   expirable.NewLRU[string, cachedEntry](size, nil, ttl),
	}
}

func (c *CachedResolver) ResolveNearest(ctx context.Context, p model.Point, radiusKm float64) (Result, bool, error) {
	k := keys.Resolve(c.layer, p.Lat, p.Lng, radiusKm)
	if e, hit := c.lru.Get(k); hit {
		observability.IncResolveCacheHit()
		return e.res, e.ok, nil
	}
	observability.IncResolveCacheMiss()

	res, ok, err := c.next.ResolveNearest(ctx, p, radiusKm)
	if err != nil {
		return Result{}, false, err
	}
	c.lru.Add(k, cachedEntry{res: res, ok: ok})
	return res, ok, nil
}

// Purge drops every cached answer when layer is the one this cache serves.
func (c *CachedResolver) Purge(layer string) int {
	if layer != c.layer {
		return 0
	}
	n := c.lru.Len()
	c.lru.Purge()
	return n
}

func (c *CachedResolver) Layer() string { return c.layer }

func (c *CachedResolver) Len() int { return c.lru.Len() }

package framegraph

import "github.com/gogpu/framegraph/internal/cache"

// DerivedKey identifies an object derived from a resource, such as a bind
// group or a texture view, at one version of that resource. Backing is the
// pool slot generation for transient resources and the binding generation
// for External and Imported ones, so moving a resource to another
// allocation also produces a new key.
type DerivedKey struct {
	Resource ResourceID
	Version  uint64
	Backing  uint64
}

// DefaultDerivedCacheSize is the soft limit used when NewDerivedCache is
// given a non-positive size.
const DefaultDerivedCacheSize = 64

// DerivedCache memoizes objects derived from graph resources. Entries leave
// the cache through LRU eviction, Sweep or Clear, and each departing value
// is passed to the release callback.
type DerivedCache[K comparable, V any] struct {
	c         *cache.Cache[K, V]
	supersede func(old, cur K) bool
}

// NewDerivedCache creates a cache holding at most size entries (soft
// limit). release may be nil.
func NewDerivedCache[K comparable, V any](size int, release func(K, V)) *DerivedCache[K, V] {
	if size <= 0 {
		size = DefaultDerivedCacheSize
	}
	return &DerivedCache[K, V]{c: cache.New(size, release)}
}

// NewResourceCache creates a DerivedCache keyed by DerivedKey. Creating an
// entry for a resource releases every entry of the same resource built for
// an older version or another backing, so stale bind groups do not wait
// for LRU eviction.
//
// Example:
//
//	groups := framegraph.NewResourceCache(func(_ framegraph.DerivedKey, bg hal.BindGroup) {
//	    dev.HAL().DestroyBindGroup(bg)
//	})
//	bg, err := groups.GetOrCreate(ctx.Key(src), func() (hal.BindGroup, error) { ... })
func NewResourceCache[V any](release func(DerivedKey, V)) *DerivedCache[DerivedKey, V] {
	dc := NewDerivedCache(DefaultDerivedCacheSize, release)
	dc.supersede = func(old, cur DerivedKey) bool {
		return old.Resource == cur.Resource && old != cur
	}
	return dc
}

// GetOrCreate returns the cached value for key, building it with create on
// a miss. A failed create caches nothing.
func (dc *DerivedCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	created := false
	v, err := dc.c.GetOrCreate(key, func() (V, error) {
		created = true
		return create()
	})
	if err != nil || !created || dc.supersede == nil {
		return v, err
	}
	dc.c.Sweep(func(k K) bool { return dc.supersede(k, key) })
	return v, nil
}

// Get returns the cached value for key without building it.
func (dc *DerivedCache[K, V]) Get(key K) (V, bool) { return dc.c.Get(key) }

// Sweep releases every entry whose key matches and returns how many were
// dropped.
func (dc *DerivedCache[K, V]) Sweep(match func(K) bool) int { return dc.c.Sweep(match) }

// Len returns the number of cached entries.
func (dc *DerivedCache[K, V]) Len() int { return dc.c.Len() }

// Clear releases every entry.
func (dc *DerivedCache[K, V]) Clear() { dc.c.Clear() }

// Stats returns hit and eviction counters.
func (dc *DerivedCache[K, V]) Stats() CacheStats { return dc.c.Stats() }

// CacheStats reports hit, miss and eviction counters of a DerivedCache.
type CacheStats = cache.Stats

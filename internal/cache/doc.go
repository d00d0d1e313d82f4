// Package cache provides the generic LRU cache behind the frame graph's
// derived-object caches.
//
// Cache[K, V] is a thread-safe LRU with a soft limit. When the limit is
// exceeded the least recently used quarter is evicted. Every value that
// leaves the cache (eviction, replacement, Delete, Sweep, Clear) is handed
// to the release callback, so GPU objects such as bind groups are
// destroyed exactly once.
//
//	c := cache.New[key, hal.BindGroup](64, func(_ key, bg hal.BindGroup) {
//	    device.DestroyBindGroup(bg)
//	})
//	bg, err := c.GetOrCreate(k, func() (hal.BindGroup, error) {
//	    return device.CreateBindGroup(desc)
//	})
//
// # Thread Safety
//
// Cache is safe for concurrent use. It must not be copied after creation
// (it contains a mutex).
package cache

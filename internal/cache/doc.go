// Package cache provides a bounded LRU for GPU resources.
//
// Values are released through an eviction callback when they fall out of
// the cache or when the cache is purged, so a display backend can hand it
// textures keyed by size and forget about destroying them.
//
//	c := cache.New[Size, hal.Texture](4, func(_ Size, t hal.Texture) {
//	    device.DestroyTexture(t)
//	})
//	tex, err := c.GetOrCreate(size, create)
//
// Cache is safe for concurrent use.
package cache

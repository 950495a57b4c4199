package cache

import "sync"

// EvictFunc releases a value leaving the cache.
type EvictFunc[K comparable, V any] func(key K, value V)

// Cache is an LRU holding at most capacity entries.
//
// Cache must not be copied after creation.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	index    map[K]*node[K, V]
	order    list[K, V]
	capacity int
	onEvict  EvictFunc[K, V]

	hits      uint64
	misses    uint64
	evictions uint64
}

// Stats contains cache statistics.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// New creates a cache. A capacity below 1 is treated as 1. onEvict may be
// nil.
func New[K comparable, V any](capacity int, onEvict EvictFunc[K, V]) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		index:    make(map[K]*node[K, V]),
		capacity: capacity,
		onEvict:  onEvict,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.index[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.moveToFront(n)
	return n.value, true
}

// Put stores value under key. A previous value for key is evicted, as is
// the least recently used entry when the cache is full.
func (c *Cache[K, V]) Put(key K, value V) {
	var evicted []*node[K, V]

	c.mu.Lock()
	if old, ok := c.index[key]; ok {
		c.order.unlink(old)
		delete(c.index, key)
		evicted = append(evicted, old)
	}
	evicted = append(evicted, c.insert(key, value)...)
	c.mu.Unlock()

	c.release(evicted)
}

// GetOrCreate returns the cached value for key, or calls create and caches
// its result. create runs under the cache lock; a failed create caches
// nothing.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	if n, ok := c.index[key]; ok {
		c.hits++
		c.order.moveToFront(n)
		c.mu.Unlock()
		return n.value, nil
	}
	c.misses++
	value, err := create()
	if err != nil {
		c.mu.Unlock()
		var zero V
		return zero, err
	}
	evicted := c.insert(key, value)
	c.mu.Unlock()

	c.release(evicted)
	return value, nil
}

// Remove evicts key. It reports whether the key was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	n, ok := c.index[key]
	if ok {
		c.order.unlink(n)
		delete(c.index, key)
	}
	c.mu.Unlock()

	if ok {
		c.release([]*node[K, V]{n})
	}
	return ok
}

// Purge evicts every entry, oldest first.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	evicted := make([]*node[K, V], 0, c.order.len)
	for n := c.order.popBack(); n != nil; n = c.order.popBack() {
		evicted = append(evicted, n)
	}
	clear(c.index)
	c.mu.Unlock()

	c.release(evicted)
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.len
}

// Stats returns cache statistics.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Len:       c.order.len,
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// insert adds a new entry and returns the nodes pushed out by it.
// Caller must hold c.mu.
func (c *Cache[K, V]) insert(key K, value V) []*node[K, V] {
	n := &node[K, V]{key: key, value: value}
	c.index[key] = n
	c.order.pushFront(n)

	var evicted []*node[K, V]
	for c.order.len > c.capacity {
		old := c.order.popBack()
		delete(c.index, old.key)
		evicted = append(evicted, old)
	}
	return evicted
}

// release runs the eviction callback outside the lock.
func (c *Cache[K, V]) release(nodes []*node[K, V]) {
	if len(nodes) == 0 {
		return
	}
	c.mu.Lock()
	c.evictions += uint64(len(nodes))
	c.mu.Unlock()

	if c.onEvict == nil {
		return
	}
	for _, n := range nodes {
		c.onEvict(n.key, n.value)
	}
}

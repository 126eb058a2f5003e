package workspace

import "sync"

// cache memoizes values by key. Concurrent Gets of a missing key run fill
// once; the other callers wait for its result.
type cache interface {
	Get(key interface{}, fill func() interface{}) interface{}
	Forget(key interface{})
	Purge()
}

func newFileCache() *unboundedCache {
	c := &unboundedCache{}
	c.Purge()
	return c
}

func newDeclCache() *unboundedCache {
	c := &unboundedCache{}
	c.Purge()
	return c
}

type cacheValue struct {
	ready chan struct{} // closed to broadcast readiness
	value interface{}
}

type unboundedCache struct {
	mu sync.Mutex
	c  map[interface{}]*cacheValue
}

func (c *unboundedCache) Get(k interface{}, fill func() interface{}) interface{} {
	c.mu.Lock()
	v, ok := c.c[k]
	if ok {
		// cache hit, wait until ready
		c.mu.Unlock()
		<-v.ready
	} else {
		// cache miss. Add unready result to cache and fill
		v = &cacheValue{ready: make(chan struct{})}
		c.c[k] = v
		c.mu.Unlock()

		defer close(v.ready)
		v.value = fill()
	}

	return v.value
}

// Forget drops k. Callers already waiting on it still get its value.
func (c *unboundedCache) Forget(k interface{}) {
	c.mu.Lock()
	delete(c.c, k)
	c.mu.Unlock()
}

func (c *unboundedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.c)
}

func (c *unboundedCache) Purge() {
	c.mu.Lock()
	c.c = make(map[interface{}]*cacheValue)
	c.mu.Unlock()
}

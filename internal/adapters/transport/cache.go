package transport

import (
	"container/list"
	"sync"
	"time"
)

const defaultCacheSize = 256

type cacheEntry struct {
	key     string
	data    []byte
	expires time.Time
}

// responseCache keeps decoded-envelope payloads of GET calls keyed by URL.
// It is bounded; when full the oldest insertion is evicted. Stale entries are
// dropped when read.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = newest
	maxSize int
	now     func() time.Time
}

func newResponseCache(maxSize int, now func() time.Time) *responseCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	if now == nil {
		now = time.Now
	}
	return &responseCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		now:     now,
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if !c.now().Before(e.expires) {
		c.removeElement(el)
		return nil, false
	}
	return e.data, true
}

func (c *responseCache) put(key string, data []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
	}
	for c.order.Len() >= c.maxSize {
		c.removeElement(c.order.Back())
	}
	el := c.order.PushFront(&cacheEntry{key: key, data: data, expires: c.now().Add(ttl)})
	c.entries[key] = el
}

// purge drops everything; called after any successful mutating call.
func (c *responseCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *responseCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// removeElement must be called with c.mu held.
func (c *responseCache) removeElement(el *list.Element) {
	if el == nil {
		return
	}
	e := c.order.Remove(el).(*cacheEntry)
	delete(c.entries, e.key)
}

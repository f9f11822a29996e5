package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is a bounded in-memory cache that evicts in insertion order.
// Reads never reorder entries and nothing is purged in the background.
type MemoryCache struct {
	mu        sync.Mutex
	maxSize   int
	items     map[string]*list.Element
	fifo      *list.List // front = newest, back = oldest
	now       func() time.Time
	hits      uint64
	misses    uint64
	evictions uint64
}

// NewMemoryCache creates a new insertion-ordered cache holding at most maxSize entries
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		fifo:    list.New(),
		now:     time.Now,
	}
}

func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

func (c *MemoryCache) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	c.hits++
	return elem.Value.(*Entry), true
}

// Put stores data under key. Overwriting a key counts as a fresh insertion,
// so the key moves to the newest position. Inserting a new key into a full
// cache evicts exactly one entry, the earliest inserted.
func (c *MemoryCache) Put(key string, data []byte, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent := &Entry{
		Key:         key,
		Data:        data,
		ContentType: contentType,
		InsertedAt:  c.now(),
	}

	if elem, ok := c.items[key]; ok {
		c.fifo.Remove(elem)
		c.items[key] = c.fifo.PushFront(ent)
		return
	}

	if c.fifo.Len() >= c.maxSize {
		oldest := c.fifo.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(*Entry).Key)
			c.fifo.Remove(oldest)
			c.evictions++
		}
	}

	c.items[key] = c.fifo.PushFront(ent)
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fifo.Len()
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.fifo = list.New()
}

func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Entries:   c.fifo.Len(),
		Capacity:  c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

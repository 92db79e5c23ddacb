package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/lessoncast/readalong/timing"
)

// DefaultMemoryCapacity bounds the memory tier by dataset count. Timing
// datasets are a few hundred KB at most, so a handful of lessons fit
// comfortably while switching between them stays instant.
const DefaultMemoryCapacity = 10

// MemoryCache is the in-memory tier: an LRU over normalized datasets,
// bounded by entry count. Datasets are immutable, so hits hand out the
// shared pointer without copying.
type MemoryCache struct {
	capacity int

	// LRU bookkeeping
	items    map[string]*list.Element
	eviction *list.List

	mu sync.RWMutex

	stats Stats
}

// memoryEntry is one cached dataset.
type memoryEntry struct {
	key       string
	dataset   *timing.Dataset
	timestamp time.Time
	hits      int64
}

// NewMemoryCache creates a memory cache holding at most capacity datasets.
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		stats: Stats{
			Capacity: capacity,
		},
	}
}

// Get retrieves a dataset and refreshes its recency.
func (c *MemoryCache) Get(key string) (*timing.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}

	c.eviction.MoveToFront(elem)
	entry := elem.Value.(*memoryEntry)
	entry.hits++

	c.stats.Hits++
	c.stats.LastAccess = time.Now()
	return entry.dataset, true
}

// Put stores a dataset, evicting the least recently used entries when the
// cache is full. Storing an existing key replaces the dataset and
// refreshes its recency.
func (c *MemoryCache) Put(key string, ds *timing.Dataset) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.eviction.MoveToFront(elem)
		entry := elem.Value.(*memoryEntry)
		entry.dataset = ds
		entry.timestamp = time.Now()
		return
	}

	for len(c.items) >= c.capacity && c.eviction.Len() > 0 {
		c.evictOldest()
	}

	entry := &memoryEntry{
		key:       key,
		dataset:   ds,
		timestamp: time.Now(),
	}
	c.items[key] = c.eviction.PushFront(entry)
}

// Delete removes an entry.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()
}

// Contains checks for a key without updating recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.items[key]
	return ok
}

// Len returns the number of cached datasets.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Keys returns all cached content IDs.
func (c *MemoryCache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.ItemCount = len(c.items)
	if stats.Hits+stats.Misses > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.Hits+stats.Misses)
	}
	return stats
}

// evictOldest removes the least recently used entry (lock held).
func (c *MemoryCache) evictOldest() {
	if elem := c.eviction.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
		c.stats.LastEvict = time.Now()
	}
}

// removeElement removes an element (lock held).
func (c *MemoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	entry := elem.Value.(*memoryEntry)
	delete(c.items, entry.key)
}

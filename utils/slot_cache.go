package utils

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// A bounded set of recently seen slots, oldest evicted first
type SlotCache struct {
	mu       sync.Mutex
	set      mapset.Set[uint64]
	order    []uint64
	capacity int
}

const DefaultSlotCacheCapacity = 1024

func NewSlotCache(capacity int) *SlotCache {
	if capacity <= 0 {
		capacity = DefaultSlotCacheCapacity
	}
	return &SlotCache{
		set:      mapset.NewThreadUnsafeSet[uint64](),
		capacity: capacity,
		order:    make([]uint64, 0, capacity),
	}
}

func (c *SlotCache) Has(slot uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set.Contains(slot)
}

// Add records slot and reports whether it was new.
func (c *SlotCache) Add(slot uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set.Contains(slot) {
		return false
	}
	if len(c.order) >= c.capacity {
		old := c.order[0]
		c.order = c.order[1:]
		c.set.Remove(old)
	}
	c.set.Add(slot)
	c.order = append(c.order, slot)
	return true
}

func (c *SlotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.set.Cardinality()
}

package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	id  string
	seq uint64
	ts  time.Time
}

type seen struct {
	fingerprint string
	seq         uint64
	ts          time.Time
}

// Cache remembers the last indexed fingerprint of each company so that
// re-publishing an unchanged dataset does not rewrite every document.
type Cache struct {
	mu       sync.Mutex
	items    map[string]seen
	order    []entry
	seq      uint64
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache with the provided capacity and ttl.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		items:    make(map[string]seen, capacity),
		order:    make([]entry, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Unchanged reports whether id was remembered with the same fingerprint
// inside the ttl window. It does not record anything; use Remember.
func (c *Cache) Unchanged(id, fingerprint string) bool {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.items[id]
	if !ok || now.Sub(s.ts) > c.ttl {
		return false
	}
	return s.fingerprint == fingerprint
}

// Remember records the fingerprint most recently indexed for id.
func (c *Cache) Remember(id, fingerprint string) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.items[id] = seen{fingerprint: fingerprint, seq: c.seq, ts: now}
	c.order = append(c.order, entry{id: id, seq: c.seq, ts: now})
	c.compact(now)
}

// Len returns the number of remembered ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache) compact(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.items) > c.capacity || c.order[0].ts.Before(cutoff) || len(c.order) > 2*c.capacity) {
		oldest := c.order[0]
		c.order = c.order[1:]

		// Only drop the item if this order entry is its latest write.
		if s, ok := c.items[oldest.id]; ok && s.seq == oldest.seq {
			delete(c.items, oldest.id)
		}
	}
}

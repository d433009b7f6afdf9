package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryCounter keeps counters in process memory. Counters vanish on restart
// and are not shared between instances.
type MemoryCounter struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	now       func() time.Time
	nextSweep time.Time
}

// NewMemoryCounter returns an empty counter. now may be nil.
func NewMemoryCounter(now func() time.Time) *MemoryCounter {
	if now == nil {
		now = time.Now
	}
	return &MemoryCounter{entries: make(map[string]*memoryEntry), now: now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now, ttl)

	e, ok := c.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &memoryEntry{expiresAt: now.Add(ttl)}
		c.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// Len reports the number of live counters.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// sweep drops expired entries, at most once per ttl. Caller holds mu.
func (c *MemoryCounter) sweep(now time.Time, ttl time.Duration) {
	if now.Before(c.nextSweep) {
		return
	}
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.nextSweep = now.Add(ttl)
}

// Package dedupe remembers recently applied content events so redelivered
// Kafka messages are not written twice.
package dedupe

import (
	"sync"
	"time"
)

type entry struct {
	key string
	at  time.Time
}

type mark struct {
	scope string
	at    time.Time
}

// Cache remembers, per scope, the key of the last applied event. A scope is
// the node an event targets: applying a new event to a node replaces its key,
// so an older event for that node is no longer treated as a duplicate.
// Bounded by capacity scopes and ttl. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	latest   map[string]entry
	order    []mark
	capacity int
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates a cache holding at most capacity scopes for ttl each.
func NewCache(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{
		latest:   make(map[string]entry, capacity),
		order:    make([]mark, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// IsSeen reports whether key is the last event applied to scope within the
// ttl window. It does not mark it.
func (c *Cache) IsSeen(scope, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.latest[scope]
	return ok && e.key == key && c.now().Sub(e.at) <= c.ttl
}

// MarkSeen records key as the last event applied to scope.
func (c *Cache) MarkSeen(scope, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.latest[scope] = entry{key: key, at: now}
	c.order = append(c.order, mark{scope: scope, at: now})
	c.evict(now)
}

// Len returns the number of scopes currently remembered.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.latest)
}

// evict drops expired scopes and the oldest scopes beyond capacity. A scope
// marked again keeps its newer timestamp; only the matching order entry removes it.
func (c *Cache) evict(now time.Time) {
	cutoff := now.Add(-c.ttl)

	for len(c.order) > 0 && (len(c.latest) > c.capacity || c.order[0].at.Before(cutoff)) {
		oldest := c.order[0]
		c.order = c.order[1:]

		if e, ok := c.latest[oldest.scope]; ok && e.at.Equal(oldest.at) {
			delete(c.latest, oldest.scope)
		}
	}
}

// ABOUTME: TTL replay-suppression cache for redelivered interaction events
// ABOUTME: Best-effort fast path; the approval queue remains the source of truth

package dedupe

import (
	"sync"
	"time"
)

// Default sizing for the interaction replay cache.
const (
	DefaultTTL     = 10 * time.Minute
	DefaultMaxSize = 4096
)

// Cache tracks recently seen interaction keys so redelivered events can be
// rejected without touching the database. Entries expire after the TTL.
// When the cache grows past its size limit a sweep drops expired entries
// and, if that is not enough, the oldest survivors.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a replay cache. Zero or negative arguments fall back to
// DefaultTTL and DefaultMaxSize.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		seen:    make(map[string]time.Time),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Key builds the replay key for an interaction event. The correlation token
// is part of the key so a fresh card for the same request is never confused
// with a redelivery of an old one.
func Key(action, requestID, messageTS string) string {
	return action + "|" + requestID + "|" + messageTS
}

// CheckAndMark atomically checks whether the key was seen within the TTL and
// marks it if not. Returns true for a duplicate, false when the key is new
// and now marked.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if ts, ok := c.seen[key]; ok && now.Sub(ts) < c.ttl {
		return true
	}

	if len(c.seen) >= c.maxSize {
		c.sweep(now)
	}
	c.seen[key] = now
	return false
}

// sweep drops expired entries and, while still at capacity, the oldest
// remaining ones. Caller must hold mu.
func (c *Cache) sweep(now time.Time) {
	for k, ts := range c.seen {
		if now.Sub(ts) >= c.ttl {
			delete(c.seen, k)
		}
	}
	for len(c.seen) >= c.maxSize {
		var oldestKey string
		var oldestAt time.Time
		for k, ts := range c.seen {
			if oldestKey == "" || ts.Before(oldestAt) {
				oldestKey, oldestAt = k, ts
			}
		}
		delete(c.seen, oldestKey)
	}
}

// Len reports the number of tracked keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

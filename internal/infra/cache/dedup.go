package cache

import (
	"context"
	"sync"
	"time"
)

// DedupCache suppresses duplicate webhook deliveries within a fixed TTL.
// It is process-local and best-effort: losing it on restart is harmless
// because the subscription uniqueness constraint is the real backstop.
type DedupCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time // swappable for tests
}

func NewDedupCache(ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DedupCache{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// Seen reports whether key was observed within the TTL window, and records
// it on first sight.
func (c *DedupCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if at, ok := c.seen[key]; ok && now.Sub(at) < c.ttl {
		return true
	}
	c.seen[key] = now
	return false
}

// Cleanup removes expired entries. Callable on a schedule or opportunistically.
func (c *DedupCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, at := range c.seen {
		if now.Sub(at) >= c.ttl {
			delete(c.seen, k)
		}
	}
}

// Len reports the number of tracked entries, expired or not.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// StartSweep runs Cleanup on the given interval until ctx is cancelled.
func (c *DedupCache) StartSweep(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Cleanup()
		}
	}
}

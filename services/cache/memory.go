package cache

import (
	"context"
	"sync"
	"time"

	"sjsage522/dealwatch/logger"
)

// MemorySeenCache implements SeenCache in process memory
type MemorySeenCache struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// MemoryOption configures a MemorySeenCache
type MemoryOption func(*MemorySeenCache)

// WithClock overrides the time source, used by tests to simulate expiry
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemorySeenCache) {
		c.now = now
	}
}

// NewMemorySeenCache creates an in-memory seen cache
func NewMemorySeenCache(retention time.Duration, opts ...MemoryOption) *MemorySeenCache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	c := &MemorySeenCache{
		entries:   make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Has reports whether key is present and not expired
func (c *MemorySeenCache) Has(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.liveLocked(key), nil
}

// MarkSeen records key with the current time
func (c *MemorySeenCache) MarkSeen(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = c.now()
	return nil
}

// CheckAndMark marks key and returns true if it was absent or expired
func (c *MemorySeenCache) CheckAndMark(key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.liveLocked(key) {
		return false, nil
	}
	c.entries[key] = c.now()
	return true, nil
}

func (c *MemorySeenCache) liveLocked(key string) bool {
	insertedAt, ok := c.entries[key]
	if !ok {
		return false
	}
	if c.now().Sub(insertedAt) >= c.retention {
		delete(c.entries, key)
		return false
	}
	return true
}

// Sweep removes every expired entry and returns how many were dropped
func (c *MemorySeenCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, insertedAt := range c.entries {
		if now.Sub(insertedAt) >= c.retention {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired ones included until swept
func (c *MemorySeenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps expired entries every interval until ctx is done
func (c *MemorySeenCache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = c.retention / 4
	}
	log := logger.ForCache()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := c.Sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Int("remaining", c.Len()).Msg("Swept expired entries")
			}
		}
	}
}

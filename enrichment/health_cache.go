package enrichment

import (
	"sync"
	"time"
)

// DefaultHealthCacheTTL is how long a provider outcome is remembered.
const DefaultHealthCacheTTL = 60 * time.Second

type healthEntry struct {
	available bool
	checkedAt time.Time
}

// HealthCache remembers the last outcome of each provider for a TTL so a
// failing provider is not retried for every stock in a batch.
type HealthCache struct {
	mu      sync.RWMutex
	entries map[string]healthEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewHealthCache creates a HealthCache. A TTL of 0 disables caching.
func NewHealthCache(ttl time.Duration) *HealthCache {
	return &HealthCache{
		entries: make(map[string]healthEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached availability of provider and whether it is still fresh.
func (c *HealthCache) Get(provider string) (available bool, valid bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[provider]
	if !ok {
		return false, false
	}
	return e.available, c.now().Sub(e.checkedAt) < c.ttl
}

// Set records the latest outcome for provider.
func (c *HealthCache) Set(provider string, available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[provider] = healthEntry{available: available, checkedAt: c.now()}
}

// Invalidate forgets provider so the next attempt is live.
func (c *HealthCache) Invalidate(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, provider)
}

// Skip reports whether provider failed within the TTL.
func (c *HealthCache) Skip(provider string) bool {
	available, valid := c.Get(provider)
	return valid && !available
}

func (c *HealthCache) TTL() time.Duration {
	return c.ttl
}

package cache

import (
	"context"
	"sync"
	"time"

	"price-resolver/internal/pricing"
)

// MemoryCache is an in-memory price cache implementation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	rule      pricing.PriceRule
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
	}
}

// Get retrieves a rule from the cache. Returns (zero, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key pricing.ResolutionKey) (pricing.PriceRule, bool) {
	k := key.CacheKey()

	c.mu.RLock()
	entry, ok := c.entries[k]
	c.mu.RUnlock()

	if !ok {
		return pricing.PriceRule{}, false
	}

	if time.Now().After(entry.expiresAt) {
		// Expired - clean up lazily
		c.mu.Lock()
		delete(c.entries, k)
		c.mu.Unlock()
		return pricing.PriceRule{}, false
	}

	return entry.rule, true
}

// Put stores a rule with the given TTL. TTL<=0 means don't cache.
func (c *MemoryCache) Put(_ context.Context, key pricing.ResolutionKey, rule pricing.PriceRule, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	c.entries[key.CacheKey()] = &cacheEntry{
		rule:      rule,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()

	return nil
}

// Invalidate removes a rule from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Invalidate(_ context.Context, key pricing.ResolutionKey) error {
	c.mu.Lock()
	delete(c.entries, key.CacheKey())
	c.mu.Unlock()
	return nil
}

// Len reports the number of live entries, expired ones included until swept.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ PriceCache = (*MemoryCache)(nil)

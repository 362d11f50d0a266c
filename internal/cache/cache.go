// Package cache provides the cache-aside store for resolved price rules.
//
// The cache never calls the rule store itself; the resolver populates it
// after a successful fetch and the invalidation listener clears entries when
// an external price change is announced.
package cache

import (
	"context"
	"time"

	"price-resolver/internal/pricing"
)

// PriceCache is the interface for caching resolved price rules.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Get returns (zero, false) on miss; it never errors.
// - Invalidate is idempotent: clearing an absent key is a no-op.
type PriceCache interface {
	// Get retrieves a cached rule. Returns (zero, false) on miss.
	Get(ctx context.Context, key pricing.ResolutionKey) (pricing.PriceRule, bool)

	// Put stores a rule with the given TTL. TTL<=0 means no caching.
	Put(ctx context.Context, key pricing.ResolutionKey, rule pricing.PriceRule, ttl time.Duration) error

	// Invalidate removes a cached rule. Idempotent - no error on miss.
	Invalidate(ctx context.Context, key pricing.ResolutionKey) error
}

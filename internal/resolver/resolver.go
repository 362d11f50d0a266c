// Package resolver orchestrates price resolution: cache lookup, breaker-guarded
// store fetch, and cache population.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"price-resolver/internal/cache"
	"price-resolver/internal/metrics"
	"price-resolver/internal/pricing"
	"price-resolver/internal/storage"
)

// Resolver selects the applicable price rule for a (product, brand, date)
// triple, serving cached results when available.
type Resolver struct {
	store   storage.RuleStore
	cache   cache.PriceCache
	metrics metrics.Recorder
	logger  zerolog.Logger
	ttl     time.Duration
}

// New constructs a Resolver. The store is expected to already be wrapped in
// a GuardedRuleStore so that technical failures arrive as
// ErrServiceUnavailable.
func New(store storage.RuleStore, priceCache cache.PriceCache, recorder metrics.Recorder, ttl time.Duration, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:   store,
		cache:   priceCache,
		metrics: recorder,
		logger:  logger.With().Str("component", "resolver").Logger(),
		ttl:     ttl,
	}
}

// Resolve returns the price rule applicable at date for the product/brand
// pair. It fails with ErrInvalidArgument when date is absent, ErrNotFound when
// no rule matches, and ErrServiceUnavailable when the store is unreachable.
func (r *Resolver) Resolve(ctx context.Context, date time.Time, productID, brandID int64) (pricing.PriceRule, error) {
	if date.IsZero() {
		r.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeBadRequest)
		return pricing.PriceRule{}, fmt.Errorf("%w: date is required", pricing.ErrInvalidArgument)
	}

	key := pricing.ResolutionKey{Date: date, ProductID: productID, BrandID: brandID}

	if rule, ok := r.cache.Get(ctx, key); ok {
		r.logger.Debug().Stringer("key", key).Msg("cache hit")
		r.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeSuccess)
		return rule, nil
	}

	rule, err := r.store.FetchBestRule(ctx, date, productID, brandID)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrNotFound):
			r.logger.Info().Stringer("key", key).Msg("no applicable price rule")
			r.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeNotFound)
			return pricing.PriceRule{}, err
		case errors.Is(err, pricing.ErrServiceUnavailable):
			r.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeError)
			return pricing.PriceRule{}, err
		default:
			r.logger.Error().Err(err).Stringer("key", key).Msg("unexpected resolution failure")
			r.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeError)
			return pricing.PriceRule{}, fmt.Errorf("resolve price: %w", err)
		}
	}

	if putErr := r.cache.Put(ctx, key, rule, r.ttl); putErr != nil {
		// A cache write failure never fails the resolution.
		r.logger.Warn().Err(putErr).Stringer("key", key).Msg("failed to populate cache")
	}

	r.logger.Info().Stringer("key", key).Int32("price_list", rule.PriceList).Msg("price resolved")
	r.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeSuccess)
	return rule, nil
}

package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"price-resolver/internal/breaker"
	"price-resolver/internal/metrics"
	"price-resolver/internal/pricing"
	"price-resolver/internal/storage"
)

// GuardedRuleStore wraps a rule store with a circuit breaker and a fallback
// that converts technical failures to ErrServiceUnavailable. A business
// NotFound passes through untouched and never trips the breaker.
type GuardedRuleStore struct {
	store   storage.RuleStore
	breaker *breaker.CircuitBreaker
	metrics metrics.Recorder
	logger  zerolog.Logger
}

// NewGuardedRuleStore wires a breaker in front of the given store.
func NewGuardedRuleStore(store storage.RuleStore, cb *breaker.CircuitBreaker, recorder metrics.Recorder, logger zerolog.Logger) *GuardedRuleStore {
	return &GuardedRuleStore{
		store:   store,
		breaker: cb,
		metrics: recorder,
		logger:  logger.With().Str("component", "rule_store_guard").Logger(),
	}
}

// IsBusinessNotFound reports whether an error is the NotFound outcome, which
// the breaker must not count as a failure.
func IsBusinessNotFound(err error) bool {
	return errors.Is(err, pricing.ErrNotFound)
}

// FetchBestRule executes the store query through the circuit breaker.
func (g *GuardedRuleStore) FetchBestRule(ctx context.Context, date time.Time, productID, brandID int64) (pricing.PriceRule, error) {
	var rule pricing.PriceRule

	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		g.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeDatabaseFetch)
		fetched, fetchErr := g.store.FetchBestRule(ctx, date, productID, brandID)
		if fetchErr != nil {
			return fetchErr
		}
		rule = fetched
		return nil
	})
	if err != nil {
		return pricing.PriceRule{}, g.fallback(ctx, err)
	}

	return rule, nil
}

// fallback re-raises NotFound unchanged and degrades everything else to
// ErrServiceUnavailable.
func (g *GuardedRuleStore) fallback(ctx context.Context, err error) error {
	if IsBusinessNotFound(err) {
		return err
	}

	g.logger.Error().Err(err).Str("state", g.breaker.State().String()).Msg("rule store call failed, serving fallback")
	g.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeFallback)
	return fmt.Errorf("%w: %v", pricing.ErrServiceUnavailable, err)
}

var _ storage.RuleStore = (*GuardedRuleStore)(nil)

// Package metrics records resolution outcomes for observability.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OperationPriceDetail labels every price lookup outcome.
const OperationPriceDetail = "price-detail"

// Outcome classifies the result of an operation.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeError             Outcome = "error"
	OutcomeBadRequest        Outcome = "bad_request"
	OutcomeNotFound          Outcome = "not_found"
	OutcomeDatabaseFetch     Outcome = "database_fetch"
	OutcomeCacheInvalidation Outcome = "cache_invalidation"
	OutcomeFallback          Outcome = "fallback"
)

// Recorder accepts (operation, outcome) tuples, fire-and-forget.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic; recording failures never
//   propagate to the caller.
type Recorder interface {
	Record(ctx context.Context, operation string, outcome Outcome)
}

// recorder is the otel-backed Recorder implementation.
type recorder struct {
	requests metric.Int64Counter
}

// NewRecorder creates a Recorder emitting counters through the given meter.
func NewRecorder(meter metric.Meter) (Recorder, error) {
	requests, err := meter.Int64Counter(
		"price.requests.total",
		metric.WithDescription("Price lookup outcomes by operation and kind"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &recorder{requests: requests}, nil
}

// Record increments the outcome counter for the operation.
func (r *recorder) Record(ctx context.Context, operation string, outcome Outcome) {
	r.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", string(outcome)),
	))
}

// nopRecorder discards every event.
type nopRecorder struct{}

func (nopRecorder) Record(context.Context, string, Outcome) {}

// NewNopRecorder returns a Recorder that records nothing.
func NewNopRecorder() Recorder { return nopRecorder{} }

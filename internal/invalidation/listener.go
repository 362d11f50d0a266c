package invalidation

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"price-resolver/internal/cache"
	"price-resolver/internal/metrics"
)

// Listener drains invalidation events from the queue and clears the matching
// cache entries. Invalidation bypasses the circuit breaker entirely; it never
// touches the rule store.
type Listener struct {
	queue   *Queue
	cache   cache.PriceCache
	metrics metrics.Recorder
	logger  zerolog.Logger
	workers int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListener constructs a Listener with the given worker count.
func NewListener(queue *Queue, priceCache cache.PriceCache, recorder metrics.Recorder, workers int, logger zerolog.Logger) *Listener {
	if workers <= 0 {
		workers = 1
	}
	return &Listener{
		queue:   queue,
		cache:   priceCache,
		metrics: recorder,
		logger:  logger.With().Str("component", "invalidation_listener").Logger(),
		workers: workers,
	}
}

// Start launches the queue broker and worker goroutines.
func (l *Listener) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	l.cancel = cancel
	l.queue.Start(ctx)
	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker(ctx)
	}
	l.logger.Info().Int("workers", l.workers).Msg("invalidation listener started")
}

// Stop cancels workers and waits for them to exit.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

// worker handles events until its context is cancelled.
func (l *Listener) worker(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-l.queue.Out():
			l.handle(ctx, ev)
			l.queue.MarkProcessed()
		}
	}
}

// handle clears the cache entry for one event. A failure is reported and the
// delivery is considered lost; redelivery is the transport's concern.
func (l *Listener) handle(ctx context.Context, ev Event) {
	if err := l.cache.Invalidate(ctx, ev.Key()); err != nil {
		l.logger.Error().Err(err).
			Stringer("event_id", ev.EventID).
			Int64("product_id", ev.ProductID).
			Int64("brand_id", ev.BrandID).
			Msg("cache invalidation failed, event lost")
		return
	}

	l.logger.Info().
		Stringer("event_id", ev.EventID).
		Int64("product_id", ev.ProductID).
		Int64("brand_id", ev.BrandID).
		Time("date", ev.Date).
		Msg("cache invalidated for external price update")
	l.metrics.Record(ctx, metrics.OperationPriceDetail, metrics.OutcomeCacheInvalidation)
}

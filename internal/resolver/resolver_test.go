package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-resolver/internal/breaker"
	"price-resolver/internal/cache"
	"price-resolver/internal/metrics"
	"price-resolver/internal/pricing"
)

var errConnRefused = errors.New("connection refused")

// fakeStore serves rules from memory with the same overlap+priority selection
// as the SQL query, counting invocations.
type fakeStore struct {
	mu    sync.Mutex
	rules []pricing.PriceRule
	err   error
	calls int
}

func (f *fakeStore) FetchBestRule(_ context.Context, date time.Time, productID, brandID int64) (pricing.PriceRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.err != nil {
		return pricing.PriceRule{}, f.err
	}

	var best *pricing.PriceRule
	for i := range f.rules {
		r := f.rules[i]
		if r.ProductID != productID || r.BrandID != brandID || !r.AppliesAt(date) {
			continue
		}
		if best == nil || r.Priority > best.Priority ||
			(r.Priority == best.Priority && r.PriceList < best.PriceList) {
			best = &f.rules[i]
		}
	}
	if best == nil {
		return pricing.PriceRule{}, pricing.ErrNotFound
	}
	return *best, nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeStore) setError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// recordingMetrics captures emitted outcomes.
type recordingMetrics struct {
	mu     sync.Mutex
	events []metrics.Outcome
}

func (r *recordingMetrics) Record(_ context.Context, _ string, outcome metrics.Outcome) {
	r.mu.Lock()
	r.events = append(r.events, outcome)
	r.mu.Unlock()
}

func (r *recordingMetrics) count(outcome metrics.Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev == outcome {
			n++
		}
	}
	return n
}

func newTestBreaker() *breaker.CircuitBreaker {
	return breaker.New(breaker.Config{
		WindowSize:  4,
		FailureRate: 0.5,
		MinCalls:    2,
		CoolDown:    20 * time.Millisecond,
		IsFailure: func(err error) bool {
			return err != nil && !IsBusinessNotFound(err)
		},
	})
}

type fixture struct {
	store    *fakeStore
	breaker  *breaker.CircuitBreaker
	cache    *cache.MemoryCache
	recorder *recordingMetrics
	resolver *Resolver
}

func newFixture(rules []pricing.PriceRule) *fixture {
	store := &fakeStore{rules: rules}
	cb := newTestBreaker()
	recorder := &recordingMetrics{}
	priceCache := cache.NewMemoryCache()
	guarded := NewGuardedRuleStore(store, cb, recorder, zerolog.Nop())
	res := New(guarded, priceCache, recorder, time.Minute, zerolog.Nop())
	return &fixture{store: store, breaker: cb, cache: priceCache, recorder: recorder, resolver: res}
}

func overlappingRules() []pricing.PriceRule {
	day := time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC)
	return []pricing.PriceRule{
		{
			BrandID: 1, ProductID: 35455,
			StartDate: day.Add(9 * time.Hour), EndDate: day.Add(11 * time.Hour),
			PriceList: 1, Priority: 1,
			Amount: decimal.RequireFromString("35.50"), Currency: "EUR",
		},
		{
			BrandID: 1, ProductID: 35455,
			StartDate: day.Add(10 * time.Hour), EndDate: day.Add(12 * time.Hour),
			PriceList: 2, Priority: 2,
			Amount: decimal.RequireFromString("25.45"), Currency: "EUR",
		},
	}
}

func TestHigherPriorityWinsOnOverlap(t *testing.T) {
	f := newFixture(overlappingRules())
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	rule, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if rule.Priority != 2 {
		t.Fatalf("got priority %d, want 2", rule.Priority)
	}
	if !rule.Amount.Equal(decimal.RequireFromString("25.45")) {
		t.Fatalf("got amount %s, want 25.45", rule.Amount)
	}
}

func TestEqualPriorityIsDeterministic(t *testing.T) {
	day := time.Date(2020, 6, 14, 0, 0, 0, 0, time.UTC)
	rules := []pricing.PriceRule{
		{BrandID: 1, ProductID: 7, StartDate: day, EndDate: day.Add(24 * time.Hour), PriceList: 9, Priority: 1, Amount: decimal.New(100, -2), Currency: "EUR"},
		{BrandID: 1, ProductID: 7, StartDate: day, EndDate: day.Add(24 * time.Hour), PriceList: 3, Priority: 1, Amount: decimal.New(200, -2), Currency: "EUR"},
	}

	at := day.Add(12 * time.Hour)
	for i := 0; i < 5; i++ {
		f := newFixture(rules)
		rule, err := f.resolver.Resolve(context.Background(), at, 7, 1)
		if err != nil {
			t.Fatalf("resolve failed: %v", err)
		}
		if rule.PriceList != 3 {
			t.Fatalf("tie must break to lowest price list, got %d", rule.PriceList)
		}
	}
}

func TestInvalidArgumentIffDateAbsent(t *testing.T) {
	f := newFixture(overlappingRules())

	_, err := f.resolver.Resolve(context.Background(), time.Time{}, 35455, 1)
	if !errors.Is(err, pricing.ErrInvalidArgument) {
		t.Fatalf("zero date must fail with ErrInvalidArgument, got %v", err)
	}
	if f.store.callCount() != 0 {
		t.Fatal("invalid input must not reach the store")
	}
	if f.recorder.count(metrics.OutcomeBadRequest) != 1 {
		t.Fatal("expected one bad_request event")
	}

	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)
	if _, err := f.resolver.Resolve(context.Background(), at, 35455, 1); errors.Is(err, pricing.ErrInvalidArgument) {
		t.Fatal("present date must not fail with ErrInvalidArgument")
	}
}

func TestRepeatedResolutionsHitCache(t *testing.T) {
	f := newFixture(overlappingRules())
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		rule, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
		if err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
		if rule.PriceList != 2 {
			t.Fatalf("resolve %d returned price list %d, want 2", i, rule.PriceList)
		}
	}

	if got := f.store.callCount(); got != 1 {
		t.Fatalf("store invoked %d times across repeated resolutions, want 1", got)
	}
	if f.recorder.count(metrics.OutcomeSuccess) != 10 {
		t.Fatal("every terminal success must emit one success event")
	}
	if f.recorder.count(metrics.OutcomeDatabaseFetch) != 1 {
		t.Fatal("only the cache miss may fetch from the database")
	}
}

func TestInvalidationForcesRefetch(t *testing.T) {
	f := newFixture(overlappingRules())
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)
	key := pricing.ResolutionKey{Date: at, ProductID: 35455, BrandID: 1}

	if _, err := f.resolver.Resolve(context.Background(), at, 35455, 1); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if err := f.cache.Invalidate(context.Background(), key); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, err := f.resolver.Resolve(context.Background(), at, 35455, 1); err != nil {
		t.Fatalf("resolve after invalidation failed: %v", err)
	}

	if got := f.store.callCount(); got != 2 {
		t.Fatalf("store invoked %d times, want 2 (no stale hit survives invalidation)", got)
	}
}

func TestNotFoundPropagatesAndBreakerUnaffected(t *testing.T) {
	f := newFixture(overlappingRules())
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		_, err := f.resolver.Resolve(context.Background(), at, 99999, 1)
		if !errors.Is(err, pricing.ErrNotFound) {
			t.Fatalf("missing rule must fail with ErrNotFound, got %v", err)
		}
		if errors.Is(err, pricing.ErrServiceUnavailable) {
			t.Fatal("NotFound must never be masked as ServiceUnavailable")
		}
	}

	if f.breaker.State() != breaker.StateClosed {
		t.Fatal("NotFound outcomes must not count as breaker failures")
	}
	if f.recorder.count(metrics.OutcomeNotFound) != 10 {
		t.Fatal("every NotFound must emit one not_found event")
	}
	if f.recorder.count(metrics.OutcomeFallback) != 0 {
		t.Fatal("NotFound must not trigger the fallback")
	}
}

func TestNotFoundIsNotCached(t *testing.T) {
	f := newFixture(overlappingRules())
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := f.resolver.Resolve(context.Background(), at, 99999, 1); !errors.Is(err, pricing.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	}
	if got := f.store.callCount(); got != 3 {
		t.Fatalf("each miss must re-query the store, got %d calls", got)
	}
}

func TestTechnicalFailuresTripBreaker(t *testing.T) {
	f := newFixture(overlappingRules())
	f.store.setError(errConnRefused)
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	// Two failures meet min_calls at a 0.5 rate and open the circuit.
	for i := 0; i < 2; i++ {
		_, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
		if !errors.Is(err, pricing.ErrServiceUnavailable) {
			t.Fatalf("technical failure must surface as ErrServiceUnavailable, got %v", err)
		}
	}
	if f.breaker.State() != breaker.StateOpen {
		t.Fatalf("breaker state %s, want open", f.breaker.State())
	}

	callsWhenOpened := f.store.callCount()
	for i := 0; i < 5; i++ {
		_, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
		if !errors.Is(err, pricing.ErrServiceUnavailable) {
			t.Fatalf("open circuit must fail fast with ErrServiceUnavailable, got %v", err)
		}
	}
	if got := f.store.callCount(); got != callsWhenOpened {
		t.Fatalf("open circuit must not invoke the gateway, calls went %d -> %d", callsWhenOpened, got)
	}

	if f.recorder.count(metrics.OutcomeFallback) != 7 {
		t.Fatalf("each short-circuited or failed call emits one fallback event, got %d", f.recorder.count(metrics.OutcomeFallback))
	}
}

func TestBreakerRecoversAfterCoolDown(t *testing.T) {
	f := newFixture(overlappingRules())
	f.store.setError(errConnRefused)
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, _ = f.resolver.Resolve(context.Background(), at, 35455, 1)
	}
	if f.breaker.State() != breaker.StateOpen {
		t.Fatal("precondition: breaker open")
	}

	f.store.setError(nil)
	time.Sleep(30 * time.Millisecond)

	rule, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
	if err != nil {
		t.Fatalf("trial call after cool-down should succeed, got %v", err)
	}
	if rule.PriceList != 2 {
		t.Fatalf("got price list %d, want 2", rule.PriceList)
	}
	if f.breaker.State() != breaker.StateClosed {
		t.Fatalf("breaker state %s, want closed after successful probe", f.breaker.State())
	}
}

func TestServiceUnavailableNotCached(t *testing.T) {
	f := newFixture(overlappingRules())
	f.store.setError(errConnRefused)
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	_, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
	if !errors.Is(err, pricing.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable, got %v", err)
	}

	// Once the store heals, the next resolution must fetch the real rule.
	f.store.setError(nil)
	rule, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
	if err != nil {
		t.Fatalf("resolve after recovery failed: %v", err)
	}
	if rule.PriceList != 2 {
		t.Fatalf("got price list %d, want 2", rule.PriceList)
	}
}

func TestConcurrentMissesMayDuplicateFetches(t *testing.T) {
	f := newFixture(overlappingRules())
	at := time.Date(2020, 6, 14, 10, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rule, err := f.resolver.Resolve(context.Background(), at, 35455, 1)
			if err != nil {
				t.Errorf("concurrent resolve failed: %v", err)
				return
			}
			if rule.PriceList != 2 {
				t.Errorf("got price list %d, want 2", rule.PriceList)
			}
		}()
	}
	wg.Wait()

	// No single-flight guarantee: anywhere between 1 and 8 fetches is legal.
	if got := f.store.callCount(); got < 1 || got > 8 {
		t.Fatalf("store call count %d outside [1,8]", got)
	}
}

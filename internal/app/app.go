package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-resolver/internal/breaker"
	"price-resolver/internal/cache"
	"price-resolver/internal/config"
	"price-resolver/internal/httpapi"
	"price-resolver/internal/invalidation"
	"price-resolver/internal/metrics"
	"price-resolver/internal/resolver"
	"price-resolver/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newBreaker() *breaker.CircuitBreaker {
	cfg := a.Config.Breaker
	logger := a.Logger.With().Str("component", "breaker").Logger()
	return breaker.New(breaker.Config{
		WindowSize:          cfg.WindowSize,
		FailureRate:         cfg.FailureRate,
		MinCalls:            cfg.MinCalls,
		CoolDown:            cfg.CoolDown,
		HalfOpenMaxRequests: cfg.HalfOpenMaxRequests,
		IsFailure: func(err error) bool {
			return err != nil && !resolver.IsBusinessNotFound(err)
		},
		OnStateChange: func(from, to breaker.State) {
			logger.Warn().Stringer("from", from).Stringer("to", to).Msg("circuit state changed")
		},
	})
}

// Run starts the HTTP server, the invalidation listener, and blocks until a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := metrics.NewProvider()
	if err != nil {
		return err
	}
	defer func() { _ = provider.MeterProvider.Shutdown(context.Background()) }()

	recorder, err := metrics.NewRecorder(provider.MeterProvider.Meter("price-resolver"))
	if err != nil {
		return err
	}

	priceCache := cache.NewMemoryCache()
	guarded := resolver.NewGuardedRuleStore(store, a.newBreaker(), recorder, a.Logger)
	res := resolver.New(guarded, priceCache, recorder, a.Config.Cache.TTL, a.Logger)

	queue := invalidation.NewQueue(a.Config.Invalidation.Buffer)
	listener := invalidation.NewListener(queue, priceCache, recorder, a.Config.Invalidation.Workers, a.Logger)
	// The listener must outlive the signal context: events accepted before
	// CloseIntake still have to drain during shutdown.
	listener.Start(context.Background())
	defer listener.Stop()

	api := httpapi.NewAPI(res, queue, recorder, a.Logger)
	server := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      httpapi.NewRouter(api, provider.Handler, a.Logger),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", server.Addr).Msg("http server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down")
	queue.CloseIntake()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("server shutdown failed")
	}
	if !queue.DrainUntil(shutdownCtx) {
		a.Logger.Warn().Int("depth", queue.Depth()).Msg("invalidation queue not fully drained")
	}
	listener.Stop()

	a.Logger.Info().Msg("stopped")
	return nil
}

// ResolveOptions configure a one-shot resolution from the CLI.
type ResolveOptions struct {
	Date      time.Time
	ProductID int64
	BrandID   int64
}

// Resolve performs a single resolution against the store, without cache or
// HTTP in between.
func (a *App) Resolve(ctx context.Context, opts ResolveOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	recorder := metrics.NewNopRecorder()
	guarded := resolver.NewGuardedRuleStore(store, a.newBreaker(), recorder, a.Logger)
	res := resolver.New(guarded, cache.NewMemoryCache(), recorder, a.Config.Cache.TTL, a.Logger)

	rule, err := res.Resolve(ctx, opts.Date, opts.ProductID, opts.BrandID)
	if err != nil {
		return err
	}

	a.Logger.Info().
		Int64("product_id", rule.ProductID).
		Int64("brand_id", rule.BrandID).
		Int32("price_list", rule.PriceList).
		Int32("priority", rule.Priority).
		Str("amount", rule.Amount.String()).
		Str("currency", rule.Currency).
		Msg("resolved price")
	return nil
}

// RulesOptions configure the rules listing command.
type RulesOptions struct {
	ProductID int64
	BrandID   int64
}

// Rules lists every stored rule for a product/brand pair.
func (a *App) Rules(ctx context.Context, opts RulesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	return a.listRules(ctx, store, opts)
}

func (a *App) listRules(ctx context.Context, lister storage.RuleLister, opts RulesOptions) error {
	rules, err := lister.ListRules(ctx, opts.ProductID, opts.BrandID)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		a.Logger.Info().
			Int32("price_list", rule.PriceList).
			Int32("priority", rule.Priority).
			Time("start", rule.StartDate).
			Time("end", rule.EndDate).
			Str("amount", rule.Amount.String()).
			Str("currency", rule.Currency).
			Msg("rule")
	}
	a.Logger.Info().Int("count", len(rules)).Msg("rules listed")
	return nil
}

// Seed creates the schema and loads the canonical sample rule set.
func (a *App) Seed(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}
	if err := storage.SeedDefaultRules(ctx, store); err != nil {
		return err
	}

	a.Logger.Info().Msg("schema ensured and sample rules seeded")
	return nil
}

package cli

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcliao/flightfinder/internal/provider"
	"github.com/rcliao/flightfinder/internal/search"
	"github.com/rcliao/flightfinder/internal/skiplagged"
	"github.com/rcliao/flightfinder/internal/store"
)

// redisRetention keeps expired entries around for stale-cache fallback.
const redisRetention = 7 * 24 * time.Hour

// backends are the cache and history implementations selected by config.
type backends struct {
	cache   store.PriceCache
	history store.HistorySink
	trends  store.TrendSource
	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends uses Redis and PostgreSQL when configured and s otherwise.
func openBackends(ctx context.Context, s *store.SQLiteStore) (*backends, error) {
	b := &backends{cache: s, history: s, trends: s}
	if cfg.RedisURL != "" {
		rc, err := store.NewRedisCache(ctx, cfg.RedisURL, redisRetention)
		if err != nil {
			return nil, err
		}
		b.cache = rc
		b.closers = append(b.closers, func() { rc.Close() })
	}
	if cfg.HistoryDatabaseURL != "" {
		ph, err := store.NewPostgresHistory(ctx, cfg.HistoryDatabaseURL)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.history, b.trends = ph, ph
		b.closers = append(b.closers, ph.Close)
	}
	return b, nil
}

// newEngine wires providers from config. A missing SerpAPI key fails here,
// before any query is planned.
func newEngine(s *store.SQLiteStore, b *backends, reg prometheus.Registerer) (*search.Engine, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	primary, err := provider.NewSerpAPI(cfg.SerpAPIKey,
		provider.WithName("serpapi"), provider.WithHTTPClient(httpClient()))
	if err != nil {
		return nil, err
	}

	opts := search.ExecutorOptions{
		Primary:     primary,
		Cache:       b.cache,
		History:     b.history,
		TTL:         cfg.CacheTTL,
		Concurrency: cfg.Concurrency,
		Pacing:      cfg.APIDelay,
		MaxAttempts: cfg.MaxAttempts,
		BackoffBase: cfg.BackoffBase,
		CallTimeout: cfg.CallTimeout,
		Metrics:     search.NewMetrics(reg),
	}
	if cfg.FallbackSerpAPIKey != "" {
		fallback, err := provider.NewSerpAPI(cfg.FallbackSerpAPIKey,
			provider.WithName("serpapi-fallback"), provider.WithBaseURL(cfg.FallbackBaseURL),
			provider.WithHTTPClient(httpClient()))
		if err != nil {
			return nil, err
		}
		opts.Fallback = fallback
	}

	return search.NewEngine(search.EngineOptions{
		Executor: opts,
		Routes:   s,
		Logger:   slog.Default(),
	})
}

func httpClient() *http.Client {
	return &http.Client{Timeout: cfg.CallTimeout}
}

func skiplaggedFinder(s *store.SQLiteStore) search.TargetFinder {
	return skiplagged.NewFinder(s, slog.Default())
}

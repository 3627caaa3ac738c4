package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rcliao/flightfinder/internal/config"
	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/provider"
	"github.com/rcliao/flightfinder/internal/store"
)

// ExecutorOptions configures an Executor. Primary is required.
type ExecutorOptions struct {
	Primary  provider.Provider
	Fallback provider.Provider
	Cache    store.PriceCache
	History  store.HistorySink

	TTL         time.Duration
	Concurrency int
	// Pacing is the minimum spacing between dispatches to each provider,
	// shared by every worker.
	Pacing      time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	CallTimeout time.Duration

	Metrics *Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Executor runs query batches with bounded concurrency, cache-first lookups,
// retry with backoff, provider fallback and stale-cache degradation.
type Executor struct {
	primary  provider.Provider
	fallback provider.Provider
	cache    store.PriceCache
	history  store.HistorySink

	ttl         time.Duration
	concurrency int
	callTimeout time.Duration
	policy      RetryPolicy

	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time

	inflight singleflight.Group
}

// NewExecutor validates opts and builds an executor.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Primary == nil {
		return nil, &config.ConfigurationError{Field: "provider", Reason: "a primary provider is required"}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = config.DefaultConcurrency
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = config.DefaultMaxAttempts
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = config.DefaultCallTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = config.DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	e := &Executor{
		primary:     provider.Paced(opts.Primary, opts.Pacing),
		cache:       opts.Cache,
		history:     opts.History,
		ttl:         opts.TTL,
		concurrency: opts.Concurrency,
		callTimeout: opts.CallTimeout,
		policy: RetryPolicy{
			MaxAttempts: opts.MaxAttempts,
			BackoffBase: opts.BackoffBase,
			HasFallback: opts.Fallback != nil,
		},
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if opts.Fallback != nil {
		e.fallback = provider.Paced(opts.Fallback, opts.Pacing)
	}
	return e, nil
}

// Report is the aggregated outcome of a batch.
type Report struct {
	// Itineraries from every query that produced results, in query order.
	Itineraries []model.Itinerary
	// Failed lists queries that could not be priced and had no cached fallback.
	Failed []model.SearchQuery
	// Stale lists queries answered from an expired cache entry.
	Stale []model.SearchQuery

	Cached  int
	Fetched int
}

type outcome string

const (
	outcomeCached   outcome = "cached"
	outcomePrimary  outcome = "primary"
	outcomeFallback outcome = "fallback"
	outcomeStale    outcome = "stale"
	outcomeFailed   outcome = "failed"
)

type queryResult struct {
	itineraries []model.Itinerary
	outcome     outcome
}

// Execute runs queries and merges the results. Individual failures never
// abort the batch. If ctx is cancelled, queries that did not finish are
// reported as failed and ctx.Err() is returned with the partial report.
func (e *Executor) Execute(ctx context.Context, queries []model.SearchQuery) (*Report, error) {
	results := make([]queryResult, len(queries))
	done := make([]bool, len(queries))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for i, q := range queries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, ok := e.run(ctx, q)
			if !ok {
				return nil
			}
			mu.Lock()
			results[i], done[i] = r, true
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		Itineraries: []model.Itinerary{},
		Failed:      []model.SearchQuery{},
		Stale:       []model.SearchQuery{},
	}
	for i, q := range queries {
		if !done[i] {
			report.Failed = append(report.Failed, q)
			continue
		}
		r := results[i]
		switch r.outcome {
		case outcomeFailed:
			report.Failed = append(report.Failed, q)
		case outcomeStale:
			report.Stale = append(report.Stale, q)
		case outcomeCached:
			report.Cached++
		default:
			report.Fetched++
		}
		report.Itineraries = append(report.Itineraries, r.itineraries...)
	}
	return report, ctx.Err()
}

// run executes one query. ok is false when the caller cancelled before an
// answer was available.
func (e *Executor) run(ctx context.Context, q model.SearchQuery) (queryResult, bool) {
	key := q.Key()
	log := e.logger.With("query", q.String())

	var stale *model.CacheEntry
	if e.cache != nil {
		entry, found, err := e.cache.Get(ctx, key)
		switch {
		case err != nil:
			e.metrics.lookup("error")
			log.Warn("cache lookup failed", "error", err)
		case !found:
			e.metrics.lookup("miss")
		case entry.Fresh(e.now(), e.ttl):
			e.metrics.lookup("hit")
			e.metrics.outcome(string(outcomeCached))
			log.Debug("cache hit", "fetched_at", entry.FetchedAt)
			return queryResult{itineraries: tag(entry.Itineraries, q, entry.Provider, false), outcome: outcomeCached}, true
		default:
			e.metrics.lookup("stale")
			stale = entry
		}
	}

	// A shared fetch runs under the context of the caller that started it.
	// When that caller goes away, callers that are still live start over.
	var v any
	var err error
	for {
		var shared bool
		v, err, shared = e.inflight.Do(key, func() (any, error) {
			return e.fetch(ctx, q)
		})
		if shared {
			log.Debug("coalesced with in-flight query")
		}
		if err == nil || ctx.Err() != nil || !errors.Is(err, errAbandoned) {
			break
		}
		log.Debug("in-flight query abandoned by its caller, reissuing")
	}
	if err == nil {
		f := v.(fetched)
		out := outcomePrimary
		if f.fallback {
			out = outcomeFallback
		}
		e.metrics.outcome(string(out))
		return queryResult{itineraries: tag(f.itineraries, q, f.provider, false), outcome: out}, true
	}

	if ctx.Err() != nil {
		return queryResult{}, false
	}
	if stale != nil {
		e.metrics.outcome(string(outcomeStale))
		log.Warn("serving stale cache entry", "fetched_at", stale.FetchedAt, "error", err)
		return queryResult{itineraries: tag(stale.Itineraries, q, stale.Provider, true), outcome: outcomeStale}, true
	}
	e.metrics.outcome(string(outcomeFailed))
	log.Warn("query failed", "kind", provider.KindOf(err), "error", err)
	return queryResult{itineraries: nil, outcome: outcomeFailed}, true
}

// errAbandoned marks a fetch stopped by the cancellation of the caller that owned it.
var errAbandoned = errors.New("in-flight query abandoned")

type fetched struct {
	itineraries []model.Itinerary
	provider    string
	fallback    bool
}

// fetch drives the retry state machine for one query and, on success,
// replaces the cache entry and records history.
func (e *Executor) fetch(ctx context.Context, q model.SearchQuery) (fetched, error) {
	var a Attempt
	for {
		p := e.primary
		if a.Phase == PhaseFallbackPending {
			p = e.fallback
			e.logger.Warn("primary provider exhausted, trying fallback",
				"query", q.String(), "fallback", p.Name(), "attempts", a.Tries)
		}

		itins, err := e.call(ctx, p, q)
		a = e.policy.Transition(a, outcomeOf(ctx, err))

		switch a.Phase {
		case PhaseSucceeded:
			e.store(ctx, q, itins, p.Name())
			return fetched{itineraries: itins, provider: p.Name(), fallback: a.Fallback}, nil
		case PhaseFailed:
			if cerr := ctx.Err(); cerr != nil {
				return fetched{}, fmt.Errorf("%w: %w", errAbandoned, cerr)
			}
			return fetched{}, err
		}

		if a.Phase == PhaseRetrying {
			e.logger.Warn("retrying query", "query", q.String(), "attempt", a.Tries,
				"delay", a.Delay, "kind", provider.KindOf(err), "error", err)
		}
		if err := sleep(ctx, a.Delay); err != nil {
			return fetched{}, fmt.Errorf("%w: %w", errAbandoned, err)
		}
	}
}

func (e *Executor) call(ctx context.Context, p provider.Provider, q model.SearchQuery) ([]model.Itinerary, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	start := time.Now()
	itins, err := p.Query(callCtx, q)
	err = provider.Classify(p.Name(), err)

	result := "success"
	switch {
	case err == nil:
	case ctx.Err() != nil:
		result = "cancelled"
	default:
		if kind := provider.KindOf(err); kind != "" {
			result = string(kind)
		}
	}
	e.metrics.call(p.Name(), result, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	valid := make([]model.Itinerary, 0, len(itins))
	for _, it := range itins {
		if verr := it.Validate(); verr != nil {
			e.logger.Debug("dropping invalid itinerary", "provider", p.Name(), "error", verr)
			continue
		}
		valid = append(valid, it)
	}
	return valid, nil
}

// store writes a successful result to the cache and history. The writes
// outlive caller cancellation so completed work is never lost.
func (e *Executor) store(ctx context.Context, q model.SearchQuery, itins []model.Itinerary, providerName string) {
	ctx = context.WithoutCancel(ctx)
	if e.cache != nil {
		if err := e.cache.Put(ctx, q.Key(), itins, providerName); err != nil {
			e.logger.Warn("cache write failed", "query", q.String(), "error", err)
		}
	}
	if e.history != nil {
		if err := e.history.Record(ctx, q, itins, e.now()); err != nil {
			e.logger.Warn("history record failed", "query", q.String(), "error", err)
		}
	}
}

func outcomeOf(ctx context.Context, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case !provider.Retryable(ctx, err):
		return OutcomeFatal
	default:
		return OutcomeRetryable
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// tag copies itineraries and stamps them with the query that produced them.
func tag(itins []model.Itinerary, q model.SearchQuery, providerName string, stale bool) []model.Itinerary {
	out := make([]model.Itinerary, 0, len(itins))
	for _, it := range itins {
		c := it.Clone()
		c.Query = q
		c.BookingKind = q.Kind.BookingKind()
		c.Stale = stale
		if providerName != "" {
			c.Provider = providerName
		}
		out = append(out, c)
	}
	return out
}

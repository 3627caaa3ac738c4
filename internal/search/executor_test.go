package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/flightfinder/internal/config"
	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/provider"
)

func failing(kind provider.ErrorKind) respondFunc {
	return func(_ context.Context, q model.SearchQuery, _ int) ([]model.Itinerary, error) {
		return nil, &provider.Error{Kind: kind, Provider: "fake", Err: errors.New("boom")}
	}
}

func TestNewExecutorRequiresPrimary(t *testing.T) {
	_, err := NewExecutor(ExecutorOptions{})
	var cerr *config.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}

func TestExecuteCacheHitWithinTTL(t *testing.T) {
	primary := newFake("primary", nil)
	cache := newMemCache()
	history := &memHistory{}
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Cache: cache, History: history, TTL: time.Hour})

	q := oneWayQuery("IAD", "NBO")
	first, err := exec.Execute(context.Background(), []model.SearchQuery{q})
	require.NoError(t, err)
	second, err := exec.Execute(context.Background(), []model.SearchQuery{q})
	require.NoError(t, err)

	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, first.Fetched)
	assert.Equal(t, 1, second.Cached)
	require.Len(t, second.Itineraries, 1)
	assert.Equal(t, first.Itineraries[0].TotalPrice, second.Itineraries[0].TotalPrice)
	assert.Equal(t, "primary", second.Itineraries[0].Provider)
	assert.Equal(t, q.Key(), second.Itineraries[0].Query.Key())
	assert.Equal(t, 1, history.count())
}

func TestExecuteRefetchesAfterTTL(t *testing.T) {
	primary := newFake("primary", nil)
	cache := newMemCache()
	now := time.Now()
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Cache: cache, TTL: time.Hour, Now: func() time.Time { return now }})

	q := oneWayQuery("IAD", "NBO")
	cache.seed(q.Key(), now.Add(-2*time.Hour), "primary", priced(q, 50))

	report, err := exec.Execute(context.Background(), []model.SearchQuery{q})
	require.NoError(t, err)
	assert.Equal(t, 1, primary.Calls())
	assert.Empty(t, report.Stale)
	assert.Equal(t, model.Dollars(100), report.Itineraries[0].TotalPrice)
}

func TestExecuteFallbackAfterRetries(t *testing.T) {
	primary := newFake("primary", failing(provider.KindServerError))
	fallback := newFake("fallback", nil)
	metrics := NewMetrics(nil)
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Fallback: fallback, Cache: newMemCache(), Metrics: metrics})

	q := oneWayQuery("IAD", "NBO")
	report, err := exec.Execute(context.Background(), []model.SearchQuery{q})
	require.NoError(t, err)

	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 1, fallback.Calls())
	assert.Empty(t, report.Failed)
	require.Len(t, report.Itineraries, 1)
	assert.Equal(t, "fallback", report.Itineraries[0].Provider)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.QueryOutcomes.WithLabelValues("fallback")))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ProviderCalls.WithLabelValues("primary", "server_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProviderCalls.WithLabelValues("fallback", "success")))
}

func TestExecuteRetrySucceedsOnPrimary(t *testing.T) {
	primary := newFake("primary", func(_ context.Context, q model.SearchQuery, call int) ([]model.Itinerary, error) {
		if call < 3 {
			return nil, &provider.Error{Kind: provider.KindTimeout, Provider: "primary", Err: errors.New("slow")}
		}
		return []model.Itinerary{priced(q, 300)}, nil
	})
	fallback := newFake("fallback", nil)
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Fallback: fallback, BackoffBase: time.Millisecond})

	report, err := exec.Execute(context.Background(), []model.SearchQuery{oneWayQuery("IAD", "NBO")})
	require.NoError(t, err)
	assert.Equal(t, 3, primary.Calls())
	assert.Equal(t, 0, fallback.Calls())
	require.Len(t, report.Itineraries, 1)
	assert.Equal(t, "primary", report.Itineraries[0].Provider)
}

func TestExecuteBothProvidersFail(t *testing.T) {
	bad := oneWayQuery("IAD", "NBO")
	good := oneWayQuery("DCA", "NBO")
	respond := func(_ context.Context, q model.SearchQuery, _ int) ([]model.Itinerary, error) {
		if q.Key() == bad.Key() {
			return nil, &provider.Error{Kind: provider.KindRateLimited, Provider: "x", Err: errors.New("slow down")}
		}
		return []model.Itinerary{priced(q, 200)}, nil
	}
	primary := newFake("primary", respond)
	fallback := newFake("fallback", respond)
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Fallback: fallback, Cache: newMemCache()})

	report, err := exec.Execute(context.Background(), []model.SearchQuery{bad, good})
	require.NoError(t, err)
	assert.Equal(t, []model.SearchQuery{bad}, report.Failed)
	assert.Empty(t, report.Stale)
	require.Len(t, report.Itineraries, 1)
	assert.Equal(t, "DCA", report.Itineraries[0].OutboundLegs[0].Origin)
}

func TestExecuteServesStaleWhenAllFail(t *testing.T) {
	now := time.Now()
	cache := newMemCache()
	q := oneWayQuery("IAD", "NBO")
	cache.seed(q.Key(), now.Add(-48*time.Hour), "primary", priced(q, 999))

	exec := testExecutor(t, ExecutorOptions{
		Primary:  newFake("primary", failing(provider.KindMalformed)),
		Fallback: newFake("fallback", failing(provider.KindServerError)),
		Cache:    cache,
		Now:      func() time.Time { return now },
	})

	report, err := exec.Execute(context.Background(), []model.SearchQuery{q})
	require.NoError(t, err)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []model.SearchQuery{q}, report.Stale)
	require.Len(t, report.Itineraries, 1)
	assert.True(t, report.Itineraries[0].Stale)
	assert.Equal(t, model.Dollars(999), report.Itineraries[0].TotalPrice)
}

func TestExecuteCoalescesIdenticalInflightQueries(t *testing.T) {
	gate := make(chan struct{})
	primary := newFake("primary", func(_ context.Context, q model.SearchQuery, _ int) ([]model.Itinerary, error) {
		<-gate
		return []model.Itinerary{priced(q, 100)}, nil
	})
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Cache: newMemCache(), Concurrency: 4})

	q := oneWayQuery("IAD", "NBO")
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(gate)
	}()
	report, err := exec.Execute(context.Background(), []model.SearchQuery{q, q, q})
	require.NoError(t, err)

	assert.Equal(t, 1, primary.Calls())
	assert.Len(t, report.Itineraries, 3)
}

func TestExecuteCoalescedCallerSurvivesOwnerCancel(t *testing.T) {
	primary := newFake("primary", func(ctx context.Context, q model.SearchQuery, call int) ([]model.Itinerary, error) {
		if call == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []model.Itinerary{priced(q, 100)}, nil
	})
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Cache: newMemCache(), Concurrency: 2})
	q := oneWayQuery("IAD", "NBO")

	ownerCtx, cancelOwner := context.WithCancel(context.Background())
	defer cancelOwner()
	ownerDone := make(chan error, 1)
	go func() {
		_, err := exec.Execute(ownerCtx, []model.SearchQuery{q})
		ownerDone <- err
	}()
	require.Eventually(t, func() bool { return primary.Calls() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		report *Report
		err    error
	}
	liveDone := make(chan result, 1)
	go func() {
		r, err := exec.Execute(context.Background(), []model.SearchQuery{q})
		liveDone <- result{r, err}
	}()
	time.Sleep(50 * time.Millisecond)
	cancelOwner()

	require.ErrorIs(t, <-ownerDone, context.Canceled)
	live := <-liveDone
	require.NoError(t, live.err)
	assert.Empty(t, live.report.Failed)
	assert.Len(t, live.report.Itineraries, 1)
	assert.Equal(t, 2, primary.Calls())
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	primary := newFake("primary", func(_ context.Context, q model.SearchQuery, _ int) ([]model.Itinerary, error) {
		time.Sleep(20 * time.Millisecond)
		return []model.Itinerary{priced(q, 100)}, nil
	})
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Concurrency: 3})

	var qs []model.SearchQuery
	for _, o := range []string{"IAD", "DCA", "BWI", "JFK", "EWR", "LGA", "BOS", "PHL", "ORD", "MDW"} {
		qs = append(qs, oneWayQuery(o, "NBO"))
	}
	report, err := exec.Execute(context.Background(), qs)
	require.NoError(t, err)
	assert.Len(t, report.Itineraries, 10)
	assert.LessOrEqual(t, primary.Peak(), 3)
	assert.Equal(t, 10, primary.Calls())
}

func TestExecuteCancellationKeepsCompletedResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := oneWayQuery("IAD", "NBO")
	second := oneWayQuery("DCA", "NBO")
	primary := newFake("primary", func(ctx context.Context, q model.SearchQuery, _ int) ([]model.Itinerary, error) {
		if q.Key() == second.Key() {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []model.Itinerary{priced(q, 100)}, nil
	})
	cache := newMemCache()
	exec := testExecutor(t, ExecutorOptions{Primary: primary, Fallback: newFake("fallback", nil), Cache: cache, Concurrency: 1})

	report, err := exec.Execute(ctx, []model.SearchQuery{first, second})
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Itineraries, 1)
	assert.Equal(t, []model.SearchQuery{second}, report.Failed)
	assert.True(t, cache.has(first.Key()))
	assert.False(t, cache.has(second.Key()))
	assert.Equal(t, 2, primary.Calls(), "cancellation is not retried")
}

func TestExecuteRetagsBookingKindFromQuery(t *testing.T) {
	cache := newMemCache()
	plain := oneWayQuery("IAD", "CDG")
	cache.seed(plain.Key(), time.Now(), "primary", priced(plain, 100))

	sk := plain
	sk.Kind = model.QuerySkiplagged
	sk.IntendedDestination = "YAO"

	exec := testExecutor(t, ExecutorOptions{Primary: newFake("primary", nil), Cache: cache})
	report, err := exec.Execute(context.Background(), []model.SearchQuery{sk})
	require.NoError(t, err)
	require.Len(t, report.Itineraries, 1)
	assert.Equal(t, model.BookingSkiplagged, report.Itineraries[0].BookingKind)
	assert.Equal(t, "YAO", report.Itineraries[0].Query.IntendedDestination)
}

package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/skiplagged"
)

var (
	dec14 = model.NewDate(2026, time.December, 14)
	dec28 = model.NewDate(2026, time.December, 28)
)

type respondFunc func(ctx context.Context, q model.SearchQuery, call int) ([]model.Itinerary, error)

type fakeProvider struct {
	name    string
	respond respondFunc

	mu       sync.Mutex
	calls    map[string]int
	total    int
	inflight int
	peak     int
}

func newFake(name string, respond respondFunc) *fakeProvider {
	return &fakeProvider{name: name, respond: respond, calls: map[string]int{}}
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Query(ctx context.Context, q model.SearchQuery) ([]model.Itinerary, error) {
	f.mu.Lock()
	f.calls[q.Key()]++
	f.total++
	call := f.calls[q.Key()]
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inflight--
		f.mu.Unlock()
	}()
	if f.respond == nil {
		return []model.Itinerary{priced(q, 100)}, nil
	}
	return f.respond(ctx, q, call)
}

func (f *fakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

func (f *fakeProvider) Peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// priced returns a valid itinerary answering q: nonstop, or through the
// intended destination for skiplagged queries.
func priced(q model.SearchQuery, dollars int64) model.Itinerary {
	dep := q.DepartDate.Time().Add(8 * time.Hour)
	path := []string{q.Origin, q.Destination}
	if q.IntendedDestination != "" {
		path = []string{q.Origin, q.IntendedDestination, q.Destination}
	}
	var legs []model.FlightLeg
	for i := 1; i < len(path); i++ {
		arr := dep.Add(2 * time.Hour)
		leg, err := model.NewFlightLeg(path[i-1], path[i], "ET", "ET 50"+string(rune('0'+i)), dep, arr, 120)
		if err != nil {
			panic(err)
		}
		legs = append(legs, leg)
		dep = arr.Add(90 * time.Minute)
	}
	return model.Itinerary{
		OutboundLegs:     legs,
		TotalPrice:       model.Dollars(dollars),
		Currency:         "USD",
		BookingKind:      q.Kind.BookingKind(),
		BookingReference: "https://example.test/" + q.Route(),
	}
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]model.CacheEntry
	now     func() time.Time
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]model.CacheEntry{}, now: time.Now}
}

func (c *memCache) Get(_ context.Context, key string) (*model.CacheEntry, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	e.Itineraries = model.CloneItineraries(e.Itineraries)
	return &e, true, nil
}

func (c *memCache) Put(_ context.Context, key string, itins []model.Itinerary, provider string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = model.CacheEntry{Key: key, FetchedAt: c.now(), Itineraries: model.CloneItineraries(itins), Provider: provider}
	return nil
}

func (c *memCache) seed(key string, fetchedAt time.Time, provider string, itins ...model.Itinerary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = model.CacheEntry{Key: key, FetchedAt: fetchedAt, Itineraries: itins, Provider: provider}
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type memHistory struct {
	mu      sync.Mutex
	records []model.SearchQuery
}

func (h *memHistory) Record(_ context.Context, q model.SearchQuery, _ []model.Itinerary, _ time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, q)
	return nil
}

func (h *memHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

type fakeTargets map[string][]string

func (f fakeTargets) BuildTargets(_ context.Context, origin, intended string) []skiplagged.Candidate {
	var out []skiplagged.Candidate
	for _, d := range f[intended] {
		if d == origin {
			continue
		}
		out = append(out, skiplagged.Candidate{Origin: origin, IntendedDestination: intended, OnwardDestination: d})
	}
	return out
}

func oneWayQuery(origin, dest string) model.SearchQuery {
	return model.SearchQuery{Origin: origin, Destination: dest, DepartDate: dec14, Kind: model.QueryOneWay}
}

func testExecutor(t *testing.T, opts ExecutorOptions) *Executor {
	t.Helper()
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	e, err := NewExecutor(opts)
	require.NoError(t, err)
	return e
}

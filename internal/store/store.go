// Package store provides the route graph, price cache and history storage
// contracts and their SQLite, Redis and PostgreSQL implementations.
package store

import (
	"context"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
)

// RouteStore is the cataloged airline city-pair graph.
type RouteStore interface {
	// DestinationsFrom returns the distinct destinations of every cataloged route
	// departing airport. An airport with no routes yields an empty slice.
	DestinationsFrom(ctx context.Context, airport string) ([]string, error)
}

// PriceCache stores prior query results. It never expires entries itself;
// freshness is decided by the caller from CacheEntry.FetchedAt.
type PriceCache interface {
	// Get returns the entry for key; ok is false when none exists.
	Get(ctx context.Context, key string) (entry *model.CacheEntry, ok bool, err error)

	// Put replaces the entry for key with itineraries fetched now.
	Put(ctx context.Context, key string, itineraries []model.Itinerary, provider string) error
}

// HistorySink receives every successful query result for later trend queries.
// It is write-only from the search pipeline's point of view.
type HistorySink interface {
	Record(ctx context.Context, q model.SearchQuery, itineraries []model.Itinerary, fetchedAt time.Time) error
}

// SearchRecord describes one user search invocation.
type SearchRecord struct {
	Origins     []string
	Destination string
	DepartDate  string
	ReturnDate  string
	ParamsJSON  string
}

// TrendPoint aggregates the prices observed for a route on one day.
type TrendPoint struct {
	Day     string      `json:"day"`
	Min     model.Money `json:"min"`
	Avg     model.Money `json:"avg"`
	Max     model.Money `json:"max"`
	Samples int         `json:"samples"`
}

// TrendParams selects the prices aggregated by PriceTrend.
type TrendParams struct {
	Origin      string
	Destination string
	BookingKind string
	Since       time.Time
}

// TrendSource answers price trend queries over recorded history.
type TrendSource interface {
	PriceTrend(ctx context.Context, p TrendParams) ([]TrendPoint, error)
}

var (
	_ RouteStore  = (*SQLiteStore)(nil)
	_ PriceCache  = (*SQLiteStore)(nil)
	_ HistorySink = (*SQLiteStore)(nil)
	_ TrendSource = (*SQLiteStore)(nil)
	_ PriceCache  = (*RedisCache)(nil)
	_ HistorySink = (*PostgresHistory)(nil)
	_ TrendSource = (*PostgresHistory)(nil)
)

// Package skiplagged discovers hidden-city fare candidates from the route graph
// and validates that priced itineraries really connect through the intended city.
package skiplagged

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/store"
)

// Candidate is one derived query target: fly origin to OnwardDestination,
// leave the trip at IntendedDestination.
type Candidate struct {
	Origin              string
	IntendedDestination string
	OnwardDestination   string
}

// Finder walks the route graph for onward cities.
type Finder struct {
	routes store.RouteStore
	logger *slog.Logger
}

// NewFinder creates a finder over routes. A nil logger means slog.Default().
func NewFinder(routes store.RouteStore, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finder{routes: routes, logger: logger}
}

// FindOnwardDestinations returns every distinct airport reachable by a
// cataloged route departing city, sorted. No routes is an empty result; a
// storage failure is logged and also treated as empty.
func (f *Finder) FindOnwardDestinations(ctx context.Context, city string) []string {
	city = model.NormalizeAirport(city)
	if f.routes == nil || city == "" {
		return []string{}
	}
	dests, err := f.routes.DestinationsFrom(ctx, city)
	if err != nil {
		f.logger.Warn("route graph lookup failed", "airport", city, "error", err)
		return []string{}
	}

	seen := make(map[string]bool, len(dests))
	out := make([]string, 0, len(dests))
	for _, d := range dests {
		d = model.NormalizeAirport(d)
		if d == "" || d == city || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// BuildTargets returns one candidate per onward destination of intended.
// Onward cities equal to origin are skipped; that trip would end where it began.
func (f *Finder) BuildTargets(ctx context.Context, origin, intended string) []Candidate {
	origin = model.NormalizeAirport(origin)
	intended = model.NormalizeAirport(intended)

	onward := f.FindOnwardDestinations(ctx, intended)
	out := make([]Candidate, 0, len(onward))
	for _, dest := range onward {
		if dest == origin {
			continue
		}
		out = append(out, Candidate{
			Origin:              origin,
			IntendedDestination: intended,
			OnwardDestination:   dest,
		})
	}
	return out
}

// IsHiddenCityConnection reports whether intended appears strictly between
// the first and last airport of path, compared case-insensitively.
func IsHiddenCityConnection(path []string, intended string) bool {
	if len(path) < 3 {
		return false
	}
	intended = model.NormalizeAirport(intended)
	if intended == "" {
		return false
	}
	for _, a := range path[1 : len(path)-1] {
		if model.NormalizeAirport(a) == intended {
			return true
		}
	}
	return false
}

// Package compare filters, combines and ranks priced itineraries. Every
// function is pure: inputs are never modified and results are new slices.
package compare

import (
	"sort"
	"strings"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/skiplagged"
)

func filter(itins []model.Itinerary, keep func(model.Itinerary) bool) []model.Itinerary {
	out := make([]model.Itinerary, 0, len(itins))
	for _, it := range itins {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

// FilterByMaxPrice keeps itineraries priced at or below max.
func FilterByMaxPrice(itins []model.Itinerary, max model.Money) []model.Itinerary {
	return filter(itins, func(it model.Itinerary) bool { return it.TotalPrice <= max })
}

// FilterByMaxStops keeps itineraries with at most max outbound connections.
func FilterByMaxStops(itins []model.Itinerary, max int) []model.Itinerary {
	return filter(itins, func(it model.Itinerary) bool { return it.StopsOutbound() <= max })
}

// FilterByMaxReturnStops keeps itineraries with at most max return
// connections. Itineraries without a return direction pass.
func FilterByMaxReturnStops(itins []model.Itinerary, max int) []model.Itinerary {
	return filter(itins, func(it model.Itinerary) bool {
		stops, ok := it.StopsReturn()
		return !ok || stops <= max
	})
}

// FilterByAirlines drops itineraries where any leg is flown by an excluded carrier.
func FilterByAirlines(itins []model.Itinerary, excluded []string) []model.Itinerary {
	set := normalizeSet(excluded)
	if len(set) == 0 {
		return filter(itins, func(model.Itinerary) bool { return true })
	}
	return filter(itins, func(it model.Itinerary) bool {
		for _, c := range it.Carriers() {
			if _, ok := set[strings.ToUpper(c)]; ok {
				return false
			}
		}
		return true
	})
}

// FilterIncludeAirlines keeps itineraries whose every leg is flown by an included carrier.
func FilterIncludeAirlines(itins []model.Itinerary, included []string) []model.Itinerary {
	set := normalizeSet(included)
	if len(set) == 0 {
		return filter(itins, func(model.Itinerary) bool { return true })
	}
	return filter(itins, func(it model.Itinerary) bool {
		for _, c := range it.Carriers() {
			if _, ok := set[strings.ToUpper(c)]; !ok {
				return false
			}
		}
		return true
	})
}

// FilterByLayover drops itineraries with any connection shorter than min or
// longer than max. A max of zero leaves connections unbounded above.
func FilterByLayover(itins []model.Itinerary, min, max time.Duration) []model.Itinerary {
	ok := func(legs []model.FlightLeg) bool {
		for _, gap := range layovers(legs) {
			if gap < min || (max > 0 && gap > max) {
				return false
			}
		}
		return true
	}
	return filter(itins, func(it model.Itinerary) bool {
		return ok(it.OutboundLegs) && ok(it.ReturnLegs)
	})
}

// FilterMaxDuration drops itineraries where either direction takes longer
// than max, connections included.
func FilterMaxDuration(itins []model.Itinerary, max time.Duration) []model.Itinerary {
	return filter(itins, func(it model.Itinerary) bool {
		return travelTime(it.OutboundLegs) <= max && travelTime(it.ReturnLegs) <= max
	})
}

// FilterAvoidConnections drops itineraries that connect through any of the
// given airports. On a skiplagged itinerary the deplaning point still counts,
// but connections after it are never flown and are exempt.
func FilterAvoidConnections(itins []model.Itinerary, airports []string) []model.Itinerary {
	set := normalizeSet(airports)
	if len(set) == 0 {
		return filter(itins, func(model.Itinerary) bool { return true })
	}
	hits := func(path []string, deplane string) bool {
		if len(path) < 3 {
			return false
		}
		for _, a := range path[1 : len(path)-1] {
			if _, ok := set[a]; ok {
				return true
			}
			if a == deplane {
				// the traveler leaves here; later connections are never flown
				return false
			}
		}
		return false
	}
	return filter(itins, func(it model.Itinerary) bool {
		return !hits(it.OutboundPath(), it.DeplaneAt) && !hits(it.ReturnPath(), "")
	})
}

// SortByPrice orders itineraries by ascending price, then fewer total stops,
// then earliest departure. The sort is stable.
func SortByPrice(itins []model.Itinerary) []model.Itinerary {
	out := append([]model.Itinerary(nil), itins...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalPrice != b.TotalPrice {
			return a.TotalPrice < b.TotalPrice
		}
		if a.TotalStops() != b.TotalStops() {
			return a.TotalStops() < b.TotalStops()
		}
		return a.Departure().Before(b.Departure())
	})
	return out
}

// TopN returns the first n itineraries, or all of them when fewer remain.
// Callers sort first. A non-positive n returns everything.
func TopN(itins []model.Itinerary, n int) []model.Itinerary {
	if n <= 0 || n >= len(itins) {
		return append([]model.Itinerary(nil), itins...)
	}
	return append([]model.Itinerary(nil), itins[:n]...)
}

// Dedup collapses itineraries flying the same legs under the same booking
// kind, keeping the cheapest. First-seen order is preserved.
func Dedup(itins []model.Itinerary) []model.Itinerary {
	index := make(map[string]int, len(itins))
	out := make([]model.Itinerary, 0, len(itins))
	for _, it := range itins {
		key := itineraryKey(it)
		if i, ok := index[key]; ok {
			if it.TotalPrice < out[i].TotalPrice {
				out[i] = it
			}
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}

func itineraryKey(it model.Itinerary) string {
	var b strings.Builder
	b.WriteString(string(it.BookingKind))
	writeLegs := func(legs []model.FlightLeg) {
		for _, l := range legs {
			b.WriteString("|")
			b.WriteString(strings.ToUpper(l.Carrier + l.FlightNumber + l.Origin + l.Destination))
			b.WriteString(l.Departure.Format(time.RFC3339))
		}
	}
	writeLegs(it.OutboundLegs)
	b.WriteString("/")
	writeLegs(it.ReturnLegs)
	return b.String()
}

// ValidateSkiplagged drops skiplagged itineraries whose outbound path does not
// connect through the intended destination, and marks the deplaning point on
// the rest. Other itineraries pass unchanged.
func ValidateSkiplagged(itins []model.Itinerary) []model.Itinerary {
	out := make([]model.Itinerary, 0, len(itins))
	for _, it := range itins {
		if !it.IsSkiplagged() {
			out = append(out, it)
			continue
		}
		intended := it.Query.IntendedDestination
		if intended == "" {
			intended = it.DeplaneAt
		}
		if !skiplagged.IsHiddenCityConnection(it.OutboundPath(), intended) {
			continue
		}
		it.DeplaneAt = model.NormalizeAirport(intended)
		out = append(out, it)
	}
	return out
}

func normalizeSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func layovers(legs []model.FlightLeg) []time.Duration {
	if len(legs) < 2 {
		return nil
	}
	out := make([]time.Duration, 0, len(legs)-1)
	for i := 1; i < len(legs); i++ {
		out = append(out, legs[i].Departure.Sub(legs[i-1].Arrival))
	}
	return out
}

func travelTime(legs []model.FlightLeg) time.Duration {
	total := time.Duration(model.DurationMinutes(legs)) * time.Minute
	for _, gap := range layovers(legs) {
		total += gap
	}
	return total
}

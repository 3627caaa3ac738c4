package compare

import (
	"sort"

	"github.com/rcliao/flightfinder/internal/model"
)

// CombineOneWays builds a two-one-ways composite: a's outbound legs out,
// b's outbound legs back, priced at the exact sum of both. A skiplagged
// outbound half keeps the composite skiplagged.
func CombineOneWays(a, b model.Itinerary) model.Itinerary {
	kind := model.BookingTwoOneWays
	if a.IsSkiplagged() {
		kind = model.BookingSkiplagged
	}
	provider := a.Provider
	if b.Provider != a.Provider {
		provider = a.Provider + "|" + b.Provider
	}
	q := a.Query
	q.ReturnDate = model.DatePtr(b.Query.DepartDate)
	q.PairDate = nil

	return model.Itinerary{
		OutboundLegs:     append([]model.FlightLeg(nil), a.OutboundLegs...),
		ReturnLegs:       append([]model.FlightLeg{}, b.OutboundLegs...),
		TotalPrice:       a.TotalPrice + b.TotalPrice,
		Currency:         a.Currency,
		BookingKind:      kind,
		BookingReference: a.BookingReference + "|" + b.BookingReference,
		Provider:         provider,
		Stale:            a.Stale || b.Stale,
		DeplaneAt:        a.DeplaneAt,
		Query:            q,
	}
}

// Pairable reports whether out and in are the two halves of the same trip:
// opposite airports and matching trip dates.
func Pairable(out, in model.Itinerary) bool {
	if out.Query.Kind == model.QueryInboundOneWay || in.Query.Kind != model.QueryInboundOneWay {
		return false
	}
	dest := out.Query.Destination
	if out.IsSkiplagged() {
		dest = out.Query.IntendedDestination
	}
	if model.NormalizeAirport(out.Query.Origin) != model.NormalizeAirport(in.Query.Destination) ||
		model.NormalizeAirport(dest) != model.NormalizeAirport(in.Query.Origin) {
		return false
	}
	if out.Currency != in.Currency {
		return false
	}
	return sameDate(out.Query.PairDate, in.Query.DepartDate) && sameDate(in.Query.PairDate, out.Query.DepartDate)
}

func sameDate(p *model.Date, d model.Date) bool {
	return p != nil && p.String() == d.String()
}

// PairOneWays combines outbound-only and inbound-only halves into composites.
// Every eligible pair of the Cartesian product is considered in ascending
// combined price and taken greedily, so no half appears in two composites.
func PairOneWays(outbound, inbound []model.Itinerary) []model.Itinerary {
	type pair struct {
		i, j  int
		price model.Money
	}
	var pairs []pair
	for i, a := range outbound {
		for j, b := range inbound {
			if Pairable(a, b) {
				pairs = append(pairs, pair{i: i, j: j, price: a.TotalPrice + b.TotalPrice})
			}
		}
	}
	sort.SliceStable(pairs, func(x, y int) bool { return pairs[x].price < pairs[y].price })

	usedOut := make([]bool, len(outbound))
	usedIn := make([]bool, len(inbound))
	out := make([]model.Itinerary, 0, min(len(outbound), len(inbound)))
	for _, p := range pairs {
		if usedOut[p.i] || usedIn[p.j] {
			continue
		}
		usedOut[p.i], usedIn[p.j] = true, true
		out = append(out, CombineOneWays(outbound[p.i], inbound[p.j]))
	}
	return out
}

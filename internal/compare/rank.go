package compare

import (
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
)

// ErrNoResults matches any *NoResultsError.
var ErrNoResults = errors.New("no itineraries match the constraints")

// NoResultsError is returned when filtering leaves nothing. Cheapest is the
// cheapest option before filtering, nil when there was none at all.
type NoResultsError struct {
	Cheapest *model.Itinerary
}

func (e *NoResultsError) Error() string {
	if e.Cheapest == nil {
		return ErrNoResults.Error()
	}
	return fmt.Sprintf("%s; cheapest unfiltered option is %s %s", ErrNoResults, e.Cheapest.TotalPrice, e.Cheapest.Currency)
}

func (e *NoResultsError) Is(target error) bool { return target == ErrNoResults }

// Constraints are the user filters applied during ranking. Zero values disable
// a constraint, except where a pointer is used to distinguish zero from unset.
type Constraints struct {
	MaxPrice         model.Money
	MaxStops         *int
	MaxReturnStops   *int
	ExcludeAirlines  []string
	IncludeAirlines  []string
	MinLayover       time.Duration
	MaxLayover       time.Duration
	MaxDuration      time.Duration
	AvoidConnections []string
	TopN             int
}

// Apply runs every enabled filter over itins.
func (c Constraints) Apply(itins []model.Itinerary) []model.Itinerary {
	out := itins
	if c.MaxPrice > 0 {
		out = FilterByMaxPrice(out, c.MaxPrice)
	}
	if c.MaxStops != nil {
		out = FilterByMaxStops(out, *c.MaxStops)
	}
	if c.MaxReturnStops != nil {
		out = FilterByMaxReturnStops(out, *c.MaxReturnStops)
	}
	out = FilterByAirlines(out, c.ExcludeAirlines)
	out = FilterIncludeAirlines(out, c.IncludeAirlines)
	if c.MinLayover > 0 || c.MaxLayover > 0 {
		out = FilterByLayover(out, c.MinLayover, c.MaxLayover)
	}
	if c.MaxDuration > 0 {
		out = FilterMaxDuration(out, c.MaxDuration)
	}
	return FilterAvoidConnections(out, c.AvoidConnections)
}

// applyHalf filters one half of a two-one-ways trip before pairing. Price is
// left for the composite; a return half's own outbound direction is the
// trip's return direction.
func (c Constraints) applyHalf(itins []model.Itinerary, isReturn bool) []model.Itinerary {
	half := c
	half.MaxPrice = 0
	half.MaxReturnStops = nil
	if isReturn {
		half.MaxStops = c.MaxReturnStops
	}
	return half.Apply(itins)
}

// Rank turns the raw executor output into the ranked result list. For a
// return trip the candidates are round-trip fares and paired one-way halves;
// for a one-way trip they are one-way and skiplagged fares. Invalid
// skiplagged itineraries never enter ranking. When nothing survives the
// constraints a *NoResultsError is returned.
func Rank(itins []model.Itinerary, c Constraints, returnTrip bool) ([]model.Itinerary, error) {
	valid := ValidateSkiplagged(itins)

	var candidates, unfiltered []model.Itinerary
	if returnTrip {
		var roundTrips, outbound, inbound []model.Itinerary
		for _, it := range valid {
			switch it.Query.Kind {
			case model.QueryRoundTrip:
				roundTrips = append(roundTrips, it)
			case model.QueryOutboundOneWay, model.QuerySkiplagged:
				outbound = append(outbound, it)
			case model.QueryInboundOneWay:
				inbound = append(inbound, it)
			}
		}
		paired := PairOneWays(c.applyHalf(outbound, false), c.applyHalf(inbound, true))
		candidates = append(c.Apply(roundTrips), c.Apply(paired)...)
		unfiltered = append(append([]model.Itinerary(nil), roundTrips...), PairOneWays(outbound, inbound)...)
	} else {
		for _, it := range valid {
			if it.Query.Kind == model.QueryOneWay || it.Query.Kind == model.QuerySkiplagged {
				candidates = append(candidates, it)
			}
		}
		unfiltered = candidates
		candidates = c.Apply(candidates)
	}

	ranked := SortByPrice(Dedup(candidates))
	if len(ranked) == 0 {
		nerr := &NoResultsError{}
		if all := SortByPrice(unfiltered); len(all) > 0 {
			cheapest := all[0].Clone()
			nerr.Cheapest = &cheapest
		}
		return []model.Itinerary{}, nerr
	}
	return TopN(ranked, c.TopN), nil
}

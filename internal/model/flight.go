// Package model defines the core flight search data types.
package model

import (
	"fmt"
	"strings"
	"time"
)

// BookingKind describes how an itinerary is ticketed.
type BookingKind string

const (
	BookingOneWay     BookingKind = "one-way"
	BookingRoundTrip  BookingKind = "round-trip"
	BookingTwoOneWays BookingKind = "two-oneways"
	BookingSkiplagged BookingKind = "skiplagged"
)

// ValidBookingKinds are the booking kinds accepted on the JSON interface.
var ValidBookingKinds = map[BookingKind]bool{
	BookingOneWay:     true,
	BookingRoundTrip:  true,
	BookingTwoOneWays: true,
	BookingSkiplagged: true,
}

// SkiplaggedWarning is attached to every skiplagged itinerary on output.
const SkiplaggedWarning = "hidden-city ticket: deplane at the connection, carry-on only, do not book a return on the same ticket; airlines may penalize this practice"

// FlightLeg is one physical flight segment (one takeoff and landing).
type FlightLeg struct {
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	Carrier         string    `json:"airline"`
	FlightNumber    string    `json:"flight_number"`
	Departure       time.Time `json:"departure"`
	Arrival         time.Time `json:"arrival"`
	DurationMinutes int       `json:"duration_minutes"`
}

// NewFlightLeg normalizes airport codes and checks the leg's time ordering.
func NewFlightLeg(origin, destination, carrier, flightNumber string, departure, arrival time.Time, durationMinutes int) (FlightLeg, error) {
	leg := FlightLeg{
		Origin:          NormalizeAirport(origin),
		Destination:     NormalizeAirport(destination),
		Carrier:         strings.TrimSpace(carrier),
		FlightNumber:    strings.TrimSpace(flightNumber),
		Departure:       departure,
		Arrival:         arrival,
		DurationMinutes: durationMinutes,
	}
	if leg.DurationMinutes <= 0 && arrival.After(departure) {
		leg.DurationMinutes = int(arrival.Sub(departure).Minutes())
	}
	if err := leg.Validate(); err != nil {
		return FlightLeg{}, err
	}
	return leg, nil
}

// Validate reports whether the leg has airports and departs before it arrives.
func (l FlightLeg) Validate() error {
	if l.Origin == "" || l.Destination == "" {
		return fmt.Errorf("leg %s %s: missing airport", l.Carrier, l.FlightNumber)
	}
	if !l.Departure.Before(l.Arrival) {
		return fmt.Errorf("leg %s->%s: departure %s not before arrival %s",
			l.Origin, l.Destination, l.Departure.Format(time.RFC3339), l.Arrival.Format(time.RFC3339))
	}
	return nil
}

// Itinerary is one priced option returned by a provider, or a composite built from two of them.
type Itinerary struct {
	OutboundLegs     []FlightLeg
	ReturnLegs       []FlightLeg // nil when the itinerary has no return direction
	TotalPrice       Money
	Currency         string
	BookingKind      BookingKind
	BookingReference string
	Provider         string
	Stale            bool
	DeplaneAt        string // skiplagged only: the hidden-city connection the traveler leaves at

	// Query is the search query that produced the itinerary. Not serialized.
	Query SearchQuery
}

// StopsOutbound is the number of connections on the outbound direction.
func (it Itinerary) StopsOutbound() int {
	if len(it.OutboundLegs) == 0 {
		return 0
	}
	return len(it.OutboundLegs) - 1
}

// StopsReturn is the number of connections on the return direction; ok is false without a return.
func (it Itinerary) StopsReturn() (stops int, ok bool) {
	if it.ReturnLegs == nil {
		return 0, false
	}
	return len(it.ReturnLegs) - 1, true
}

// TotalStops sums outbound and return connections.
func (it Itinerary) TotalStops() int {
	ret, _ := it.StopsReturn()
	return it.StopsOutbound() + ret
}

// HasReturn reports whether a return direction is present.
func (it Itinerary) HasReturn() bool { return it.ReturnLegs != nil }

// IsSkiplagged reports whether the itinerary is a hidden-city option.
func (it Itinerary) IsSkiplagged() bool { return it.BookingKind == BookingSkiplagged }

// Departure is the first outbound departure, or the zero time for an empty itinerary.
func (it Itinerary) Departure() time.Time {
	if len(it.OutboundLegs) == 0 {
		return time.Time{}
	}
	return it.OutboundLegs[0].Departure
}

// OutboundPath lists the outbound airports in travel order: origin, connections, final destination.
func (it Itinerary) OutboundPath() []string {
	return legPath(it.OutboundLegs)
}

// ReturnPath is OutboundPath for the return direction.
func (it Itinerary) ReturnPath() []string {
	return legPath(it.ReturnLegs)
}

func legPath(legs []FlightLeg) []string {
	if len(legs) == 0 {
		return nil
	}
	path := make([]string, 0, len(legs)+1)
	path = append(path, legs[0].Origin)
	for _, l := range legs {
		path = append(path, l.Destination)
	}
	return path
}

// Carriers returns every carrier code flown, in leg order, outbound first.
func (it Itinerary) Carriers() []string {
	out := make([]string, 0, len(it.OutboundLegs)+len(it.ReturnLegs))
	for _, l := range it.OutboundLegs {
		out = append(out, l.Carrier)
	}
	for _, l := range it.ReturnLegs {
		out = append(out, l.Carrier)
	}
	return out
}

// DurationMinutes is the summed leg duration for one direction, connections excluded.
func DurationMinutes(legs []FlightLeg) int {
	total := 0
	for _, l := range legs {
		total += l.DurationMinutes
	}
	return total
}

// Warning is the non-silent caveat surfaced for skiplagged itineraries, empty otherwise.
func (it Itinerary) Warning() string {
	if !it.IsSkiplagged() {
		return ""
	}
	if it.DeplaneAt != "" {
		return "deplane at " + it.DeplaneAt + ": " + SkiplaggedWarning
	}
	return SkiplaggedWarning
}

// Validate checks the itinerary invariants: non-empty outbound, valid legs,
// and contiguous legs within each direction.
func (it Itinerary) Validate() error {
	if len(it.OutboundLegs) == 0 {
		return fmt.Errorf("itinerary has no outbound legs")
	}
	if err := validateDirection("outbound", it.OutboundLegs); err != nil {
		return err
	}
	if it.ReturnLegs != nil {
		if len(it.ReturnLegs) == 0 {
			return fmt.Errorf("itinerary return direction is present but empty")
		}
		if err := validateDirection("return", it.ReturnLegs); err != nil {
			return err
		}
	}
	if it.TotalPrice < 0 {
		return fmt.Errorf("itinerary price %s is negative", it.TotalPrice)
	}
	return nil
}

func validateDirection(name string, legs []FlightLeg) error {
	for i, l := range legs {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("%s leg %d: %w", name, i, err)
		}
		if i > 0 && legs[i-1].Destination != l.Origin {
			return fmt.Errorf("%s legs not contiguous: %s then %s", name, legs[i-1].Destination, l.Origin)
		}
	}
	return nil
}

// Clone returns a copy whose leg slices do not alias the receiver's.
func (it Itinerary) Clone() Itinerary {
	c := it
	c.OutboundLegs = append([]FlightLeg(nil), it.OutboundLegs...)
	if it.ReturnLegs != nil {
		c.ReturnLegs = append([]FlightLeg{}, it.ReturnLegs...)
	}
	c.Query = it.Query.clone()
	return c
}

// CloneItineraries copies a slice of itineraries.
func CloneItineraries(in []Itinerary) []Itinerary {
	if in == nil {
		return nil
	}
	out := make([]Itinerary, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}

// RouteEdge is one cataloged carrier city-pair.
type RouteEdge struct {
	Carrier     string    `json:"airline_code"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	LastUpdated time.Time `json:"last_updated"`
}

// CacheEntry is a prior query result. Entries are replaced, never mutated.
type CacheEntry struct {
	Key         string      `json:"key"`
	FetchedAt   time.Time   `json:"fetched_at"`
	Itineraries []Itinerary `json:"itineraries"`
	Provider    string      `json:"provider"`
}

// Fresh reports whether the entry is within ttl of now.
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) <= ttl
}

// NormalizeAirport uppercases and trims an IATA code.
func NormalizeAirport(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

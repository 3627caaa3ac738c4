package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar day with no time zone.
type Date struct {
	t time.Time
}

// NewDate builds a Date from its parts.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{t: t}, nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// AddDays shifts the date by n days (negative moves back).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// DaysUntil returns the number of days from d to o.
func (d Date) DaysUntil(o Date) int { return int(o.t.Sub(d.t).Hours() / 24) }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	p, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// QueryKind is the shape of one atomic provider query.
type QueryKind string

// Kinds are listed in matrix emission order.
const (
	QueryRoundTrip      QueryKind = "round_trip"
	QueryOutboundOneWay QueryKind = "outbound_oneway"
	QueryInboundOneWay  QueryKind = "return_oneway"
	QueryOneWay         QueryKind = "oneway"
	QuerySkiplagged     QueryKind = "skiplagged"
)

// BookingKind is the booking kind of results produced by a query of this kind.
func (k QueryKind) BookingKind() BookingKind {
	switch k {
	case QueryRoundTrip:
		return BookingRoundTrip
	case QuerySkiplagged:
		return BookingSkiplagged
	default:
		return BookingOneWay
	}
}

// SearchQuery is one atomic request unit sent to a provider.
type SearchQuery struct {
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DepartDate  Date      `json:"depart_date"`
	ReturnDate  *Date     `json:"return_date,omitempty"`
	Kind        QueryKind `json:"kind"`
	Cabin       string    `json:"cabin,omitempty"`

	// IntendedDestination is where a skiplagged traveler actually deplanes.
	IntendedDestination string `json:"intended_destination,omitempty"`

	// PairDate is the date of the opposite direction of the trip for one-way
	// halves (outbound halves carry the trip's return date and vice versa).
	PairDate *Date `json:"pair_date,omitempty"`
}

// Key identifies the query for caching and deduplication. Booking kind is
// implied by the presence of a return date.
func (q SearchQuery) Key() string {
	ret := ""
	if q.ReturnDate != nil {
		ret = q.ReturnDate.String()
	}
	return strings.Join([]string{
		NormalizeAirport(q.Origin),
		NormalizeAirport(q.Destination),
		q.DepartDate.String(),
		ret,
		strings.ToLower(q.Cabin),
	}, "|")
}

// Route is the "ORIGIN-DEST" label used in history records.
func (q SearchQuery) Route() string {
	return NormalizeAirport(q.Origin) + "-" + NormalizeAirport(q.Destination)
}

// IsRoundTrip reports whether the query asks for a round-trip fare.
func (q SearchQuery) IsRoundTrip() bool { return q.ReturnDate != nil }

func (q SearchQuery) String() string {
	s := fmt.Sprintf("%s %s->%s %s", q.Kind, q.Origin, q.Destination, q.DepartDate)
	if q.ReturnDate != nil {
		s += "/" + q.ReturnDate.String()
	}
	if q.IntendedDestination != "" {
		s += " via " + q.IntendedDestination
	}
	return s
}

func (q SearchQuery) clone() SearchQuery {
	c := q
	if q.ReturnDate != nil {
		d := *q.ReturnDate
		c.ReturnDate = &d
	}
	if q.PairDate != nil {
		d := *q.PairDate
		c.PairDate = &d
	}
	return c
}

// DatePtr returns a pointer to a copy of d.
func DatePtr(d Date) *Date { return &d }

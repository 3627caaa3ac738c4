package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func leg(t *testing.T, from, to string, dep time.Time, hours int) FlightLeg {
	t.Helper()
	l, err := NewFlightLeg(from, to, "ET", "ET500", dep, dep.Add(time.Duration(hours)*time.Hour), 0)
	if err != nil {
		t.Fatalf("new leg: %v", err)
	}
	return l
}

func TestNewFlightLegValidation(t *testing.T) {
	dep := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	if _, err := NewFlightLeg("jfk", "add", "ET", "ET509", dep, dep, 0); err == nil {
		t.Error("expected error when departure equals arrival")
	}
	l, err := NewFlightLeg(" jfk", "add ", "ET", "ET509", dep, dep.Add(13*time.Hour), 0)
	if err != nil {
		t.Fatalf("new leg: %v", err)
	}
	if l.Origin != "JFK" || l.Destination != "ADD" {
		t.Errorf("expected normalized codes, got %s->%s", l.Origin, l.Destination)
	}
	if l.DurationMinutes != 13*60 {
		t.Errorf("expected duration derived from times, got %d", l.DurationMinutes)
	}
}

func TestItineraryStopsAndPath(t *testing.T) {
	dep := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	it := Itinerary{
		OutboundLegs: []FlightLeg{
			leg(t, "JFK", "ADD", dep, 13),
			leg(t, "ADD", "YAO", dep.Add(15*time.Hour), 5),
		},
		TotalPrice: Dollars(1200),
	}
	if it.StopsOutbound() != 1 {
		t.Errorf("expected 1 outbound stop, got %d", it.StopsOutbound())
	}
	if _, ok := it.StopsReturn(); ok {
		t.Error("expected no return stops without return legs")
	}
	if got := strings.Join(it.OutboundPath(), ","); got != "JFK,ADD,YAO" {
		t.Errorf("unexpected path %s", got)
	}
	if err := it.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	broken := it.Clone()
	broken.OutboundLegs[1].Origin = "NBO"
	if err := broken.Validate(); err == nil {
		t.Error("expected contiguity error")
	}
	if it.OutboundLegs[1].Origin != "ADD" {
		t.Error("clone must not alias the original legs")
	}
}

func TestItineraryJSONRoundTrip(t *testing.T) {
	dep := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	ret := time.Date(2025, 3, 25, 9, 30, 0, 0, time.UTC)
	orig := Itinerary{
		OutboundLegs: []FlightLeg{
			leg(t, "IAD", "ADD", dep, 13),
			leg(t, "ADD", "YAO", dep.Add(15*time.Hour), 5),
		},
		ReturnLegs:       []FlightLeg{leg(t, "YAO", "IAD", ret, 16)},
		TotalPrice:       195405,
		Currency:         "USD",
		BookingKind:      BookingTwoOneWays,
		BookingReference: "https://a|https://b",
	}

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"price":1954.05`) {
		t.Errorf("expected exact decimal price, got %s", b)
	}
	if !strings.Contains(string(b), `"stops_return":0`) {
		t.Errorf("expected stops_return in %s", b)
	}

	var got Itinerary
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.TotalPrice != orig.TotalPrice {
		t.Errorf("price: expected %s, got %s", orig.TotalPrice, got.TotalPrice)
	}
	if len(got.OutboundLegs) != 2 || len(got.ReturnLegs) != 1 {
		t.Fatalf("leg counts changed: %d/%d", len(got.OutboundLegs), len(got.ReturnLegs))
	}
	for i := range orig.OutboundLegs {
		if got.OutboundLegs[i].Origin != orig.OutboundLegs[i].Origin ||
			!got.OutboundLegs[i].Departure.Equal(orig.OutboundLegs[i].Departure) {
			t.Errorf("leg %d changed: %+v", i, got.OutboundLegs[i])
		}
	}
}

func TestItineraryJSONOneWayHasNullReturnStops(t *testing.T) {
	dep := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	it := Itinerary{
		OutboundLegs: []FlightLeg{leg(t, "JFK", "ADD", dep, 13), leg(t, "ADD", "KGL", dep.Add(15*time.Hour), 3)},
		TotalPrice:   Dollars(700),
		BookingKind:  BookingSkiplagged,
		DeplaneAt:    "ADD",
	}
	b, _ := json.Marshal(it)
	s := string(b)
	if !strings.Contains(s, `"stops_return":null`) {
		t.Errorf("expected null stops_return, got %s", s)
	}
	if !strings.Contains(s, `"is_skiplagged":true`) || !strings.Contains(s, `"warning":"deplane at ADD`) {
		t.Errorf("expected skiplagged warning, got %s", s)
	}

	var back Itinerary
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.HasReturn() {
		t.Error("one-way must stay one-way after round trip")
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"1954", 195400, false},
		{"1954.5", 195450, false},
		{"1954.05", 195405, false},
		{"0.99", 99, false},
		{"1954.050", 195405, false},
		{"1954.055", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{".5", 50, false},
		{"-12.25", -1225, false},
		{"-", 0, true},
		{".", 0, true},
		{"1.-5", 0, true},
		{"1.+5", 0, true},
		{"+5", 0, true},
		{"--5", 0, true},
		{"1.2.3", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMoney(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMoney(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestQueryKeyAndDates(t *testing.T) {
	d, err := ParseDate("2025-03-15")
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	r := d.AddDays(10)
	q := SearchQuery{Origin: "jfk", Destination: "yao", DepartDate: d, ReturnDate: &r, Kind: QueryRoundTrip, Cabin: "Economy"}
	if got := q.Key(); got != "JFK|YAO|2025-03-15|2025-03-25|economy" {
		t.Errorf("unexpected key %q", got)
	}
	ow := SearchQuery{Origin: "JFK", Destination: "YAO", DepartDate: d, Kind: QueryOutboundOneWay}
	if ow.Key() == q.Key() {
		t.Error("one-way and round-trip keys must differ")
	}
	if d.DaysUntil(r) != 10 {
		t.Errorf("expected 10 days, got %d", d.DaysUntil(r))
	}
	if q.Kind.BookingKind() != BookingRoundTrip || ow.Kind.BookingKind() != BookingOneWay {
		t.Error("unexpected booking kinds")
	}
}

package model

import (
	"encoding/json"
	"fmt"
)

// itineraryJSON is the external JSON shape of an Itinerary.
type itineraryJSON struct {
	Price         Money       `json:"price"`
	Currency      string      `json:"currency"`
	BookingType   BookingKind `json:"booking_type"`
	BookingURL    string      `json:"booking_url"`
	IsSkiplagged  bool        `json:"is_skiplagged"`
	DeplaneAt     string      `json:"deplane_at,omitempty"`
	Warning       string      `json:"warning,omitempty"`
	Provider      string      `json:"provider,omitempty"`
	Stale         bool        `json:"stale,omitempty"`
	Outbound      []FlightLeg `json:"outbound"`
	Return        []FlightLeg `json:"return,omitempty"`
	StopsOutbound int         `json:"stops_outbound"`
	StopsReturn   *int        `json:"stops_return"`
}

// MarshalJSON renders the itinerary with its derived stop counts and, for
// skiplagged options, the hidden-city warning.
func (it Itinerary) MarshalJSON() ([]byte, error) {
	out := itineraryJSON{
		Price:         it.TotalPrice,
		Currency:      it.Currency,
		BookingType:   it.BookingKind,
		BookingURL:    it.BookingReference,
		IsSkiplagged:  it.IsSkiplagged(),
		DeplaneAt:     it.DeplaneAt,
		Warning:       it.Warning(),
		Provider:      it.Provider,
		Stale:         it.Stale,
		Outbound:      it.OutboundLegs,
		Return:        it.ReturnLegs,
		StopsOutbound: it.StopsOutbound(),
	}
	if out.Outbound == nil {
		out.Outbound = []FlightLeg{}
	}
	if stops, ok := it.StopsReturn(); ok {
		out.StopsReturn = &stops
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the external shape. Derived fields are recomputed, not trusted.
func (it *Itinerary) UnmarshalJSON(b []byte) error {
	var in itineraryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.BookingType != "" && !ValidBookingKinds[in.BookingType] {
		return fmt.Errorf("unknown booking_type %q", in.BookingType)
	}
	*it = Itinerary{
		OutboundLegs:     in.Outbound,
		TotalPrice:       in.Price,
		Currency:         in.Currency,
		BookingKind:      in.BookingType,
		BookingReference: in.BookingURL,
		Provider:         in.Provider,
		Stale:            in.Stale,
		DeplaneAt:        in.DeplaneAt,
	}
	if len(in.Return) > 0 {
		it.ReturnLegs = in.Return
	}
	return nil
}

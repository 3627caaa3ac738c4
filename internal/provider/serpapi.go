package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rcliao/flightfinder/internal/config"
	"github.com/rcliao/flightfinder/internal/model"
)

// SerpAPIBaseURL is the SerpAPI search endpoint.
const SerpAPIBaseURL = "https://serpapi.com/search"

// serpTimeLayout is the local wall-clock format used for leg times.
const serpTimeLayout = "2006-01-02 15:04"

const noResultsMarker = "hasn't returned any results"

var travelClasses = map[string]string{
	"economy":  "1",
	"premium":  "2",
	"business": "3",
	"first":    "4",
}

// SerpAPI prices queries through the SerpAPI Google Flights engine.
type SerpAPI struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// SerpAPIOption configures a SerpAPI adapter.
type SerpAPIOption func(*SerpAPI)

// WithBaseURL points the adapter at another endpoint.
func WithBaseURL(u string) SerpAPIOption {
	return func(s *SerpAPI) {
		if u != "" {
			s.baseURL = u
		}
	}
}

// WithName sets the provider name reported on results.
func WithName(name string) SerpAPIOption {
	return func(s *SerpAPI) { s.name = name }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SerpAPIOption {
	return func(s *SerpAPI) { s.client = c }
}

// NewSerpAPI creates an adapter. An empty key is a ConfigurationError.
func NewSerpAPI(apiKey string, opts ...SerpAPIOption) (*SerpAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &config.ConfigurationError{Field: "serpapi_key", Reason: "API key required"}
	}
	s := &SerpAPI{
		name:    "serpapi",
		baseURL: SerpAPIBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: config.DefaultCallTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *SerpAPI) Name() string { return s.name }

type serpResponse struct {
	Error          string `json:"error"`
	SearchMetadata struct {
		GoogleFlightsURL string `json:"google_flights_url"`
	} `json:"search_metadata"`
	BestFlights  []serpOption `json:"best_flights"`
	OtherFlights []serpOption `json:"other_flights"`
}

type serpOption struct {
	Flights []serpFlight `json:"flights"`
	Price   json.Number  `json:"price"`
}

type serpFlight struct {
	DepartureAirport serpAirport `json:"departure_airport"`
	ArrivalAirport   serpAirport `json:"arrival_airport"`
	Duration         int         `json:"duration"`
	Airline          string      `json:"airline"`
	FlightNumber     string      `json:"flight_number"`
}

type serpAirport struct {
	ID   string `json:"id"`
	Time string `json:"time"`
}

func (s *SerpAPI) Query(ctx context.Context, q model.SearchQuery) ([]model.Itinerary, error) {
	params := url.Values{}
	params.Set("engine", "google_flights")
	params.Set("departure_id", q.Origin)
	params.Set("arrival_id", q.Destination)
	params.Set("outbound_date", q.DepartDate.String())
	params.Set("currency", "USD")
	params.Set("api_key", s.apiKey)
	if q.ReturnDate != nil {
		params.Set("return_date", q.ReturnDate.String())
		params.Set("type", "1")
	} else {
		params.Set("type", "2")
	}
	if tc, ok := travelClasses[strings.ToLower(q.Cabin)]; ok {
		params.Set("travel_class", tc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		// url.Error carries the full URL, api_key included
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, Classify(s.name, fmt.Errorf("serpapi request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		kind := KindServerError
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = KindRateLimited
		}
		return nil, &Error{Kind: kind, Provider: s.name, Status: resp.StatusCode,
			Err: fmt.Errorf("serpapi error %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))}
	}

	var result serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if ctx.Err() != nil {
			return nil, Classify(s.name, ctx.Err())
		}
		return nil, &Error{Kind: KindMalformed, Provider: s.name, Status: resp.StatusCode, Err: err}
	}
	if result.Error != "" {
		if strings.Contains(result.Error, noResultsMarker) {
			return []model.Itinerary{}, nil
		}
		return nil, &Error{Kind: KindMalformed, Provider: s.name, Status: resp.StatusCode, Err: fmt.Errorf("serpapi: %s", result.Error)}
	}
	return s.parse(result, q), nil
}

func (s *SerpAPI) parse(r serpResponse, q model.SearchQuery) []model.Itinerary {
	options := append(r.BestFlights, r.OtherFlights...)
	out := make([]model.Itinerary, 0, len(options))
	for _, opt := range options {
		price, err := model.ParseMoney(opt.Price.String())
		if err != nil || price <= 0 {
			continue
		}
		legs, ok := parseLegs(opt.Flights)
		if !ok {
			continue
		}
		it := model.Itinerary{
			OutboundLegs:     legs,
			TotalPrice:       price,
			Currency:         "USD",
			BookingKind:      q.Kind.BookingKind(),
			BookingReference: r.SearchMetadata.GoogleFlightsURL,
			Provider:         s.name,
		}
		if it.Validate() != nil {
			continue
		}
		out = append(out, it)
	}
	return out
}

func parseLegs(flights []serpFlight) ([]model.FlightLeg, bool) {
	if len(flights) == 0 {
		return nil, false
	}
	legs := make([]model.FlightLeg, 0, len(flights))
	for _, f := range flights {
		dep, err := time.ParseInLocation(serpTimeLayout, f.DepartureAirport.Time, time.UTC)
		if err != nil {
			return nil, false
		}
		arr, err := time.ParseInLocation(serpTimeLayout, f.ArrivalAirport.Time, time.UTC)
		if err != nil {
			return nil, false
		}
		// wall-clock times are local to each airport; a leg that lands
		// "before" it departs crossed time zones westward
		if !dep.Before(arr) && f.Duration > 0 {
			arr = dep.Add(time.Duration(f.Duration) * time.Minute)
		}
		leg, err := model.NewFlightLeg(f.DepartureAirport.ID, f.ArrivalAirport.ID,
			carrierCode(f), f.FlightNumber, dep, arr, f.Duration)
		if err != nil {
			return nil, false
		}
		legs = append(legs, leg)
	}
	return legs, true
}

// carrierCode takes the designator prefix of "UA 123", falling back to the airline name.
func carrierCode(f serpFlight) string {
	if code, _, ok := strings.Cut(strings.TrimSpace(f.FlightNumber), " "); ok && len(code) == 2 {
		return strings.ToUpper(code)
	}
	return f.Airline
}

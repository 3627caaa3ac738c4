// Package routes loads the airline route graph from the OpenFlights database.
package routes

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rcliao/flightfinder/internal/model"
)

// OpenFlightsURL is the public routes.dat download.
const OpenFlightsURL = "https://raw.githubusercontent.com/jpatokal/openflights/master/data/routes.dat"

const httpTimeout = 60 * time.Second

// routes.dat columns
const (
	colAirline = 0
	colSource  = 2
	colDest    = 4
	colStops   = 7
	numColumns = 9
)

// Parse reads OpenFlights routes.dat CSV and returns the direct (zero-stop)
// routes between IATA-coded airports. Malformed lines are skipped; the count of
// skipped lines is returned alongside the edges.
func Parse(r io.Reader) ([]model.RouteEdge, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var edges []model.RouteEdge
	skipped := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				skipped++
				continue
			}
			return edges, skipped, fmt.Errorf("read routes: %w", err)
		}
		edge, ok := parseRecord(rec)
		if !ok {
			skipped++
			continue
		}
		edges = append(edges, edge)
	}
	return edges, skipped, nil
}

func parseRecord(rec []string) (model.RouteEdge, bool) {
	if len(rec) < numColumns {
		return model.RouteEdge{}, false
	}
	if strings.TrimSpace(rec[colStops]) != "0" {
		return model.RouteEdge{}, false
	}
	carrier := model.NormalizeAirport(rec[colAirline])
	origin := model.NormalizeAirport(rec[colSource])
	dest := model.NormalizeAirport(rec[colDest])
	if carrier == "" || carrier == `\N` || !isIATA(origin) || !isIATA(dest) || origin == dest {
		return model.RouteEdge{}, false
	}
	return model.RouteEdge{Carrier: carrier, Origin: origin, Destination: dest}, true
}

func isIATA(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Fetcher downloads routes.dat over HTTP.
type Fetcher struct {
	URL    string
	client *http.Client
}

// NewFetcher constructs a fetcher; an empty url means OpenFlightsURL.
func NewFetcher(url string) *Fetcher {
	if url == "" {
		url = OpenFlightsURL
	}
	return &Fetcher{URL: url, client: &http.Client{Timeout: httpTimeout}}
}

// Fetch downloads and parses the route database.
func (f *Fetcher) Fetch(ctx context.Context) ([]model.RouteEdge, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("routes download returned %d: %s", resp.StatusCode, string(b))
	}
	return Parse(resp.Body)
}

// Loader is the write side of the route graph.
type Loader interface {
	AddRoutes(ctx context.Context, edges []model.RouteEdge) (int, error)
}

// Load parses r and writes the routes into dst.
func Load(ctx context.Context, r io.Reader, dst Loader) (written, skipped int, err error) {
	edges, skipped, err := Parse(r)
	if err != nil {
		return 0, skipped, err
	}
	written, err = dst.AddRoutes(ctx, edges)
	return written, skipped, err
}

// Refresh downloads the route database and writes it into dst.
func Refresh(ctx context.Context, f *Fetcher, dst Loader) (written, skipped int, err error) {
	edges, skipped, err := f.Fetch(ctx)
	if err != nil {
		return 0, skipped, err
	}
	written, err = dst.AddRoutes(ctx, edges)
	return written, skipped, err
}

// Package search expands user requests into atomic provider queries, executes
// them against rate-limited providers, and ranks the combined results.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/skiplagged"
)

// MaxFlexDays bounds date flexibility in either direction.
const MaxFlexDays = 7

// Request is one user search.
type Request struct {
	Origins           []string    `validate:"required,min=1,dive,iata"`
	Destination       string      `validate:"required,iata"`
	DepartDate        model.Date  `validate:"-"`
	ReturnDate        *model.Date `validate:"-"`
	Cabin             string      `validate:"omitempty,oneof=economy premium business first"`
	IncludeSkiplagged bool
	FlexDays          int `validate:"gte=0,lte=7"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	err := v.RegisterValidation("iata", func(fl validator.FieldLevel) bool {
		code := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
		if len(code) != 3 {
			return false
		}
		for _, c := range code {
			if c < 'A' || c > 'Z' {
				return false
			}
		}
		return true
	})
	if err != nil {
		panic(fmt.Sprintf("register iata validation: %v", err))
	}
	return v
}

// Validate checks airport codes, cabin, flex range and date order. No origin
// may be the destination itself.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid search request: %w", err)
	}
	dest := model.NormalizeAirport(r.Destination)
	for _, o := range r.Origins {
		if model.NormalizeAirport(o) == dest {
			return fmt.Errorf("invalid search request: origin %s is the destination", dest)
		}
	}
	if r.DepartDate.IsZero() {
		return fmt.Errorf("invalid search request: depart date is required")
	}
	if r.ReturnDate != nil && r.ReturnDate.Before(r.DepartDate) {
		return fmt.Errorf("invalid search request: return %s is before departure %s", r.ReturnDate, r.DepartDate)
	}
	return nil
}

// IsReturnTrip reports whether a return date was requested.
func (r Request) IsReturnTrip() bool { return r.ReturnDate != nil }

// TargetFinder produces skiplagged candidates for an origin and intended destination.
type TargetFinder interface {
	BuildTargets(ctx context.Context, origin, intended string) []skiplagged.Candidate
}

// Builder expands requests into query matrices.
type Builder struct {
	finder TargetFinder
}

// NewBuilder creates a builder. finder may be nil when skiplagged search is never requested.
func NewBuilder(finder TargetFinder) *Builder {
	return &Builder{finder: finder}
}

// Build returns the ordered, duplicate-free query sequence for r. Order is
// origins as given, then booking shape (round-trip, outbound one-way, return
// one-way, skiplagged targets), then date offset ascending from -flex to +flex.
func (b *Builder) Build(ctx context.Context, r Request) ([]model.SearchQuery, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	dest := model.NormalizeAirport(r.Destination)
	cabin := strings.ToLower(r.Cabin)

	var queries []model.SearchQuery
	seen := make(map[string]bool)
	emit := func(q model.SearchQuery) {
		key := q.Key()
		if seen[key] {
			return
		}
		seen[key] = true
		queries = append(queries, q)
	}
	offsets := make([]int, 0, 2*r.FlexDays+1)
	for off := -r.FlexDays; off <= r.FlexDays; off++ {
		offsets = append(offsets, off)
	}

	for _, raw := range r.Origins {
		origin := model.NormalizeAirport(raw)

		if r.ReturnDate != nil {
			for _, off := range offsets {
				depart, ret := r.DepartDate.AddDays(off), r.ReturnDate.AddDays(off)
				emit(model.SearchQuery{Origin: origin, Destination: dest, DepartDate: depart,
					ReturnDate: model.DatePtr(ret), Kind: model.QueryRoundTrip, Cabin: cabin})
			}
			for _, off := range offsets {
				depart, ret := r.DepartDate.AddDays(off), r.ReturnDate.AddDays(off)
				emit(model.SearchQuery{Origin: origin, Destination: dest, DepartDate: depart,
					Kind: model.QueryOutboundOneWay, Cabin: cabin, PairDate: model.DatePtr(ret)})
			}
			for _, off := range offsets {
				depart, ret := r.DepartDate.AddDays(off), r.ReturnDate.AddDays(off)
				emit(model.SearchQuery{Origin: dest, Destination: origin, DepartDate: ret,
					Kind: model.QueryInboundOneWay, Cabin: cabin, PairDate: model.DatePtr(depart)})
			}
		} else {
			for _, off := range offsets {
				emit(model.SearchQuery{Origin: origin, Destination: dest, DepartDate: r.DepartDate.AddDays(off),
					Kind: model.QueryOneWay, Cabin: cabin})
			}
		}

		if !r.IncludeSkiplagged || b.finder == nil {
			continue
		}
		for _, c := range b.finder.BuildTargets(ctx, origin, dest) {
			for _, off := range offsets {
				q := model.SearchQuery{Origin: c.Origin, Destination: c.OnwardDestination,
					DepartDate: r.DepartDate.AddDays(off), Kind: model.QuerySkiplagged, Cabin: cabin,
					IntendedDestination: c.IntendedDestination}
				if r.ReturnDate != nil {
					q.PairDate = model.DatePtr(r.ReturnDate.AddDays(off))
				}
				emit(q)
			}
		}
	}
	return queries, nil
}

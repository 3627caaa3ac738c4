// Package provider defines the flight-pricing provider contract and its adapters.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/rcliao/flightfinder/internal/model"
)

// Provider prices one normalized query.
type Provider interface {
	Name() string
	Query(ctx context.Context, q model.SearchQuery) ([]model.Itinerary, error)
}

// ErrorKind classifies a provider failure. Every kind is retryable.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindMalformed   ErrorKind = "malformed"
	KindServerError ErrorKind = "server_error"
)

// Error is a failed provider call.
type Error struct {
	Kind     ErrorKind
	Provider string
	Status   int // HTTP status, 0 when the call did not complete
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a provider error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// Retryable reports whether err should be retried. Caller cancellation is
// terminal; anything else a provider returns is transient.
func Retryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return true
}

// Classify wraps a transport-level error from a provider call, mapping
// deadline and network timeouts to KindTimeout.
func Classify(name string, err error) error {
	if err == nil {
		return nil
	}
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Provider: name, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &Error{Kind: KindTimeout, Provider: name, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &Error{Kind: KindServerError, Provider: name, Err: err}
}

type pacedProvider struct {
	provider Provider
	limiter  *rate.Limiter
}

// Paced spaces dispatches to p at least interval apart across all callers.
// A non-positive interval returns p unchanged.
func Paced(p Provider, interval time.Duration) Provider {
	if interval <= 0 {
		return p
	}
	return &pacedProvider{
		provider: p,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (p *pacedProvider) Name() string {
	return p.provider.Name()
}

func (p *pacedProvider) Query(ctx context.Context, q model.SearchQuery) ([]model.Itinerary, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// the limiter refuses waits that would outlast the deadline
		return nil, &Error{Kind: KindTimeout, Provider: p.provider.Name(), Err: err}
	}
	return p.provider.Query(ctx, q)
}

package search

import "time"

// Phase is the state of one query's retry/fallback cycle.
//
//	Pending ──► Retrying(n) ──► FallbackPending ──► Succeeded
//	   │            │                  │
//	   └────────────┴──────────────────┴──────────► Failed
//
// Succeeded and Failed are terminal.
type Phase string

const (
	PhasePending         Phase = "pending"
	PhaseRetrying        Phase = "retrying"
	PhaseFallbackPending Phase = "fallback_pending"
	PhaseSucceeded       Phase = "succeeded"
	PhaseFailed          Phase = "failed"
)

// Outcome is the result of one provider call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal // cancelled by the caller
)

// Attempt is the retry state of one query. The zero value is Pending.
type Attempt struct {
	Phase Phase
	// Tries counts calls made against the primary provider.
	Tries int
	// Delay is the backoff to wait before the next call.
	Delay time.Duration
	// Fallback is set once the query has moved to the secondary provider.
	Fallback bool
}

// Done reports whether the attempt reached a terminal phase.
func (a Attempt) Done() bool {
	return a.Phase == PhaseSucceeded || a.Phase == PhaseFailed
}

// RetryPolicy bounds retries against the primary provider.
type RetryPolicy struct {
	// MaxAttempts is the number of primary calls before giving up on it.
	MaxAttempts int
	// BackoffBase is the delay after the first failure; it doubles each retry.
	BackoffBase time.Duration
	// HasFallback enables one final call against the secondary provider.
	HasFallback bool
}

// Backoff is the delay after the n-th failed primary call (n >= 1).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 || p.BackoffBase <= 0 {
		return 0
	}
	return p.BackoffBase << (n - 1)
}

// Transition applies the outcome of the call just made to a.
func (p RetryPolicy) Transition(a Attempt, o Outcome) Attempt {
	if a.Done() {
		return a
	}
	if a.Phase == "" {
		a.Phase = PhasePending
	}
	next := a
	next.Delay = 0

	switch a.Phase {
	case PhasePending, PhaseRetrying:
		next.Tries++
		switch o {
		case OutcomeSuccess:
			next.Phase = PhaseSucceeded
		case OutcomeFatal:
			next.Phase = PhaseFailed
		default:
			maxAttempts := p.MaxAttempts
			if maxAttempts < 1 {
				maxAttempts = 1
			}
			switch {
			case next.Tries < maxAttempts:
				next.Phase = PhaseRetrying
				next.Delay = p.Backoff(next.Tries)
			case p.HasFallback:
				next.Phase = PhaseFallbackPending
				next.Fallback = true
			default:
				next.Phase = PhaseFailed
			}
		}
	case PhaseFallbackPending:
		if o == OutcomeSuccess {
			next.Phase = PhaseSucceeded
		} else {
			next.Phase = PhaseFailed
		}
	}
	return next
}

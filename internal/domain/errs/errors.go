package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an upstream failure. Collaborator clients set it at
// the boundary; nothing downstream infers it from message text.
type Kind string

const (
	KindRateLimited Kind = "rate_limited"
	KindTimeout     Kind = "timeout"
	KindNotFound    Kind = "not_found"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal"
)

// UpstreamError wraps a collaborator failure with its structured kind.
type UpstreamError struct {
	Resource string
	Kind     Kind
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s (%s): %v", e.Resource, e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// NewUpstream builds an UpstreamError.
func NewUpstream(resource string, kind Kind, err error) *UpstreamError {
	return &UpstreamError{Resource: resource, Kind: kind, Err: err}
}

// KindOf extracts the structured kind from err, defaulting to internal.
func KindOf(err error) Kind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return KindInternal
}

// IsRateLimited reports whether err carries the rate-limited kind.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// InsufficiencyReason codes why the sufficiency gate refused to compute.
type InsufficiencyReason string

const (
	ReasonNoData           InsufficiencyReason = "no_data"
	ReasonInsufficientBars InsufficiencyReason = "insufficient_bars"
	ReasonDegenerateStdDev InsufficiencyReason = "degenerate_stddev"
)

// InsufficientDataError means the historical sample is too small or
// statistically degenerate to compute a signal. Always recovered
// locally: the record is marked, never crashed on.
type InsufficientDataError struct {
	Symbol    string
	Indicator string
	Reason    InsufficiencyReason
	Count     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s/%s: %s (n=%d)", e.Symbol, e.Indicator, e.Reason, e.Count)
}

// ErrCircuitOpen is returned when the breaker rejects a call outright.
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitOpenError identifies which resource's breaker rejected a call.
type CircuitOpenError struct {
	Resource string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for %s", e.Resource)
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// AsInsufficient extracts an InsufficientDataError, if any.
func AsInsufficient(err error) (*InsufficientDataError, bool) {
	var ie *InsufficientDataError
	ok := errors.As(err, &ie)
	return ie, ok
}

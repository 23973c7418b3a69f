package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type FailureKind string

const (
	FailureCreditExhausted FailureKind = "credit_exhausted"
	FailureRateLimited     FailureKind = "rate_limited"
	FailureTransient       FailureKind = "transient"
	FailureUnknown         FailureKind = "unknown"
)

// ErrAllProvidersExhausted is the only error Generate surfaces. Callers are
// expected to answer with a static fallback reply when they see it.
var ErrAllProvidersExhausted = errors.New("all providers exhausted")

type ProviderAttempt struct {
	Provider string
	Kind     FailureKind
	Err      error
}

// ExhaustedError matches ErrAllProvidersExhausted under errors.Is and carries
// the per-provider failures for logging.
type ExhaustedError struct {
	Attempts []ProviderAttempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return "all providers exhausted: none eligible"
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s (%s): %v", a.Provider, a.Kind, a.Err))
	}
	return "all providers exhausted: " + strings.Join(parts, "; ")
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// APIError is a non-2xx response from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// classifyTransport covers errors that never produced an API response:
// timeouts, DNS failures, connection resets.
func classifyTransport(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return FailureTransient
	}
	return FailureUnknown
}

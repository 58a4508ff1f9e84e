package inventory

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected: the transport session has not been established.
	ErrNotConnected = errors.New("not connected to inventory server")

	// ErrConflict: the server rejected a create because the record already
	// exists. This is the only retryable condition in the reservation flow.
	ErrConflict = errors.New("already exists")

	// ErrNotFound: the requested record does not exist on the server.
	ErrNotFound = errors.New("not found")

	// ErrInvalidExpiry: a reservation request must set exactly one of
	// never-expires or an expiration date.
	ErrInvalidExpiry = errors.New("expiry must be exactly one of never-expires or an expiration date")

	// ErrExhaustedAlternatives: a conflict re-query returned fewer
	// candidates than the fallback policy needs.
	ErrExhaustedAlternatives = errors.New("range has no further available numbers")

	// ErrReservationAttemptsExhausted: every attempt conflicted.
	ErrReservationAttemptsExhausted = errors.New("reservation attempts exhausted")
)

// TransportError wraps any server or network failure other than conflict and
// not-found. It is never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("inventory transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

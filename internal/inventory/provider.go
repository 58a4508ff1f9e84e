package inventory

import "context"

// Range is a named contiguous block of numbers within one inventory pool.
type Range struct {
	Name      string
	First     string
	Last      string
	Available int
}

// ReservationRequest is the input to a reservation create.
type ReservationRequest struct {
	Handle      NumberHandle
	Reason      string
	Description string
	Expiry      Expiry
}

// Provider is the inventory server as seen by the reservation engine and
// the CLI. Implementations must map a duplicate-create rejection to
// ErrConflict and a missing record to ErrNotFound; everything else comes
// back as a *TransportError.
type Provider interface {
	// Ping verifies the session against the server.
	Ping(ctx context.Context) error

	// Ranges lists the number ranges defined on a system.
	Ranges(ctx context.Context, systemID int, system SystemType) ([]Range, error)

	// QueryAvailable fetches up to count free numbers from a named range.
	// Order is server-determined and significant: the engine's fallback
	// selection indexes into it.
	QueryAvailable(ctx context.Context, systemID int, system SystemType, rangeName string, count int) ([]AvailabilityCandidate, error)

	// CreateReservation writes a reservation for req.Handle.
	CreateReservation(ctx context.Context, req ReservationRequest) error

	// FetchByNumber reads back the reservation stored for a number.
	FetchByNumber(ctx context.Context, handle NumberHandle) (Reservation, error)

	// ListReservations lists all reservations on a system.
	ListReservations(ctx context.Context, systemID int, system SystemType) ([]Reservation, error)

	// DeleteReservation removes a reservation by its resource reference.
	DeleteReservation(ctx context.Context, systemID int, system SystemType, resourceRef string) error
}

// Package provision implements the reservation-acquisition flow: find an
// available number and reserve it, re-drawing from the range on conflict.
//
// The inventory server exposes no claim primitive, so two clients that saw
// the same availability list will race for the same number and one of them
// gets a duplicate-create rejection. The engine treats that rejection as the
// only retryable outcome: it re-queries availability, skips ahead into the
// fresh list, and tries again, up to a bounded attempt count.
package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/numberpro/internal/inventory"
)

// MaxAttemptsLimit caps the attempt loop. Conflicting more than this many
// times in a row means the range is effectively drained or heavily
// contended, and the caller should pick another range.
const MaxAttemptsLimit = 20

// ReserveRequest describes one acquisition: reserve Initial if possible,
// falling back to fresh candidates from RangeName on conflict.
type ReserveRequest struct {
	Initial     inventory.NumberHandle
	RangeName   string
	Reason      string
	Description string
	Expiry      inventory.Expiry
	MaxAttempts int
}

func (r ReserveRequest) validate() error {
	if r.Initial.Raw == "" {
		return fmt.Errorf("initial candidate number required")
	}
	if r.RangeName == "" {
		return fmt.Errorf("fallback range name required")
	}
	if r.Reason == "" {
		return fmt.Errorf("reason required")
	}
	if r.MaxAttempts < 1 || r.MaxAttempts > MaxAttemptsLimit {
		return fmt.Errorf("max attempts must be between 1 and %d", MaxAttemptsLimit)
	}
	return r.Expiry.Validate()
}

// Engine runs reservation acquisitions against an inventory provider.
type Engine struct {
	Provider inventory.Provider
}

// Reserve attempts to create a reservation for req.Initial, retrying on
// conflict with a fresh candidate drawn from req.RangeName, up to
// req.MaxAttempts attempts. On success it re-fetches the created record so
// the caller sees the server's canonical stored fields.
//
// On the Nth conflict the fallback re-query asks for N+1 candidates and
// takes index N: each retry reaches one slot further into the list, which
// avoids re-colliding on the same head entry when the server returns a
// stable ordering. If the re-query comes back short the range is out of
// alternatives and the call fails immediately.
//
// Only conflict is retried. Any other failure propagates at once as a
// *inventory.TransportError.
func (e *Engine) Reserve(ctx context.Context, req ReserveRequest) (inventory.Reservation, error) {
	if e.Provider == nil {
		return inventory.Reservation{}, fmt.Errorf("provision: provider is nil")
	}
	if err := req.validate(); err != nil {
		return inventory.Reservation{}, err
	}

	candidate := req.Initial
	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return inventory.Reservation{}, err
		}

		err := e.Provider.CreateReservation(ctx, inventory.ReservationRequest{
			Handle:      candidate,
			Reason:      req.Reason,
			Description: req.Description,
			Expiry:      req.Expiry,
		})
		if err == nil {
			return e.Provider.FetchByNumber(ctx, candidate)
		}
		if !errors.Is(err, inventory.ErrConflict) {
			return inventory.Reservation{}, err
		}
		if attempt == req.MaxAttempts {
			break
		}

		// Someone else took the number between the availability query and
		// our create. Re-draw from the range, skipping ahead by attempt
		// count.
		next, err := e.Provider.QueryAvailable(ctx, candidate.SystemID, candidate.System, req.RangeName, attempt+1)
		if err != nil {
			return inventory.Reservation{}, err
		}
		if len(next) <= attempt {
			return inventory.Reservation{}, fmt.Errorf("%w: %q returned %d candidates, need %d",
				inventory.ErrExhaustedAlternatives, req.RangeName, len(next), attempt+1)
		}
		candidate = next[attempt].Handle
	}

	return inventory.Reservation{}, fmt.Errorf("%w after %d attempts on range %q",
		inventory.ErrReservationAttemptsExhausted, req.MaxAttempts, req.RangeName)
}

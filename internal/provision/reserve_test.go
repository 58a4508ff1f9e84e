package provision

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/numberpro/internal/inventory"
)

// fakeProvider scripts CreateReservation outcomes per call and synthesizes
// availability lists of the requested length.
type fakeProvider struct {
	createErrs []error // outcome per create call, last entry repeats
	queryErr   error
	queryShort int // if > 0, QueryAvailable returns at most this many rows

	creates []inventory.NumberHandle
	queries []int // counts requested
	fetches []inventory.NumberHandle
}

func (f *fakeProvider) Ping(context.Context) error { return nil }

func (f *fakeProvider) Ranges(context.Context, int, inventory.SystemType) ([]inventory.Range, error) {
	return nil, nil
}

func (f *fakeProvider) CreateReservation(_ context.Context, req inventory.ReservationRequest) error {
	i := len(f.creates)
	f.creates = append(f.creates, req.Handle)
	if len(f.createErrs) == 0 {
		return nil
	}
	if i >= len(f.createErrs) {
		i = len(f.createErrs) - 1
	}
	return f.createErrs[i]
}

func (f *fakeProvider) QueryAvailable(_ context.Context, systemID int, system inventory.SystemType, rangeName string, count int) ([]inventory.AvailabilityCandidate, error) {
	f.queries = append(f.queries, count)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	n := count
	if f.queryShort > 0 && n > f.queryShort {
		n = f.queryShort
	}
	out := make([]inventory.AvailabilityCandidate, n)
	for i := range out {
		raw := fmt.Sprintf("320555%04d", 1000+len(f.queries)*100+i)
		canon, _ := inventory.Normalize(raw)
		out[i] = inventory.AvailabilityCandidate{
			Handle:      inventory.NumberHandle{SystemID: systemID, System: system, Raw: raw},
			Canonical:   canon,
			ResourceRef: fmt.Sprintf("avail-%d-%d", len(f.queries), i),
		}
	}
	return out, nil
}

func (f *fakeProvider) FetchByNumber(_ context.Context, h inventory.NumberHandle) (inventory.Reservation, error) {
	f.fetches = append(f.fetches, h)
	canon, _ := inventory.Normalize(h.Raw)
	return inventory.Reservation{Handle: h, Canonical: canon, Reason: "stored", ResourceRef: "res-1"}, nil
}

func (f *fakeProvider) ListReservations(context.Context, int, inventory.SystemType) ([]inventory.Reservation, error) {
	return nil, nil
}

func (f *fakeProvider) DeleteReservation(context.Context, int, inventory.SystemType, string) error {
	return nil
}

func req(maxAttempts int) ReserveRequest {
	return ReserveRequest{
		Initial:     inventory.NumberHandle{SystemID: 4, System: inventory.SystemCisco, Raw: "3205551011"},
		RangeName:   "HQ DID",
		Reason:      "onboarding",
		Expiry:      inventory.NeverExpires(),
		MaxAttempts: maxAttempts,
	}
}

func TestReserveFirstAttemptSucceeds(t *testing.T) {
	p := &fakeProvider{}
	e := &Engine{Provider: p}

	res, err := e.Reserve(context.Background(), req(5))
	require.NoError(t, err)
	assert.Equal(t, "3205551011", res.Handle.Raw)
	assert.Equal(t, "stored", res.Reason)
	assert.Len(t, p.creates, 1)
	assert.Empty(t, p.queries, "no conflict, no re-query")
	assert.Len(t, p.fetches, 1, "success re-fetches the created record")
}

func TestReserveRetriesOnConflictThenSucceeds(t *testing.T) {
	p := &fakeProvider{createErrs: []error{inventory.ErrConflict, inventory.ErrConflict, nil}}
	e := &Engine{Provider: p}

	res, err := e.Reserve(context.Background(), req(5))
	require.NoError(t, err)

	require.Len(t, p.creates, 3, "succeeds on the 3rd attempt")
	require.Equal(t, []int{2, 3}, p.queries, "exactly 2 re-queries, asking attempt+1 candidates")
	// After conflict N the engine takes index N of the fresh list.
	assert.NotEqual(t, p.creates[0].Raw, p.creates[1].Raw)
	assert.Equal(t, p.creates[2].Raw, res.Handle.Raw)
}

func TestReserveExhaustsAttempts(t *testing.T) {
	const n = 4
	p := &fakeProvider{createErrs: []error{inventory.ErrConflict}}
	e := &Engine{Provider: p}

	_, err := e.Reserve(context.Background(), req(n))
	require.ErrorIs(t, err, inventory.ErrReservationAttemptsExhausted)
	assert.Len(t, p.creates, n, "exactly N attempts, never N+1")
	assert.Len(t, p.queries, n-1, "no re-query after the final conflict")
}

func TestReserveExhaustedAlternatives(t *testing.T) {
	// Re-query after the first conflict needs 2 candidates but only 1 comes
	// back: fail immediately, no further create attempts.
	p := &fakeProvider{createErrs: []error{inventory.ErrConflict}, queryShort: 1}
	e := &Engine{Provider: p}

	_, err := e.Reserve(context.Background(), req(10))
	require.ErrorIs(t, err, inventory.ErrExhaustedAlternatives)
	assert.Len(t, p.creates, 1)
	assert.Len(t, p.queries, 1)
}

func TestReserveNonConflictErrorAbortsImmediately(t *testing.T) {
	boom := &inventory.TransportError{Op: "create reservation", Err: errors.New("503")}
	p := &fakeProvider{createErrs: []error{boom}}
	e := &Engine{Provider: p}

	_, err := e.Reserve(context.Background(), req(10))
	require.Error(t, err)
	var te *inventory.TransportError
	require.ErrorAs(t, err, &te)
	assert.Len(t, p.creates, 1)
	assert.Empty(t, p.queries, "conflict is the only retryable condition")
}

func TestReserveQueryFailureAborts(t *testing.T) {
	p := &fakeProvider{
		createErrs: []error{inventory.ErrConflict},
		queryErr:   &inventory.TransportError{Op: "query available", Err: errors.New("timeout")},
	}
	e := &Engine{Provider: p}

	_, err := e.Reserve(context.Background(), req(5))
	var te *inventory.TransportError
	require.ErrorAs(t, err, &te)
	assert.Len(t, p.creates, 1)
}

func TestReserveValidatesExpiryBeforeAnyCall(t *testing.T) {
	p := &fakeProvider{}
	e := &Engine{Provider: p}

	both := req(5)
	both.Expiry = inventory.Expiry{Never: true, Date: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)}
	_, err := e.Reserve(context.Background(), both)
	require.ErrorIs(t, err, inventory.ErrInvalidExpiry)

	neither := req(5)
	neither.Expiry = inventory.Expiry{}
	_, err = e.Reserve(context.Background(), neither)
	require.ErrorIs(t, err, inventory.ErrInvalidExpiry)

	assert.Empty(t, p.creates, "contract violations fail before any network call")
	assert.Empty(t, p.queries)
}

func TestReserveValidatesMaxAttempts(t *testing.T) {
	p := &fakeProvider{}
	e := &Engine{Provider: p}

	for _, n := range []int{0, -1, MaxAttemptsLimit + 1} {
		_, err := e.Reserve(context.Background(), req(n))
		require.Error(t, err, "maxAttempts=%d", n)
	}
	assert.Empty(t, p.creates)
}

func TestReserveHonorsContextBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &fakeProvider{}
	e := &Engine{Provider: p}
	_, err := e.Reserve(ctx, req(5))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p.creates)
}

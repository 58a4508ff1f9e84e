package numberpro

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/numberpro/internal/inventory"
)

func newConnected(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/system", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"Id":4,"Name":"HQ","Type":"cisco"}]`))
	})
	if handler != nil {
		mux.Handle("/", handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := New(srv.URL, Credentials{Username: "svc", Password: "secret"})
	require.NoError(t, c.Connect(context.Background()))
	return c, srv
}

func TestMethodsRequireConnect(t *testing.T) {
	c := New("http://127.0.0.1:1", Credentials{})
	_, err := c.Ranges(context.Background(), 4, inventory.SystemCisco)
	assert.ErrorIs(t, err, inventory.ErrNotConnected)
	err = c.CreateReservation(context.Background(), inventory.ReservationRequest{
		Handle: inventory.NumberHandle{SystemID: 4, System: inventory.SystemCisco, Raw: "1011"},
		Expiry: inventory.NeverExpires(),
	})
	assert.ErrorIs(t, err, inventory.ErrNotConnected)
	assert.ErrorIs(t, c.Ping(context.Background()), inventory.ErrNotConnected)
}

func TestQueryAvailableUsesSystemFieldAndKeepsOrder(t *testing.T) {
	var gotPath, gotQuery string
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[
			{"Extension":"3205551011","Id":"n-1"},
			{"Extension":"3205551012","Id":"n-2"},
			{"Extension":"3205551013","Id":"n-3"}
		]`))
	}))

	cands, err := c.QueryAvailable(context.Background(), 4, inventory.SystemCisco, "HQ DID", 3)
	require.NoError(t, err)
	assert.Equal(t, "/rest/4/availablenumber", gotPath)
	assert.Contains(t, gotQuery, "range=HQ+DID")
	assert.Contains(t, gotQuery, "count=3")

	require.Len(t, cands, 3)
	assert.Equal(t, "3205551011", cands[0].Handle.Raw)
	assert.Equal(t, inventory.CanonicalNumber("+13205551012"), cands[1].Canonical)
	assert.Equal(t, "n-3", cands[2].ResourceRef)
}

func TestCreateReservationWirePayload(t *testing.T) {
	var gotPath string
	var payload map[string]any
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))

	err := c.CreateReservation(context.Background(), inventory.ReservationRequest{
		Handle:      inventory.NumberHandle{SystemID: 7, System: inventory.SystemSfB, Raw: "tel:+13205551011"},
		Reason:      "onboarding",
		Description: "new hire",
		Expiry:      inventory.NeverExpires(),
	})
	require.NoError(t, err)
	assert.Equal(t, "/rest/7/ReservedLineUri", gotPath)
	assert.Equal(t, "tel:+13205551011", payload["LineUri"])
	assert.Equal(t, "onboarding", payload["Reason"])
	assert.Equal(t, true, payload["NeverExpires"])
	_, hasDate := payload["ExpirationDate"]
	assert.False(t, hasDate)
}

func TestCreateReservationConflictCode(t *testing.T) {
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"ALREADY_EXISTS","message":"extension 3205551011 already exists"}`))
	}))

	err := c.CreateReservation(context.Background(), inventory.ReservationRequest{
		Handle: inventory.NumberHandle{SystemID: 4, System: inventory.SystemCisco, Raw: "3205551011"},
		Reason: "x",
		Expiry: inventory.NeverExpires(),
	})
	assert.ErrorIs(t, err, inventory.ErrConflict)
}

func TestConflictMessageFallback(t *testing.T) {
	// Older servers: HTTP 400, no code field, free-text message.
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Record already exists"}`))
	}))

	err := c.CreateReservation(context.Background(), inventory.ReservationRequest{
		Handle: inventory.NumberHandle{SystemID: 4, System: inventory.SystemCisco, Raw: "3205551011"},
		Reason: "x",
		Expiry: inventory.NeverExpires(),
	})
	assert.ErrorIs(t, err, inventory.ErrConflict)
}

func TestNonConflictErrorsAreTransport(t *testing.T) {
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"message":"maintenance window"}`))
	}))

	err := c.CreateReservation(context.Background(), inventory.ReservationRequest{
		Handle: inventory.NumberHandle{SystemID: 4, System: inventory.SystemCisco, Raw: "3205551011"},
		Reason: "x",
		Expiry: inventory.NeverExpires(),
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, inventory.ErrConflict))
	var te *inventory.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestFetchByNumber(t *testing.T) {
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/4/ReservedExtension", r.URL.Path)
		assert.Equal(t, "3205551011", r.URL.Query().Get("Extension"))
		_, _ = w.Write([]byte(`[{"Extension":"3205551011","Reason":"onboarding","Description":"","NeverExpires":false,"ExpirationDate":"2026-12-31","Id":"res-9"}]`))
	}))

	res, err := c.FetchByNumber(context.Background(), inventory.NumberHandle{
		SystemID: 4, System: inventory.SystemCisco, Raw: "3205551011",
	})
	require.NoError(t, err)
	assert.Equal(t, "onboarding", res.Reason)
	assert.Equal(t, "res-9", res.ResourceRef)
	assert.False(t, res.Expiry.Never)
	assert.Equal(t, "2026-12-31", res.Expiry.Date.Format("2006-01-02"))
	assert.Equal(t, inventory.CanonicalNumber("+13205551011"), res.Canonical)
}

func TestFetchByNumberNotFound(t *testing.T) {
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	_, err := c.FetchByNumber(context.Background(), inventory.NumberHandle{
		SystemID: 4, System: inventory.SystemCisco, Raw: "3205559999",
	})
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	c2, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"no such record"}`))
	}))
	_, err = c2.FetchByNumber(context.Background(), inventory.NumberHandle{
		SystemID: 4, System: inventory.SystemCisco, Raw: "3205559999",
	})
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}

func TestDeleteReservation(t *testing.T) {
	var gotMethod, gotPath string
	c, _ := newConnected(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	err := c.DeleteReservation(context.Background(), 9, inventory.SystemAvaya, "res-42")
	require.NoError(t, err)
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/rest/9/ReservedStation/res-42", gotPath)
}

func TestConnectBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"invalid credentials"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, Credentials{Username: "svc", Password: "wrong"})
	err := c.Connect(context.Background())
	require.Error(t, err)
	var te *inventory.TransportError
	assert.ErrorAs(t, err, &te)
}

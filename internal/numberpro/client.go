// Package numberpro is an HTTP client for the NumberPro inventory REST API.
//
// The client is an explicit session value: construct it with New, establish
// the session with Connect, and pass it wherever inventory access is needed.
// There is no package-global connection state, so concurrent sessions
// against different servers coexist cleanly.
package numberpro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/numberpro/internal/inventory"
)

type Credentials struct {
	Username string
	Password string
}

type Client struct {
	hc      *http.Client
	baseURL string
	creds   Credentials

	connected bool
}

var _ inventory.Provider = (*Client)(nil)

func New(baseURL string, creds Credentials) *Client {
	return &Client{
		hc:      &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		creds:   creds,
	}
}

// apiError is the server's error body. Newer servers set Code
// ("ALREADY_EXISTS", "NOT_FOUND", ...); older ones only set Message.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connect verifies the credentials against the server and marks the session
// usable. Every other call fails with inventory.ErrNotConnected until
// Connect has succeeded.
func (c *Client) Connect(ctx context.Context) error {
	_, _, err := c.do(ctx, http.MethodGet, "/rest/system", nil, nil)
	if err != nil {
		return err
	}
	c.connected = true
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if !c.connected {
		return inventory.ErrNotConnected
	}
	_, _, err := c.do(ctx, http.MethodGet, "/rest/system", nil, nil)
	return err
}

func (c *Client) Ranges(ctx context.Context, systemID int, system inventory.SystemType) ([]inventory.Range, error) {
	if !c.connected {
		return nil, inventory.ErrNotConnected
	}
	_, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rest/%d/range", systemID), nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Name           string `json:"Name"`
		FirstNumber    string `json:"FirstNumber"`
		LastNumber     string `json:"LastNumber"`
		AvailableCount int    `json:"AvailableCount"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &inventory.TransportError{Op: "decode ranges", Err: err}
	}
	out := make([]inventory.Range, 0, len(rows))
	for _, r := range rows {
		out = append(out, inventory.Range{
			Name:      r.Name,
			First:     r.FirstNumber,
			Last:      r.LastNumber,
			Available: r.AvailableCount,
		})
	}
	return out, nil
}

func (c *Client) QueryAvailable(ctx context.Context, systemID int, system inventory.SystemType, rangeName string, count int) ([]inventory.AvailabilityCandidate, error) {
	if !c.connected {
		return nil, inventory.ErrNotConnected
	}
	field, err := system.NumberField()
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("range", rangeName)
	q.Set("count", fmt.Sprintf("%d", count))
	path := fmt.Sprintf("/rest/%d/availablenumber?%s", systemID, q.Encode())

	_, body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &inventory.TransportError{Op: "decode available numbers", Err: err}
	}
	// Server-determined order is significant: the reservation engine's
	// conflict fallback indexes into this slice.
	out := make([]inventory.AvailabilityCandidate, 0, len(rows))
	for _, row := range rows {
		handle := inventory.NumberHandle{
			SystemID: systemID,
			System:   system,
			Raw:      rawString(row[field]),
		}
		canonical, _ := inventory.Normalize(handle.Raw)
		out = append(out, inventory.AvailabilityCandidate{
			Handle:      handle,
			Canonical:   canonical,
			ResourceRef: rawString(row["Id"]),
		})
	}
	return out, nil
}

func (c *Client) CreateReservation(ctx context.Context, req inventory.ReservationRequest) error {
	if !c.connected {
		return inventory.ErrNotConnected
	}
	if err := req.Expiry.Validate(); err != nil {
		return err
	}
	resource, err := req.Handle.System.ResourcePath()
	if err != nil {
		return err
	}
	field, err := req.Handle.System.NumberField()
	if err != nil {
		return err
	}

	payload := map[string]any{
		field:         req.Handle.Raw,
		"Reason":      req.Reason,
		"Description": req.Description,
	}
	if req.Expiry.Never {
		payload["NeverExpires"] = true
	} else {
		payload["ExpirationDate"] = req.Expiry.Date.Format("2006-01-02")
	}
	jb, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, _, err = c.do(ctx, http.MethodPost, fmt.Sprintf("/rest/%d/%s", req.Handle.SystemID, resource), jb, nil)
	return err
}

func (c *Client) FetchByNumber(ctx context.Context, handle inventory.NumberHandle) (inventory.Reservation, error) {
	if !c.connected {
		return inventory.Reservation{}, inventory.ErrNotConnected
	}
	resource, err := handle.System.ResourcePath()
	if err != nil {
		return inventory.Reservation{}, err
	}
	field, err := handle.System.NumberField()
	if err != nil {
		return inventory.Reservation{}, err
	}
	q := url.Values{}
	q.Set(field, handle.Raw)
	path := fmt.Sprintf("/rest/%d/%s?%s", handle.SystemID, resource, q.Encode())

	_, body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return inventory.Reservation{}, err
	}
	rows, err := decodeReservations(body, handle.SystemID, handle.System, field)
	if err != nil {
		return inventory.Reservation{}, err
	}
	if len(rows) == 0 {
		return inventory.Reservation{}, inventory.ErrNotFound
	}
	return rows[0], nil
}

func (c *Client) ListReservations(ctx context.Context, systemID int, system inventory.SystemType) ([]inventory.Reservation, error) {
	if !c.connected {
		return nil, inventory.ErrNotConnected
	}
	resource, err := system.ResourcePath()
	if err != nil {
		return nil, err
	}
	field, err := system.NumberField()
	if err != nil {
		return nil, err
	}
	_, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rest/%d/%s", systemID, resource), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeReservations(body, systemID, system, field)
}

func (c *Client) DeleteReservation(ctx context.Context, systemID int, system inventory.SystemType, resourceRef string) error {
	if !c.connected {
		return inventory.ErrNotConnected
	}
	resource, err := system.ResourcePath()
	if err != nil {
		return err
	}
	_, _, err = c.do(ctx, http.MethodDelete, fmt.Sprintf("/rest/%d/%s/%s", systemID, resource, url.PathEscape(resourceRef)), nil, nil)
	return err
}

type reservationRow struct {
	ID             string `json:"Id"`
	Reason         string `json:"Reason"`
	Description    string `json:"Description"`
	NeverExpires   bool   `json:"NeverExpires"`
	ExpirationDate string `json:"ExpirationDate"`
}

func decodeReservations(body []byte, systemID int, system inventory.SystemType, field string) ([]inventory.Reservation, error) {
	var raws []map[string]json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, &inventory.TransportError{Op: "decode reservations", Err: err}
	}
	out := make([]inventory.Reservation, 0, len(raws))
	for _, m := range raws {
		row := reservationRow{}
		mb, _ := json.Marshal(m)
		if err := json.Unmarshal(mb, &row); err != nil {
			return nil, &inventory.TransportError{Op: "decode reservation", Err: err}
		}
		handle := inventory.NumberHandle{SystemID: systemID, System: system, Raw: rawString(m[field])}
		canonical, _ := inventory.Normalize(handle.Raw)

		exp := inventory.NeverExpires()
		if !row.NeverExpires && row.ExpirationDate != "" {
			if d, err := time.Parse("2006-01-02", row.ExpirationDate); err == nil {
				exp = inventory.ExpiresOn(d)
			}
		}
		out = append(out, inventory.Reservation{
			Handle:      handle,
			Canonical:   canonical,
			Reason:      row.Reason,
			Description: row.Description,
			Expiry:      exp,
			ResourceRef: row.ID,
		})
	}
	return out, nil
}

func rawString(m json.RawMessage) string {
	if m == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return s
	}
	// some servers send station numbers as integers
	var n int64
	if err := json.Unmarshal(m, &n); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return strings.Trim(string(m), `"`)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, &inventory.TransportError{Op: method + " " + path, Err: err}
	}
	req.SetBasicAuth(c.creds.Username, c.creds.Password)
	req.Header.Set("accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("content-type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, &inventory.TransportError{Op: method + " " + path, Err: err}
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, &inventory.TransportError{Op: method + " " + path, Err: err}
	}
	if res.StatusCode >= 400 {
		return res.StatusCode, b, classifyError(method+" "+path, res.StatusCode, b)
	}
	return res.StatusCode, b, nil
}

// classifyError maps an error response to the typed failure the reservation
// engine keys its retry decision on. A structured Code field wins; the
// "already exists" message match is kept only for servers that predate it.
func classifyError(op string, status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	switch {
	case ae.Code == "ALREADY_EXISTS" || status == http.StatusConflict:
		return fmt.Errorf("%w: %s", inventory.ErrConflict, ae.Message)
	case strings.Contains(strings.ToLower(ae.Message), "already exists"):
		return fmt.Errorf("%w: %s", inventory.ErrConflict, ae.Message)
	case ae.Code == "NOT_FOUND" || status == http.StatusNotFound:
		return inventory.ErrNotFound
	}
	msg := ae.Message
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return &inventory.TransportError{Op: op, Err: fmt.Errorf("status=%d: %s", status, msg)}
}

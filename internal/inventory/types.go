package inventory

import (
	"fmt"
	"time"
)

// SystemType identifies the target telephony platform. It determines the
// REST resource path and the number field name used on the wire (see
// systems.go).
type SystemType string

const (
	SystemSfB   SystemType = "sfb"
	SystemCisco SystemType = "cisco"
	SystemAvaya SystemType = "avaya"
)

func ParseSystemType(s string) (SystemType, error) {
	switch SystemType(s) {
	case SystemSfB, SystemCisco, SystemAvaya:
		return SystemType(s), nil
	}
	return "", fmt.Errorf("unknown system type %q (want sfb, cisco or avaya)", s)
}

// NumberHandle identifies a number within one inventory system. Raw is the
// system-native representation (an extension, a full line URI, or a station
// number) and is only meaningful relative to (SystemID, System).
type NumberHandle struct {
	SystemID int
	System   SystemType
	Raw      string
}

// AvailabilityCandidate is one row from an availability query. It is
// ephemeral: nothing guarantees the number is still free by the time a
// reservation attempt is made.
type AvailabilityCandidate struct {
	Handle      NumberHandle
	Canonical   CanonicalNumber
	ResourceRef string
}

// Expiry is exactly one of never-expires or expires-on-date.
type Expiry struct {
	Never bool
	Date  time.Time
}

func NeverExpires() Expiry         { return Expiry{Never: true} }
func ExpiresOn(d time.Time) Expiry { return Expiry{Date: d} }

// Validate enforces the exactly-one-of contract: never-expires set with no
// date, or a date set without never-expires.
func (e Expiry) Validate() error {
	if e.Never != e.Date.IsZero() {
		return ErrInvalidExpiry
	}
	return nil
}

func (e Expiry) String() string {
	if e.Never {
		return "never"
	}
	return e.Date.Format("2006-01-02")
}

// Reservation is a server-owned record withholding a number from general
// allocation. The client never caches it beyond the immediate response.
type Reservation struct {
	Handle      NumberHandle
	Canonical   CanonicalNumber
	Reason      string
	Description string
	Expiry      Expiry
	ResourceRef string
}

package inventory

import "strings"

// CanonicalNumber is the E.164-normalized form of a raw number, or the bare
// digits when no country code can be inferred (extensions).
type CanonicalNumber string

// Diagnostic is a non-fatal advisory emitted by Normalize. It never aborts
// the calling operation.
type Diagnostic int

const (
	DiagNone Diagnostic = iota
	// DiagUnexpectedFormat: the digit count did not match a known NANP
	// shape; the result is a best-effort "+" prefixed string.
	DiagUnexpectedFormat
	// DiagExtensionOnly: a 7-digit local extension with no country code;
	// the digits are returned as-is.
	DiagExtensionOnly
)

func (d Diagnostic) String() string {
	switch d {
	case DiagUnexpectedFormat:
		return "unexpected format"
	case DiagExtensionOnly:
		return "extension only"
	}
	return ""
}

// Normalize converts a raw system-native number into canonical E.164 form.
// It is pure and total: it never fails, falling back to a best-effort
// prefixed string with a diagnostic on unrecognized lengths.
//
// Classification is by digit count after stripping everything that is not a
// digit (separators, parentheses, tel:/sip: schemes, ;ext= parameters):
//
//	10 digits            -> "+1" prefix
//	11 digits leading 1  -> "+" prefix
//	11 digits otherwise  -> "+" prefix, DiagUnexpectedFormat
//	7 digits             -> unchanged, DiagExtensionOnly
//	anything else        -> "+" prefix, DiagUnexpectedFormat
func Normalize(raw string) (CanonicalNumber, Diagnostic) {
	digits := stripToDigits(raw)
	switch {
	case len(digits) == 10:
		return CanonicalNumber("+1" + digits), DiagNone
	case len(digits) == 11 && digits[0] == '1':
		return CanonicalNumber("+" + digits), DiagNone
	case len(digits) == 11:
		return CanonicalNumber("+" + digits), DiagUnexpectedFormat
	case len(digits) == 7:
		return CanonicalNumber(digits), DiagExtensionOnly
	default:
		return CanonicalNumber("+" + digits), DiagUnexpectedFormat
	}
}

// stripToDigits drops everything except ASCII digits. SfB line URIs like
// "tel:+13205551011;ext=1011" carry the extension after ";ext="; the
// parameter portion is cut first so the extension digits do not leak into
// the subscriber number.
func stripToDigits(raw string) string {
	if i := strings.IndexByte(raw, ';'); i >= 0 {
		raw = raw[:i]
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= '0' && raw[i] <= '9' {
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

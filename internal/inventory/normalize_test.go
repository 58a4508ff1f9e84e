package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want CanonicalNumber
		diag Diagnostic
	}{
		{"ten digits", "3205551011", "+13205551011", DiagNone},
		{"eleven digits leading one", "13205551011", "+13205551011", DiagNone},
		{"eleven digits no leading one", "44205551011", "+44205551011", DiagUnexpectedFormat},
		{"seven digit extension", "5551011", "5551011", DiagExtensionOnly},
		{"formatted nanp", "(320) 555-1011", "+13205551011", DiagNone},
		{"dotted", "320.555.1011", "+13205551011", DiagNone},
		{"sfb line uri", "tel:+13205551011", "+13205551011", DiagNone},
		{"sfb line uri with ext", "tel:+13205551011;ext=1011", "+13205551011", DiagNone},
		{"four digit station", "1011", "+1011", DiagUnexpectedFormat},
		{"twelve digits", "441632960961", "+441632960961", DiagUnexpectedFormat},
		{"empty", "", "+", DiagUnexpectedFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, diag := Normalize(tc.raw)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.diag, diag)
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	a, d1 := Normalize("(320) 555-1011")
	b, d2 := Normalize("(320) 555-1011")
	assert.Equal(t, a, b)
	assert.Equal(t, d1, d2)
}

func TestSystemSpecs(t *testing.T) {
	cases := []struct {
		system SystemType
		path   string
		field  string
	}{
		{SystemSfB, "ReservedLineUri", "LineUri"},
		{SystemCisco, "ReservedExtension", "Extension"},
		{SystemAvaya, "ReservedStation", "StationExtension"},
	}
	for _, tc := range cases {
		path, err := tc.system.ResourcePath()
		assert.NoError(t, err)
		assert.Equal(t, tc.path, path)

		field, err := tc.system.NumberField()
		assert.NoError(t, err)
		assert.Equal(t, tc.field, field)
	}

	_, err := SystemType("nortel").ResourcePath()
	assert.Error(t, err)
}

func TestExpiryValidate(t *testing.T) {
	assert.NoError(t, NeverExpires().Validate())
	assert.NoError(t, ExpiresOn(mustDate(t, "2026-12-31")).Validate())
	assert.ErrorIs(t, Expiry{}.Validate(), ErrInvalidExpiry)
	assert.ErrorIs(t, Expiry{Never: true, Date: mustDate(t, "2026-12-31")}.Validate(), ErrInvalidExpiry)
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

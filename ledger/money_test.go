package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want Cents
	}{
		{"5000", 500000},
		{"5000.50", 500050},
		{"0.01", 1},
		{"9999999.99", MaxAmount},
		{"1,500.25", 150025},
		{"$2000", 200000},
		{" 42 ", 4200},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, false)
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseAmountRejectsOutOfRange(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "0", "0.001", "10000000.00", "1.234"} {
		_, err := ParseAmount(in, false)
		require.ErrorIs(t, err, ErrValidation, "input %q", in)
	}
}

func TestParseAmountRejectsInt64Overflow(t *testing.T) {
	// Cent values past int64 must not wrap back into range.
	for _, in := range []string{
		"184467440737095521.16", // 2^64 + 500 cents; wraps to 5.00
		"92233720368547758.08",  // 2^63 cents
		"99999999999999999999",
	} {
		_, err := ParseAmount(in, false)
		require.ErrorIs(t, err, ErrValidation, "input %q", in)
	}
}

func TestParseAmountAllowZero(t *testing.T) {
	got, err := ParseAmount("0", true)
	require.NoError(t, err)
	require.Equal(t, Cents(0), got)

	_, err = ParseAmount("0", false)
	require.ErrorIs(t, err, ErrValidation)
}

func TestCentsString(t *testing.T) {
	require.Equal(t, "5000.00", Cents(500000).String())
	require.Equal(t, "0.01", Cents(1).String())
	require.Equal(t, "9999999.99", MaxAmount.String())
}

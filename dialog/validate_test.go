package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"finbot/ledger"
)

func TestValidateAmountSyntax(t *testing.T) {
	got, err := ValidateAmount("$1,500.25", false)
	require.NoError(t, err)
	require.Equal(t, ledger.Cents(150025), got)

	for _, in := range []string{"1.5.0", "12a", "-4", "1e3", ""} {
		_, err := ValidateAmount(in, false)
		require.ErrorIs(t, err, ledger.ErrValidation, "input %q", in)
	}
}

func TestParseDateFullAndShortForm(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParseDate("20/03/2024", now)
	require.NoError(t, err)
	require.Equal(t, "2024-03-20", got.Format("2006-01-02"))

	// Short form implies the current year.
	got, err = ParseDate("15/03", now)
	require.NoError(t, err)
	require.Equal(t, "2024-03-15", got.Format("2006-01-02"))
}

func TestParseDateRejectsImpossibleDates(t *testing.T) {
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"31/02/2024", "00/01", "15-03", "15/13", "abc", "15/03/24/1"} {
		_, err := ParseDate(in, now)
		require.ErrorIs(t, err, ledger.ErrValidation, "input %q", in)
	}
}

func TestValidateDayBounds(t *testing.T) {
	day, err := ValidateDay(" 31 ")
	require.NoError(t, err)
	require.Equal(t, 31, day)

	for _, in := range []string{"0", "32", "x"} {
		_, err := ValidateDay(in)
		require.ErrorIs(t, err, ledger.ErrValidation, "input %q", in)
	}
}

func TestValidateNameLengthWindow(t *testing.T) {
	_, err := ValidateName("a", 50)
	require.ErrorIs(t, err, ledger.ErrValidation)

	name, err := ValidateName("  Comida  ", 50)
	require.NoError(t, err)
	require.Equal(t, "Comida", name)

	long, err := ValidateName("abcdefghij", 5)
	require.NoError(t, err)
	require.Equal(t, "abcde", long)
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	require.Equal(t, "hola", Sanitize("ho\x00la\x1f"))
	require.Equal(t, "cafe", Sanitize(" cafe\x7f "))
}

func TestIsSkipLiterals(t *testing.T) {
	for _, in := range []string{"no", "Skip", "OMITIR", "sin descripcion"} {
		require.True(t, IsSkip(in), "input %q", in)
	}
	require.False(t, IsSkip("nope"))
}

package dialog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finbot/ledger"
)

var (
	amountPattern  = regexp.MustCompile(`^\d+(\.\d+)?$`)
	controlPattern = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
)

// Field length caps for user-supplied names.
const (
	maxCategoryNameLen = 50
	maxGenericNameLen  = 100
)

// Sanitize strips control characters and trims surrounding whitespace.
func Sanitize(raw string) string {
	return strings.TrimSpace(controlPattern.ReplaceAllString(raw, ""))
}

// ValidateAmount parses user-entered money after stripping separators and
// currency glyphs. The syntax is checked before delegating range checks.
func ValidateAmount(raw string, allowZero bool) (ledger.Cents, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	if !amountPattern.MatchString(cleaned) {
		return 0, fmt.Errorf("%w: %q is not a valid amount", ledger.ErrValidation, raw)
	}
	return ledger.ParseAmount(cleaned, allowZero)
}

// ValidateName checks a trimmed, sanitized name against a length window.
func ValidateName(raw string, max int) (string, error) {
	name := Sanitize(raw)
	if len([]rune(name)) < 2 {
		return "", fmt.Errorf("%w: name must have at least 2 characters", ledger.ErrValidation)
	}
	if runes := []rune(name); len(runes) > max {
		name = string(runes[:max])
	}
	return name, nil
}

// ParseDate accepts DD/MM/YYYY or DD/MM with the current year implied and
// rejects impossible calendar dates.
func ParseDate(raw string, now time.Time) (time.Time, error) {
	cleaned := Sanitize(raw)
	parts := strings.Split(cleaned, "/")
	if len(parts) != 2 && len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: date must be DD/MM/YYYY or DD/MM", ledger.ErrValidation)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid day %q", ledger.ErrValidation, parts[0])
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid month %q", ledger.ErrValidation, parts[1])
	}
	year := now.Year()
	if len(parts) == 3 {
		year, err = strconv.Atoi(parts[2])
		if err != nil || year < 1000 {
			return time.Time{}, fmt.Errorf("%w: invalid year %q", ledger.ErrValidation, parts[2])
		}
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if date.Day() != day || int(date.Month()) != month || date.Year() != year {
		return time.Time{}, fmt.Errorf("%w: %q is not a calendar date", ledger.ErrValidation, cleaned)
	}
	return date, nil
}

// ValidateDay checks a day-of-month input for subscriptions.
func ValidateDay(raw string) (int, error) {
	day, err := strconv.Atoi(Sanitize(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: day must be a number", ledger.ErrValidation)
	}
	if day < 1 || day > 31 {
		return 0, fmt.Errorf("%w: day must be between 1 and 31", ledger.ErrValidation)
	}
	return day, nil
}

// skipLiterals are the inputs interpreted as "no description".
var skipLiterals = map[string]struct{}{
	"no":              {},
	"skip":            {},
	"omitir":          {},
	"sin descripcion": {},
}

// IsSkip reports whether the input means the user declined to enter text.
func IsSkip(raw string) bool {
	_, ok := skipLiterals[strings.ToLower(Sanitize(raw))]
	return ok
}

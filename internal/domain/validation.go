package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxNameLength = 200
	MinNameLength = 1
	// MaxAmount bounds a single transaction; 12-digit decimals match the
	// storage schema.
	MaxAmount = "9999999999.99"
)

// Dates before the epoch floor or too far in the future are rejected as
// input mistakes rather than silently accepted.
var (
	minDate      = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDateAhead = 10 * 365 * 24 * time.Hour
)

var hexColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateName validates display names for accounts, categories and goals.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) < MinNameLength {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, MaxNameLength)
	}
	return nil
}

// ValidateAmount validates a monetary amount.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	max, _ := decimal.NewFromString(MaxAmount)
	if amount.GreaterThan(max) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxAmount)
	}
	return nil
}

// ValidateDate rejects dates before 1970 and more than ten years ahead.
func ValidateDate(date time.Time) error {
	if date.IsZero() || date.Before(minDate) {
		return fmt.Errorf("%w: before %s", ErrDateOutOfRange, minDate.Format("2006-01-02"))
	}
	if date.After(time.Now().Add(maxDateAhead)) {
		return fmt.Errorf("%w: too far in the future", ErrDateOutOfRange)
	}
	return nil
}

// ValidatePeriod validates a month/year budget period.
func ValidatePeriod(month, year int) error {
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 1970 || year > 2200 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return nil
}

// ValidateHexColor validates a #RRGGBB display color.
func ValidateHexColor(color string) error {
	if !hexColorRegex.MatchString(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return nil
}

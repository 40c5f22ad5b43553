package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

const (
	minorDigits = 2
	// maxExponent bounds the decimal exponent accepted before any rescaling.
	// Shift and Truncate cost grows with the exponent, not the input length.
	maxExponent = 18
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseMinor converts a textual amount such as "12.5" into minor units (1250).
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return ToMinor(value)
}

// ToMinor converts a decimal amount into minor units, rejecting sub-cent precision.
func ToMinor(value decimal.Decimal) (int64, error) {
	if exp := value.Exponent(); exp < -maxExponent || exp > maxExponent {
		return 0, ErrInvalidAmount
	}
	shifted := value.Shift(minorDigits)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrTooManyDecimals
	}
	if shifted.Abs().GreaterThan(maxMinor) {
		return 0, ErrInvalidAmount
	}
	return shifted.IntPart(), nil
}

// FromMinor is the inverse of ToMinor.
func FromMinor(value int64) decimal.Decimal {
	return decimal.New(value, -minorDigits)
}

func FormatMinor(value int64) string {
	return FromMinor(value).StringFixed(minorDigits)
}

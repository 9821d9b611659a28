package payment

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Minor unit exponents for currencies the processor settles.
var currencyExponents = map[string]int32{
	"NGN": 2,
	"GHS": 2,
	"KES": 2,
	"ZAR": 2,
	"USD": 2,
	"EGP": 2,
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a display price (e.g. 15000.00 NGN) into processor
// minor units (1500000 kobo) using decimal arithmetic. Prices with more
// precision than the currency allows are rejected rather than rounded.
func ToMinorUnits(price decimal.Decimal, currency string) (int64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	exp, ok := currencyExponents[currency]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported currency %q", ErrInvalidAmount, currency)
	}
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidAmount, price.String())
	}

	minor := price.Shift(exp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%w: %s %s has sub-minor-unit precision", ErrInvalidAmount, price.String(), currency)
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: %s %s overflows", ErrInvalidAmount, price.String(), currency)
	}
	return minor.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(amount int64, currency string) (decimal.Decimal, error) {
	exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: unsupported currency %q", ErrInvalidAmount, currency)
	}
	return decimal.NewFromInt(amount).Shift(-exp), nil
}

package domain

import (
	"bytes"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a value in hundredths of a coin. One USD maps to one coin, so
// deposits in USD use the same unit.
// 4000 = 40.00 coins.
type Amount int64

// ParseAmount parses a decimal string with at most two fractional digits.
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, Validationf("amount %q is not a decimal number", s)
	}
	return AmountFromDecimal(d)
}

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// AmountFromDecimal rejects values with sub-cent precision and values that do
// not fit in an Amount.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, Validationf("amount %s has more than two decimal places", d.String())
	}
	if cents.LessThan(minCents) || cents.GreaterThan(maxCents) {
		return 0, Validationf("amount %s is out of range", d.String())
	}
	return Amount(cents.IntPart()), nil
}

// Plus returns a + b, failing instead of wrapping on overflow.
func (a Amount) Plus(b Amount) (Amount, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, Validationf("%s + %s is out of range", a, b)
	}
	return a + b, nil
}

// Times returns a × n, failing instead of wrapping on overflow.
func (a Amount) Times(n int) (Amount, error) {
	return AmountFromDecimal(a.Decimal().Mul(decimal.NewFromInt(int64(n))))
}

// Coins builds an Amount from whole coins.
func Coins(n int64) Amount { return Amount(n * 100) }

func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -2) }

func (a Amount) String() string { return a.Decimal().StringFixed(2) }

// MulRate multiplies by rate and rounds half away from zero to the cent.
func (a Amount) MulRate(rate decimal.Decimal) Amount {
	return Amount(a.Decimal().Mul(rate).Round(2).Shift(2).IntPart())
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON accepts both "40.00" and 40.00.
func (a *Amount) UnmarshalJSON(b []byte) error {
	raw := string(bytes.Trim(b, `"`))
	if raw == "" || raw == "null" {
		*a = 0
		return nil
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

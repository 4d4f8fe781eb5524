// Package money provides fixed-point currency arithmetic in minor units.
//
// All amounts inside the pipeline are int64 cents. Decimal values only
// appear at the boundaries: parsing price tokens out of receipt text and
// formatting amounts for display. Binary floating point is never used for
// money.
package money

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is a currency amount in minor units (e.g. 350 == $3.50).
// Negative values represent discounts or credits.
type Cents int64

// Zero is the zero amount.
const Zero Cents = 0

// Parse converts a price token such as "3.50", "$3.50" or "-0.50" into
// cents. It rejects tokens with sub-cent precision so a garbled price is
// surfaced instead of silently truncated.
func Parse(token string) (Cents, error) {
	s := strings.TrimSpace(token)
	neg := false
	// Accept both "-$0.50" and "$-0.50".
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "-") {
		neg = !neg
		s = s[1:]
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty price token")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid price token %q: %w", token, err)
	}
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("price token %q has sub-cent precision", token)
	}
	c := Cents(shifted.IntPart())
	if neg {
		c = -c
	}
	return c, nil
}

// MustParse is Parse for test fixtures and constants; it panics on error.
func MustParse(token string) Cents {
	c, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return c
}

// Decimal returns the amount as an exact decimal (two fractional digits).
func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// String formats the amount as a plain decimal, e.g. "3.50" or "-0.50".
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Dollars formats the amount with a currency symbol, e.g. "$3.50".
func (c Cents) Dollars() string {
	if c < 0 {
		return "-$" + (-c).Decimal().StringFixed(2)
	}
	return "$" + c.Decimal().StringFixed(2)
}

// Abs returns the absolute amount.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// Rat returns the amount as an exact rational, in cent units.
func (c Cents) Rat() *big.Rat {
	return new(big.Rat).SetInt64(int64(c))
}

// RoundRatHalfEven rounds a rational cent amount to whole cents using
// round-half-to-even (banker's rounding).
func RoundRatHalfEven(r *big.Rat) Cents {
	neg := r.Sign() < 0
	abs := new(big.Rat).Abs(r)

	num := new(big.Int).Set(abs.Num())
	den := abs.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))

	twice := new(big.Int).Lsh(rem, 1)
	switch twice.Cmp(den) {
	case 1:
		q.Add(q, big.NewInt(1))
	case 0:
		if q.Bit(0) == 1 {
			q.Add(q, big.NewInt(1))
		}
	}

	c := Cents(q.Int64())
	if neg {
		c = -c
	}
	return c
}

// FracRemainder returns the fractional part of a rational cent amount,
// r - floor(r), as a value in [0, 1). It is the sort key for
// largest-remainder residual distribution.
func FracRemainder(r *big.Rat) *big.Rat {
	num := r.Num()
	den := r.Denom()
	floor := new(big.Int).Div(num, den) // Euclidean floor for den > 0
	f := new(big.Rat).SetFrac(floor, big.NewInt(1))
	return new(big.Rat).Sub(r, f)
}

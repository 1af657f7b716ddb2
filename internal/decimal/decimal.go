// Package decimal provides the exact-decimal number type used by literals
// in queries, constants in the pipeline IR, and numbers in canonical JSON.
//
// It is a thin adapter over github.com/cockroachdb/apd/v3. Values never lose
// precision on parse or print: "19.99" parses to coefficient 1999 with
// exponent -2 and prints back as "19.99".
package decimal

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// ErrInvalidNumber is returned when text is not a finite decimal numeral.
var ErrInvalidNumber = errors.New("invalid number")

// Decimal is an immutable exact decimal. The zero value is 0.
type Decimal struct {
	v apd.Decimal
}

// Parse parses a decimal numeral exactly.
// NaN and infinities are rejected with ErrInvalidNumber.
func Parse(s string) (Decimal, error) {
	var d Decimal
	if _, _, err := d.v.SetString(s); err != nil {
		return Decimal{}, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	if d.v.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("%w: %q is not finite", ErrInvalidNumber, s)
	}
	return d, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromInt64 returns the decimal with the given integer value.
func FromInt64(n int64) Decimal {
	var d Decimal
	d.v.SetInt64(n)
	return d
}

// String prints the value in plain (non-scientific) notation, keeping the
// exponent of the parsed text so trailing zeros survive a round trip.
func (d Decimal) String() string {
	return d.v.Text('f')
}

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.v.Cmp(&o.v)
}

// Equal reports whether d and o denote the same number.
// 1.0 and 1.00 are equal.
func (d Decimal) Equal(o Decimal) bool {
	return d.Cmp(o) == 0
}

// Sign returns -1, 0 or +1.
func (d Decimal) Sign() int {
	return d.v.Sign()
}

// IsInteger reports whether d has no fractional part.
func (d Decimal) IsInteger() bool {
	var integ, frac apd.Decimal
	d.v.Modf(&integ, &frac)
	return frac.IsZero()
}

// Int64 returns d as an int64. It fails when d has a fractional part or
// does not fit.
func (d Decimal) Int64() (int64, error) {
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s is not an integer", d)
	}
	var integ, frac apd.Decimal
	d.v.Modf(&integ, &frac)
	n, err := integ.Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", d, err)
	}
	return n, nil
}

// MarshalJSON emits d as a bare JSON number.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalJSON accepts a bare JSON number.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

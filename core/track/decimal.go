package track

import "math/big"

// DecimalPlaces is the number of implied fractional digits every Decimal
// carries.
const DecimalPlaces = 18

var decimalScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(DecimalPlaces), nil)

// Decimal is a fixed-point amount with DecimalPlaces implied decimal
// digits, stored as a raw integer the way on-ledger resource quantities
// are represented. Zero value is a usable zero.
type Decimal struct {
	Raw *big.Int
}

// ZeroDecimal returns the additive identity.
func ZeroDecimal() Decimal { return Decimal{Raw: big.NewInt(0)} }

// NewDecimalFromInt64 builds a Decimal representing the whole number n.
func NewDecimalFromInt64(n int64) Decimal {
	return Decimal{Raw: new(big.Int).Mul(big.NewInt(n), decimalScale)}
}

// NewDecimalFromRaw builds a Decimal from an already-scaled raw integer.
func NewDecimalFromRaw(raw *big.Int) Decimal {
	if raw == nil {
		return ZeroDecimal()
	}
	return Decimal{Raw: new(big.Int).Set(raw)}
}

func (d Decimal) raw() *big.Int {
	if d.Raw == nil {
		return big.NewInt(0)
	}
	return d.Raw
}

// IsNegative reports whether the amount is strictly below zero.
func (d Decimal) IsNegative() bool { return d.raw().Sign() < 0 }

// IsZero reports whether the amount is exactly zero.
func (d Decimal) IsZero() bool { return d.raw().Sign() == 0 }

// Add returns d + o.
func (d Decimal) Add(o Decimal) Decimal {
	return Decimal{Raw: new(big.Int).Add(d.raw(), o.raw())}
}

// Sub returns d - o.
func (d Decimal) Sub(o Decimal) Decimal {
	return Decimal{Raw: new(big.Int).Sub(d.raw(), o.raw())}
}

// Cmp compares d and o the way big.Int.Cmp does.
func (d Decimal) Cmp(o Decimal) int { return d.raw().Cmp(o.raw()) }

// ModIsZero reports whether the raw amount divides evenly by
// 10^(18-divisibility), the granularity a resource's divisibility
// permits.
func (d Decimal) ModIsZero(divisibility uint8) bool {
	step := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(DecimalPlaces-int(divisibility))), nil)
	rem := new(big.Int).Mod(d.raw(), step)
	return rem.Sign() == 0
}

// String renders the raw integer; callers needing the decimal point can
// divide by 10^DecimalPlaces themselves.
func (d Decimal) String() string { return d.raw().String() }

// BigInt returns the underlying raw integer.
func (d Decimal) BigInt() *big.Int { return new(big.Int).Set(d.raw()) }

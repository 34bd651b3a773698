// Package numeric implements the fixed-point decimal substrate for prices
// and quantities: arbitrary-precision signed integers scaled by a
// per-symbol decimal exponent, with checked arithmetic and a strict
// decimal-string codec.
//
// Values are represented internally as *big.Int. No component outside
// this package performs arithmetic directly on the decimal strings, and
// no component downstream of ToPriceInt/ToQtyInt re-parses a value it
// already holds as an Int.
package numeric

import (
	"math/big"
	"strings"

	"github.com/tradeforge/engine/pkg/tferrors"
)

// MarshalJSON encodes the value as a quoted decimal string, per the
// checkpoint contract ("big integers encoded as decimal strings").
func (x Int) MarshalJSON() ([]byte, error) {
	return []byte(`"` + x.DecimalString() + `"`), nil
}

// UnmarshalJSON decodes a quoted (or bare) decimal-string bigint.
func (x *Int) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := FromDecimalString(s)
	if err != nil {
		return err
	}
	*x = n
	return nil
}

// Int is a signed, arbitrary-precision fixed-point value scaled by some
// external Scale (tracked separately, per symbol, not inside Int itself).
// PriceInt, QtyInt and NotionalInt are all this same underlying type;
// the distinction is purely for readability at call sites.
type Int struct {
	v *big.Int
}

type (
	PriceInt    = Int
	QtyInt      = Int
	NotionalInt = Int
)

// Zero returns the additive identity.
func Zero() Int { return Int{v: big.NewInt(0)} }

// FromInt64 wraps a non-negative machine int as an Int, scale already
// applied by the caller. Intended for literals in tests and defaults.
func FromInt64(n int64) Int {
	return Int{v: big.NewInt(n)}
}

// IsZero reports whether the value is exactly zero.
func (x Int) IsZero() bool { return x.v == nil || x.v.Sign() == 0 }

// Sign returns -1, 0 or 1.
func (x Int) Sign() int {
	if x.v == nil {
		return 0
	}
	return x.v.Sign()
}

// Cmp compares two Ints: -1 if x<y, 0 if equal, 1 if x>y.
func Cmp(x, y Int) int {
	return bigOf(x).Cmp(bigOf(y))
}

// LessThan, GreaterThan and Equal are Cmp shorthands used throughout the
// matching and reservation logic for readability at call sites.
func LessThan(x, y Int) bool    { return Cmp(x, y) < 0 }
func GreaterThan(x, y Int) bool { return Cmp(x, y) > 0 }
func Equal(x, y Int) bool       { return Cmp(x, y) == 0 }
func LessOrEqual(x, y Int) bool    { return Cmp(x, y) <= 0 }
func GreaterOrEqual(x, y Int) bool { return Cmp(x, y) >= 0 }

// Min returns the lesser of two Ints.
func Min(x, y Int) Int {
	if LessOrEqual(x, y) {
		return x
	}
	return y
}

func bigOf(x Int) *big.Int {
	if x.v == nil {
		return big.NewInt(0)
	}
	return x.v
}

// Add computes x+y. Inputs are expected non-negative; the sum of two
// non-negative values cannot underflow, so Add never fails.
func Add(x, y Int) Int {
	return Int{v: new(big.Int).Add(bigOf(x), bigOf(y))}
}

// Sub computes x-y, failing with an ArithmeticUnderflow-tagged error if
// the result would be negative.
func Sub(x, y Int) (Int, error) {
	r := new(big.Int).Sub(bigOf(x), bigOf(y))
	if r.Sign() < 0 {
		return Int{}, tferrors.NewArithmeticUnderflowError("sub", bigOf(x).String(), bigOf(y).String())
	}
	return Int{v: r}, nil
}

// MulDiv computes floor(a*b/d) using a wide (unbounded) intermediate
// product, as required for notional/fee arithmetic where a*b can exceed
// either operand's own magnitude many times over. d must be positive.
func MulDiv(a, b, d Int) Int {
	prod := new(big.Int).Mul(bigOf(a), bigOf(b))
	dd := bigOf(d)
	if dd.Sign() == 0 {
		return Zero()
	}
	q := new(big.Int)
	q.Div(prod, dd) // big.Int.Div truncates toward zero for non-negative operands, i.e. floor here
	return Int{v: q}
}

// ToInt parses a decimal string at the given scale into a fixed-point
// Int, rejecting whitespace, scientific notation, more than one decimal
// point, a sign other than a single leading '-' (only honored when
// allowNegative is true), and a fractional part longer than scale
// digits. ToPriceInt and ToQtyInt are both this function; they are kept
// as distinct names at call sites for clarity.
func ToInt(s string, scale int, allowNegative bool) (Int, error) {
	if s == "" {
		return Int{}, tferrors.NewValidationError("value", "empty decimal string")
	}
	if strings.ContainsAny(s, " \t\n\r") {
		return Int{}, tferrors.NewValidationError("value", "decimal string contains whitespace")
	}
	if strings.ContainsAny(s, "eE") {
		return Int{}, tferrors.NewValidationError("value", "scientific notation is not allowed")
	}

	neg := false
	rest := s
	if strings.HasPrefix(rest, "-") {
		if !allowNegative {
			return Int{}, tferrors.NewValidationError("value", "negative values are not allowed here")
		}
		neg = true
		rest = rest[1:]
	} else if strings.HasPrefix(rest, "+") {
		return Int{}, tferrors.NewValidationError("value", "leading '+' is not allowed")
	}
	if rest == "" {
		return Int{}, tferrors.NewValidationError("value", "no digits after sign")
	}

	parts := strings.Split(rest, ".")
	if len(parts) > 2 {
		return Int{}, tferrors.NewValidationError("value", "more than one decimal point")
	}

	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		return Int{}, tferrors.NewValidationError("value", "missing integer part")
	}
	if !isDigits(intPart) || (fracPart != "" && !isDigits(fracPart)) {
		return Int{}, tferrors.NewValidationError("value", "non-digit characters in decimal string")
	}
	if len(fracPart) > scale {
		return Int{}, tferrors.NewValidationError("value", "fractional part exceeds scale")
	}

	padded := fracPart + strings.Repeat("0", scale-len(fracPart))
	digits := intPart + padded
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}

	n, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Int{}, tferrors.NewValidationError("value", "invalid decimal digits")
	}
	if neg {
		n.Neg(n)
	}
	return Int{v: n}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToPriceInt and ToQtyInt are spec-named aliases of ToInt for call-site
// clarity; neither allows a negative value, matching "Non-negative at
// input" in the data model.
func ToPriceInt(s string, scale int) (PriceInt, error) { return ToInt(s, scale, false) }
func ToQtyInt(s string, scale int) (QtyInt, error)     { return ToInt(s, scale, false) }

// FromInt formats a fixed-point Int back to its canonical decimal string
// at the given scale: no trailing zeros beyond one digit after the
// point, no leading zeros beyond one digit before it, and the point
// omitted entirely when scale is 0.
func FromInt(x Int, scale int) string {
	n := bigOf(x)
	neg := n.Sign() < 0
	abs := new(big.Int).Abs(n)
	digits := abs.String()

	if scale == 0 {
		if neg && abs.Sign() != 0 {
			return "-" + digits
		}
		return digits
	}

	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	cut := len(digits) - scale
	intPart := digits[:cut]
	fracPart := digits[cut:]
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		fracPart = "0"
	}
	out := intPart + "." + fracPart
	if neg && abs.Sign() != 0 {
		out = "-" + out
	}
	return out
}

func FromPriceInt(x PriceInt, scale int) string { return FromInt(x, scale) }
func FromQtyInt(x QtyInt, scale int) string     { return FromInt(x, scale) }

// Pow10 returns 10^n as an Int, used to build the scale divisor passed
// to MulDiv when converting a price*qty product at qtyScale back down to
// a quote-precision notional (e.g. MulDiv(price, qty, Pow10(qtyScale))).
func Pow10(n int) Int {
	if n <= 0 {
		return FromInt64(1)
	}
	return Int{v: new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)}
}

// DecimalString renders the Int as a bare base-10 integer string
// (unscaled), used for checkpoint serialization where bigints are
// encoded as decimal strings.
func (x Int) DecimalString() string { return bigOf(x).String() }

// FromDecimalString parses a bare base-10 integer string (unscaled),
// used when restoring a checkpoint.
func FromDecimalString(s string) (Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, tferrors.NewValidationError("value", "invalid bigint decimal string: "+s)
	}
	return Int{v: n}, nil
}

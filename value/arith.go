package value

import (
	"github.com/shopspring/decimal"
)

// DivisionPrecision is the decimal scale used for Div (and any other
// non-terminating division) so that e.g. 425/3 compares equal to the
// mathematical value to well within 1e-15 on every platform.
const DivisionPrecision = 30

// Add, Sub, Mul implement exact decimal arithmetic; they cannot fail.
func Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }
func Sub(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }
func Mul(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }

// Div returns a/b, or a Div0 CoercionError if b is zero.
func Div(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Decimal{}, coercionErr(ErrDiv0, "division by zero")
	}
	return a.DivRound(b, DivisionPrecision), nil
}

// Neg returns -a.
func Neg(a decimal.Decimal) decimal.Decimal { return a.Neg() }

// Percent returns a/100, the meaning of the postfix % operator.
func Percent(a decimal.Decimal) decimal.Decimal {
	return a.Div(decimal.NewFromInt(100))
}

// Pow implements Excel's exponentiation semantics: 0^0 = 1 by convention;
// a negative base with a fractional exponent is a #NUM! error (the result
// would be complex).
func Pow(base, exp decimal.Decimal) (decimal.Decimal, error) {
	if base.IsZero() && exp.IsZero() {
		return decimal.NewFromInt(1), nil
	}
	if base.IsNegative() && !exp.Truncate(0).Equal(exp) {
		return decimal.Decimal{}, coercionErr(ErrNum, "negative base with fractional exponent")
	}
	f, _ := base.Float64()
	e, _ := exp.Float64()
	result := pow(f, e)
	if isNaNOrInf(result) {
		return decimal.Decimal{}, coercionErr(ErrNum, "exponentiation overflow")
	}
	return decimal.NewFromFloat(result), nil
}

// Sqrt returns sqrt(a), or a #NUM! error for a negative operand.
func Sqrt(a decimal.Decimal) (decimal.Decimal, error) {
	if a.IsNegative() {
		return decimal.Decimal{}, coercionErr(ErrNum, "square root of a negative number")
	}
	f, _ := a.Float64()
	return decimal.NewFromFloat(sqrt(f)), nil
}

// Ln returns the natural log of a, or a #NUM! error for a <= 0.
func Ln(a decimal.Decimal) (decimal.Decimal, error) {
	if !a.IsPositive() {
		return decimal.Decimal{}, coercionErr(ErrNum, "logarithm of a non-positive number")
	}
	f, _ := a.Float64()
	return decimal.NewFromFloat(ln(f)), nil
}

// Compare implements the ordering used by comparison operators: two
// numbers compare numerically and two booleans order FALSE before TRUE;
// any other pair compares numerically when both sides coerce to numbers
// ("10" = 10 holds), and otherwise as coerced text, case-insensitively.
func Compare(a, b CellValue) (int, error) {
	if a.Kind == KindNumber && b.Kind == KindNumber {
		return a.Num.Cmp(b.Num), nil
	}
	if a.Kind == KindBool && b.Kind == KindBool {
		if a.Bool == b.Bool {
			return 0, nil
		}
		if !a.Bool {
			return -1, nil
		}
		return 1, nil
	}
	an, aerr := ToNumber(a)
	bn, berr := ToNumber(b)
	if aerr == nil && berr == nil {
		return an.Cmp(bn), nil
	}
	at, err := ToText(a)
	if err != nil {
		return 0, err
	}
	bt, err := ToText(b)
	if err != nil {
		return 0, err
	}
	return compareFold(at, bt), nil
}

package value

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CoercionError is returned by the To* conversions and by arithmetic
// helpers in arith.go. Its Kind maps directly onto the Excel error token
// that should surface in a cell (see ErrorKind.Token). Callers in the eval
// package wrap this into their own EvalError via errors.As.
type CoercionError struct {
	Kind ErrorKind
	Msg  string
}

func (e *CoercionError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Kind.Token()
}

func coercionErr(kind ErrorKind, msg string) error {
	return &CoercionError{Kind: kind, Msg: msg}
}

// ToNumber implements the Excel "to number" coercion rules: Number
// unchanged, Bool true/false -> 1/0, Text parsed as a locale-independent
// decimal (scientific notation accepted), Empty -> 0, DateTime -> its
// Excel serial, Error propagates.
func ToNumber(v CellValue) (decimal.Decimal, error) {
	switch v.Kind {
	case KindNumber:
		return v.Num, nil
	case KindBool:
		if v.Bool {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case KindEmpty:
		return decimal.Zero, nil
	case KindText:
		return parseDecimalText(v.Text)
	case KindRichText:
		return parseDecimalText(v.PlainText())
	case KindDateTime:
		return TimeToSerial(v.DateTime), nil
	case KindError:
		return decimal.Decimal{}, coercionErr(v.Err, "")
	default:
		return decimal.Decimal{}, coercionErr(ErrValue, "cannot coerce formula cell to number")
	}
}

func parseDecimalText(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return decimal.Decimal{}, coercionErr(ErrValue, "empty string is not a number")
	}
	// decimal.NewFromString accepts scientific notation natively.
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		if _, ferr := strconv.ParseFloat(trimmed, 64); ferr != nil {
			return decimal.Decimal{}, coercionErr(ErrValue, "cannot parse \""+s+"\" as a number")
		}
		return decimal.Decimal{}, coercionErr(ErrValue, "cannot parse \""+s+"\" as a number")
	}
	return d, nil
}

// ToText implements the Excel "to text" coercion rules.
func ToText(v CellValue) (string, error) {
	switch v.Kind {
	case KindText:
		return v.Text, nil
	case KindRichText:
		return v.PlainText(), nil
	case KindNumber:
		return ShortestDecimalString(v.Num), nil
	case KindBool:
		if v.Bool {
			return "TRUE", nil
		}
		return "FALSE", nil
	case KindEmpty:
		return "", nil
	case KindDateTime:
		return v.DateTime.Format("2006-01-02T15:04:05"), nil
	case KindError:
		return "", coercionErr(v.Err, "")
	default:
		return "", coercionErr(ErrValue, "cannot coerce formula cell to text")
	}
}

// ToBool implements the Excel "to bool" coercion rules.
func ToBool(v CellValue) (bool, error) {
	switch v.Kind {
	case KindBool:
		return v.Bool, nil
	case KindNumber:
		return !v.Num.IsZero(), nil
	case KindEmpty:
		return false, nil
	case KindText, KindRichText:
		s := v.Text
		if v.Kind == KindRichText {
			s = v.PlainText()
		}
		switch strings.ToUpper(strings.TrimSpace(s)) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		default:
			return false, coercionErr(ErrValue, "cannot coerce \""+s+"\" to boolean")
		}
	case KindDateTime:
		return !TimeToSerial(v.DateTime).IsZero(), nil
	case KindError:
		return false, coercionErr(v.Err, "")
	default:
		return false, coercionErr(ErrValue, "cannot coerce formula cell to boolean")
	}
}

// ShortestDecimalString formats d in its shortest exact decimal
// representation (no trailing zeros, no scientific notation for everyday
// magnitudes). decimal.Decimal already stores values at the precision they
// were constructed with, so this is just String() — kept as a named
// wrapper so call sites read as a coercion step, not an arbitrary format
// choice.
func ShortestDecimalString(d decimal.Decimal) string {
	return d.String()
}

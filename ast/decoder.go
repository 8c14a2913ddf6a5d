package ast

import "github.com/calcengine/formulacore/value"

// Decoder names the statically expected type a Ref/SheetRef reads its
// cell value through, attached by ResolveTypes to match the expected
// operand type of the surrounding expression.
type Decoder uint8

const (
	// DecodeAny passes the cell value through unchanged (besides error
	// propagation) — used wherever a function coerces per-value itself.
	DecodeAny Decoder = iota
	DecodeNumber
	DecodeText
	DecodeBool
	DecodeDate
)

func (d Decoder) String() string {
	switch d {
	case DecodeNumber:
		return "number"
	case DecodeText:
		return "text"
	case DecodeBool:
		return "bool"
	case DecodeDate:
		return "date"
	default:
		return "any"
	}
}

// Apply decodes v through d with the Excel coercion rules. KindError
// values always propagate regardless of d.
func (d Decoder) Apply(v value.CellValue) (value.CellValue, error) {
	if v.IsError() {
		return value.CellValue{}, v.AsCoercionError()
	}
	switch d {
	case DecodeNumber:
		n, err := value.ToNumber(v)
		if err != nil {
			return value.CellValue{}, err
		}
		return value.Num(n), nil
	case DecodeText:
		s, err := value.ToText(v)
		if err != nil {
			return value.CellValue{}, err
		}
		return value.Text(s), nil
	case DecodeBool:
		b, err := value.ToBool(v)
		if err != nil {
			return value.CellValue{}, err
		}
		return value.Bool(b), nil
	case DecodeDate:
		if v.Kind == value.KindDateTime {
			return v, nil
		}
		n, err := value.ToNumber(v)
		if err != nil {
			return value.CellValue{}, err
		}
		return value.DateTime(value.SerialToTime(n)), nil
	default:
		return v, nil
	}
}

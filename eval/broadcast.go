package eval

import (
	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

// broadcast applies op elementwise across two operands, at least one of
// which is array-shaped, under Excel's broadcasting rules:
// equal shapes, a single row against many rows, a single column against
// many columns, or a scalar against anything. Incompatible shapes are a
// #VALUE! error.
func broadcast(op ast.ArithOp, l, r result) (corectx.RangeView, error) {
	lr, lc := shapeOf(l)
	rr, rc := shapeOf(r)

	rows, ok1 := broadcastDim(lr, rr)
	cols, ok2 := broadcastDim(lc, rc)
	if !ok1 || !ok2 {
		return nil, &EvalError{
			Kind:      ErrEvalFailed,
			Message:   "incompatible dimensions",
			ExcelKind: value.ErrValue,
		}
	}

	cells := make([][]value.CellValue, rows)
	for row := 0; row < rows; row++ {
		cells[row] = make([]value.CellValue, cols)
		for col := 0; col < cols; col++ {
			a, err := elemNumber(elemAt(l, row, col, lr, lc))
			if err != nil {
				return nil, err
			}
			b, err := elemNumber(elemAt(r, row, col, rr, rc))
			if err != nil {
				return nil, err
			}
			out, err := applyArith(op, a, b)
			if err != nil {
				return nil, err
			}
			cells[row][col] = value.Num(out)
		}
	}
	return corectx.ArrayRangeView{Cells: cells, SheetRef: sheetNameOf(l, r)}, nil
}

// broadcastDim reconciles one axis of the two operand shapes: equal spans
// pass through, a span of 1 stretches to the other, anything else is
// incompatible.
func broadcastDim(a, b int) (int, bool) {
	switch {
	case a == b:
		return a, true
	case a == 1:
		return b, true
	case b == 1:
		return a, true
	default:
		return 0, false
	}
}

func shapeOf(r result) (rows, cols int) {
	if r.isArray() {
		return r.view.Rows(), r.view.Cols()
	}
	return 1, 1
}

// elemAt reads the broadcast element of r at (row, col), wrapping
// stretched axes back to index 0.
func elemAt(r result, row, col, rows, cols int) value.CellValue {
	if !r.isArray() {
		return r.val
	}
	if rows == 1 {
		row = 0
	}
	if cols == 1 {
		col = 0
	}
	return r.view.At(row, col)
}

// elemNumber coerces one array element for an elementwise operation:
// numbers pass through, booleans become 0/1, dates become their serial,
// text that parses as a number contributes that number and other text
// contributes 0, empties are 0. Cell-level errors abort the whole array:
// division-by-zero in one cell yields #DIV/0! for the array.
func elemNumber(v value.CellValue) (decimal.Decimal, error) {
	switch v.Kind {
	case value.KindError:
		return decimal.Decimal{}, FromCoercionError(v.AsCoercionError())
	case value.KindText, value.KindRichText:
		d, err := value.ToNumber(v)
		if err != nil {
			return decimal.Zero, nil
		}
		return d, nil
	default:
		d, err := value.ToNumber(v)
		if err != nil {
			return decimal.Decimal{}, FromCoercionError(err)
		}
		return d, nil
	}
}

func sheetNameOf(l, r result) (name address.SheetName) {
	if l.isArray() {
		return l.view.Sheet()
	}
	if r.isArray() {
		return r.view.Sheet()
	}
	return ""
}

package corectx

import (
	"iter"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/value"
)

// RangeView is the evaluated form of a range argument passed to a
// function-registry entry: a 2-D view over cell values, row-major,
// lazily iterable, so MIN/MAX/AVERAGE can fold without an is-empty
// precheck consuming the head.
type RangeView interface {
	Rows() int
	Cols() int
	At(row, col int) value.CellValue
	// All iterates every cell row-major.
	All() iter.Seq[value.CellValue]
	// Bounds is the concrete (already full-column/row bounded) range
	// this view covers, needed by conditional-aggregate functions to
	// check that multiple criteria ranges share a common row interval.
	Bounds() address.CellRange
	Sheet() address.SheetName
}

// gridRangeView is the straightforward RangeView over a Sheet + bounded
// CellRange.
type gridRangeView struct {
	sheet Sheet
	rng   address.CellRange
}

// NewRangeView constructs a RangeView over rng on sheet. rng must already
// be bounded (see address.CellRange.Bound) if it originated as a
// full-column/row reference.
func NewRangeView(sheet Sheet, rng address.CellRange) RangeView {
	return gridRangeView{sheet: sheet, rng: rng}
}

func (g gridRangeView) Rows() int { return g.rng.Rows() }
func (g gridRangeView) Cols() int { return g.rng.Cols() }

func (g gridRangeView) At(row, col int) value.CellValue {
	ref := address.ARef{Col: g.rng.Start.Col + uint32(col), Row: g.rng.Start.Row + uint32(row)}
	return g.sheet.Get(ref)
}

func (g gridRangeView) All() iter.Seq[value.CellValue] {
	return func(yield func(value.CellValue) bool) {
		for ref := range g.rng.Iter() {
			if !yield(g.sheet.Get(ref)) {
				return
			}
		}
	}
}

func (g gridRangeView) Bounds() address.CellRange { return g.rng }
func (g gridRangeView) Sheet() address.SheetName  { return g.sheet.Name() }

// ArrayRangeView is a RangeView backed by an in-memory 2-D literal, used
// for array-expression intermediates (e.g. the result of TRANSPOSE) that
// have no backing sheet range.
type ArrayRangeView struct {
	Cells    [][]value.CellValue
	SheetRef address.SheetName
}

func (a ArrayRangeView) Rows() int { return len(a.Cells) }
func (a ArrayRangeView) Cols() int {
	if len(a.Cells) == 0 {
		return 0
	}
	return len(a.Cells[0])
}

func (a ArrayRangeView) At(row, col int) value.CellValue {
	if row < 0 || row >= len(a.Cells) || col < 0 || col >= len(a.Cells[row]) {
		return value.Error(value.ErrRef)
	}
	return a.Cells[row][col]
}

func (a ArrayRangeView) All() iter.Seq[value.CellValue] {
	return func(yield func(value.CellValue) bool) {
		for _, row := range a.Cells {
			for _, v := range row {
				if !yield(v) {
					return
				}
			}
		}
	}
}

func (a ArrayRangeView) Bounds() address.CellRange { return address.CellRange{} }
func (a ArrayRangeView) Sheet() address.SheetName  { return a.SheetRef }

// Arg is the evaluated form of one function-call argument: either a
// scalar value or a range view. Exactly one of IsRange's two meanings
// applies.
type Arg struct {
	IsRange bool
	Scalar  value.CellValue
	Range   RangeView
}

func ScalarArg(v value.CellValue) Arg { return Arg{Scalar: v} }
func RangeArg(r RangeView) Arg        { return Arg{IsRange: true, Range: r} }

// AsScalar collapses a range argument to a scalar by taking its top-left
// cell, matching Excel's implicit-intersection behaviour for functions
// that accept a scalar where a range was given.
func (a Arg) AsScalar() value.CellValue {
	if !a.IsRange {
		return a.Scalar
	}
	if a.Range.Rows() == 0 || a.Range.Cols() == 0 {
		return value.Empty()
	}
	return a.Range.At(0, 0)
}

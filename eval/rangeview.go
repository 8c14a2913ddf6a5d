package eval

import (
	"iter"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/value"
)

// EvalRange implements ast.EvalContext: it resolves loc's sheet (local or
// cross-sheet), bounds a full-column/row range against that sheet's used
// range (a SUM(A:A) must not walk all 2^20 rows), and returns a
// lazily-iterable view over it.
// Formula cells inside the range are resolved through their cache or by
// recursive evaluation, the same way a direct reference to them would be.
func (ev *Evaluator) EvalRange(loc ast.RangeLocation) (corectx.RangeView, error) {
	sheet, err := ev.resolveSheet(loc.Sheet)
	if err != nil {
		return nil, err
	}
	rng := loc.Range
	if rng.FullCols || rng.FullRows {
		used, ok := sheet.UsedRange()
		if !ok {
			// An empty sheet bounds to a single cell so Rows()/Cols() stay
			// well-defined rather than spanning the whole grid.
			used = address.NewRange(address.ARef{}, address.ARef{})
		}
		rng = rng.Bound(used)
	}
	return resolvedRangeView{ev: ev, sheet: sheet, rng: rng}, nil
}

// resolveSheet looks up the sheet named by name, or the environment's own
// sheet for a local (empty-name) reference.
func (ev *Evaluator) resolveSheet(name string) (corectx.Sheet, error) {
	if name == "" {
		return ev.env.Sheet(), nil
	}
	wb, ok := ev.env.Workbook()
	if !ok {
		return nil, &EvalError{Kind: ErrMissingWorkbook}
	}
	sheet, ok := wb.Sheet(address.SheetName(name))
	if !ok {
		return nil, &EvalError{Kind: ErrUnknownSheet, SheetName: name}
	}
	return sheet, nil
}

// resolvedRangeView is the evaluator's RangeView over a sheet range:
// formula cells resolve to their cached or recursively evaluated value,
// and a failing formula cell surfaces as the matching error cell so the
// aggregate fold propagates it.
type resolvedRangeView struct {
	ev    *Evaluator
	sheet corectx.Sheet
	rng   address.CellRange
}

func (r resolvedRangeView) Rows() int { return r.rng.Rows() }
func (r resolvedRangeView) Cols() int { return r.rng.Cols() }

func (r resolvedRangeView) At(row, col int) value.CellValue {
	ref := address.ARef{Col: r.rng.Start.Col + uint32(col), Row: r.rng.Start.Row + uint32(row)}
	return r.resolve(ref)
}

func (r resolvedRangeView) resolve(ref address.ARef) value.CellValue {
	raw := r.sheet.Get(ref)
	if raw.Kind != value.KindFormula {
		return raw
	}
	v, err := r.ev.resolveRefOn(r.sheet, ref, ast.DecodeAny)
	if err != nil {
		return value.Error(AsEvalError(err).ToCellError())
	}
	return v
}

func (r resolvedRangeView) All() iter.Seq[value.CellValue] {
	return func(yield func(value.CellValue) bool) {
		for ref := range r.rng.Iter() {
			if !yield(r.resolve(ref)) {
				return
			}
		}
	}
}

func (r resolvedRangeView) Bounds() address.CellRange { return r.rng }
func (r resolvedRangeView) Sheet() address.SheetName  { return r.sheet.Name() }

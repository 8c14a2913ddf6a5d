// Package functions implements the built-in function library: every
// registry entry's argument shape and evaluator closure, grouped one file
// per family.
package functions

import (
	"time"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

func failf(kind value.ErrorKind, msg string) error {
	return &eval.EvalError{Kind: eval.ErrEvalFailed, Message: msg, ExcelKind: kind}
}

// evalArg evaluates one call argument to its runtime form: a range view
// for range-shaped args, a scalar cell value otherwise.
func evalArg(ctx ast.EvalContext, a ast.FuncArg) (corectx.Arg, error) {
	if a.IsRange {
		view, err := ctx.EvalRange(a.RangeLoc)
		if err != nil {
			return corectx.Arg{}, err
		}
		return corectx.RangeArg(view), nil
	}
	v, err := ctx.Eval(a.Scalar)
	if err != nil {
		return corectx.Arg{}, err
	}
	return corectx.ScalarArg(v), nil
}

// viewArg materialises an argument as a 2-D view: a declared range
// directly, an array-shaped scalar expression (array literal, TRANSPOSE)
// through EvalView, and a plain scalar as a 1x1 view.
func viewArg(ctx ast.EvalContext, a ast.FuncArg) (corectx.RangeView, error) {
	if a.IsRange {
		return ctx.EvalRange(a.RangeLoc)
	}
	view, isArray, err := ctx.EvalView(a.Scalar)
	if err != nil {
		return nil, err
	}
	if isArray {
		return view, nil
	}
	v, err := ctx.Eval(a.Scalar)
	if err != nil {
		return nil, err
	}
	return corectx.ArrayRangeView{Cells: [][]value.CellValue{{v}}}, nil
}

func scalarAt(ctx ast.EvalContext, args []ast.FuncArg, i int) (value.CellValue, error) {
	a, err := evalArg(ctx, args[i])
	if err != nil {
		return value.CellValue{}, err
	}
	return a.AsScalar(), nil
}

func numberAt(ctx ast.EvalContext, args []ast.FuncArg, i int) (decimal.Decimal, error) {
	v, err := scalarAt(ctx, args, i)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, err := value.ToNumber(v)
	if err != nil {
		return decimal.Decimal{}, eval.FromCoercionError(err)
	}
	return d, nil
}

func textAt(ctx ast.EvalContext, args []ast.FuncArg, i int) (string, error) {
	v, err := scalarAt(ctx, args, i)
	if err != nil {
		return "", err
	}
	s, err := value.ToText(v)
	if err != nil {
		return "", eval.FromCoercionError(err)
	}
	return s, nil
}

func boolAt(ctx ast.EvalContext, args []ast.FuncArg, i int) (bool, error) {
	v, err := scalarAt(ctx, args, i)
	if err != nil {
		return false, err
	}
	b, err := value.ToBool(v)
	if err != nil {
		return false, eval.FromCoercionError(err)
	}
	return b, nil
}

func dateAt(ctx ast.EvalContext, args []ast.FuncArg, i int) (time.Time, error) {
	v, err := scalarAt(ctx, args, i)
	if err != nil {
		return time.Time{}, err
	}
	if v.Kind == value.KindDateTime {
		return v.DateTime, nil
	}
	d, err := value.ToNumber(v)
	if err != nil {
		return time.Time{}, eval.FromCoercionError(err)
	}
	return value.SerialToTime(d), nil
}

func omitted(args []ast.FuncArg, i int) bool {
	return i >= len(args) || args[i].Omitted
}

// numberOr returns the i'th argument as a number, or def when omitted.
func numberOr(ctx ast.EvalContext, args []ast.FuncArg, i int, def decimal.Decimal) (decimal.Decimal, error) {
	if omitted(args, i) {
		return def, nil
	}
	return numberAt(ctx, args, i)
}

func intOr(ctx ast.EvalContext, args []ast.FuncArg, i int, def int) (int, error) {
	if omitted(args, i) {
		return def, nil
	}
	d, err := numberAt(ctx, args, i)
	if err != nil {
		return 0, err
	}
	return int(d.IntPart()), nil
}

// foldNumbers walks every non-omitted argument and feeds each numeric
// observation to fn. Range cells follow Excel's aggregate rule: text,
// bool, and empty cells are skipped, error cells propagate. Scalar
// arguments coerce strictly, so SUM(1, "x") is a #VALUE! while
// SUM(A1:A3) with a text cell just skips it.
func foldNumbers(ctx ast.EvalContext, args []ast.FuncArg, fn func(decimal.Decimal) error) error {
	for i := range args {
		if args[i].Omitted {
			continue
		}
		a, err := evalArg(ctx, args[i])
		if err != nil {
			return err
		}
		if !a.IsRange {
			d, err := value.ToNumber(a.Scalar)
			if err != nil {
				return eval.FromCoercionError(err)
			}
			if err := fn(d); err != nil {
				return err
			}
			continue
		}
		if err := foldViewNumbers(a.Range, fn); err != nil {
			return err
		}
	}
	return nil
}

// foldViewNumbers folds the numeric cells of one view, skipping text,
// bool, and empty cells and propagating error cells.
func foldViewNumbers(view corectx.RangeView, fn func(decimal.Decimal) error) error {
	for cell := range view.All() {
		switch cell.Kind {
		case value.KindError:
			return eval.FromCoercionError(cell.AsCoercionError())
		case value.KindNumber:
			if err := fn(cell.Num); err != nil {
				return err
			}
		case value.KindDateTime:
			if err := fn(value.TimeToSerial(cell.DateTime)); err != nil {
				return err
			}
		}
	}
	return nil
}

// foldCells walks every cell of every non-omitted argument, handing each
// raw cell value (scalars count as one cell) to fn.
func foldCells(ctx ast.EvalContext, args []ast.FuncArg, fn func(value.CellValue) error) error {
	for i := range args {
		if args[i].Omitted {
			continue
		}
		a, err := evalArg(ctx, args[i])
		if err != nil {
			return err
		}
		if !a.IsRange {
			if err := fn(a.Scalar); err != nil {
				return err
			}
			continue
		}
		for cell := range a.Range.All() {
			if err := fn(cell); err != nil {
				return err
			}
		}
	}
	return nil
}

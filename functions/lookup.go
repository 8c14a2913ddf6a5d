package functions

import (
	"fmt"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
)

func registerLookup(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "VLOOKUP",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Range(), ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeBool)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			return evalTableLookup(ctx, args, false)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "HLOOKUP",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Range(), ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeBool)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			return evalTableLookup(ctx, args, true)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "XLOOKUP",
		Args: []ast.ArgSpec{
			ast.Scalar(ast.DecodeAny), ast.Range(), ast.Range(),
			ast.OptionalScalar(ast.DecodeAny), ast.OptionalScalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeNumber),
		},
		Eval: evalXlookup,
	})

	r.Register(&ast.FunctionSpec{
		Name: "INDEX",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			view, err := viewArg(ctx, args[0])
			if err != nil {
				return value.CellValue{}, err
			}
			row, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			col, err := intOr(ctx, args, 2, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			if row < 1 || row > view.Rows() || col < 1 || col > view.Cols() {
				return value.CellValue{}, &eval.EvalError{
					Kind: eval.ErrEvalFailed,
					Message: fmt.Sprintf("INDEX position (%d, %d) is outside the %dx%d array",
						row, col, view.Rows(), view.Cols()),
					ExcelKind: value.ErrRef,
				}
			}
			return view.At(row-1, col-1), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "MATCH",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Range(), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			needle, err := scalarAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			view, err := viewArg(ctx, args[1])
			if err != nil {
				return value.CellValue{}, err
			}
			matchType, err := intOr(ctx, args, 2, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			cells := flatten(view)
			var mode matchMode
			switch matchType {
			case 0:
				mode = matchExact
			case 1:
				mode = matchNextSmaller
			case -1:
				mode = matchNextLarger
			default:
				return value.CellValue{}, failf(value.ErrValue, "MATCH type must be -1, 0, or 1")
			}
			idx := findMatch(needle, cells, mode, false)
			if idx == -1 {
				return value.CellValue{}, failf(value.ErrNA, "MATCH: value not found")
			}
			return value.NumFromInt(int64(idx + 1)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "CHOOSE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeAny), ast.VariadicScalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			idx, err := intOr(ctx, args, 0, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			choices := args[1:]
			if idx < 1 || idx > len(choices) || omitted(choices, idx-1) {
				return value.CellValue{}, failf(value.ErrValue, "CHOOSE index out of range")
			}
			return scalarAt(ctx, choices, idx-1)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "ROW",
		Args: []ast.ArgSpec{ast.OptionalScalar(ast.DecodeAny)},
		Eval: refCoordinate(true),
	})
	r.Register(&ast.FunctionSpec{
		Name: "COLUMN",
		Args: []ast.ArgSpec{ast.OptionalScalar(ast.DecodeAny)},
		Eval: refCoordinate(false),
	})

	r.Register(&ast.FunctionSpec{
		Name: "ROWS",
		Args: []ast.ArgSpec{ast.Range()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			view, err := viewArg(ctx, args[0])
			if err != nil {
				return value.CellValue{}, err
			}
			return value.NumFromInt(int64(view.Rows())), nil
		},
	})
	r.Register(&ast.FunctionSpec{
		Name: "COLUMNS",
		Args: []ast.ArgSpec{ast.Range()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			view, err := viewArg(ctx, args[0])
			if err != nil {
				return value.CellValue{}, err
			}
			return value.NumFromInt(int64(view.Cols())), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "TRANSPOSE",
		Args: []ast.ArgSpec{ast.Range()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			view, err := transposeView(ctx, args)
			if err != nil {
				return value.CellValue{}, err
			}
			// Scalar context: implicit intersection.
			return view.At(0, 0), nil
		},
		ArrayEval: func(ctx ast.EvalContext, args []ast.FuncArg) (corectx.RangeView, error) {
			return transposeView(ctx, args)
		},
	})
}

func transposeView(ctx ast.EvalContext, args []ast.FuncArg) (corectx.RangeView, error) {
	view, err := viewArg(ctx, args[0])
	if err != nil {
		return nil, err
	}
	rows, cols := view.Rows(), view.Cols()
	out := make([][]value.CellValue, cols)
	for c := 0; c < cols; c++ {
		out[c] = make([]value.CellValue, rows)
		for r := 0; r < rows; r++ {
			out[c][r] = view.At(r, c)
		}
	}
	return corectx.ArrayRangeView{Cells: out, SheetRef: view.Sheet()}, nil
}

// refCoordinate builds ROW/COLUMN: with no argument they report the
// formula's own cell, with a reference argument they report that
// reference's coordinate, 1-based.
func refCoordinate(wantRow bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		if omitted(args, 0) {
			cur, ok := ctx.Env().CurrentCell()
			if !ok {
				return value.CellValue{}, failf(value.ErrValue, "no current cell for argumentless ROW/COLUMN")
			}
			if wantRow {
				return value.NumFromInt(int64(cur.Row) + 1), nil
			}
			return value.NumFromInt(int64(cur.Col) + 1), nil
		}
		if args[0].IsRange {
			start := args[0].RangeLoc.Range.Start
			if wantRow {
				return value.NumFromInt(int64(start.Row) + 1), nil
			}
			return value.NumFromInt(int64(start.Col) + 1), nil
		}
		switch n := args[0].Scalar.(type) {
		case *ast.Ref:
			return coordOf(n.At, wantRow), nil
		case *ast.PolyRef:
			return coordOf(n.At, wantRow), nil
		case *ast.SheetRef:
			return coordOf(n.At, wantRow), nil
		case *ast.SheetPolyRef:
			return coordOf(n.At, wantRow), nil
		case *ast.RangeRef:
			return coordOf(n.Range.Start, wantRow), nil
		case *ast.SheetRangeRef:
			return coordOf(n.Range.Start, wantRow), nil
		}
		return value.CellValue{}, failf(value.ErrValue, "ROW/COLUMN argument must be a reference")
	}
}

func coordOf(at address.ARef, wantRow bool) value.CellValue {
	if wantRow {
		return value.NumFromInt(int64(at.Row) + 1)
	}
	return value.NumFromInt(int64(at.Col) + 1)
}

// matchMode selects how a lookup scans its axis: exact, next smaller
// (ascending data), next larger, or wildcard.
type matchMode int

const (
	matchExact matchMode = iota
	matchNextSmaller
	matchNextLarger
	matchWildcard
)

// findMatch scans cells for needle under mode, returning the 0-based
// index or -1. reverse scans last-to-first (XLOOKUP search mode -1).
func findMatch(needle value.CellValue, cells []value.CellValue, mode matchMode, reverse bool) int {
	order := make([]int, len(cells))
	for i := range order {
		if reverse {
			order[i] = len(cells) - 1 - i
		} else {
			order[i] = i
		}
	}

	switch mode {
	case matchExact:
		crit := eval.ParseCriterion(needle)
		for _, i := range order {
			if crit.Matches(cells[i]) {
				return i
			}
		}
		return -1
	case matchWildcard:
		crit := eval.ParseCriterion(needle)
		for _, i := range order {
			if crit.Matches(cells[i]) {
				return i
			}
		}
		return -1
	case matchNextSmaller:
		best := -1
		for _, i := range order {
			cmp, err := value.Compare(cells[i], needle)
			if err != nil {
				continue
			}
			if cmp == 0 {
				return i
			}
			if cmp < 0 && (best == -1 || isCloser(cells[i], cells[best])) {
				best = i
			}
		}
		return best
	case matchNextLarger:
		best := -1
		for _, i := range order {
			cmp, err := value.Compare(cells[i], needle)
			if err != nil {
				continue
			}
			if cmp == 0 {
				return i
			}
			if cmp > 0 && (best == -1 || isFurther(cells[i], cells[best])) {
				best = i
			}
		}
		return best
	}
	return -1
}

// isCloser reports whether a is larger than b (the closer next-smaller
// candidate); isFurther the reverse for next-larger.
func isCloser(a, b value.CellValue) bool {
	cmp, err := value.Compare(a, b)
	return err == nil && cmp > 0
}

func isFurther(a, b value.CellValue) bool {
	cmp, err := value.Compare(a, b)
	return err == nil && cmp < 0
}

func flatten(view corectx.RangeView) []value.CellValue {
	out := make([]value.CellValue, 0, view.Rows()*view.Cols())
	for cell := range view.All() {
		out = append(out, cell)
	}
	return out
}

// evalTableLookup implements VLOOKUP (horizontal=false, scan the first
// column) and HLOOKUP (scan the first row).
func evalTableLookup(ctx ast.EvalContext, args []ast.FuncArg, horizontal bool) (value.CellValue, error) {
	needle, err := scalarAt(ctx, args, 0)
	if err != nil {
		return value.CellValue{}, err
	}
	view, err := viewArg(ctx, args[1])
	if err != nil {
		return value.CellValue{}, err
	}
	index, err := intOr(ctx, args, 2, 1)
	if err != nil {
		return value.CellValue{}, err
	}
	approximate := true
	if !omitted(args, 3) {
		approximate, err = boolAt(ctx, args, 3)
		if err != nil {
			return value.CellValue{}, err
		}
	}

	limit := view.Cols()
	if horizontal {
		limit = view.Rows()
	}
	if index < 1 || index > limit {
		return value.CellValue{}, &eval.EvalError{
			Kind:      eval.ErrEvalFailed,
			Message:   fmt.Sprintf("lookup index %d is outside the table's %d columns", index, limit),
			ExcelKind: value.ErrRef,
		}
	}

	axisLen := view.Rows()
	if horizontal {
		axisLen = view.Cols()
	}
	axis := make([]value.CellValue, axisLen)
	for i := 0; i < axisLen; i++ {
		if horizontal {
			axis[i] = view.At(0, i)
		} else {
			axis[i] = view.At(i, 0)
		}
	}

	mode := matchExact
	if approximate {
		mode = matchNextSmaller
	}
	at := findMatch(needle, axis, mode, false)
	if at == -1 {
		return value.CellValue{}, failf(value.ErrNA, "lookup value not found")
	}
	if horizontal {
		return view.At(index-1, at), nil
	}
	return view.At(at, index-1), nil
}

func evalXlookup(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
	needle, err := scalarAt(ctx, args, 0)
	if err != nil {
		return value.CellValue{}, err
	}
	lookupView, err := viewArg(ctx, args[1])
	if err != nil {
		return value.CellValue{}, err
	}
	returnView, err := viewArg(ctx, args[2])
	if err != nil {
		return value.CellValue{}, err
	}
	matchModeArg, err := intOr(ctx, args, 4, 0)
	if err != nil {
		return value.CellValue{}, err
	}
	searchMode, err := intOr(ctx, args, 5, 1)
	if err != nil {
		return value.CellValue{}, err
	}

	lookup := flatten(lookupView)
	returns := flatten(returnView)
	if len(lookup) != len(returns) {
		return value.CellValue{}, failf(value.ErrValue, "XLOOKUP lookup and return arrays differ in length")
	}

	var mode matchMode
	switch matchModeArg {
	case 0:
		mode = matchExact
	case -1:
		mode = matchNextSmaller
	case 1:
		mode = matchNextLarger
	case 2:
		mode = matchWildcard
	default:
		return value.CellValue{}, failf(value.ErrValue, "XLOOKUP match mode must be -1, 0, 1, or 2")
	}
	reverse := searchMode == -1

	at := findMatch(needle, lookup, mode, reverse)
	if at == -1 {
		if !omitted(args, 3) {
			return scalarAt(ctx, args, 3)
		}
		return value.CellValue{}, failf(value.ErrNA, "XLOOKUP: value not found")
	}
	return returns[at], nil
}

package functions

import (
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

func registerCondAgg(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "SUMIF",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeAny), ast.OptionalRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			total := decimal.Zero
			err := singleCriterionFold(ctx, args, func(target value.CellValue) error {
				if target.Kind == value.KindError {
					return eval.FromCoercionError(target.AsCoercionError())
				}
				if target.Kind == value.KindNumber {
					total = total.Add(target.Num)
				}
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(total), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "AVERAGEIF",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeAny), ast.OptionalRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			var w eval.Welford
			err := singleCriterionFold(ctx, args, func(target value.CellValue) error {
				if target.Kind == value.KindError {
					return eval.FromCoercionError(target.AsCoercionError())
				}
				if target.Kind == value.KindNumber {
					w.Add(target.Num)
				}
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			if w.Count() == 0 {
				return value.CellValue{}, &eval.EvalError{Kind: eval.ErrDivByZero, Message: "AVERAGEIF matched no numeric cells"}
			}
			return value.Num(w.Mean()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "COUNTIF",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			view, err := viewArg(ctx, args[0])
			if err != nil {
				return value.CellValue{}, err
			}
			critVal, err := scalarAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			crit := eval.ParseCriterion(critVal)
			n := int64(0)
			for cell := range view.All() {
				if crit.Matches(cell) {
					n++
				}
			}
			return value.NumFromInt(n), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "SUMIFS",
		Args: []ast.ArgSpec{ast.Range(), ast.Range(), ast.Scalar(ast.DecodeAny), ast.VariadicScalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			total := decimal.Zero
			err := multiCriteriaFold(ctx, args, func(target value.CellValue) error {
				if target.Kind == value.KindError {
					return eval.FromCoercionError(target.AsCoercionError())
				}
				if target.Kind == value.KindNumber {
					total = total.Add(target.Num)
				}
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(total), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "AVERAGEIFS",
		Args: []ast.ArgSpec{ast.Range(), ast.Range(), ast.Scalar(ast.DecodeAny), ast.VariadicScalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			var w eval.Welford
			err := multiCriteriaFold(ctx, args, func(target value.CellValue) error {
				if target.Kind == value.KindError {
					return eval.FromCoercionError(target.AsCoercionError())
				}
				if target.Kind == value.KindNumber {
					w.Add(target.Num)
				}
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			if w.Count() == 0 {
				return value.CellValue{}, &eval.EvalError{Kind: eval.ErrDivByZero, Message: "AVERAGEIFS matched no numeric cells"}
			}
			return value.Num(w.Mean()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "COUNTIFS",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeAny), ast.VariadicScalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			pairs, err := criteriaPairs(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			rows, cols := pairs[0].view.Rows(), pairs[0].view.Cols()
			n := int64(0)
			for row := 0; row < rows; row++ {
				for col := 0; col < cols; col++ {
					if allMatch(pairs, row, col) {
						n++
					}
				}
			}
			return value.NumFromInt(n), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "SUMPRODUCT",
		Args: []ast.ArgSpec{ast.Range(), ast.VariadicRange()},
		Eval: evalSumproduct,
	})
}

// singleCriterionFold drives SUMIF/AVERAGEIF: walk the criteria range,
// and for every matching cell hand fn the aligned cell of the sum range
// (the criteria range itself when the third argument is omitted).
func singleCriterionFold(ctx ast.EvalContext, args []ast.FuncArg, fn func(value.CellValue) error) error {
	critView, err := viewArg(ctx, args[0])
	if err != nil {
		return err
	}
	critVal, err := scalarAt(ctx, args, 1)
	if err != nil {
		return err
	}
	crit := eval.ParseCriterion(critVal)

	targetView := critView
	if !omitted(args, 2) {
		targetView, err = viewArg(ctx, args[2])
		if err != nil {
			return err
		}
	}

	for row := 0; row < critView.Rows(); row++ {
		for col := 0; col < critView.Cols(); col++ {
			if !crit.Matches(critView.At(row, col)) {
				continue
			}
			if err := fn(targetView.At(row, col)); err != nil {
				return err
			}
		}
	}
	return nil
}

type critPair struct {
	view corectx.RangeView
	crit eval.Criterion
}

// criteriaPairs reads (range, criterion) pairs starting at args[from],
// verifying every range shares the first one's dimensions — full-column
// inputs satisfy this by each being bounded against the same used
// range.
func criteriaPairs(ctx ast.EvalContext, args []ast.FuncArg, from int) ([]critPair, error) {
	var pairs []critPair
	for i := from; i < len(args); i += 2 {
		if args[i].Omitted {
			break
		}
		if omitted(args, i+1) {
			return nil, failf(value.ErrValue, "criteria range without a criterion")
		}
		view, err := viewArg(ctx, args[i])
		if err != nil {
			return nil, err
		}
		critVal, err := scalarAt(ctx, args, i+1)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, critPair{view: view, crit: eval.ParseCriterion(critVal)})
	}
	if len(pairs) == 0 {
		return nil, failf(value.ErrValue, "no criteria supplied")
	}
	rows, cols := pairs[0].view.Rows(), pairs[0].view.Cols()
	for _, p := range pairs[1:] {
		if p.view.Rows() != rows || p.view.Cols() != cols {
			return nil, failf(value.ErrValue, "criteria ranges have mismatched dimensions")
		}
	}
	return pairs, nil
}

func allMatch(pairs []critPair, row, col int) bool {
	for _, p := range pairs {
		if !p.crit.Matches(p.view.At(row, col)) {
			return false
		}
	}
	return true
}

// multiCriteriaFold drives SUMIFS/AVERAGEIFS: args[0] is the target
// range, followed by (range, criterion) pairs.
func multiCriteriaFold(ctx ast.EvalContext, args []ast.FuncArg, fn func(value.CellValue) error) error {
	targetView, err := viewArg(ctx, args[0])
	if err != nil {
		return err
	}
	pairs, err := criteriaPairs(ctx, args, 1)
	if err != nil {
		return err
	}
	if pairs[0].view.Rows() != targetView.Rows() || pairs[0].view.Cols() != targetView.Cols() {
		return failf(value.ErrValue, "criteria ranges and target range have mismatched dimensions")
	}
	for row := 0; row < targetView.Rows(); row++ {
		for col := 0; col < targetView.Cols(); col++ {
			if !allMatch(pairs, row, col) {
				continue
			}
			if err := fn(targetView.At(row, col)); err != nil {
				return err
			}
		}
	}
	return nil
}

// evalSumproduct multiplies its array arguments elementwise under the
// broadcasting rules and sums the products. Booleans coerce to 0/1, text
// to 0, empties to 0; error cells propagate.
func evalSumproduct(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
	var views []corectx.RangeView
	for i := range args {
		if args[i].Omitted {
			continue
		}
		view, err := viewArg(ctx, args[i])
		if err != nil {
			return value.CellValue{}, err
		}
		views = append(views, view)
	}

	rows, cols := 1, 1
	for _, v := range views {
		var ok bool
		rows, ok = reconcileDim(rows, v.Rows())
		if !ok {
			return value.CellValue{}, failf(value.ErrValue, "incompatible dimensions")
		}
		cols, ok = reconcileDim(cols, v.Cols())
		if !ok {
			return value.CellValue{}, failf(value.ErrValue, "incompatible dimensions")
		}
	}

	total := decimal.Zero
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			product := decimal.NewFromInt(1)
			for _, v := range views {
				d, err := sumproductCoerce(broadcastAt(v, row, col))
				if err != nil {
					return value.CellValue{}, err
				}
				product = product.Mul(d)
			}
			total = total.Add(product)
		}
	}
	return value.Num(total), nil
}

func reconcileDim(a, b int) (int, bool) {
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

func broadcastAt(v corectx.RangeView, row, col int) value.CellValue {
	if v.Rows() == 1 {
		row = 0
	}
	if v.Cols() == 1 {
		col = 0
	}
	return v.At(row, col)
}

func sumproductCoerce(v value.CellValue) (decimal.Decimal, error) {
	switch v.Kind {
	case value.KindError:
		return decimal.Decimal{}, eval.FromCoercionError(v.AsCoercionError())
	case value.KindNumber:
		return v.Num, nil
	case value.KindBool:
		if v.Bool {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case value.KindDateTime:
		return value.TimeToSerial(v.DateTime), nil
	default:
		return decimal.Zero, nil
	}
}

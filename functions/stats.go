package functions

import (
	"sort"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

func registerStats(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "AVERAGE",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			var w eval.Welford
			err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
				w.Add(d)
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			if w.Count() == 0 {
				return value.CellValue{}, &eval.EvalError{Kind: eval.ErrDivByZero, Message: "AVERAGE of no numeric values"}
			}
			return value.Num(w.Mean()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "AVERAGEA",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			// AVERAGEA counts text cells as 0 and booleans as 0/1 instead
			// of skipping them.
			var w eval.Welford
			err := foldCells(ctx, args, func(cell value.CellValue) error {
				switch cell.Kind {
				case value.KindError:
					return eval.FromCoercionError(cell.AsCoercionError())
				case value.KindEmpty:
					return nil
				case value.KindText, value.KindRichText:
					w.Add(decimal.Zero)
					return nil
				default:
					d, err := value.ToNumber(cell)
					if err != nil {
						w.Add(decimal.Zero)
						return nil
					}
					w.Add(d)
					return nil
				}
			})
			if err != nil {
				return value.CellValue{}, err
			}
			if w.Count() == 0 {
				return value.CellValue{}, &eval.EvalError{Kind: eval.ErrDivByZero, Message: "AVERAGEA of no values"}
			}
			return value.Num(w.Mean()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "COUNT",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			// Only cells holding numbers (or dates, which are serials)
			// count; text, bools, and blanks do not.
			n := int64(0)
			err := foldCells(ctx, args, func(cell value.CellValue) error {
				switch cell.Kind {
				case value.KindNumber, value.KindDateTime:
					n++
				}
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			return value.NumFromInt(n), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "COUNTA",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			n := int64(0)
			err := foldCells(ctx, args, func(cell value.CellValue) error {
				if cell.Kind != value.KindEmpty {
					n++
				}
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			return value.NumFromInt(n), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "COUNTBLANK",
		Args: []ast.ArgSpec{ast.Range()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			view, err := viewArg(ctx, args[0])
			if err != nil {
				return value.CellValue{}, err
			}
			n := int64(0)
			for cell := range view.All() {
				if cell.Kind == value.KindEmpty {
					n++
				}
			}
			return value.NumFromInt(n), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "MAX",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: extremum(func(cand, best decimal.Decimal) bool { return cand.GreaterThan(best) }),
	})

	r.Register(&ast.FunctionSpec{
		Name: "MIN",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: extremum(func(cand, best decimal.Decimal) bool { return cand.LessThan(best) }),
	})

	r.Register(&ast.FunctionSpec{
		Name: "MEDIAN",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			vals, err := collectNumbers(ctx, args)
			if err != nil {
				return value.CellValue{}, err
			}
			if len(vals) == 0 {
				return value.CellValue{}, failf(value.ErrNum, "MEDIAN of no numeric values")
			}
			sort.Slice(vals, func(i, j int) bool { return vals[i].LessThan(vals[j]) })
			mid := len(vals) / 2
			if len(vals)%2 == 1 {
				return value.Num(vals[mid]), nil
			}
			sum := vals[mid-1].Add(vals[mid])
			return value.Num(sum.DivRound(decimal.NewFromInt(2), value.DivisionPrecision)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "MODE",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			vals, err := collectNumbers(ctx, args)
			if err != nil {
				return value.CellValue{}, err
			}
			counts := map[string]int{}
			first := map[string]int{}
			reps := map[string]decimal.Decimal{}
			for i, v := range vals {
				key := v.String()
				counts[key]++
				if _, seen := first[key]; !seen {
					first[key] = i
					reps[key] = v
				}
			}
			bestKey, bestCount := "", 0
			for key, c := range counts {
				if c > bestCount || (c == bestCount && first[key] < first[bestKey]) {
					bestKey, bestCount = key, c
				}
			}
			if bestCount < 2 {
				return value.CellValue{}, failf(value.ErrNA, "MODE: no repeated value")
			}
			return value.Num(reps[bestKey]), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "STDEV",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: variance(func(w *eval.Welford) (decimal.Decimal, bool) { return w.SampleStdDev() }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "STDEVP",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: variance(func(w *eval.Welford) (decimal.Decimal, bool) { return w.PopulationStdDev() }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "VAR",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: variance(func(w *eval.Welford) (decimal.Decimal, bool) { return w.SampleVariance() }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "VARP",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: variance(func(w *eval.Welford) (decimal.Decimal, bool) { return w.PopulationVariance() }),
	})

	r.Register(&ast.FunctionSpec{
		Name: "LARGE",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeNumber)},
		Eval: kth(true),
	})
	r.Register(&ast.FunctionSpec{
		Name: "SMALL",
		Args: []ast.ArgSpec{ast.Range(), ast.Scalar(ast.DecodeNumber)},
		Eval: kth(false),
	})
}

// extremum builds MIN/MAX. The fold starts from the first numeric cell
// seen rather than a sentinel, and runs over the same single lazy pass as
// every other aggregate — no is-empty precheck may consume the head.
func extremum(better func(cand, best decimal.Decimal) bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		var best decimal.Decimal
		seen := false
		err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
			if !seen || better(d, best) {
				best = d
				seen = true
			}
			return nil
		})
		if err != nil {
			return value.CellValue{}, err
		}
		if !seen {
			return value.CellValue{}, failf(value.ErrNum, "no numeric values in range")
		}
		return value.Num(best), nil
	}
}

func variance(extract func(*eval.Welford) (decimal.Decimal, bool)) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		var w eval.Welford
		err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
			w.Add(d)
			return nil
		})
		if err != nil {
			return value.CellValue{}, err
		}
		out, ok := extract(&w)
		if !ok {
			return value.CellValue{}, &eval.EvalError{Kind: eval.ErrDivByZero, Message: "too few numeric values"}
		}
		return value.Num(out), nil
	}
}

func kth(largest bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		vals, err := collectNumbers(ctx, args[:1])
		if err != nil {
			return value.CellValue{}, err
		}
		k, err := intOr(ctx, args, 1, 1)
		if err != nil {
			return value.CellValue{}, err
		}
		if k < 1 || k > len(vals) {
			return value.CellValue{}, failf(value.ErrNum, "k out of range")
		}
		sort.Slice(vals, func(i, j int) bool {
			if largest {
				return vals[i].GreaterThan(vals[j])
			}
			return vals[i].LessThan(vals[j])
		})
		return value.Num(vals[k-1]), nil
	}
}

func collectNumbers(ctx ast.EvalContext, args []ast.FuncArg) ([]decimal.Decimal, error) {
	var vals []decimal.Decimal
	err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
		vals = append(vals, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vals, nil
}

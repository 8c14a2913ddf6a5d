package functions

import (
	"errors"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
)

func registerLogic(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name:         "IF",
		Args:         []ast.ArgSpec{ast.Scalar(ast.DecodeBool), ast.Scalar(ast.DecodeAny), ast.OptionalScalar(ast.DecodeAny)},
		ShortCircuit: true,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			cond, err := boolAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			if cond {
				return scalarAt(ctx, args, 1)
			}
			if omitted(args, 2) {
				return value.Bool(false), nil
			}
			return scalarAt(ctx, args, 2)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name:         "AND",
		Args:         []ast.ArgSpec{ast.VariadicRange()},
		ShortCircuit: true,
		Eval:         logicalFold(true),
	})
	r.Register(&ast.FunctionSpec{
		Name:         "OR",
		Args:         []ast.ArgSpec{ast.VariadicRange()},
		ShortCircuit: true,
		Eval:         logicalFold(false),
	})

	r.Register(&ast.FunctionSpec{
		Name: "NOT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeBool)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			b, err := boolAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Bool(!b), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "IFERROR",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			v, err := scalarAt(ctx, args, 0)
			if err == nil && !v.IsError() {
				return v, nil
			}
			if err != nil && !isEvalError(err) {
				return value.CellValue{}, err
			}
			return scalarAt(ctx, args, 1)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "IFNA",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			v, err := scalarAt(ctx, args, 0)
			if err == nil {
				if v.IsError() && v.Err == value.ErrNA {
					return scalarAt(ctx, args, 1)
				}
				return v, nil
			}
			if kind, ok := errorKindOf(err); ok && kind == value.ErrNA {
				return scalarAt(ctx, args, 1)
			}
			return value.CellValue{}, err
		},
	})

	r.Register(&ast.FunctionSpec{
		Name:         "IFS",
		Args:         []ast.ArgSpec{ast.Scalar(ast.DecodeBool), ast.Scalar(ast.DecodeAny), ast.VariadicScalar(ast.DecodeAny)},
		ShortCircuit: true,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			for i := 0; i+1 < len(args); i += 2 {
				if omitted(args, i) {
					break
				}
				cond, err := boolAt(ctx, args, i)
				if err != nil {
					return value.CellValue{}, err
				}
				if cond {
					return scalarAt(ctx, args, i+1)
				}
			}
			return value.CellValue{}, failf(value.ErrNA, "IFS: no condition was TRUE")
		},
	})

	r.Register(&ast.FunctionSpec{
		Name:         "SWITCH",
		Args:         []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Scalar(ast.DecodeAny), ast.VariadicScalar(ast.DecodeAny)},
		ShortCircuit: true,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			subject, err := scalarAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			i := 1
			for i+1 < len(args) && !omitted(args, i+1) {
				candidate, err := scalarAt(ctx, args, i)
				if err != nil {
					return value.CellValue{}, err
				}
				cmp, err := value.Compare(subject, candidate)
				if err == nil && cmp == 0 {
					return scalarAt(ctx, args, i+1)
				}
				i += 2
			}
			// A trailing unpaired argument is the default.
			if i < len(args) && !omitted(args, i) {
				return scalarAt(ctx, args, i)
			}
			return value.CellValue{}, failf(value.ErrNA, "SWITCH: no case matched")
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "ISERROR",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: errPredicate(func(kind value.ErrorKind) bool { return true }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "ISERR",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: errPredicate(func(kind value.ErrorKind) bool { return kind != value.ErrNA }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "ISNA",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: errPredicate(func(kind value.ErrorKind) bool { return kind == value.ErrNA }),
	})

	r.Register(&ast.FunctionSpec{
		Name: "ISNUMBER",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: kindPredicate(func(v value.CellValue) bool {
			return v.Kind == value.KindNumber || v.Kind == value.KindDateTime
		}),
	})
	r.Register(&ast.FunctionSpec{
		Name: "ISTEXT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: kindPredicate(func(v value.CellValue) bool {
			return v.Kind == value.KindText || v.Kind == value.KindRichText
		}),
	})
	r.Register(&ast.FunctionSpec{
		Name: "ISLOGICAL",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: kindPredicate(func(v value.CellValue) bool { return v.Kind == value.KindBool }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "ISBLANK",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: kindPredicate(func(v value.CellValue) bool { return v.Kind == value.KindEmpty }),
	})

	r.Register(&ast.FunctionSpec{
		Name: "ISREF",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			// ISREF is syntactic: it inspects the argument's form, not its
			// value.
			if args[0].IsRange {
				return value.Bool(true), nil
			}
			switch args[0].Scalar.(type) {
			case *ast.Ref, *ast.PolyRef, *ast.SheetRef, *ast.SheetPolyRef, *ast.RangeRef, *ast.SheetRangeRef:
				return value.Bool(true), nil
			}
			return value.Bool(false), nil
		},
	})
}

// logicalFold builds AND (all=true) and OR (all=false). Scalar arguments
// coerce to bool; range cells participate when they hold bools or
// numbers, matching Excel's rule of ignoring text and blanks inside
// ranges. Left-to-right short-circuit stops at the first decisive value.
func logicalFold(all bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		seen := false
		for i := range args {
			if args[i].Omitted {
				continue
			}
			if !args[i].IsRange {
				b, err := boolAt(ctx, args, i)
				if err != nil {
					return value.CellValue{}, err
				}
				seen = true
				if all && !b {
					return value.Bool(false), nil
				}
				if !all && b {
					return value.Bool(true), nil
				}
				continue
			}
			view, err := ctx.EvalRange(args[i].RangeLoc)
			if err != nil {
				return value.CellValue{}, err
			}
			for cell := range view.All() {
				switch cell.Kind {
				case value.KindError:
					return value.CellValue{}, eval.FromCoercionError(cell.AsCoercionError())
				case value.KindBool, value.KindNumber:
					b, err := value.ToBool(cell)
					if err != nil {
						return value.CellValue{}, eval.FromCoercionError(err)
					}
					seen = true
					if all && !b {
						return value.Bool(false), nil
					}
					if !all && b {
						return value.Bool(true), nil
					}
				}
			}
		}
		if !seen {
			return value.CellValue{}, failf(value.ErrValue, "no logical values")
		}
		return value.Bool(all), nil
	}
}

// errPredicate builds ISERROR/ISERR/ISNA, which turn an evaluation error
// into a TRUE/FALSE result instead of propagating it.
func errPredicate(match func(value.ErrorKind) bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		v, err := scalarAt(ctx, args, 0)
		if err != nil {
			kind, ok := errorKindOf(err)
			if !ok {
				return value.CellValue{}, err
			}
			return value.Bool(match(kind)), nil
		}
		if v.IsError() {
			return value.Bool(match(v.Err)), nil
		}
		return value.Bool(false), nil
	}
}

func kindPredicate(match func(value.CellValue) bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		v, err := scalarAt(ctx, args, 0)
		if err != nil {
			if _, ok := errorKindOf(err); ok {
				return value.Bool(false), nil
			}
			return value.CellValue{}, err
		}
		return value.Bool(match(v)), nil
	}
}

func isEvalError(err error) bool {
	_, ok := errorKindOf(err)
	return ok
}

// errorKindOf extracts the Excel error kind err would surface as, when err
// is a recoverable EvalError (or a bare coercion error that has not been
// wrapped yet).
func errorKindOf(err error) (value.ErrorKind, bool) {
	var ee *eval.EvalError
	if errors.As(err, &ee) {
		return ee.ToCellError(), true
	}
	var ce *value.CoercionError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

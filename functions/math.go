package functions

import (
	"math"
	"math/rand"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

func registerMath(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "SUM",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			total := decimal.Zero
			err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
				total = total.Add(d)
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(total), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "PRODUCT",
		Args: []ast.ArgSpec{ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			product := decimal.NewFromInt(1)
			any := false
			err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
				product = product.Mul(d)
				any = true
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			if !any {
				return value.Num(decimal.Zero), nil
			}
			return value.Num(product), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "ABS",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(d.Abs()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "SIGN",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.NumFromInt(int64(d.Sign())), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "INT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			// INT rounds toward negative infinity: INT(-1.5) = -2.
			floor := d.Floor()
			return value.Num(floor), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "TRUNC",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			digits, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(d.Truncate(int32(digits))), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "ROUND",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			digits, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(d.Round(int32(digits))), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "ROUNDUP",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			digits, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			// Away from zero.
			shift := decimal.New(1, int32(digits))
			scaled := d.Mul(shift)
			if scaled.Equal(scaled.Truncate(0)) {
				return value.Num(d), nil
			}
			if d.IsNegative() {
				return value.Num(scaled.Floor().Div(shift)), nil
			}
			return value.Num(scaled.Ceil().Div(shift)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "ROUNDDOWN",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			digits, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(d.Truncate(int32(digits))), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "FLOOR",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			sig, err := numberOr(ctx, args, 1, decimal.NewFromInt(1))
			if err != nil {
				return value.CellValue{}, err
			}
			return roundToMultiple(d, sig, false)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "CEILING",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			sig, err := numberOr(ctx, args, 1, decimal.NewFromInt(1))
			if err != nil {
				return value.CellValue{}, err
			}
			return roundToMultiple(d, sig, true)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "SQRT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			s, err := value.Sqrt(d)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			return value.Num(s), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "POWER",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			base, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			exp, err := numberAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			p, err := value.Pow(base, exp)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			return value.Num(p), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "MOD",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			n, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			d, err := numberAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			if d.IsZero() {
				return value.CellValue{}, failf(value.ErrDiv0, "MOD divisor is zero")
			}
			// Excel's MOD takes the sign of the divisor.
			m := n.Mod(d)
			if !m.IsZero() && m.Sign() != d.Sign() {
				m = m.Add(d)
			}
			return value.Num(m), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "EXP",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			f, _ := d.Float64()
			out := math.Exp(f)
			if math.IsInf(out, 0) {
				return value.CellValue{}, failf(value.ErrNum, "EXP overflow")
			}
			return value.NumFromFloat(out), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "LN",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			out, err := value.Ln(d)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			return value.Num(out), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "LOG",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			base, err := numberOr(ctx, args, 1, decimal.NewFromInt(10))
			if err != nil {
				return value.CellValue{}, err
			}
			num, err := value.Ln(d)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			den, err := value.Ln(base)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			if den.IsZero() {
				return value.CellValue{}, failf(value.ErrDiv0, "LOG base 1")
			}
			out, err := value.Div(num, den)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			return value.Num(out), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "LOG10",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			d, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			num, err := value.Ln(d)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			den, _ := value.Ln(decimal.NewFromInt(10))
			out, err := value.Div(num, den)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			return value.Num(out), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "PI",
		Args: nil,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			return value.NumFromFloat(math.Pi), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "RAND",
		Args: nil,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			return value.NumFromFloat(rand.Float64()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "RANDBETWEEN",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			lo, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			hi, err := numberAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			l, h := lo.IntPart(), hi.IntPart()
			if l > h {
				return value.CellValue{}, failf(value.ErrNum, "RANDBETWEEN bounds inverted")
			}
			return value.NumFromInt(l + rand.Int63n(h-l+1)), nil
		},
	})
}

// roundToMultiple implements FLOOR/CEILING: round d to the nearest
// multiple of sig, downward or upward.
func roundToMultiple(d, sig decimal.Decimal, up bool) (value.CellValue, error) {
	if sig.IsZero() {
		return value.Num(decimal.Zero), nil
	}
	if d.Sign() > 0 && sig.Sign() < 0 {
		return value.CellValue{}, failf(value.ErrNum, "significance sign mismatch")
	}
	q := d.Div(sig)
	if up {
		q = q.Ceil()
	} else {
		q = q.Floor()
	}
	return value.Num(q.Mul(sig)), nil
}

package eval

import (
	"errors"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/parser"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

// Evaluator walks a type-resolved expression tree against an environment.
// It implements ast.EvalContext, so function-registry closures can call
// back into it for their argument sub-expressions and range views.
type Evaluator struct {
	env      corectx.Env
	registry *ast.Registry
	limits   corectx.Limits
}

// New builds an Evaluator over env. registry is needed to parse uncached
// formula cells encountered during reference resolution.
func New(env corectx.Env, registry *ast.Registry, limits corectx.Limits) *Evaluator {
	return &Evaluator{env: env, registry: registry, limits: limits}
}

func (ev *Evaluator) Env() corectx.Env        { return ev.env }
func (ev *Evaluator) Limits() corectx.Limits  { return ev.limits }
func (ev *Evaluator) Registry() *ast.Registry { return ev.registry }

// result is the internal evaluation result: a scalar cell value, or a 2-D
// view when the expression is array-shaped (a range reference, an array
// literal, or an elementwise operation over those).
type result struct {
	val  value.CellValue
	view corectx.RangeView
}

func scalar(v value.CellValue) result        { return result{val: v} }
func arrayRes(v corectx.RangeView) result    { return result{view: v} }
func (r result) isArray() bool               { return r.view != nil }

// collapse applies Excel's implicit intersection: an array used where a
// scalar is expected contributes its top-left element.
func (r result) collapse() value.CellValue {
	if !r.isArray() {
		return r.val
	}
	if r.view.Rows() == 0 || r.view.Cols() == 0 {
		return value.Empty()
	}
	return r.view.At(0, 0)
}

// Eval evaluates e to a scalar cell value, collapsing an array result to
// its top-left element. This is the ast.EvalContext entry point function
// closures use for their scalar arguments.
func (ev *Evaluator) Eval(e ast.Expr) (value.CellValue, error) {
	r, err := ev.eval(e)
	if err != nil {
		return value.CellValue{}, err
	}
	return r.collapse(), nil
}

// EvalView implements ast.EvalContext for functions whose arguments may be
// array-shaped (SUMPRODUCT over a TRANSPOSE call, for instance).
func (ev *Evaluator) EvalView(e ast.Expr) (corectx.RangeView, bool, error) {
	return ev.EvalArray(e)
}

// EvalArray evaluates e and reports whether the result is array-shaped;
// the sheetface array-formula entry point uses this, everything else goes
// through Eval.
func (ev *Evaluator) EvalArray(e ast.Expr) (corectx.RangeView, bool, error) {
	r, err := ev.eval(e)
	if err != nil {
		return nil, false, err
	}
	if r.isArray() {
		return r.view, true, nil
	}
	return nil, false, nil
}

func (ev *Evaluator) eval(e ast.Expr) (result, error) {
	switch n := e.(type) {
	case *ast.Lit:
		return scalar(n.Value), nil

	case *ast.Ref:
		v, err := ev.resolveRef(ev.env.Sheet(), n.At, n.Decoder)
		if err != nil {
			return result{}, err
		}
		return scalar(v), nil

	case *ast.PolyRef:
		// Unresolved trees built programmatically still evaluate; the
		// decoder defaults to pass-through.
		v, err := ev.resolveRef(ev.env.Sheet(), n.At, ast.DecodeAny)
		if err != nil {
			return result{}, err
		}
		return scalar(v), nil

	case *ast.SheetRef:
		sheet, err := ev.resolveSheet(n.Sheet)
		if err != nil {
			return result{}, err
		}
		v, err := ev.resolveRefOn(sheet, n.At, n.Decoder)
		if err != nil {
			return result{}, err
		}
		return scalar(v), nil

	case *ast.SheetPolyRef:
		sheet, err := ev.resolveSheet(n.Sheet)
		if err != nil {
			return result{}, err
		}
		v, err := ev.resolveRefOn(sheet, n.At, ast.DecodeAny)
		if err != nil {
			return result{}, err
		}
		return scalar(v), nil

	case *ast.NameRef:
		rng, ok := ev.env.Names().Lookup(n.Name)
		if !ok {
			return result{}, &EvalError{
				Kind:      ErrEvalFailed,
				Message:   "unknown name " + n.Name,
				ExcelKind: value.ErrName,
			}
		}
		view, err := ev.EvalRange(ast.RangeLocation{Range: rng})
		if err != nil {
			return result{}, err
		}
		if view.Rows() == 1 && view.Cols() == 1 {
			return scalar(view.At(0, 0)), nil
		}
		return arrayRes(view), nil

	case *ast.RangeRef:
		view, err := ev.EvalRange(ast.RangeLocation{Range: n.Range})
		if err != nil {
			return result{}, err
		}
		return arrayRes(view), nil

	case *ast.SheetRangeRef:
		view, err := ev.EvalRange(ast.RangeLocation{Sheet: n.Sheet, Range: n.Range})
		if err != nil {
			return result{}, err
		}
		return arrayRes(view), nil

	case *ast.Arith:
		return ev.evalArith(n.Op, n.Left, n.Right)

	case *ast.ArrayBinOp:
		l, err := ev.eval(n.Left)
		if err != nil {
			return result{}, err
		}
		r, err := ev.eval(n.Right)
		if err != nil {
			return result{}, err
		}
		view, err := broadcast(n.Op, l, r)
		if err != nil {
			return result{}, err
		}
		return arrayRes(view), nil

	case *ast.Neg:
		d, err := ev.evalNumber(n.Operand)
		if err != nil {
			return result{}, err
		}
		return scalar(value.Num(value.Neg(d))), nil

	case *ast.Percent:
		d, err := ev.evalNumber(n.Operand)
		if err != nil {
			return result{}, err
		}
		return scalar(value.Num(value.Percent(d))), nil

	case *ast.Compare:
		return ev.evalCompare(n)

	case *ast.And:
		l, err := ev.evalBool(n.Left)
		if err != nil {
			return result{}, err
		}
		if !l {
			return scalar(value.Bool(false)), nil
		}
		r, err := ev.evalBool(n.Right)
		if err != nil {
			return result{}, err
		}
		return scalar(value.Bool(r)), nil

	case *ast.Or:
		l, err := ev.evalBool(n.Left)
		if err != nil {
			return result{}, err
		}
		if l {
			return scalar(value.Bool(true)), nil
		}
		r, err := ev.evalBool(n.Right)
		if err != nil {
			return result{}, err
		}
		return scalar(value.Bool(r)), nil

	case *ast.Not:
		b, err := ev.evalBool(n.Operand)
		if err != nil {
			return result{}, err
		}
		return scalar(value.Bool(!b)), nil

	case *ast.If:
		cond, err := ev.evalBool(n.Cond)
		if err != nil {
			return result{}, err
		}
		if cond {
			return ev.eval(n.Then)
		}
		return ev.eval(n.Else)

	case *ast.Concat:
		l, err := ev.evalText(n.Left)
		if err != nil {
			return result{}, err
		}
		r, err := ev.evalText(n.Right)
		if err != nil {
			return result{}, err
		}
		return scalar(value.Text(l + r)), nil

	case *ast.Array:
		cells := make([][]value.CellValue, n.Rows)
		for row := 0; row < n.Rows; row++ {
			cells[row] = make([]value.CellValue, n.Cols)
			for col := 0; col < n.Cols; col++ {
				v, err := ev.Eval(n.Cells[row*n.Cols+col])
				if err != nil {
					return result{}, err
				}
				cells[row][col] = v
			}
		}
		return arrayRes(corectx.ArrayRangeView{Cells: cells, SheetRef: ev.env.Sheet().Name()}), nil

	case *ast.Call:
		if n.Spec.ArrayEval != nil {
			view, err := n.Spec.ArrayEval(ev, n.Args)
			if err != nil {
				return result{}, AsEvalError(err)
			}
			return arrayRes(view), nil
		}
		v, err := n.Spec.Eval(ev, n.Args)
		if err != nil {
			return result{}, AsEvalError(err)
		}
		return scalar(v), nil

	default:
		return result{}, &EvalError{Kind: ErrEvalFailed, Message: "unsupported expression node"}
	}
}

// evalArith evaluates a binary arithmetic node. When either operand is
// array-shaped the operation broadcasts elementwise; otherwise both
// operands coerce to numbers and the scalar op applies.
func (ev *Evaluator) evalArith(op ast.ArithOp, left, right ast.Expr) (result, error) {
	l, err := ev.eval(left)
	if err != nil {
		return result{}, err
	}
	r, err := ev.eval(right)
	if err != nil {
		return result{}, err
	}
	if l.isArray() || r.isArray() {
		view, err := broadcast(op, l, r)
		if err != nil {
			return result{}, err
		}
		return arrayRes(view), nil
	}
	ln, err := value.ToNumber(l.val)
	if err != nil {
		return result{}, FromCoercionError(err)
	}
	rn, err := value.ToNumber(r.val)
	if err != nil {
		return result{}, FromCoercionError(err)
	}
	out, err := applyArith(op, ln, rn)
	if err != nil {
		return result{}, err
	}
	return scalar(value.Num(out)), nil
}

func (ev *Evaluator) evalCompare(n *ast.Compare) (result, error) {
	l, err := ev.Eval(n.Left)
	if err != nil {
		return result{}, err
	}
	r, err := ev.Eval(n.Right)
	if err != nil {
		return result{}, err
	}
	cmp, err := value.Compare(l, r)
	if err != nil {
		return result{}, FromCoercionError(err)
	}
	var out bool
	switch n.Op {
	case ast.OpLt:
		out = cmp < 0
	case ast.OpLte:
		out = cmp <= 0
	case ast.OpGt:
		out = cmp > 0
	case ast.OpGte:
		out = cmp >= 0
	case ast.OpEq:
		out = cmp == 0
	case ast.OpNeq:
		out = cmp != 0
	}
	return scalar(value.Bool(out)), nil
}

// resolveRef resolves a cell reference on the environment's own sheet.
func (ev *Evaluator) resolveRef(sheet corectx.Sheet, at address.ARef, dec ast.Decoder) (value.CellValue, error) {
	return ev.resolveRefOn(sheet, at, dec)
}

// resolveRefOn implements reference resolution: read the cell; for a
// formula cell use its cached result if present, otherwise parse and
// evaluate its source at depth+1 (the runtime cycle guard); decode the
// outcome through dec.
func (ev *Evaluator) resolveRefOn(sheet corectx.Sheet, at address.ARef, dec ast.Decoder) (value.CellValue, error) {
	raw := sheet.Get(at)
	if raw.Kind != value.KindFormula {
		v, err := dec.Apply(raw)
		if err != nil {
			return value.CellValue{}, FromCoercionError(err)
		}
		return v, nil
	}

	if raw.Formula.Cached != nil {
		v, err := dec.Apply(*raw.Formula.Cached)
		if err != nil {
			return value.CellValue{}, FromCoercionError(err)
		}
		return v, nil
	}

	depth := ev.env.Depth() + 1
	if depth > ev.limits.RecursionDepth {
		return value.CellValue{}, &EvalError{Kind: ErrRecursionLimit}
	}
	corectx.Logger().Debug().
		Str("cell", at.String()).
		Int("depth", depth).
		Msg("descending into uncached formula cell")

	sub, err := parser.Parse(raw.Formula.Source, ev.registry, ev.limits)
	if err != nil {
		// A parse failure inside a referenced cell is a dynamic condition
		// from this formula's point of view; it surfaces as #NAME? for an
		// unknown function, #REF! otherwise.
		kind := value.ErrRef
		var pe *parser.ParseError
		if errors.As(err, &pe) && pe.Kind == parser.ErrUnknownFunction {
			kind = value.ErrName
		}
		return value.CellValue{}, &EvalError{
			Kind:      ErrEvalFailed,
			Message:   "referenced formula failed to parse: " + err.Error(),
			Cause:     err,
			ExcelKind: kind,
		}
	}

	subEnv := ev.env.WithSheet(sheet).WithDepth(depth)
	subEval := New(subEnv, ev.registry, ev.limits)
	v, err := subEval.Eval(sub)
	if err != nil {
		return value.CellValue{}, AsEvalError(err)
	}
	out, err := dec.Apply(v)
	if err != nil {
		return value.CellValue{}, FromCoercionError(err)
	}
	return out, nil
}

func applyArith(op ast.ArithOp, a, b decimal.Decimal) (decimal.Decimal, error) {
	switch op {
	case ast.OpAdd:
		return value.Add(a, b), nil
	case ast.OpSub:
		return value.Sub(a, b), nil
	case ast.OpMul:
		return value.Mul(a, b), nil
	case ast.OpDiv:
		d, err := value.Div(a, b)
		if err != nil {
			return decimal.Decimal{}, FromCoercionError(err)
		}
		return d, nil
	case ast.OpPow:
		d, err := value.Pow(a, b)
		if err != nil {
			return decimal.Decimal{}, FromCoercionError(err)
		}
		return d, nil
	default:
		return decimal.Decimal{}, &EvalError{Kind: ErrEvalFailed, Message: "unknown arithmetic operator"}
	}
}

func (ev *Evaluator) evalNumber(e ast.Expr) (decimal.Decimal, error) {
	v, err := ev.Eval(e)
	if err != nil {
		return decimal.Decimal{}, err
	}
	d, err := value.ToNumber(v)
	if err != nil {
		return decimal.Decimal{}, FromCoercionError(err)
	}
	return d, nil
}

func (ev *Evaluator) evalBool(e ast.Expr) (bool, error) {
	v, err := ev.Eval(e)
	if err != nil {
		return false, err
	}
	b, err := value.ToBool(v)
	if err != nil {
		return false, FromCoercionError(err)
	}
	return b, nil
}

func (ev *Evaluator) evalText(e ast.Expr) (string, error) {
	v, err := ev.Eval(e)
	if err != nil {
		return "", err
	}
	s, err := value.ToText(v)
	if err != nil {
		return "", FromCoercionError(err)
	}
	return s, nil
}

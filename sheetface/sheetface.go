// Package sheetface is the orchestration façade (component H): it ties
// the parser, evaluator, function registry, and dependency analyzer into
// the entry points callers use — evaluate one formula, one cell, a range,
// or every formula on a sheet. Storage stays with the caller; the façade
// only ever reads the Sheet/Workbook it is handed.
package sheetface

import (
	"sort"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/depgraph"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/functions"
	"github.com/calcengine/formulacore/parser"
	"github.com/calcengine/formulacore/value"
	"github.com/pkg/errors"
)

// Engine holds the registry and limits an evaluation runs under. The zero
// configuration (every built-in, default limits) is what New returns.
type Engine struct {
	registry *ast.Registry
	limits   corectx.Limits
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry substitutes a custom function registry.
func WithRegistry(r *ast.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithLimits substitutes custom evaluation limits.
func WithLimits(l corectx.Limits) Option {
	return func(e *Engine) { e.limits = l }
}

// New builds an Engine with the full built-in function library and
// default limits, then applies opts.
func New(opts ...Option) *Engine {
	e := &Engine{registry: functions.DefaultRegistry(), limits: corectx.DefaultLimits()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvalOption configures one evaluation: clock, workbook, current cell,
// and named ranges are all optional collaborators.
type EvalOption func(*eval.Environment) *eval.Environment

func WithClock(c corectx.Clock) EvalOption {
	return func(env *eval.Environment) *eval.Environment { return env.WithClock(c) }
}

func WithWorkbook(wb corectx.Workbook) EvalOption {
	return func(env *eval.Environment) *eval.Environment { return env.WithWorkbook(wb) }
}

func WithCurrentCell(ref address.ARef) EvalOption {
	return func(env *eval.Environment) *eval.Environment { return env.WithCurrentCell(ref) }
}

func WithNames(names corectx.NameTable) EvalOption {
	return func(env *eval.Environment) *eval.Environment { return env.WithNames(names) }
}

func (e *Engine) environment(sheet corectx.Sheet, opts []EvalOption) *eval.Environment {
	env := eval.NewEnvironment(sheet)
	for _, opt := range opts {
		env = opt(env)
	}
	return env
}

// Parse exposes the engine's configured parse: formula text to a
// type-resolved expression tree.
func (e *Engine) Parse(source string) (ast.Expr, error) {
	return parser.Parse(source, e.registry, e.limits)
}

// Print renders an expression back to canonical formula text.
func (e *Engine) Print(expr ast.Expr) string {
	return parser.Print(expr)
}

// EvaluateFormula parses source and evaluates it against sheet. An
// array-shaped result is an internal error here — array formulas enter
// through EvaluateArrayFormula.
func (e *Engine) EvaluateFormula(sheet corectx.Sheet, source string, opts ...EvalOption) (value.CellValue, error) {
	expr, err := e.Parse(source)
	if err != nil {
		return value.CellValue{}, err
	}
	return e.evaluateExpr(sheet, expr, opts)
}

func (e *Engine) evaluateExpr(sheet corectx.Sheet, expr ast.Expr, opts []EvalOption) (value.CellValue, error) {
	ev := eval.New(e.environment(sheet, opts), e.registry, e.limits)
	if _, isArray, err := ev.EvalArray(expr); err != nil {
		return value.CellValue{}, err
	} else if isArray {
		// Implicit intersection would silently hide a shape bug at this
		// entry point, so refuse instead.
		return value.CellValue{}, errors.New("formula produced an array result; use EvaluateArrayFormula")
	}
	return ev.Eval(expr)
}

// EvaluateCell returns the cell's value unchanged for non-formula cells
// and a formula cell's cached result when it has one; otherwise it parses
// and evaluates the formula source with the current cell set to ref.
func (e *Engine) EvaluateCell(sheet corectx.Sheet, ref address.ARef, opts ...EvalOption) (value.CellValue, error) {
	cell := sheet.Get(ref)
	if cell.Kind != value.KindFormula {
		return cell, nil
	}
	if cell.Formula.Cached != nil {
		return *cell.Formula.Cached, nil
	}
	opts = append(append([]EvalOption(nil), opts...), WithCurrentCell(ref))
	return e.EvaluateFormula(sheet, cell.Formula.Source, opts...)
}

// EvaluateAllFormulas evaluates every formula cell on sheet in
// deterministic (row, col) order, failing fast on the first error.
func (e *Engine) EvaluateAllFormulas(sheet corectx.Sheet, opts ...EvalOption) (map[address.ARef]value.CellValue, error) {
	refs := formulaRefs(sheet)
	out := make(map[address.ARef]value.CellValue, len(refs))
	for _, ref := range refs {
		v, err := e.EvaluateCell(sheet, ref, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %s", ref)
		}
		out[ref] = v
	}
	return out, nil
}

// EvaluateWithDependencyCheck builds the dependency graph, rejects
// cycles, then evaluates sheet's formulas in topological order.
func (e *Engine) EvaluateWithDependencyCheck(sheet corectx.Sheet, opts ...EvalOption) (map[address.ARef]value.CellValue, error) {
	env := e.environment(sheet, opts)
	wb, ok := env.Workbook()
	if !ok {
		wb = corectx.NewMemWorkbook(sheet)
	}
	graph, err := depgraph.BuildWorkbookGraph(wb, e.registry, e.limits)
	if err != nil {
		return nil, err
	}
	if err := depgraph.DetectCycles(graph); err != nil {
		corectx.Logger().Debug().Err(err).Msg("dependency cycle rejected")
		var cyc *depgraph.CycleError
		if errors.As(err, &cyc) {
			return nil, &eval.EvalError{
				Kind:    eval.ErrCycleDetected,
				Message: err.Error(),
				Trace:   cyc.Nodes,
			}
		}
		return nil, err
	}

	out := map[address.ARef]value.CellValue{}
	for _, node := range depgraph.TopoOrder(graph) {
		target, ok := wb.Sheet(node.Sheet)
		if !ok {
			continue
		}
		v, err := e.EvaluateCell(target, node.Ref, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %s", node)
		}
		if node.Sheet == sheet.Name() {
			out[node.Ref] = v
		}
	}
	return out, nil
}

// EvaluateForRange evaluates only the formulas overlapping rng. Formulas
// outside the range that they transitively depend on are still evaluated
// through reference resolution, but do not appear in the result map.
func (e *Engine) EvaluateForRange(sheet corectx.Sheet, rng address.CellRange, opts ...EvalOption) (map[address.ARef]value.CellValue, error) {
	out := map[address.ARef]value.CellValue{}
	for _, ref := range formulaRefs(sheet) {
		if !rng.Contains(ref) {
			continue
		}
		v, err := e.EvaluateCell(sheet, ref, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "evaluating %s", ref)
		}
		out[ref] = v
	}
	return out, nil
}

// EvaluateArrayFormula evaluates source as an array formula and spills
// the elements into cells starting at anchor, returning the new sheet
// and the spill extent. A scalar result spills as a 1x1 range.
func (e *Engine) EvaluateArrayFormula(sheet corectx.Sheet, source string, anchor address.ARef, opts ...EvalOption) (corectx.Sheet, address.CellRange, error) {
	expr, err := e.Parse(source)
	if err != nil {
		return nil, address.CellRange{}, err
	}
	ev := eval.New(e.environment(sheet, opts), e.registry, e.limits)
	view, isArray, err := ev.EvalArray(expr)
	if err != nil {
		return nil, address.CellRange{}, err
	}

	var cells [][]value.CellValue
	if isArray {
		cells = make([][]value.CellValue, view.Rows())
		for r := 0; r < view.Rows(); r++ {
			cells[r] = make([]value.CellValue, view.Cols())
			for c := 0; c < view.Cols(); c++ {
				cells[r][c] = view.At(r, c)
			}
		}
	} else {
		v, err := ev.Eval(expr)
		if err != nil {
			return nil, address.CellRange{}, err
		}
		cells = [][]value.CellValue{{v}}
	}

	out := corectx.MemSheetFrom(sheet)
	for r, row := range cells {
		for c, v := range row {
			at := address.ARef{Col: anchor.Col + uint32(c), Row: anchor.Row + uint32(r)}
			out = out.Put(at, v)
		}
	}
	spill := address.NewRange(anchor, address.ARef{
		Col: anchor.Col + uint32(len(cells[0])) - 1,
		Row: anchor.Row + uint32(len(cells)) - 1,
	})
	return out, spill, nil
}

// formulaRefs lists sheet's formula cells in (row, col) order.
func formulaRefs(sheet corectx.Sheet) []address.ARef {
	var refs []address.ARef
	for ref, cell := range sheet.Cells() {
		if cell.Kind == value.KindFormula {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

package sheetface

import (
	"errors"
	"testing"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/parser"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sheetFixture is the fluent builder the evaluation tests share: set
// cells by A1 address, then assert formula results against them.
type sheetFixture struct {
	t      *testing.T
	engine *Engine
	sheet  *corectx.MemSheet
	opts   []EvalOption
}

func newFixture(t *testing.T) *sheetFixture {
	return &sheetFixture{t: t, engine: New(), sheet: corectx.NewMemSheet("Sheet1")}
}

func (f *sheetFixture) ref(a1 string) address.ARef {
	f.t.Helper()
	ref, _, err := address.ParseA1(a1)
	require.NoError(f.t, err)
	return ref
}

func (f *sheetFixture) Set(a1 string, v value.CellValue) *sheetFixture {
	f.sheet = f.sheet.Put(f.ref(a1), v)
	return f
}

func (f *sheetFixture) SetNumber(a1 string, n int64) *sheetFixture {
	return f.Set(a1, value.NumFromInt(n))
}

func (f *sheetFixture) SetText(a1, s string) *sheetFixture {
	return f.Set(a1, value.Text(s))
}

func (f *sheetFixture) SetFormula(a1, src string) *sheetFixture {
	return f.Set(a1, value.Formula(src, nil))
}

func (f *sheetFixture) With(opts ...EvalOption) *sheetFixture {
	f.opts = append(f.opts, opts...)
	return f
}

func (f *sheetFixture) Eval(src string) (value.CellValue, error) {
	return f.engine.EvaluateFormula(f.sheet, src, f.opts...)
}

func (f *sheetFixture) ExpectNumber(src string, want float64) *sheetFixture {
	f.t.Helper()
	v, err := f.Eval(src)
	require.NoError(f.t, err, src)
	require.Equal(f.t, value.KindNumber, v.Kind, "%s gave %v", src, v)
	got, _ := v.Num.Float64()
	assert.InDelta(f.t, want, got, 1e-9, src)
	return f
}

func (f *sheetFixture) ExpectText(src, want string) *sheetFixture {
	f.t.Helper()
	v, err := f.Eval(src)
	require.NoError(f.t, err, src)
	assert.Equal(f.t, want, v.Text, src)
	return f
}

func (f *sheetFixture) ExpectEvalError(src string, kind eval.EvalErrorKind) *sheetFixture {
	f.t.Helper()
	_, err := f.Eval(src)
	require.Error(f.t, err, src)
	var ee *eval.EvalError
	require.ErrorAs(f.t, err, &ee, src)
	assert.Equal(f.t, kind, ee.Kind, src)
	return f
}

func TestScenarioSum(t *testing.T) {
	// S1: SUM over a column of numbers.
	newFixture(t).
		SetNumber("A1", 10).
		SetNumber("A2", 20).
		SetNumber("A3", 30).
		ExpectNumber("=SUM(A1:A3)", 60)
}

func TestScenarioDivision(t *testing.T) {
	// S2 and S3: plain division and division by zero.
	newFixture(t).
		SetNumber("A1", 100).
		SetNumber("B1", 4).
		ExpectNumber("=A1/B1", 25)

	newFixture(t).
		SetNumber("A1", 100).
		SetNumber("B1", 0).
		ExpectEvalError("=A1/B1", eval.ErrDivByZero)
}

func TestScenarioConditional(t *testing.T) {
	// S4: IF with a comparison over a cell.
	newFixture(t).
		SetNumber("A1", 5).
		ExpectText(`=IF(A1>0,"Positive","Non-positive")`, "Positive")
}

func TestScenarioNPV(t *testing.T) {
	// S5: NPV against the manual discounted sum.
	want := -1000/1.1 + 300/(1.1*1.1) + 400/(1.1*1.1*1.1)
	f := newFixture(t).
		SetNumber("A1", -1000).
		SetNumber("A2", 300).
		SetNumber("A3", 400)
	v, err := f.Eval("=NPV(0.1,A1:A3)")
	require.NoError(t, err)
	got, _ := v.Num.Float64()
	assert.InDelta(t, want, got, 0.01)
}

func TestScenarioArraySpill(t *testing.T) {
	// S6: A1:B2 * TRANSPOSE(D1:D2) anchored at F1 spills [[2,6],[6,12]].
	f := newFixture(t).
		SetNumber("A1", 1).SetNumber("B1", 2).
		SetNumber("A2", 3).SetNumber("B2", 4).
		SetNumber("D1", 2).SetNumber("D2", 3)

	anchor := f.ref("F1")
	out, spill, err := f.engine.EvaluateArrayFormula(f.sheet, "=A1:B2*TRANSPOSE(D1:D2)", anchor)
	require.NoError(t, err)
	assert.Equal(t, 2, spill.Rows())
	assert.Equal(t, 2, spill.Cols())
	assert.Equal(t, anchor, spill.Start)

	expect := map[string]int64{"F1": 2, "G1": 6, "F2": 6, "G2": 12}
	for a1, want := range expect {
		cell := out.Get(f.ref(a1))
		require.Equal(t, value.KindNumber, cell.Kind, a1)
		assert.True(t, cell.Num.Equal(decimal.NewFromInt(want)), "%s = %s", a1, cell.Num)
	}
}

func TestScenarioSumif(t *testing.T) {
	// S7: SUMIF over a keyed column.
	newFixture(t).
		SetText("A1", "Apple").SetNumber("B1", 10).
		SetText("A2", "Apple").SetNumber("B2", 20).
		SetText("A3", "Banana").SetNumber("B3", 30).
		ExpectNumber(`=SUMIF(A1:A3,"Apple",B1:B3)`, 30)
}

func TestScenarioCycleDetection(t *testing.T) {
	// S8: A1 and B1 reference each other.
	f := newFixture(t).
		SetFormula("A1", "=B1").
		SetFormula("B1", "=A1")

	_, err := f.engine.EvaluateWithDependencyCheck(f.sheet)
	require.Error(t, err)
	var ee *eval.EvalError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, eval.ErrCycleDetected, ee.Kind)
	assert.NotEmpty(t, ee.Trace)
}

func TestEvaluateCell(t *testing.T) {
	f := newFixture(t).
		SetNumber("A1", 21).
		SetFormula("B1", "=A1*2").
		SetText("C1", "plain")

	v, err := f.engine.EvaluateCell(f.sheet, f.ref("B1"))
	require.NoError(t, err)
	got, _ := v.Num.Float64()
	assert.InDelta(t, 42, got, 1e-9)

	// Non-formula cells come back unchanged.
	v, err = f.engine.EvaluateCell(f.sheet, f.ref("C1"))
	require.NoError(t, err)
	assert.Equal(t, "plain", v.Text)

	// The cached result short-circuits re-evaluation.
	cached := value.NumFromInt(7)
	f.Set("D1", value.Formula("=A1*100", &cached))
	v, err = f.engine.EvaluateCell(f.sheet, f.ref("D1"))
	require.NoError(t, err)
	assert.True(t, v.Num.Equal(decimal.NewFromInt(7)))
}

func TestEvaluateAllFormulas(t *testing.T) {
	f := newFixture(t).
		SetNumber("A1", 2).
		SetFormula("B1", "=A1*10").
		SetFormula("B2", "=A1*100")

	results, err := f.engine.EvaluateAllFormulas(f.sheet)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[f.ref("B1")].Num.Equal(decimal.NewFromInt(20)))
	assert.True(t, results[f.ref("B2")].Num.Equal(decimal.NewFromInt(200)))

	// Fail-fast: one bad formula fails the whole pass.
	f.SetFormula("C1", "=1/0")
	_, err = f.engine.EvaluateAllFormulas(f.sheet)
	require.Error(t, err)
}

func TestEvaluateWithDependencyCheckOrders(t *testing.T) {
	f := newFixture(t).
		SetNumber("A1", 1).
		SetFormula("B1", "=A1+1").
		SetFormula("C1", "=B1+1")

	results, err := f.engine.EvaluateWithDependencyCheck(f.sheet)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[f.ref("C1")].Num.Equal(decimal.NewFromInt(3)))
}

func TestEvaluateForRange(t *testing.T) {
	f := newFixture(t).
		SetNumber("A1", 1).
		SetFormula("B1", "=A1*2").
		SetFormula("B9", "=B1*10")

	rng := address.NewRange(f.ref("B5"), f.ref("B9"))
	results, err := f.engine.EvaluateForRange(f.sheet, rng)
	require.NoError(t, err)
	// Only B9 is inside the range; its dependency B1 was evaluated
	// transitively but stays out of the result map.
	require.Len(t, results, 1)
	assert.True(t, results[f.ref("B9")].Num.Equal(decimal.NewFromInt(20)))
}

func TestCrossSheetEvaluation(t *testing.T) {
	data := corectx.NewMemSheet("Data")
	ref, _, err := address.ParseA1("A1")
	require.NoError(t, err)
	data = data.Put(ref, value.NumFromInt(7))

	f := newFixture(t).With(WithWorkbook(corectx.NewMemWorkbook(corectx.NewMemSheet("Sheet1"), data)))
	f.ExpectNumber("=Data!A1*3", 21)
}

func TestArrayResultRejectedAtScalarEntryPoint(t *testing.T) {
	f := newFixture(t).
		SetNumber("A1", 1).SetNumber("A2", 2)
	_, err := f.Eval("=TRANSPOSE(A1:A2)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EvaluateArrayFormula")
}

func TestParseErrorsSurfaceUnchanged(t *testing.T) {
	f := newFixture(t)
	_, err := f.Eval("=NOSUCHFN(1)")
	require.Error(t, err)
	// A parse error is not an EvalError and IFERROR cannot catch it.
	var ee *eval.EvalError
	assert.False(t, errors.As(err, &ee))
	var pe *parser.ParseError
	assert.True(t, errors.As(err, &pe))
}

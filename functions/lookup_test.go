package functions_test

import (
	"testing"

	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/functions"
	"github.com/calcengine/formulacore/parser"
	"github.com/calcengine/formulacore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupSheet(t *testing.T) *corectx.MemSheet {
	t.Helper()
	// A: keys, B: quantities, C: prices.
	return sheetOf(t, map[string]value.CellValue{
		"A1": value.Text("Apple"), "B1": value.NumFromInt(10), "C1": value.NumFromFloat(0.5),
		"A2": value.Text("Banana"), "B2": value.NumFromInt(20), "C2": value.NumFromFloat(0.25),
		"A3": value.Text("Cherry"), "B3": value.NumFromInt(30), "C3": value.NumFromFloat(3),
	})
}

func TestVlookup(t *testing.T) {
	sheet := lookupSheet(t)

	v := runOK(t, sheet, `=VLOOKUP("Banana", A1:C3, 2, FALSE)`)
	assert.InDelta(t, 20, num(t, v), 1e-9)

	// Case-insensitive exact match.
	v = runOK(t, sheet, `=VLOOKUP("banana", A1:C3, 3, FALSE)`)
	assert.InDelta(t, 0.25, num(t, v), 1e-9)

	// Wildcards work in exact mode.
	v = runOK(t, sheet, `=VLOOKUP("Che*", A1:C3, 2, FALSE)`)
	assert.InDelta(t, 30, num(t, v), 1e-9)

	_, err := run(t, sheet, `=VLOOKUP("Durian", A1:C3, 2, FALSE)`)
	assert.Equal(t, value.ErrNA, errKind(t, err))

	_, err = run(t, sheet, `=VLOOKUP("Apple", A1:C3, 9, FALSE)`)
	assert.Equal(t, value.ErrRef, errKind(t, err))
}

func TestVlookupApproximate(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(10), "B1": value.Text("low"),
		"A2": value.NumFromInt(20), "B2": value.Text("mid"),
		"A3": value.NumFromInt(30), "B3": value.Text("high"),
	})
	v := runOK(t, sheet, "=VLOOKUP(25, A1:B3, 2)")
	assert.Equal(t, "mid", v.Text)
	v = runOK(t, sheet, "=VLOOKUP(30, A1:B3, 2)")
	assert.Equal(t, "high", v.Text)
	_, err := run(t, sheet, "=VLOOKUP(5, A1:B3, 2)")
	assert.Equal(t, value.ErrNA, errKind(t, err))
}

func TestHlookup(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.Text("q1"), "B1": value.Text("q2"),
		"A2": value.NumFromInt(100), "B2": value.NumFromInt(200),
	})
	v := runOK(t, sheet, `=HLOOKUP("q2", A1:B2, 2, FALSE)`)
	assert.InDelta(t, 200, num(t, v), 1e-9)
}

func TestXlookup(t *testing.T) {
	sheet := lookupSheet(t)

	v := runOK(t, sheet, `=XLOOKUP("Cherry", A1:A3, B1:B3)`)
	assert.InDelta(t, 30, num(t, v), 1e-9)

	v = runOK(t, sheet, `=XLOOKUP("Durian", A1:A3, B1:B3, "missing")`)
	assert.Equal(t, "missing", v.Text)

	_, err := run(t, sheet, `=XLOOKUP("Durian", A1:A3, B1:B3)`)
	assert.Equal(t, value.ErrNA, errKind(t, err))

	// Next-smaller and next-larger match modes.
	nums := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(10), "B1": value.NumFromInt(1),
		"A2": value.NumFromInt(20), "B2": value.NumFromInt(2),
		"A3": value.NumFromInt(30), "B3": value.NumFromInt(3),
	})
	v = runOK(t, nums, `=XLOOKUP(25, A1:A3, B1:B3, "x", -1)`)
	assert.InDelta(t, 2, num(t, v), 1e-9)
	v = runOK(t, nums, `=XLOOKUP(25, A1:A3, B1:B3, "x", 1)`)
	assert.InDelta(t, 3, num(t, v), 1e-9)

	// Reverse search finds the last occurrence.
	dup := sheetOf(t, map[string]value.CellValue{
		"A1": value.Text("k"), "B1": value.NumFromInt(1),
		"A2": value.Text("k"), "B2": value.NumFromInt(2),
	})
	v = runOK(t, dup, `=XLOOKUP("k", A1:A2, B1:B2, "x", 0, -1)`)
	assert.InDelta(t, 2, num(t, v), 1e-9)
}

func TestIndexMatch(t *testing.T) {
	sheet := lookupSheet(t)

	v := runOK(t, sheet, "=INDEX(A1:C3, 2, 2)")
	assert.InDelta(t, 20, num(t, v), 1e-9)

	_, err := run(t, sheet, "=INDEX(A1:C3, 4, 1)")
	require.Error(t, err)
	assert.Equal(t, value.ErrRef, errKind(t, err))
	var ee *eval.EvalError
	require.ErrorAs(t, err, &ee)
	assert.Contains(t, ee.Message, "(4, 1)")
	assert.Contains(t, ee.Message, "3x3")

	v = runOK(t, sheet, `=MATCH("Cherry", A1:A3, 0)`)
	assert.InDelta(t, 3, num(t, v), 1e-9)

	nums := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(10), "A2": value.NumFromInt(20), "A3": value.NumFromInt(30),
	})
	v = runOK(t, nums, "=MATCH(25, A1:A3, 1)")
	assert.InDelta(t, 2, num(t, v), 1e-9)
	_, err = run(t, nums, "=MATCH(99, A1:A3, 0)")
	assert.Equal(t, value.ErrNA, errKind(t, err))

	// INDEX + MATCH composed, the classic lookup idiom.
	v = runOK(t, sheet, `=INDEX(B1:B3, MATCH("Banana", A1:A3, 0))`)
	assert.InDelta(t, 20, num(t, v), 1e-9)
}

func TestChooseRowsColumns(t *testing.T) {
	sheet := lookupSheet(t)
	v := runOK(t, sheet, `=CHOOSE(2, "a", "b", "c")`)
	assert.Equal(t, "b", v.Text)
	_, err := run(t, sheet, `=CHOOSE(4, "a", "b", "c")`)
	assert.Equal(t, value.ErrValue, errKind(t, err))

	assert.InDelta(t, 3, num(t, runOK(t, sheet, "=ROWS(A1:C3)")), 1e-9)
	assert.InDelta(t, 3, num(t, runOK(t, sheet, "=COLUMNS(A1:C3)")), 1e-9)
	assert.InDelta(t, 2, num(t, runOK(t, sheet, "=ROW(B2)")), 1e-9)
	assert.InDelta(t, 2, num(t, runOK(t, sheet, "=COLUMN(B2)")), 1e-9)
}

func TestRowColumnCurrentCell(t *testing.T) {
	sheet := lookupSheet(t)
	expr, err := parser.Parse("=ROW()+COLUMN()", functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	env := eval.NewEnvironment(sheet).WithCurrentCell(mustRef(t, "C7"))
	ev := eval.New(env, functions.DefaultRegistry(), corectx.DefaultLimits())
	v, err := ev.Eval(expr)
	require.NoError(t, err)
	assert.InDelta(t, 10, num(t, v), 1e-9) // row 7 + column 3
}

func TestSumifFamily(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.Text("Apple"), "B1": value.NumFromInt(10),
		"A2": value.Text("Apple"), "B2": value.NumFromInt(20),
		"A3": value.Text("Banana"), "B3": value.NumFromInt(30),
	})

	v := runOK(t, sheet, `=SUMIF(A1:A3, "Apple", B1:B3)`)
	assert.InDelta(t, 30, num(t, v), 1e-9)

	v = runOK(t, sheet, `=SUMIF(B1:B3, ">15")`)
	assert.InDelta(t, 50, num(t, v), 1e-9)

	v = runOK(t, sheet, `=COUNTIF(A1:A3, "App*")`)
	assert.InDelta(t, 2, num(t, v), 1e-9)

	v = runOK(t, sheet, `=AVERAGEIF(A1:A3, "Apple", B1:B3)`)
	assert.InDelta(t, 15, num(t, v), 1e-9)

	_, err := run(t, sheet, `=AVERAGEIF(A1:A3, "Durian", B1:B3)`)
	assert.Equal(t, value.ErrDiv0, errKind(t, err))
}

func TestSumifsFamily(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.Text("east"), "B1": value.Text("red"), "C1": value.NumFromInt(1),
		"A2": value.Text("east"), "B2": value.Text("blue"), "C2": value.NumFromInt(2),
		"A3": value.Text("west"), "B3": value.Text("red"), "C3": value.NumFromInt(4),
		"A4": value.Text("east"), "B4": value.Text("red"), "C4": value.NumFromInt(8),
	})

	v := runOK(t, sheet, `=SUMIFS(C1:C4, A1:A4, "east", B1:B4, "red")`)
	assert.InDelta(t, 9, num(t, v), 1e-9)

	v = runOK(t, sheet, `=COUNTIFS(A1:A4, "east", B1:B4, "red")`)
	assert.InDelta(t, 2, num(t, v), 1e-9)

	v = runOK(t, sheet, `=AVERAGEIFS(C1:C4, A1:A4, "east", B1:B4, "red")`)
	assert.InDelta(t, 4.5, num(t, v), 1e-9)

	// Full-column criteria ranges bound against the used range and stay
	// aligned.
	v = runOK(t, sheet, `=SUMIFS(C:C, A:A, "east", B:B, "red")`)
	assert.InDelta(t, 9, num(t, v), 1e-9)
}

func TestSumproduct(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(1), "B1": value.NumFromInt(10),
		"A2": value.NumFromInt(2), "B2": value.NumFromInt(20),
		"A3": value.NumFromInt(3), "B3": value.NumFromInt(30),
	})
	v := runOK(t, sheet, "=SUMPRODUCT(A1:A3, B1:B3)")
	assert.InDelta(t, 140, num(t, v), 1e-9)

	// Text coerces to 0, booleans to 0/1.
	mixed := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(5), "B1": value.Text("x"),
		"A2": value.NumFromInt(7), "B2": value.Bool(true),
	})
	v = runOK(t, mixed, "=SUMPRODUCT(A1:A2, B1:B2)")
	assert.InDelta(t, 7, num(t, v), 1e-9)

	bad := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(1), "A2": value.NumFromInt(2),
		"B1": value.NumFromInt(1), "B2": value.NumFromInt(2), "B3": value.NumFromInt(3),
	})
	_, err := run(t, bad, "=SUMPRODUCT(A1:A2, B1:B3)")
	assert.Equal(t, value.ErrValue, errKind(t, err))
}

func TestTranspose(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(1), "B1": value.NumFromInt(2),
		"A2": value.NumFromInt(3), "B2": value.NumFromInt(4),
	})
	expr, err := parser.Parse("=TRANSPOSE(A1:B2)", functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	ev := eval.New(eval.NewEnvironment(sheet), functions.DefaultRegistry(), corectx.DefaultLimits())
	view, isArray, err := ev.EvalArray(expr)
	require.NoError(t, err)
	require.True(t, isArray)
	assert.Equal(t, 2, view.Rows())
	assert.Equal(t, 2, view.Cols())
	assert.InDelta(t, 3, num(t, view.At(0, 1)), 1e-9)
	assert.InDelta(t, 2, num(t, view.At(1, 0)), 1e-9)
}

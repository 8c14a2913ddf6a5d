package functions_test

import (
	"testing"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/functions"
	"github.com/calcengine/formulacore/parser"
	"github.com/calcengine/formulacore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRef(t *testing.T, a1 string) address.ARef {
	t.Helper()
	ref, _, err := address.ParseA1(a1)
	require.NoError(t, err)
	return ref
}

func sheetOf(t *testing.T, cells map[string]value.CellValue) *corectx.MemSheet {
	t.Helper()
	s := corectx.NewMemSheet("Sheet1")
	for a1, v := range cells {
		s = s.Put(mustRef(t, a1), v)
	}
	return s
}

func run(t *testing.T, sheet corectx.Sheet, src string) (value.CellValue, error) {
	t.Helper()
	expr, err := parser.Parse(src, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err, src)
	ev := eval.New(eval.NewEnvironment(sheet), functions.DefaultRegistry(), corectx.DefaultLimits())
	return ev.Eval(expr)
}

func runOK(t *testing.T, sheet corectx.Sheet, src string) value.CellValue {
	t.Helper()
	v, err := run(t, sheet, src)
	require.NoError(t, err, src)
	return v
}

func num(t *testing.T, v value.CellValue) float64 {
	t.Helper()
	require.Equal(t, value.KindNumber, v.Kind, "got %v", v)
	f, _ := v.Num.Float64()
	return f
}

func errKind(t *testing.T, err error) value.ErrorKind {
	t.Helper()
	require.Error(t, err)
	var ee *eval.EvalError
	require.ErrorAs(t, err, &ee)
	return ee.ToCellError()
}

func TestRegistryCoverage(t *testing.T) {
	names := functions.DefaultRegistry().AllNames()
	assert.GreaterOrEqual(t, len(names), 82, "registry must carry the full library")
	for _, required := range []string{
		"SUM", "AVERAGE", "IF", "VLOOKUP", "NPV", "XIRR", "SUMIFS",
		"COUNTIF", "TRANSPOSE", "EOMONTH", "DATEDIF", "IFERROR",
	} {
		_, ok := functions.DefaultRegistry().Lookup(required)
		assert.True(t, ok, "missing %s", required)
	}
}

func TestMathBuiltins(t *testing.T) {
	sheet := corectx.NewMemSheet("Sheet1")
	cases := map[string]float64{
		"=ABS(-3)":          3,
		"=SIGN(-9)":         -1,
		"=INT(-1.5)":        -2,
		"=INT(1.9)":         1,
		"=TRUNC(-1.5)":      -1,
		"=ROUND(2.345, 2)":  2.35,
		"=ROUNDUP(1.01, 0)": 2,
		"=ROUNDDOWN(1.99, 0)": 1,
		"=FLOOR(7, 3)":      6,
		"=CEILING(7, 3)":    9,
		"=SQRT(16)":         4,
		"=POWER(2, 8)":      256,
		"=MOD(10, 3)":       1,
		"=MOD(-10, 3)":      2, // sign follows the divisor
		"=EXP(0)":           1,
		"=LN(1)":            0,
		"=LOG(100)":         2,
		"=LOG(8, 2)":        3,
		"=LOG10(1000)":      3,
		"=PRODUCT(2, 3, 4)": 24,
	}
	for src, want := range cases {
		assert.InDelta(t, want, num(t, runOK(t, sheet, src)), 1e-9, src)
	}

	_, err := run(t, sheet, "=SQRT(-1)")
	assert.Equal(t, value.ErrNum, errKind(t, err))
	_, err = run(t, sheet, "=MOD(1, 0)")
	assert.Equal(t, value.ErrDiv0, errKind(t, err))
}

func TestStatBuiltins(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(2), "A2": value.NumFromInt(4),
		"A3": value.NumFromInt(4), "A4": value.NumFromInt(4),
		"A5": value.NumFromInt(5), "A6": value.NumFromInt(5),
		"A7": value.NumFromInt(7), "A8": value.NumFromInt(9),
		"B1": value.Text("x"), "B2": value.Bool(true),
	})

	assert.InDelta(t, 5, num(t, runOK(t, sheet, "=AVERAGE(A1:A8)")), 1e-9)
	assert.InDelta(t, 2, num(t, runOK(t, sheet, "=STDEVP(A1:A8)")), 1e-9)
	assert.InDelta(t, 4, num(t, runOK(t, sheet, "=VARP(A1:A8)")), 1e-9)
	assert.InDelta(t, 4.5, num(t, runOK(t, sheet, "=MEDIAN(A1:A8)")), 1e-9)
	assert.InDelta(t, 4, num(t, runOK(t, sheet, "=MODE(A1:A8)")), 1e-9)
	assert.InDelta(t, 9, num(t, runOK(t, sheet, "=LARGE(A1:A8, 1)")), 1e-9)
	assert.InDelta(t, 2, num(t, runOK(t, sheet, "=SMALL(A1:A8, 1)")), 1e-9)
	assert.InDelta(t, 7, num(t, runOK(t, sheet, "=LARGE(A1:A8, 2)")), 1e-9)

	// COUNT is numeric-only; COUNTA is any non-empty cell.
	assert.InDelta(t, 8, num(t, runOK(t, sheet, "=COUNT(A1:B8)")), 1e-9)
	assert.InDelta(t, 10, num(t, runOK(t, sheet, "=COUNTA(A1:B8)")), 1e-9)
	assert.InDelta(t, 6, num(t, runOK(t, sheet, "=COUNTBLANK(B1:B8)")), 1e-9)

	// Sample variance of {1,2,3} is exactly 1.
	small := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(1), "A2": value.NumFromInt(2), "A3": value.NumFromInt(3),
	})
	assert.InDelta(t, 1, num(t, runOK(t, small, "=VAR(A1:A3)")), 1e-9)
	assert.InDelta(t, 1, num(t, runOK(t, small, "=STDEV(A1:A3)")), 1e-9)

	// AVERAGE over an empty range is #DIV/0! (the normative answer).
	empty := corectx.NewMemSheet("Sheet1")
	_, err := run(t, empty, "=AVERAGE(A1:A3)")
	assert.Equal(t, value.ErrDiv0, errKind(t, err))
}

func TestTextBuiltins(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.Text("  hello   world  "),
	})
	cases := map[string]string{
		`=CONCATENATE("a", "b", 1)`:          "ab1",
		`=UPPER("hi")`:                       "HI",
		`=LOWER("HI")`:                       "hi",
		`=TRIM(A1)`:                          "hello world",
		`=LEFT("spreadsheet", 6)`:            "spread",
		`=RIGHT("spreadsheet", 5)`:           "sheet",
		`=MID("spreadsheet", 7, 5)`:          "sheet",
		`=SUBSTITUTE("aaa", "a", "b", 2)`:    "aba",
		`=SUBSTITUTE("aaa", "a", "b")`:       "bbb",
		`=REPT("ab", 3)`:                     "ababab",
		`=REPLACE("abcdef", 2, 3, "XY")`:     "aXYef",
		`=TEXT(1234.5, "0.00")`:              "1234.50",
		`=TEXT(1234567, "#,##0")`:            "1,234,567",
		`=T("x")`:                            "x",
		`=T(5)`:                              "",
	}
	for src, want := range cases {
		v := runOK(t, sheet, src)
		s, err := value.ToText(v)
		require.NoError(t, err)
		assert.Equal(t, want, s, src)
	}

	assert.InDelta(t, 5, num(t, runOK(t, sheet, `=LEN("héllo")`)), 1e-9)
	assert.InDelta(t, 3, num(t, runOK(t, sheet, `=FIND("c", "abcabc")`)), 1e-9)
	assert.InDelta(t, 6, num(t, runOK(t, sheet, `=FIND("c", "abcabc", 4)`)), 1e-9)
	assert.InDelta(t, 3, num(t, runOK(t, sheet, `=SEARCH("C", "abcabc")`)), 1e-9)
	assert.InDelta(t, 42.5, num(t, runOK(t, sheet, `=VALUE("42.5")`)), 1e-9)
	assert.InDelta(t, 1, num(t, runOK(t, sheet, `=N(TRUE)`)), 1e-9)
	assert.InDelta(t, 0, num(t, runOK(t, sheet, `=N("text")`)), 1e-9)

	v := runOK(t, sheet, `=EXACT("Case", "Case")`)
	assert.True(t, v.Bool)
	v = runOK(t, sheet, `=EXACT("Case", "case")`)
	assert.False(t, v.Bool)

	// FIND is case-sensitive, SEARCH is not.
	_, err := run(t, sheet, `=FIND("C", "abcabc")`)
	assert.Equal(t, value.ErrValue, errKind(t, err))
}

func TestLogicBuiltins(t *testing.T) {
	sheet := sheetOf(t, map[string]value.CellValue{
		"A1": value.NumFromInt(0),
		"B1": value.Error(value.ErrNA),
		"C1": value.Text("word"),
	})

	v := runOK(t, sheet, `=IFERROR(1/A1, "fallback")`)
	assert.Equal(t, "fallback", v.Text)

	v = runOK(t, sheet, `=IFERROR(42, "fallback")`)
	assert.InDelta(t, 42, num(t, v), 1e-9)

	// ISERROR is true for any error, ISERR for all but #N/A, ISNA only
	// for #N/A.
	assert.True(t, runOK(t, sheet, "=ISERROR(B1)").Bool)
	assert.True(t, runOK(t, sheet, "=ISERROR(1/A1)").Bool)
	assert.False(t, runOK(t, sheet, "=ISERR(B1)").Bool)
	assert.True(t, runOK(t, sheet, "=ISERR(1/A1)").Bool)
	assert.True(t, runOK(t, sheet, "=ISNA(B1)").Bool)
	assert.False(t, runOK(t, sheet, "=ISNA(1/A1)").Bool)

	assert.True(t, runOK(t, sheet, "=ISNUMBER(A1)").Bool)
	assert.False(t, runOK(t, sheet, "=ISNUMBER(C1)").Bool)
	assert.True(t, runOK(t, sheet, "=ISTEXT(C1)").Bool)
	assert.True(t, runOK(t, sheet, "=ISBLANK(D1)").Bool)
	assert.False(t, runOK(t, sheet, "=ISBLANK(A1)").Bool)
	assert.True(t, runOK(t, sheet, "=ISLOGICAL(TRUE)").Bool)
	assert.True(t, runOK(t, sheet, "=ISREF(A1)").Bool)
	assert.False(t, runOK(t, sheet, "=ISREF(5)").Bool)

	v = runOK(t, sheet, `=IFS(FALSE, "a", TRUE, "b")`)
	assert.Equal(t, "b", v.Text)
	_, err := run(t, sheet, `=IFS(FALSE, "a", FALSE, "b")`)
	assert.Equal(t, value.ErrNA, errKind(t, err))

	v = runOK(t, sheet, `=SWITCH(2, 1, "one", 2, "two", "other")`)
	assert.Equal(t, "two", v.Text)
	v = runOK(t, sheet, `=SWITCH(9, 1, "one", 2, "two", "other")`)
	assert.Equal(t, "other", v.Text)

	v = runOK(t, sheet, `=IFNA(B1, "caught")`)
	assert.Equal(t, "caught", v.Text)
}

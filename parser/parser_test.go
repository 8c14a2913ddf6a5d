package parser_test

import (
	"strings"
	"testing"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/functions"
	"github.com/calcengine/formulacore/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) ast.Expr {
	t.Helper()
	expr, err := parser.Parse(src, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err, "parsing %q", src)
	return expr
}

func TestParseLiterals(t *testing.T) {
	for src, want := range map[string]string{
		"=42":       "=42",
		"=1.5":      "=1.5",
		"=1.5E2":    "=150",
		"=.5":       "=0.5",
		"=TRUE":     "=TRUE",
		"=false":    "=FALSE",
		`="hi"`:     `="hi"`,
		`="a""b"`:   `="a""b"`,
		"=10%":      "=10%",
		"=-2":       "=-2",
		"=(1+2)*3":  "=(1+2)*3",
		"=1+2*3":    "=1+2*3",
		`="a"&"b"`:  `="a"&"b"`,
		"=A1":       "=A1",
		"=$A$1":     "=$A$1",
		"=A$1":      "=A$1",
		"=Sheet2!B3": "=Sheet2!B3",
	} {
		got := parser.Print(parse(t, src))
		assert.Equal(t, want, got, "canonical form of %q", src)
	}
}

func TestExponentPrecedence(t *testing.T) {
	// ^ is right-associative and binds tighter than unary minus:
	// -2^2 is -(2^2), and 2^3^2 is 2^(3^2).
	neg, ok := parse(t, "=-2^2").(*ast.Neg)
	require.True(t, ok)
	pow, ok := neg.Operand.(*ast.Arith)
	require.True(t, ok)
	assert.Equal(t, ast.OpPow, pow.Op)

	outer, ok := parse(t, "=2^3^2").(*ast.Arith)
	require.True(t, ok)
	require.Equal(t, ast.OpPow, outer.Op)
	inner, ok := outer.Right.(*ast.Arith)
	require.True(t, ok)
	assert.Equal(t, ast.OpPow, inner.Op)
}

func TestPercentBindsTighterThanUnary(t *testing.T) {
	neg, ok := parse(t, "=-10%").(*ast.Neg)
	require.True(t, ok)
	_, ok = neg.Operand.(*ast.Percent)
	assert.True(t, ok)
}

func TestParseRanges(t *testing.T) {
	rr, ok := parse(t, "=A1:B3").(*ast.RangeRef)
	require.True(t, ok)
	assert.Equal(t, 3, rr.Range.Rows())
	assert.Equal(t, 2, rr.Range.Cols())

	full, ok := parse(t, "=A:A").(*ast.RangeRef)
	require.True(t, ok)
	assert.True(t, full.Range.FullCols)
	assert.Equal(t, "=A:A", parser.Print(full))

	rows, ok := parse(t, "=1:3").(*ast.RangeRef)
	require.True(t, ok)
	assert.True(t, rows.Range.FullRows)
	assert.Equal(t, "=1:3", parser.Print(rows))
}

func TestParseQuotedSheetNames(t *testing.T) {
	sr, ok := parse(t, "='Q1 Report'!A1").(*ast.SheetRef)
	require.True(t, ok)
	assert.Equal(t, "Q1 Report", sr.Sheet)
	assert.Equal(t, "='Q1 Report'!A1", parser.Print(sr))

	// Embedded apostrophes double inside the quotes.
	sr2, ok := parse(t, "='O''Brien'!B2").(*ast.SheetRef)
	require.True(t, ok)
	assert.Equal(t, "O'Brien", sr2.Sheet)
	assert.Equal(t, "='O''Brien'!B2", parser.Print(sr2))
}

func TestParseCalls(t *testing.T) {
	call, ok := parse(t, "=SUM(A1:A3)").(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "SUM", call.Spec.Name)
	require.Len(t, call.Args, 1)
	assert.True(t, call.Args[0].IsRange)

	// Function names are case-insensitive.
	call2, ok := parse(t, "=sum(1, 2, 3)").(*ast.Call)
	require.True(t, ok)
	assert.Equal(t, "SUM", call2.Spec.Name)

	nested := parse(t, `=IF(A1>0, SUM(B1:B9), "none")`)
	assert.Equal(t, `=IF(A1>0, SUM(B1:B9), "none")`, parser.Print(nested))
}

func TestUnknownFunctionSuggestions(t *testing.T) {
	_, err := parser.Parse("=SUMM(1)", functions.DefaultRegistry(), corectx.DefaultLimits())
	require.Error(t, err)
	var pe *parser.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrUnknownFunction, pe.Kind)
	assert.Equal(t, "SUMM", pe.FuncName)
	assert.Contains(t, pe.Suggestions, "SUM")
}

func TestParseErrors(t *testing.T) {
	limits := corectx.DefaultLimits()
	reg := functions.DefaultRegistry()

	_, err := parser.Parse("", reg, limits)
	var pe *parser.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrEmptyFormula, pe.Kind)

	_, err = parser.Parse("=", reg, limits)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrEmptyFormula, pe.Kind)

	_, err = parser.Parse("=(1+2", reg, limits)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrUnbalancedParens, pe.Kind)

	_, err = parser.Parse("=1+", reg, limits)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrUnexpectedToken, pe.Kind)

	_, err = parser.Parse("=IF(1)", reg, limits)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrBadArgCount, pe.Kind)
	assert.Equal(t, "IF", pe.FuncName)

	long := "=" + strings.Repeat("1+", limits.FormulaMaxLen/2+10) + "1"
	_, err = parser.Parse(long, reg, limits)
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, parser.ErrFormulaTooLong, pe.Kind)
}

func TestPrintParseRoundTrip(t *testing.T) {
	// parse(print(parse(s))) must equal parse(s); comparing canonical
	// prints is equivalent since print is deterministic.
	sources := []string{
		"=1+2*3-4/5",
		"=(1+2)*(3-4)",
		"=-2^2",
		"=2^-2",
		"=2^3^2",
		"=10%+5",
		`=IF(A1>=10, "big", "small")`,
		"=SUM(A1:A10, B1:B10, 5)",
		"=VLOOKUP(A1, B1:D9, 2, FALSE)",
		`="x"&"y"&"z"`,
		"=A1<>B1",
		"=Sheet2!A1+'My Sheet'!B2",
		"=SUMIF(A1:A9, \">10\", B1:B9)",
		"=NPV(0.1, A1:A3)",
	}
	reg := functions.DefaultRegistry()
	limits := corectx.DefaultLimits()
	for _, src := range sources {
		first, err := parser.Parse(src, reg, limits)
		require.NoError(t, err, src)
		printed := parser.Print(first)
		second, err := parser.Parse(printed, reg, limits)
		require.NoError(t, err, "reparsing %q (printed from %q)", printed, src)
		assert.Equal(t, printed, parser.Print(second), "round-trip of %q", src)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	lit, ok := parse(t, `="say ""hi"""`).(*ast.Lit)
	require.True(t, ok)
	assert.Equal(t, `say "hi"`, lit.Value.Text)
}

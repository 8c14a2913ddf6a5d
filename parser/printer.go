package parser

import (
	"strings"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/value"
)

// PrintOptions describes the canonical printer's output form.
type PrintOptions struct {
	// LeadingEquals records whether output carries the "=" prefix: Print
	// always adds it and PrintBare omits it; neither takes a PrintOptions.
	LeadingEquals bool
}

// Print renders e as a canonical, round-trippable formula string prefixed
// with "=". Operator parenthesisation is inserted only where needed to
// preserve the tree; "^", like the parser, is right-associative.
func Print(e ast.Expr) string {
	return "=" + printPrec(e, 0)
}

// PrintBare is Print without the leading "=", for embedding inside a
// larger formatted string (e.g. an error message quoting a sub-formula).
func PrintBare(e ast.Expr) string {
	return printPrec(e, 0)
}

// precedence levels, low (loosest) to high (tightest); see parser.go's
// grammar comment for the derivation.
const (
	precConcat = 1
	precCmp    = 2
	precAdd    = 3
	precMul    = 4
	precUnary  = 5
	precPow    = 6
	precPct    = 7
	precAtom   = 8
)

func printPrec(e ast.Expr, minPrec int) string {
	s, p := render(e)
	if p < minPrec {
		return "(" + s + ")"
	}
	return s
}

// render returns e's canonical text together with its own precedence
// level, used by the caller to decide whether to parenthesize it.
func render(e ast.Expr) (string, int) {
	switch n := e.(type) {
	case *ast.Lit:
		return renderLit(n.Value), precAtom
	case *ast.Ref:
		return address.FormatA1(n.At, n.Anchor), precAtom
	case *ast.PolyRef:
		return address.FormatA1(n.At, n.Anchor), precAtom
	case *ast.SheetRef:
		return address.FormatQualified(n.Sheet, n.At, n.Anchor), precAtom
	case *ast.SheetPolyRef:
		return address.FormatQualified(n.Sheet, n.At, n.Anchor), precAtom
	case *ast.NameRef:
		return n.Name, precAtom
	case *ast.RangeRef:
		return n.Range.String(), precAtom
	case *ast.SheetRangeRef:
		return address.FormatSheetName(n.Sheet) + "!" + n.Range.String(), precAtom
	case *ast.Arith:
		return renderArith(n.Op, n.Left, n.Right), precForArith(n.Op)
	case *ast.ArrayBinOp:
		return renderArith(n.Op, n.Left, n.Right), precForArith(n.Op)
	case *ast.Neg:
		return "-" + printPrec(n.Operand, precPow), precUnary
	case *ast.Percent:
		return printPrec(n.Operand, precAtom) + "%", precPct
	case *ast.Compare:
		left := printPrec(n.Left, precAdd)
		right := printPrec(n.Right, precAdd)
		return left + n.Op.String() + right, precCmp
	case *ast.And:
		return "AND(" + printPrec(n.Left, precConcat) + ", " + printPrec(n.Right, precConcat) + ")", precAtom
	case *ast.Or:
		return "OR(" + printPrec(n.Left, precConcat) + ", " + printPrec(n.Right, precConcat) + ")", precAtom
	case *ast.Not:
		return "NOT(" + printPrec(n.Operand, precConcat) + ")", precAtom
	case *ast.If:
		return "IF(" + printPrec(n.Cond, precConcat) + ", " + printPrec(n.Then, precConcat) + ", " + printPrec(n.Else, precConcat) + ")", precAtom
	case *ast.Concat:
		left := printPrec(n.Left, precConcat)
		right := printPrec(n.Right, precCmp)
		return left + "&" + right, precConcat
	case *ast.Array:
		return renderArray(n), precAtom
	case *ast.Call:
		return renderCall(n), precAtom
	default:
		return "", precAtom
	}
}

func precForArith(op ast.ArithOp) int {
	switch op {
	case ast.OpAdd, ast.OpSub:
		return precAdd
	case ast.OpMul, ast.OpDiv:
		return precMul
	case ast.OpPow:
		return precPow
	default:
		return precAtom
	}
}

func renderArith(op ast.ArithOp, leftE, rightE ast.Expr) string {
	switch op {
	case ast.OpAdd:
		return printPrec(leftE, precAdd) + "+" + printPrec(rightE, precMul)
	case ast.OpSub:
		return printPrec(leftE, precAdd) + "-" + printPrec(rightE, precMul)
	case ast.OpMul:
		return printPrec(leftE, precMul) + "*" + printPrec(rightE, precUnary)
	case ast.OpDiv:
		return printPrec(leftE, precMul) + "/" + printPrec(rightE, precUnary)
	case ast.OpPow:
		// right-associative: the right operand may itself be a "^" chain
		// without needing parens, but the left may not.
		return printPrec(leftE, precPct) + "^" + printPrec(rightE, precPow)
	default:
		return ""
	}
}

func renderLit(v value.CellValue) string {
	switch v.Kind {
	case value.KindNumber:
		return value.ShortestDecimalString(v.Num)
	case value.KindText:
		return `"` + strings.ReplaceAll(v.Text, `"`, `""`) + `"`
	case value.KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case value.KindDateTime:
		return value.ShortestDecimalString(value.TimeToSerial(v.DateTime))
	case value.KindEmpty:
		return `""`
	default:
		return ""
	}
}

func renderArray(n *ast.Array) string {
	var b strings.Builder
	b.WriteByte('{')
	for r := 0; r < n.Rows; r++ {
		if r > 0 {
			b.WriteByte(';')
		}
		for c := 0; c < n.Cols; c++ {
			if c > 0 {
				b.WriteByte(',')
			}
			b.WriteString(printPrec(n.Cells[r*n.Cols+c], precConcat))
		}
	}
	b.WriteByte('}')
	return b.String()
}

func renderCall(n *ast.Call) string {
	var b strings.Builder
	b.WriteString(n.Spec.Name)
	b.WriteByte('(')
	first := true
	for _, a := range n.Args {
		if a.Omitted {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		if a.IsRange {
			if a.RangeLoc.IsCrossSheet() {
				b.WriteString(address.FormatSheetName(a.RangeLoc.Sheet))
				b.WriteByte('!')
			}
			b.WriteString(a.RangeLoc.Range.String())
			continue
		}
		b.WriteString(printPrec(a.Scalar, precConcat))
	}
	b.WriteByte(')')
	return b.String()
}

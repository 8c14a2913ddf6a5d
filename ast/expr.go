// Package ast defines the typed expression tree formula text parses into
// (component D): literal, reference, arithmetic, comparison, boolean,
// range, and function-call node variants, plus the function-specification
// registry that binds names to argument shapes and evaluators. The tree is
// immutable once built and owns its children exclusively.
package ast

import (
	"fmt"
	"strings"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/value"
)

// Position records the byte offsets in the source formula an Expr was
// parsed from, used by ParseError to point at the offending token.
type Position struct {
	Start int
	End   int
}

// Expr is implemented by every node in the typed AST. Nodes are data only;
// evaluation lives in the eval package, which never needs a concrete Expr
// type beyond what a type switch over this interface reveals.
type Expr interface {
	Pos() Position
	exprNode()
}

type base struct{ Position Position }

func (b base) Pos() Position { return b.Position }
func (base) exprNode()       {}

// Lit is a literal value, carried as a value.CellValue; it must never
// hold KindFormula or KindError.
type Lit struct {
	base
	Value value.CellValue
}

func NewLit(pos Position, v value.CellValue) *Lit { return &Lit{base{pos}, v} }

// Ref is a resolved, single-sheet cell reference. Decoder is the type the
// surrounding expression context demands (attached by ResolveTypes).
type Ref struct {
	base
	At     address.ARef
	Anchor address.Anchor
	Decoder
}

func NewRef(pos Position, at address.ARef, anchor address.Anchor, d Decoder) *Ref {
	return &Ref{base{pos}, at, anchor, d}
}

// PolyRef is the parser's pre-resolution placeholder for a cell reference
// whose expected type is not yet known; ResolveTypes replaces every PolyRef
// with a typed Ref.
type PolyRef struct {
	base
	At     address.ARef
	Anchor address.Anchor
}

func NewPolyRef(pos Position, at address.ARef, anchor address.Anchor) *PolyRef {
	return &PolyRef{base{pos}, at, anchor}
}

// SheetRef is a resolved cross-sheet cell reference.
type SheetRef struct {
	base
	Sheet  string
	At     address.ARef
	Anchor address.Anchor
	Decoder
}

func NewSheetRef(pos Position, sheet string, at address.ARef, anchor address.Anchor, d Decoder) *SheetRef {
	return &SheetRef{base{pos}, sheet, at, anchor, d}
}

// SheetPolyRef is the cross-sheet sibling of PolyRef.
type SheetPolyRef struct {
	base
	Sheet  string
	At     address.ARef
	Anchor address.Anchor
}

func NewSheetPolyRef(pos Position, sheet string, at address.ARef, anchor address.Anchor) *SheetPolyRef {
	return &SheetPolyRef{base{pos}, sheet, at, anchor}
}

// NameRef is a bare identifier the parser could not resolve as a function
// call; it is resolved against a caller-supplied corectx.NameTable at
// evaluation time, surfacing #NAME? when absent.
type NameRef struct {
	base
	Name string
}

func NewNameRef(pos Position, name string) *NameRef { return &NameRef{base{pos}, name} }

// RangeRef is a single-sheet range reference used directly as an
// expression (e.g. the lhs of an array operation, not a function
// argument — those go through RangeLocation/FuncArg).
type RangeRef struct {
	base
	Range address.CellRange
}

func NewRangeRef(pos Position, rng address.CellRange) *RangeRef { return &RangeRef{base{pos}, rng} }

// SheetRangeRef is the cross-sheet sibling of RangeRef.
type SheetRangeRef struct {
	base
	Sheet string
	Range address.CellRange
}

func NewSheetRangeRef(pos Position, sheet string, rng address.CellRange) *SheetRangeRef {
	return &SheetRangeRef{base{pos}, sheet, rng}
}

// RangeLocation is the range-argument variant used inside function
// calls: either a local range or one qualified by a sheet name.
type RangeLocation struct {
	Sheet string // "" means local (the formula's own sheet)
	Range address.CellRange
}

func (r RangeLocation) IsCrossSheet() bool { return r.Sheet != "" }

// ArithOp enumerates the binary arithmetic operators.
type ArithOp uint8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

func (op ArithOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpPow:
		return "^"
	default:
		return "?"
	}
}

// Arith is a binary arithmetic node: Add, Sub, Mul, Div, Pow.
type Arith struct {
	base
	Op          ArithOp
	Left, Right Expr
}

func NewArith(pos Position, op ArithOp, left, right Expr) *Arith {
	return &Arith{base{pos}, op, left, right}
}

// Neg is unary negation.
type Neg struct {
	base
	Operand Expr
}

func NewNeg(pos Position, operand Expr) *Neg { return &Neg{base{pos}, operand} }

// Percent is the postfix % operator: operand/100.
type Percent struct {
	base
	Operand Expr
}

func NewPercent(pos Position, operand Expr) *Percent { return &Percent{base{pos}, operand} }

// CompareOp enumerates the comparison operators.
type CompareOp uint8

const (
	OpLt CompareOp = iota
	OpLte
	OpGt
	OpGte
	OpEq
	OpNeq
)

func (op CompareOp) String() string {
	switch op {
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpEq:
		return "="
	case OpNeq:
		return "<>"
	default:
		return "?"
	}
}

// Compare is a binary comparison node, always producing a Bool result.
type Compare struct {
	base
	Op          CompareOp
	Left, Right Expr
}

func NewCompare(pos Position, op CompareOp, left, right Expr) *Compare {
	return &Compare{base{pos}, op, left, right}
}

// And is a short-circuiting logical AND: if Left is false, Right is never
// evaluated.
type And struct {
	base
	Left, Right Expr
}

func NewAnd(pos Position, left, right Expr) *And { return &And{base{pos}, left, right} }

// Or is a short-circuiting logical OR.
type Or struct {
	base
	Left, Right Expr
}

func NewOr(pos Position, left, right Expr) *Or { return &Or{base{pos}, left, right} }

// Not is logical negation.
type Not struct {
	base
	Operand Expr
}

func NewNot(pos Position, operand Expr) *Not { return &Not{base{pos}, operand} }

// If is the conditional node; only the chosen branch is evaluated.
type If struct {
	base
	Cond, Then, Else Expr
}

func NewIf(pos Position, cond, then, els Expr) *If { return &If{base{pos}, cond, then, els} }

// Concat is the & string-concatenation operator.
type Concat struct {
	base
	Left, Right Expr
}

func NewConcat(pos Position, left, right Expr) *Concat { return &Concat{base{pos}, left, right} }

// Array is a literal in-formula 2-D array, e.g. {1,2;3,4}.
type Array struct {
	base
	Rows, Cols int
	Cells      []Expr // row-major, len == Rows*Cols
}

func NewArray(pos Position, rows, cols int, cells []Expr) *Array {
	return &Array{base{pos}, rows, cols, cells}
}

// ArrayBinOp applies a scalar arithmetic op elementwise across two array
// operands with Excel broadcasting rules; used by SUMPRODUCT-style array
// expressions such as A1:B2*TRANSPOSE(D1:D2).
type ArrayBinOp struct {
	base
	Op          ArithOp
	Left, Right Expr
}

func NewArrayBinOp(pos Position, op ArithOp, left, right Expr) *ArrayBinOp {
	return &ArrayBinOp{base{pos}, op, left, right}
}

// FuncArg is one evaluated-on-demand argument position of a Call node:
// either a scalar expression or a range location. Which form a given slot
// takes is fixed by the FunctionSpec's ArgSpec at that position.
type FuncArg struct {
	IsRange  bool
	Scalar   Expr
	RangeLoc RangeLocation
	// Omitted records that an Optional argument was not supplied; the
	// evaluator applies the declared default instead of indexing Scalar.
	Omitted bool
}

// Call is a function invocation. Spec carries the name, argument shape,
// and evaluator closure (component D); Args are not pre-evaluated so that
// short-circuiting functions (IF, AND, OR, IFERROR) control evaluation
// order themselves.
type Call struct {
	base
	Spec *FunctionSpec
	Args []FuncArg
}

func NewCall(pos Position, spec *FunctionSpec, args []FuncArg) *Call {
	return &Call{base{pos}, spec, args}
}

// Walk visits e and every descendant, depth-first, calling visit on each.
// Used by the dependency analyzer and by tests that need to inspect a
// whole tree without a bespoke traversal per caller.
func Walk(e Expr, visit func(Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *Arith:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Neg:
		Walk(n.Operand, visit)
	case *Percent:
		Walk(n.Operand, visit)
	case *Compare:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *And:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Or:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Not:
		Walk(n.Operand, visit)
	case *If:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case *Concat:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Array:
		for _, c := range n.Cells {
			Walk(c, visit)
		}
	case *ArrayBinOp:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Call:
		for _, a := range n.Args {
			if a.Omitted {
				continue
			}
			if a.IsRange {
				continue
			}
			Walk(a.Scalar, visit)
		}
	}
}

// String renders a debug form of e; the canonical user-facing printer lives
// in the parser package (it needs sheet-quoting and operator-precedence
// knowledge the AST itself doesn't carry).
func String(e Expr) string {
	var b strings.Builder
	writeDebug(&b, e)
	return b.String()
}

func writeDebug(b *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Lit:
		fmt.Fprintf(b, "Lit(%v)", n.Value)
	case *Ref:
		fmt.Fprintf(b, "Ref(%s)", n.At)
	case *PolyRef:
		fmt.Fprintf(b, "PolyRef(%s)", n.At)
	case *SheetRef:
		fmt.Fprintf(b, "SheetRef(%s!%s)", n.Sheet, n.At)
	case *SheetPolyRef:
		fmt.Fprintf(b, "SheetPolyRef(%s!%s)", n.Sheet, n.At)
	case *NameRef:
		fmt.Fprintf(b, "Name(%s)", n.Name)
	case *RangeRef:
		fmt.Fprintf(b, "Range(%s)", n.Range)
	case *SheetRangeRef:
		fmt.Fprintf(b, "SheetRange(%s!%s)", n.Sheet, n.Range)
	case *Arith:
		b.WriteByte('(')
		writeDebug(b, n.Left)
		b.WriteString(n.Op.String())
		writeDebug(b, n.Right)
		b.WriteByte(')')
	case *Neg:
		b.WriteString("-(")
		writeDebug(b, n.Operand)
		b.WriteByte(')')
	case *Percent:
		writeDebug(b, n.Operand)
		b.WriteByte('%')
	case *Compare:
		b.WriteByte('(')
		writeDebug(b, n.Left)
		b.WriteString(n.Op.String())
		writeDebug(b, n.Right)
		b.WriteByte(')')
	case *And:
		b.WriteString("AND(")
		writeDebug(b, n.Left)
		b.WriteString(", ")
		writeDebug(b, n.Right)
		b.WriteByte(')')
	case *Or:
		b.WriteString("OR(")
		writeDebug(b, n.Left)
		b.WriteString(", ")
		writeDebug(b, n.Right)
		b.WriteByte(')')
	case *Not:
		b.WriteString("NOT(")
		writeDebug(b, n.Operand)
		b.WriteByte(')')
	case *If:
		b.WriteString("IF(")
		writeDebug(b, n.Cond)
		b.WriteString(", ")
		writeDebug(b, n.Then)
		b.WriteString(", ")
		writeDebug(b, n.Else)
		b.WriteByte(')')
	case *Concat:
		b.WriteByte('(')
		writeDebug(b, n.Left)
		b.WriteString(" & ")
		writeDebug(b, n.Right)
		b.WriteByte(')')
	case *Array:
		b.WriteByte('{')
		for i, c := range n.Cells {
			if i > 0 {
				b.WriteByte(',')
			}
			writeDebug(b, c)
		}
		b.WriteByte('}')
	case *ArrayBinOp:
		b.WriteByte('(')
		writeDebug(b, n.Left)
		b.WriteString(n.Op.String())
		writeDebug(b, n.Right)
		b.WriteByte(')')
	case *Call:
		b.WriteString(n.Spec.Name)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			if a.Omitted {
				continue
			}
			if a.IsRange {
				if a.RangeLoc.IsCrossSheet() {
					fmt.Fprintf(b, "%s!%s", a.RangeLoc.Sheet, a.RangeLoc.Range)
				} else {
					fmt.Fprintf(b, "%s", a.RangeLoc.Range)
				}
				continue
			}
			writeDebug(b, a.Scalar)
		}
		b.WriteByte(')')
	default:
		b.WriteString("<?>")
	}
}

package ast

// ResolveTypes walks e bottom-up and replaces every PolyRef/SheetPolyRef
// with a typed Ref/SheetRef whose Decoder matches the expected operand
// type of its parent: numeric for arithmetic operands, boolean for
// logical operands and the If condition, text for Concat operands, the
// declared slot decoder for function arguments, and "any" for If branches,
// comparison operands and array operands that coerce per value.
//
// want is the decoder the caller of ResolveTypes itself expects of e (used
// when e is, itself, a bare PolyRef at the tree's root — e.g. `=A1`).
func ResolveTypes(e Expr, want Decoder) Expr {
	switch n := e.(type) {
	case *PolyRef:
		return NewRef(n.Position, n.At, n.Anchor, want)
	case *SheetPolyRef:
		return NewSheetRef(n.Position, n.Sheet, n.At, n.Anchor, want)
	case *Arith:
		n.Left = ResolveTypes(n.Left, DecodeNumber)
		n.Right = ResolveTypes(n.Right, DecodeNumber)
		return n
	case *Neg:
		n.Operand = ResolveTypes(n.Operand, DecodeNumber)
		return n
	case *Percent:
		n.Operand = ResolveTypes(n.Operand, DecodeNumber)
		return n
	case *Compare:
		n.Left = ResolveTypes(n.Left, DecodeAny)
		n.Right = ResolveTypes(n.Right, DecodeAny)
		return n
	case *And:
		n.Left = ResolveTypes(n.Left, DecodeBool)
		n.Right = ResolveTypes(n.Right, DecodeBool)
		return n
	case *Or:
		n.Left = ResolveTypes(n.Left, DecodeBool)
		n.Right = ResolveTypes(n.Right, DecodeBool)
		return n
	case *Not:
		n.Operand = ResolveTypes(n.Operand, DecodeBool)
		return n
	case *If:
		n.Cond = ResolveTypes(n.Cond, DecodeBool)
		n.Then = ResolveTypes(n.Then, DecodeAny)
		n.Else = ResolveTypes(n.Else, DecodeAny)
		return n
	case *Concat:
		n.Left = ResolveTypes(n.Left, DecodeText)
		n.Right = ResolveTypes(n.Right, DecodeText)
		return n
	case *Array:
		for i, c := range n.Cells {
			n.Cells[i] = ResolveTypes(c, DecodeAny)
		}
		return n
	case *ArrayBinOp:
		n.Left = ResolveTypes(n.Left, DecodeAny)
		n.Right = ResolveTypes(n.Right, DecodeAny)
		return n
	case *Call:
		for i := range n.Args {
			if n.Args[i].IsRange || n.Args[i].Omitted {
				continue
			}
			d := DecodeAny
			if i < len(n.Spec.Args) {
				d = n.Spec.Args[i].Decoder
			} else if len(n.Spec.Args) > 0 && n.Spec.Args[len(n.Spec.Args)-1].Variadic {
				d = n.Spec.Args[len(n.Spec.Args)-1].Decoder
			}
			n.Args[i].Scalar = ResolveTypes(n.Args[i].Scalar, d)
		}
		return n
	default:
		// Lit, Ref, SheetRef, NameRef, RangeRef, SheetRangeRef: leaves, or
		// already-typed nodes constructed programmatically with no
		// PolyRef descendants.
		return e
	}
}

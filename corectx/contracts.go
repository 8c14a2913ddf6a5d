// Package corectx defines the external-collaborator contracts and shared
// runtime context the rest of formulacore is built against: Sheet and
// Workbook (component H's storage collaborators, owned by the caller),
// Clock, and the Env/Arg/RangeView types the function registry (component
// D) and evaluator (component E) pass between each other. Nothing in this
// package depends on the parser or the AST, so it has no import cycle with
// either.
package corectx

import (
	"iter"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/value"
)

// Sheet is the minimal read-only contract the core requires of a sheet.
// Implementations have immutable-value semantics: a "put" operation on the
// caller's side returns a new Sheet rather than mutating this one.
type Sheet interface {
	Name() address.SheetName
	Get(ref address.ARef) value.CellValue
	// UsedRange returns the smallest range covering every non-empty cell,
	// or ok=false for a completely empty sheet.
	UsedRange() (rng address.CellRange, ok bool)
	// Cells iterates every non-empty cell in the sheet; order is
	// unspecified by the contract (callers that need an order sort).
	Cells() iter.Seq2[address.ARef, value.CellValue]
}

// Workbook is an ordered collection of sheets, looked up by name.
type Workbook interface {
	Sheet(name address.SheetName) (Sheet, bool)
	Sheets() iter.Seq[Sheet]
}

// NameTable resolves a bare identifier to a named range. A nil NameTable
// means the caller supplied no named ranges.
type NameTable map[string]address.CellRange

// Env is the read-only environment threaded through an evaluation.
type Env interface {
	Sheet() Sheet
	Workbook() (Workbook, bool)
	Clock() Clock
	// CurrentCell is the cell the formula being evaluated resides in, if
	// any — used by the zero-arg ROW()/COLUMN().
	CurrentCell() (address.ARef, bool)
	Names() NameTable
	// Depth is the current recursion depth, checked against
	// Limits.RecursionDepth before descending into an uncached formula
	// cell.
	Depth() int
	// WithDepth returns a copy of Env with Depth() == depth, used when
	// recursing into an uncached formula reference.
	WithDepth(depth int) Env
	// WithSheet returns a copy of Env whose Sheet() is sheet, used when
	// descending into an uncached formula that lives on another sheet (its
	// relative references resolve against its own sheet, not ours).
	WithSheet(sheet Sheet) Env
}

func (n NameTable) Lookup(name string) (address.CellRange, bool) {
	if n == nil {
		return address.CellRange{}, false
	}
	rng, ok := n[name]
	return rng, ok
}

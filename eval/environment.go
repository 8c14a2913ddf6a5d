// Package eval implements the tree-walking evaluator (component E): it
// turns a type-resolved ast.Expr into a value.CellValue, threading the
// corectx.Env through every recursive call and materialising range
// arguments into corectx.RangeView for the function registry.
package eval

import (
	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/corectx"
)

// Environment is the concrete corectx.Env a sheetface façade builds per
// evaluation. It is copied (not mutated) by the With* methods, the same
// immutable-value-semantics discipline corectx.Sheet documents.
type Environment struct {
	sheet          corectx.Sheet
	workbook       corectx.Workbook
	hasWorkbook    bool
	clock          corectx.Clock
	currentCell    address.ARef
	hasCurrentCell bool
	names          corectx.NameTable
	depth          int
}

// NewEnvironment builds the base environment for evaluating formulas
// against sheet, with SystemClock as the default clock.
func NewEnvironment(sheet corectx.Sheet) *Environment {
	return &Environment{sheet: sheet, clock: corectx.SystemClock{}}
}

func (e *Environment) WithWorkbook(wb corectx.Workbook) *Environment {
	c := *e
	c.workbook, c.hasWorkbook = wb, true
	return &c
}

func (e *Environment) WithClock(clock corectx.Clock) *Environment {
	c := *e
	c.clock = clock
	return &c
}

func (e *Environment) WithCurrentCell(ref address.ARef) *Environment {
	c := *e
	c.currentCell, c.hasCurrentCell = ref, true
	return &c
}

func (e *Environment) WithNames(names corectx.NameTable) *Environment {
	c := *e
	c.names = names
	return &c
}

func (e *Environment) Sheet() corectx.Sheet { return e.sheet }

func (e *Environment) Workbook() (corectx.Workbook, bool) { return e.workbook, e.hasWorkbook }

func (e *Environment) Clock() corectx.Clock { return e.clock }

func (e *Environment) CurrentCell() (address.ARef, bool) { return e.currentCell, e.hasCurrentCell }

func (e *Environment) Names() corectx.NameTable { return e.names }

func (e *Environment) Depth() int { return e.depth }

// WithDepth implements corectx.Env; it returns an Env (not *Environment) to
// satisfy the interface, since the interface method signature is fixed.
func (e *Environment) WithDepth(depth int) corectx.Env {
	c := *e
	c.depth = depth
	return &c
}

// WithSheet implements corectx.Env for cross-sheet formula descent.
func (e *Environment) WithSheet(sheet corectx.Sheet) corectx.Env {
	c := *e
	c.sheet = sheet
	return &c
}

// Package depgraph implements dependency analysis and the whole-workbook
// evaluation ordering (component G): extracting the cells an expression
// reads, building the formula dependency graph, detecting reference
// cycles, and producing a deterministic topological order.
package depgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/parser"
	"github.com/calcengine/formulacore/value"
	"github.com/pkg/errors"
)

// Graph maps each formula cell to the set of cells it reads. Non-formula
// cells appear only as dependency targets.
type Graph map[address.QualifiedRef]map[address.QualifiedRef]bool

// ExtractDependencies walks expr and returns every cell it references,
// with ranges expanded to their enclosed cells. With no sheet to bound
// against, a full-column/row range is clamped to its first row/column
// (the A1 extent); callers with a sheet at hand should use ExtractQualified
// with a bound function instead (BuildWorkbookGraph does).
func ExtractDependencies(expr ast.Expr) []address.ARef {
	set := map[address.ARef]bool{}
	collectDeps(expr, "", nil, func(q address.QualifiedRef) {
		set[q.Ref] = true
	})
	out := make([]address.ARef, 0, len(set))
	for ref := range set {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// ExtractQualified returns expr's dependencies qualified by sheet name:
// local references belong to home, cross-sheet references to their target
// sheet. bound, when non-nil, resolves a sheet name to the used range its
// full-column/row spans bound against.
func ExtractQualified(expr ast.Expr, home address.SheetName, bound func(address.SheetName) (address.CellRange, bool)) []address.QualifiedRef {
	set := map[address.QualifiedRef]bool{}
	collectDeps(expr, home, bound, func(q address.QualifiedRef) {
		set[q] = true
	})
	out := make([]address.QualifiedRef, 0, len(set))
	for q := range set {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// collectDeps emits every referenced cell. ast.Walk does not descend into
// range-shaped call arguments (they are locations, not expressions), so
// those are handled explicitly here.
func collectDeps(expr ast.Expr, home address.SheetName, bound func(address.SheetName) (address.CellRange, bool), emit func(address.QualifiedRef)) {
	emitRange := func(sheet address.SheetName, rng address.CellRange) {
		if rng.FullCols || rng.FullRows {
			used := address.NewRange(address.ARef{}, address.ARef{})
			if bound != nil {
				if u, ok := bound(sheet); ok {
					used = u
				}
			}
			rng = rng.Bound(used)
		}
		for ref := range rng.Iter() {
			emit(address.QualifiedRef{Sheet: sheet, Ref: ref})
		}
	}

	ast.Walk(expr, func(e ast.Expr) {
		switch n := e.(type) {
		case *ast.Ref:
			emit(address.QualifiedRef{Sheet: home, Ref: n.At})
		case *ast.PolyRef:
			emit(address.QualifiedRef{Sheet: home, Ref: n.At})
		case *ast.SheetRef:
			emit(address.QualifiedRef{Sheet: address.SheetName(n.Sheet), Ref: n.At})
		case *ast.SheetPolyRef:
			emit(address.QualifiedRef{Sheet: address.SheetName(n.Sheet), Ref: n.At})
		case *ast.RangeRef:
			emitRange(home, n.Range)
		case *ast.SheetRangeRef:
			emitRange(address.SheetName(n.Sheet), n.Range)
		case *ast.Call:
			for _, a := range n.Args {
				if !a.IsRange || a.Omitted {
					continue
				}
				sheet := home
				if a.RangeLoc.IsCrossSheet() {
					sheet = address.SheetName(a.RangeLoc.Sheet)
				}
				emitRange(sheet, a.RangeLoc.Range)
			}
		}
	})
}

// BuildWorkbookGraph enumerates every formula cell in every sheet of wb
// and records its dependencies. Formula sources that fail to parse are
// reported as errors rather than silently skipped.
func BuildWorkbookGraph(wb corectx.Workbook, registry *ast.Registry, limits corectx.Limits) (Graph, error) {
	graph := Graph{}
	usedOf := func(name address.SheetName) (address.CellRange, bool) {
		sheet, ok := wb.Sheet(name)
		if !ok {
			return address.CellRange{}, false
		}
		return sheet.UsedRange()
	}
	for sheet := range wb.Sheets() {
		for ref, cell := range sheet.Cells() {
			if cell.Kind != value.KindFormula {
				continue
			}
			expr, err := parser.Parse(cell.Formula.Source, registry, limits)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing formula at %s!%s", sheet.Name(), ref)
			}
			node := address.QualifiedRef{Sheet: sheet.Name(), Ref: ref}
			deps := map[address.QualifiedRef]bool{}
			for _, q := range ExtractQualified(expr, sheet.Name(), usedOf) {
				deps[q] = true
			}
			graph[node] = deps
		}
	}
	return graph, nil
}

// BuildSheetGraph is BuildWorkbookGraph for a single standalone sheet.
func BuildSheetGraph(sheet corectx.Sheet, registry *ast.Registry, limits corectx.Limits) (Graph, error) {
	return BuildWorkbookGraph(corectx.NewMemWorkbook(sheet), registry, limits)
}

// CycleError reports a reference cycle, carrying the participating nodes
// in cycle order.
type CycleError struct {
	Nodes []address.QualifiedRef
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Nodes))
	for i, n := range e.Nodes {
		parts[i] = n.String()
	}
	return fmt.Sprintf("circular reference: %s", strings.Join(parts, " -> "))
}

// DetectCycles runs a depth-first search over graph with a visiting
// stack, returning a CycleError naming the first cycle found. Only edges
// between formula cells matter: a dependency on a plain value cell can
// never cycle.
func DetectCycles(graph Graph) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := map[address.QualifiedRef]int{}
	var stack []address.QualifiedRef

	var visit func(node address.QualifiedRef) *CycleError
	visit = func(node address.QualifiedRef) *CycleError {
		state[node] = visiting
		stack = append(stack, node)
		for _, dep := range sortedDeps(graph[node]) {
			if _, isFormula := graph[dep]; !isFormula {
				continue
			}
			switch state[dep] {
			case visiting:
				// Slice the stack from the first occurrence of dep to
				// recover the cycle in order.
				for i, n := range stack {
					if n == dep {
						return &CycleError{Nodes: append(append([]address.QualifiedRef{}, stack[i:]...), dep)}
					}
				}
			case unvisited:
				if cyc := visit(dep); cyc != nil {
					return cyc
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[node] = done
		return nil
	}

	for _, node := range sortedNodes(graph) {
		if state[node] == unvisited {
			if cyc := visit(node); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}

// TopoOrder returns a Kahn-style ordering of graph's formula cells:
// formulas that read no other formula cell come first, and every formula
// comes after the formulas it reads.
// Ties break by (sheet, row, col) so whole-sheet evaluation is
// deterministic.
func TopoOrder(graph Graph) []address.QualifiedRef {
	// indegree counts how many of a node's dependencies are themselves
	// formula cells still awaiting evaluation.
	indegree := map[address.QualifiedRef]int{}
	dependents := map[address.QualifiedRef][]address.QualifiedRef{}
	for node, deps := range graph {
		count := 0
		for dep := range deps {
			if _, isFormula := graph[dep]; isFormula && dep != node {
				count++
				dependents[dep] = append(dependents[dep], node)
			}
		}
		indegree[node] = count
	}

	var ready []address.QualifiedRef
	for node, n := range indegree {
		if n == 0 {
			ready = append(ready, node)
		}
	}
	sortRefs(ready)

	var order []address.QualifiedRef
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)
		next := append([]address.QualifiedRef(nil), dependents[node]...)
		sortRefs(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}
	return order
}

func sortRefs(refs []address.QualifiedRef) {
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
}

func insertSorted(refs []address.QualifiedRef, node address.QualifiedRef) []address.QualifiedRef {
	at := sort.Search(len(refs), func(i int) bool { return node.Less(refs[i]) })
	refs = append(refs, address.QualifiedRef{})
	copy(refs[at+1:], refs[at:])
	refs[at] = node
	return refs
}

func sortedNodes(graph Graph) []address.QualifiedRef {
	nodes := make([]address.QualifiedRef, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sortRefs(nodes)
	return nodes
}

func sortedDeps(deps map[address.QualifiedRef]bool) []address.QualifiedRef {
	out := make([]address.QualifiedRef, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	sortRefs(out)
	return out
}

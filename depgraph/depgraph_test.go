package depgraph_test

import (
	"testing"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/depgraph"
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

func TestExtractDependencies(t *testing.T) {
	expr, err := parser.Parse("=A1+B2*SUM(C1:C3)", functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	deps := depgraph.ExtractDependencies(expr)

	// Sorted by (row, col): row 1 holds A1 and C1, row 2 B2 and C2.
	want := []string{"A1", "C1", "B2", "C2", "C3"}
	require.Len(t, deps, len(want))
	for i, a1 := range want {
		assert.Equal(t, mustRef(t, a1), deps[i])
	}
}

func TestExtractQualified(t *testing.T) {
	expr, err := parser.Parse("=A1+Data!B2", functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	deps := depgraph.ExtractQualified(expr, "Sheet1", nil)
	require.Len(t, deps, 2)
	assert.Equal(t, address.QualifiedRef{Sheet: "Data", Ref: mustRef(t, "B2")}, deps[0])
	assert.Equal(t, address.QualifiedRef{Sheet: "Sheet1", Ref: mustRef(t, "A1")}, deps[1])
}

func TestCycleDetection(t *testing.T) {
	sheet := corectx.NewMemSheet("Sheet1").
		Put(mustRef(t, "A1"), value.Formula("=B1", nil)).
		Put(mustRef(t, "B1"), value.Formula("=A1", nil))

	graph, err := depgraph.BuildSheetGraph(sheet, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)

	err = depgraph.DetectCycles(graph)
	require.Error(t, err)
	var cyc *depgraph.CycleError
	require.ErrorAs(t, err, &cyc)
	assert.GreaterOrEqual(t, len(cyc.Nodes), 2)
}

func TestNoCycleOnDiamond(t *testing.T) {
	// A1 and B1 both feed C1; shared dependencies are not cycles.
	sheet := corectx.NewMemSheet("Sheet1").
		Put(mustRef(t, "A1"), value.NumFromInt(1)).
		Put(mustRef(t, "B1"), value.Formula("=A1+1", nil)).
		Put(mustRef(t, "C1"), value.Formula("=A1+B1", nil))

	graph, err := depgraph.BuildSheetGraph(sheet, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	require.NoError(t, depgraph.DetectCycles(graph))
}

func TestTopoOrder(t *testing.T) {
	sheet := corectx.NewMemSheet("Sheet1").
		Put(mustRef(t, "A1"), value.NumFromInt(1)).
		Put(mustRef(t, "B1"), value.Formula("=A1*2", nil)).
		Put(mustRef(t, "C1"), value.Formula("=B1*2", nil)).
		Put(mustRef(t, "D1"), value.Formula("=C1+B1", nil))

	graph, err := depgraph.BuildSheetGraph(sheet, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	order := depgraph.TopoOrder(graph)
	require.Len(t, order, 3)

	pos := map[address.ARef]int{}
	for i, node := range order {
		pos[node.Ref] = i
	}
	assert.Less(t, pos[mustRef(t, "B1")], pos[mustRef(t, "C1")])
	assert.Less(t, pos[mustRef(t, "C1")], pos[mustRef(t, "D1")])
}

func TestCrossSheetGraph(t *testing.T) {
	data := corectx.NewMemSheet("Data").
		Put(mustRef(t, "A1"), value.NumFromInt(5))
	main := corectx.NewMemSheet("Main").
		Put(mustRef(t, "A1"), value.Formula("=Data!A1*2", nil))
	wb := corectx.NewMemWorkbook(main, data)

	graph, err := depgraph.BuildWorkbookGraph(wb, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)

	node := address.QualifiedRef{Sheet: "Main", Ref: mustRef(t, "A1")}
	deps, ok := graph[node]
	require.True(t, ok)
	assert.True(t, deps[address.QualifiedRef{Sheet: "Data", Ref: mustRef(t, "A1")}])
}

func TestFullColumnDependenciesBound(t *testing.T) {
	sheet := corectx.NewMemSheet("Sheet1").
		Put(mustRef(t, "A1"), value.NumFromInt(1)).
		Put(mustRef(t, "A2"), value.NumFromInt(2)).
		Put(mustRef(t, "B1"), value.Formula("=SUM(A:A)", nil))

	graph, err := depgraph.BuildSheetGraph(sheet, functions.DefaultRegistry(), corectx.DefaultLimits())
	require.NoError(t, err)
	deps := graph[address.QualifiedRef{Sheet: "Sheet1", Ref: mustRef(t, "B1")}]
	// Bounded to the used range, not the full 2^20-row column.
	assert.LessOrEqual(t, len(deps), 4)
	assert.True(t, deps[address.QualifiedRef{Sheet: "Sheet1", Ref: mustRef(t, "A1")}])
	assert.True(t, deps[address.QualifiedRef{Sheet: "Sheet1", Ref: mustRef(t, "A2")}])
}

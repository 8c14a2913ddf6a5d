package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnLetterRoundTrip(t *testing.T) {
	cases := []struct {
		col     uint32
		letters string
	}{
		{0, "A"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{701, "ZZ"},
		{702, "AAA"},
	}
	for _, c := range cases {
		assert.Equal(t, c.letters, ColumnToLetters(c.col))
		got, err := LettersToColumn(c.letters)
		require.NoError(t, err)
		assert.Equal(t, c.col, got)
	}
}

func TestParseA1Anchors(t *testing.T) {
	cases := []struct {
		in     string
		col    uint32
		row    uint32
		anchor Anchor
	}{
		{"A1", 0, 0, Anchor{}},
		{"$A$1", 0, 0, Anchor{ColAbs: true, RowAbs: true}},
		{"A$1", 0, 0, Anchor{RowAbs: true}},
		{"$A1", 0, 0, Anchor{ColAbs: true}},
		{"AA10", 26, 9, Anchor{}},
	}
	for _, c := range cases {
		ref, anchor, err := ParseA1(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.col, ref.Col, c.in)
		assert.Equal(t, c.row, ref.Row, c.in)
		assert.Equal(t, c.anchor, anchor, c.in)
		assert.Equal(t, c.in, FormatA1(ref, anchor), c.in)
	}
}

func TestParseA1Errors(t *testing.T) {
	for _, in := range []string{"", "1", "A", "A0", "$$A1", "A1A"} {
		_, _, err := ParseA1(in)
		assert.Error(t, err, in)
	}
}

func TestSheetNameQuoting(t *testing.T) {
	assert.False(t, RequiresQuoting("Sheet1"))
	assert.True(t, RequiresQuoting("Q1 Report"))
	assert.True(t, RequiresQuoting("1Sheet"))
	assert.Equal(t, "Sheet1", FormatSheetName("Sheet1"))
	assert.Equal(t, "'Q1 Report'", FormatSheetName("Q1 Report"))
	assert.Equal(t, "'O''Brien'", FormatSheetName("O'Brien"))
}

func TestParseQualifiedQuoted(t *testing.T) {
	sheet, ref, _, err := ParseQualified("'Q1 Report'!A1")
	require.NoError(t, err)
	assert.Equal(t, "Q1 Report", sheet)
	assert.Equal(t, ARef{Col: 0, Row: 0}, ref)

	sheet, ref, _, err = ParseQualified("'O''Brien'!B2")
	require.NoError(t, err)
	assert.Equal(t, "O'Brien", sheet)
	assert.Equal(t, ARef{Col: 1, Row: 1}, ref)

	sheet, ref, _, err = ParseQualified("Sheet1!A1")
	require.NoError(t, err)
	assert.Equal(t, "Sheet1", sheet)
	assert.Equal(t, ARef{Col: 0, Row: 0}, ref)
}

func TestRangeNormalisation(t *testing.T) {
	r := NewRange(ARef{Col: 5, Row: 0}, ARef{Col: 0, Row: 3})
	assert.Equal(t, uint32(0), r.Start.Col)
	assert.Equal(t, uint32(5), r.End.Col)
	assert.Equal(t, uint32(0), r.Start.Row)
	assert.Equal(t, uint32(3), r.End.Row)
}

func TestRangeIterRowMajor(t *testing.T) {
	r := NewRange(ARef{Col: 0, Row: 0}, ARef{Col: 1, Row: 1})
	var got []ARef
	for ref := range r.Iter() {
		got = append(got, ref)
	}
	want := []ARef{
		{Col: 0, Row: 0}, {Col: 1, Row: 0},
		{Col: 0, Row: 1}, {Col: 1, Row: 1},
	}
	assert.Equal(t, want, got)
}

func TestFullColumnBound(t *testing.T) {
	r := FullColumnRange(0, 0)
	assert.True(t, r.FullCols)
	used := NewRange(ARef{Col: 0, Row: 0}, ARef{Col: 5, Row: 9})
	bounded := r.Bound(used)
	assert.False(t, bounded.FullCols)
	assert.Equal(t, uint32(0), bounded.Start.Row)
	assert.Equal(t, uint32(9), bounded.End.Row)
}

func TestR1C1RoundTrip(t *testing.T) {
	origin := ARef{Col: 2, Row: 2}
	ref := ARef{Col: 0, Row: 5}
	anchor := Anchor{}
	s := FormatR1C1(ref, anchor, origin)
	assert.Equal(t, "R[3]C[-2]", s)
	got, gotAnchor, err := ParseR1C1(s, origin)
	require.NoError(t, err)
	assert.Equal(t, ref, got)
	assert.Equal(t, anchor, gotAnchor)
}

func TestQualifiedRefOrdering(t *testing.T) {
	a := QualifiedRef{Sheet: "Sheet1", Ref: ARef{Row: 0, Col: 0}}
	b := QualifiedRef{Sheet: "Sheet1", Ref: ARef{Row: 0, Col: 1}}
	c := QualifiedRef{Sheet: "Sheet2", Ref: ARef{Row: 0, Col: 0}}
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
}

func TestParseRange(t *testing.T) {
	r, err := ParseRange("A1:B3")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Rows())
	assert.Equal(t, 2, r.Cols())
	assert.False(t, r.FullCols)

	r, err = ParseRange("A:C")
	require.NoError(t, err)
	assert.True(t, r.FullCols)
	assert.Equal(t, uint32(0), r.Start.Col)
	assert.Equal(t, uint32(2), r.End.Col)
	assert.Equal(t, "A:C", r.String())

	r, err = ParseRange("2:4")
	require.NoError(t, err)
	assert.True(t, r.FullRows)
	assert.Equal(t, uint32(1), r.Start.Row)
	assert.Equal(t, uint32(3), r.End.Row)
	assert.Equal(t, "2:4", r.String())

	// Anchored endpoints and reversed corners normalise.
	r, err = ParseRange("$B$3:$A$1")
	require.NoError(t, err)
	assert.Equal(t, ARef{Col: 0, Row: 0}, r.Start)
	assert.Equal(t, ARef{Col: 1, Row: 2}, r.End)

	for _, bad := range []string{"A1", "A1:B", "1:B2", ":", "A:"} {
		_, err := ParseRange(bad)
		assert.Error(t, err, bad)
	}
}

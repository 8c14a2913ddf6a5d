// Package address implements the spreadsheet coordinate model: cell
// addresses, ranges, sheet-qualified references, and A1/R1C1 notation.
package address

import (
	"fmt"
	"iter"
)

// Sheet size limits, matching modern Excel (xlsx), used to bound
// full-column/full-row references before iteration.
const (
	MaxCol uint32 = 16384   // XFD
	MaxRow uint32 = 1048576 // 2^20
)

// Anchor records, per axis, whether a reference is absolute ($) or
// relative.
type Anchor struct {
	ColAbs bool
	RowAbs bool
}

// RelativeAnchor is the zero value: both axes relative.
var RelativeAnchor = Anchor{}

// AbsoluteAnchor anchors both axes.
var AbsoluteAnchor = Anchor{ColAbs: true, RowAbs: true}

// ARef is a 0-based cell address within a single sheet.
type ARef struct {
	Col uint32
	Row uint32
}

// Less is the total lexicographic order on (row, col).
func (a ARef) Less(b ARef) bool {
	if a.Row != b.Row {
		return a.Row < b.Row
	}
	return a.Col < b.Col
}

func (a ARef) String() string { return FormatA1(a, RelativeAnchor) }

// SheetName is a non-empty display name for a sheet.
type SheetName string

// QualifiedRef pairs a sheet name with a cell address, the key type used
// by the dependency graph (component G).
type QualifiedRef struct {
	Sheet SheetName
	Ref   ARef
}

func (q QualifiedRef) String() string {
	return fmt.Sprintf("%s!%s", FormatSheetName(string(q.Sheet)), q.Ref)
}

// Less gives QualifiedRef the (sheet-name, row, col) tie-break order
// whole-sheet evaluation uses to stay deterministic.
func (q QualifiedRef) Less(o QualifiedRef) bool {
	if q.Sheet != o.Sheet {
		return q.Sheet < o.Sheet
	}
	return q.Ref.Less(o.Ref)
}

// CellRange is a normalised rectangular range: Start <= End componentwise.
// FullCols/FullRows record whether the range was written as a bare
// full-column ("A:A") or full-row ("1:1") reference, since those need
// bounding against a sheet's used range before iteration.
type CellRange struct {
	Start    ARef
	End      ARef
	FullCols bool
	FullRows bool
}

// NewRange normalises two corners into a CellRange with Start <= End
// componentwise.
func NewRange(a, b ARef) CellRange {
	r := CellRange{Start: a, End: b}
	if r.Start.Col > r.End.Col {
		r.Start.Col, r.End.Col = r.End.Col, r.Start.Col
	}
	if r.Start.Row > r.End.Row {
		r.Start.Row, r.End.Row = r.End.Row, r.Start.Row
	}
	return r
}

// FullColumnRange builds a full-column range spanning the maximum sheet
// height, e.g. A:A.
func FullColumnRange(startCol, endCol uint32) CellRange {
	if startCol > endCol {
		startCol, endCol = endCol, startCol
	}
	return CellRange{
		Start:    ARef{Col: startCol, Row: 0},
		End:      ARef{Col: endCol, Row: MaxRow - 1},
		FullCols: true,
	}
}

// FullRowRange builds a full-row range spanning the maximum sheet width.
func FullRowRange(startRow, endRow uint32) CellRange {
	if startRow > endRow {
		startRow, endRow = endRow, startRow
	}
	return CellRange{
		Start:    ARef{Col: 0, Row: startRow},
		End:      ARef{Col: MaxCol - 1, Row: endRow},
		FullRows: true,
	}
}

// Contains reports whether ref lies within r.
func (r CellRange) Contains(ref ARef) bool {
	return ref.Col >= r.Start.Col && ref.Col <= r.End.Col &&
		ref.Row >= r.Start.Row && ref.Row <= r.End.Row
}

// Rows returns the number of rows spanned.
func (r CellRange) Rows() int { return int(r.End.Row-r.Start.Row) + 1 }

// Cols returns the number of columns spanned.
func (r CellRange) Cols() int { return int(r.End.Col-r.Start.Col) + 1 }

// Bound intersects a full-column or full-row range against used, the
// target sheet's non-empty extent. Ranges that are not full-column/row
// pass through unchanged.
func (r CellRange) Bound(used CellRange) CellRange {
	out := r
	if r.FullCols {
		out.Start.Row = used.Start.Row
		out.End.Row = used.End.Row
		out.FullCols = false
	}
	if r.FullRows {
		out.Start.Col = used.Start.Col
		out.End.Col = used.End.Col
		out.FullRows = false
	}
	return out
}

// Iter yields every ARef in r in row-major order, lazily — MIN/MAX/AVERAGE
// must be able to fold over it without the iterator being consumed by an
// earlier is-empty check. Ranges must be bounded (see Bound) before
// iterating a full-column/row range, or this walks the entire sheet
// extent.
func (r CellRange) Iter() iter.Seq[ARef] {
	return func(yield func(ARef) bool) {
		for row := r.Start.Row; row <= r.End.Row; row++ {
			for col := r.Start.Col; col <= r.End.Col; col++ {
				if !yield(ARef{Col: col, Row: row}) {
					return
				}
				if col == MaxCol-1 {
					break
				}
			}
			if row == MaxRow-1 {
				break
			}
		}
	}
}

func (r CellRange) String() string {
	if r.FullCols {
		return ColumnToLetters(r.Start.Col) + ":" + ColumnToLetters(r.End.Col)
	}
	if r.FullRows {
		return fmt.Sprintf("%d:%d", r.Start.Row+1, r.End.Row+1)
	}
	return FormatA1(r.Start, RelativeAnchor) + ":" + FormatA1(r.End, RelativeAnchor)
}

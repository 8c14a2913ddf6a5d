package address

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnToLetters converts a 0-based column index to its base-26 A1 letters
// (A, B, ..., Z, AA, AB, ..., ZZ, AAA, ...).
func ColumnToLetters(col uint32) string {
	col++ // to 1-based
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// LettersToColumn converts base-26 A1 column letters to a 0-based column
// index.
func LettersToColumn(letters string) (uint32, error) {
	if letters == "" {
		return 0, fmt.Errorf("empty column letters")
	}
	var col uint32
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column letter %q", r)
		}
		col = col*26 + uint32(r-'A'+1)
	}
	return col - 1, nil
}

// FormatA1 renders ref in A1 notation with the given anchor, e.g. "A1",
// "$A$1", "A$1", "$A1".
func FormatA1(ref ARef, anchor Anchor) string {
	var b strings.Builder
	if anchor.ColAbs {
		b.WriteByte('$')
	}
	b.WriteString(ColumnToLetters(ref.Col))
	if anchor.RowAbs {
		b.WriteByte('$')
	}
	b.WriteString(strconv.FormatUint(uint64(ref.Row)+1, 10))
	return b.String()
}

// ParseA1 parses an A1-notation cell reference (optionally anchored),
// e.g. "A1", "$A$1", "A$1", "$A1". Row/column are returned 0-based.
func ParseA1(s string) (ARef, Anchor, error) {
	i := 0
	var anchor Anchor
	if i < len(s) && s[i] == '$' {
		anchor.ColAbs = true
		i++
	}
	start := i
	for i < len(s) && isAlpha(s[i]) {
		i++
	}
	if i == start {
		return ARef{}, Anchor{}, fmt.Errorf("invalid cell reference %q: missing column letters", s)
	}
	letters := s[start:i]
	col, err := LettersToColumn(letters)
	if err != nil {
		return ARef{}, Anchor{}, fmt.Errorf("invalid cell reference %q: %w", s, err)
	}
	if i < len(s) && s[i] == '$' {
		anchor.RowAbs = true
		i++
	}
	rowStart := i
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	if i == rowStart || i != len(s) {
		return ARef{}, Anchor{}, fmt.Errorf("invalid cell reference %q: malformed row number", s)
	}
	rowNum, err := strconv.ParseUint(s[rowStart:i], 10, 32)
	if err != nil || rowNum == 0 {
		return ARef{}, Anchor{}, fmt.Errorf("invalid cell reference %q: row must be >= 1", s)
	}
	return ARef{Col: col, Row: uint32(rowNum) - 1}, anchor, nil
}

func isAlpha(b byte) bool { return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// LooksLikeCellRef reports whether s has the shape of an A1 cell
// reference, without validating row/column bounds; used by the parser to
// distinguish a bare identifier from a cell reference.
func LooksLikeCellRef(s string) bool {
	_, _, err := ParseA1(s)
	return err == nil
}

// sheetNameSafe matches characters that never require quoting: letters,
// digits, underscore.
func sheetNameSafe(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}

// RequiresQuoting reports whether a sheet name needs quoting: it does
// iff it contains anything outside [A-Za-z0-9_] or starts with a digit.
func RequiresQuoting(name string) bool {
	if name == "" {
		return true
	}
	if name[0] >= '0' && name[0] <= '9' {
		return true
	}
	for _, r := range name {
		if !sheetNameSafe(r) {
			return true
		}
	}
	return false
}

// FormatSheetName renders name for embedding in a qualified reference,
// quoting and doubling embedded apostrophes when required, e.g.
// O'Brien -> 'O''Brien'.
func FormatSheetName(name string) string {
	if !RequiresQuoting(name) {
		return name
	}
	escaped := strings.ReplaceAll(name, "'", "''")
	return "'" + escaped + "'"
}

// FormatQualified renders a full sheet-qualified A1 reference, e.g.
// Sheet1!A1 or 'Q1 Report'!A1.
func FormatQualified(sheet string, ref ARef, anchor Anchor) string {
	return FormatSheetName(sheet) + "!" + FormatA1(ref, anchor)
}

// ParseQualified splits "Sheet1!A1" or "'Q1 Report'!A1" into its sheet
// name and cell reference. Embedded apostrophes ('') inside a quoted name
// are unescaped to a single '.
func ParseQualified(s string) (sheet string, ref ARef, anchor Anchor, err error) {
	if strings.HasPrefix(s, "'") {
		end := -1
		for i := 1; i < len(s); i++ {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				end = i
				break
			}
		}
		if end == -1 {
			return "", ARef{}, Anchor{}, fmt.Errorf("unterminated quoted sheet name in %q", s)
		}
		sheet = strings.ReplaceAll(s[1:end], "''", "'")
		rest := s[end+1:]
		if !strings.HasPrefix(rest, "!") {
			return "", ARef{}, Anchor{}, fmt.Errorf("expected '!' after quoted sheet name in %q", s)
		}
		ref, anchor, err = ParseA1(rest[1:])
		return sheet, ref, anchor, err
	}
	idx := strings.LastIndexByte(s, '!')
	if idx == -1 {
		return "", ARef{}, Anchor{}, fmt.Errorf("missing '!' in sheet-qualified reference %q", s)
	}
	sheet = s[:idx]
	ref, anchor, err = ParseA1(s[idx+1:])
	return sheet, ref, anchor, err
}

// ParseRange parses range text of any of the three A1 shapes: a cell
// rectangle ("A1:B2", anchors allowed), a full-column span ("A:A",
// "$B:$D"), or a full-row span ("1:3"). Single-cell text is not a range
// and is rejected; callers fall back to ParseA1.
func ParseRange(s string) (CellRange, error) {
	idx := strings.IndexByte(s, ':')
	if idx == -1 {
		return CellRange{}, fmt.Errorf("not a range: %q", s)
	}
	left, right := s[:idx], s[idx+1:]

	if col1, ok := parseColOnly(left); ok {
		col2, ok := parseColOnly(right)
		if !ok {
			return CellRange{}, fmt.Errorf("invalid range %q: mixed column/cell endpoints", s)
		}
		return FullColumnRange(col1, col2), nil
	}
	if row1, ok := parseRowOnly(left); ok {
		row2, ok := parseRowOnly(right)
		if !ok {
			return CellRange{}, fmt.Errorf("invalid range %q: mixed row/cell endpoints", s)
		}
		return FullRowRange(row1, row2), nil
	}

	a, _, err := ParseA1(left)
	if err != nil {
		return CellRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	b, _, err := ParseA1(right)
	if err != nil {
		return CellRange{}, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return NewRange(a, b), nil
}

// parseColOnly parses a bare column endpoint ("A", "$XF"), 0-based.
func parseColOnly(s string) (uint32, bool) {
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if !isAlpha(s[i]) {
			return 0, false
		}
	}
	col, err := LettersToColumn(s)
	if err != nil {
		return 0, false
	}
	return col, true
}

// parseRowOnly parses a bare row endpoint ("1", "$12"), 0-based.
func parseRowOnly(s string) (uint32, bool) {
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint32(n) - 1, true
}

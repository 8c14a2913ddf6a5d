package address

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatR1C1 renders ref relative to origin in R1C1 notation. An absolute
// axis renders as R<n>/C<n>; a relative axis renders with a bracketed
// offset, e.g. R[1]C[-2], or a bare R/C when the offset is zero.
func FormatR1C1(ref ARef, anchor Anchor, origin ARef) string {
	var b strings.Builder
	b.WriteByte('R')
	if anchor.RowAbs {
		b.WriteString(strconv.FormatUint(uint64(ref.Row)+1, 10))
	} else {
		writeOffset(&b, int64(ref.Row)-int64(origin.Row))
	}
	b.WriteByte('C')
	if anchor.ColAbs {
		b.WriteString(strconv.FormatUint(uint64(ref.Col)+1, 10))
	} else {
		writeOffset(&b, int64(ref.Col)-int64(origin.Col))
	}
	return b.String()
}

func writeOffset(b *strings.Builder, offset int64) {
	if offset == 0 {
		return
	}
	b.WriteByte('[')
	b.WriteString(strconv.FormatInt(offset, 10))
	b.WriteByte(']')
}

// ParseR1C1 parses an R1C1-notation reference relative to origin, e.g.
// "R1C1", "R[1]C[-2]", "RC".
func ParseR1C1(s string, origin ARef) (ARef, Anchor, error) {
	i := 0
	if i >= len(s) || (s[i] != 'R' && s[i] != 'r') {
		return ARef{}, Anchor{}, fmt.Errorf("invalid R1C1 reference %q: expected 'R'", s)
	}
	i++
	row, rowAbs, consumed, err := parseR1C1Axis(s[i:])
	if err != nil {
		return ARef{}, Anchor{}, fmt.Errorf("invalid R1C1 reference %q: %w", s, err)
	}
	i += consumed
	if i >= len(s) || (s[i] != 'C' && s[i] != 'c') {
		return ARef{}, Anchor{}, fmt.Errorf("invalid R1C1 reference %q: expected 'C'", s)
	}
	i++
	col, colAbs, consumed, err := parseR1C1Axis(s[i:])
	if err != nil {
		return ARef{}, Anchor{}, fmt.Errorf("invalid R1C1 reference %q: %w", s, err)
	}
	i += consumed
	if i != len(s) {
		return ARef{}, Anchor{}, fmt.Errorf("invalid R1C1 reference %q: trailing characters", s)
	}

	anchor := Anchor{RowAbs: rowAbs, ColAbs: colAbs}
	var ref ARef
	if rowAbs {
		ref.Row = uint32(row - 1)
	} else {
		ref.Row = uint32(int64(origin.Row) + row)
	}
	if colAbs {
		ref.Col = uint32(col - 1)
	} else {
		ref.Col = uint32(int64(origin.Col) + col)
	}
	return ref, anchor, nil
}

// parseR1C1Axis parses one axis (the digits after 'R' or 'C'), returning
// the value, whether it was absolute, and how many bytes were consumed.
// A bare "R" or "C" with no digits/brackets means "this row/column",
// offset 0, relative.
func parseR1C1Axis(s string) (value int64, absolute bool, consumed int, err error) {
	if s == "" {
		return 0, false, 0, nil
	}
	if s[0] == '[' {
		end := strings.IndexByte(s, ']')
		if end == -1 {
			return 0, false, 0, fmt.Errorf("unterminated '[' offset")
		}
		n, err := strconv.ParseInt(s[1:end], 10, 32)
		if err != nil {
			return 0, false, 0, err
		}
		return n, false, end + 1, nil
	}
	end := 0
	for end < len(s) && (s[end] == '-' || isDigit(s[end])) {
		end++
	}
	if end == 0 {
		return 0, false, 0, nil
	}
	n, err := strconv.ParseInt(s[:end], 10, 32)
	if err != nil {
		return 0, false, 0, err
	}
	return n, true, end, nil
}

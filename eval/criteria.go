package eval

import (
	"regexp"
	"strings"

	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

// criterionKind discriminates the three criterion forms a SUMIF-style
// function accepts: an exact value, a comparison against a number, or a
// wildcard text pattern.
type criterionKind uint8

const (
	critExact criterionKind = iota
	critCompare
	critWildcard
)

// Criterion is one parsed SUMIF/COUNTIF criterion.
type Criterion struct {
	kind criterionKind

	exact value.CellValue

	cmpOp  string // ">", ">=", "<", "<=", "<>", "="
	cmpNum decimal.Decimal
	// cmpText is the comparison operand when it does not parse as a
	// number; "=abc" and "<>abc" compare as case-insensitive text.
	cmpText    string
	cmpNumeric bool

	pattern *regexp.Regexp
}

// ParseCriterion interprets v as a criterion: text beginning with a
// comparison operator becomes a Compare criterion; text containing an
// unescaped * or ?, or a ~ escape, becomes a Wildcard; anything else
// (including non-text values) is an Exact match.
func ParseCriterion(v value.CellValue) Criterion {
	if v.Kind != value.KindText && v.Kind != value.KindRichText {
		return Criterion{kind: critExact, exact: v}
	}
	s := v.Text
	if v.Kind == value.KindRichText {
		s = v.PlainText()
	}

	for _, op := range []string{">=", "<=", "<>", ">", "<", "="} {
		if strings.HasPrefix(s, op) {
			operand := s[len(op):]
			c := Criterion{kind: critCompare, cmpOp: op}
			if d, err := decimal.NewFromString(strings.TrimSpace(operand)); err == nil {
				c.cmpNum = d
				c.cmpNumeric = true
			} else {
				c.cmpText = operand
			}
			return c
		}
	}

	if hasUnescapedWildcard(s) || strings.Contains(s, "~") {
		return Criterion{kind: critWildcard, pattern: wildcardRegexp(s)}
	}
	return Criterion{kind: critExact, exact: v}
}

// Matches reports whether cell satisfies the criterion. Exact text match
// is case-insensitive; numeric and text representations cross-match
// (Number(42) matches "42" and vice versa); DateTime cells match numeric
// criteria equal to their Excel serial.
func (c Criterion) Matches(cell value.CellValue) bool {
	switch c.kind {
	case critCompare:
		return c.matchesCompare(cell)
	case critWildcard:
		s, err := value.ToText(cell)
		if err != nil {
			return false
		}
		return c.pattern.MatchString(s)
	default:
		return matchesExact(c.exact, cell)
	}
}

func (c Criterion) matchesCompare(cell value.CellValue) bool {
	if c.cmpNumeric {
		n, err := value.ToNumber(cell)
		if err != nil {
			return false
		}
		cmp := n.Cmp(c.cmpNum)
		return cmpSatisfies(c.cmpOp, cmp)
	}
	s, err := value.ToText(cell)
	if err != nil {
		return false
	}
	cmp := strings.Compare(strings.ToUpper(s), strings.ToUpper(c.cmpText))
	return cmpSatisfies(c.cmpOp, cmp)
}

func cmpSatisfies(op string, cmp int) bool {
	switch op {
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case "<>":
		return cmp != 0
	default:
		return cmp == 0
	}
}

func matchesExact(want, cell value.CellValue) bool {
	// Empty criterion matches only empty cells.
	if want.Kind == value.KindEmpty {
		return cell.Kind == value.KindEmpty
	}
	// Date criterion against a DateTime cell: compare truncated dates.
	if want.Kind == value.KindDateTime && cell.Kind == value.KindDateTime {
		return value.DateOnly(want.DateTime).Equal(value.DateOnly(cell.DateTime))
	}
	// Numeric cross-matching, including DateTime-as-serial: Number(42)
	// matches Text("42") and a date cell matches its serial.
	wn, werr := value.ToNumber(want)
	cn, cerr := value.ToNumber(cell)
	if werr == nil && cerr == nil {
		return wn.Equal(cn)
	}
	ws, werr2 := value.ToText(want)
	cs, cerr2 := value.ToText(cell)
	if werr2 != nil || cerr2 != nil {
		return false
	}
	return strings.EqualFold(ws, cs)
}

// hasUnescapedWildcard reports whether s contains a * or ? not preceded by
// the ~ escape.
func hasUnescapedWildcard(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			i++ // skip the escaped character
		case '*', '?':
			return true
		}
	}
	return false
}

// wildcardRegexp compiles an Excel wildcard pattern into an anchored
// case-insensitive regexp: * matches any run, ? any single character, and
// ~ escapes a literal *, ?, or ~.
func wildcardRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?i)^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch ch {
		case '~':
			if i+1 < len(pattern) {
				i++
				b.WriteString(regexp.QuoteMeta(string(pattern[i])))
			} else {
				b.WriteString(regexp.QuoteMeta("~"))
			}
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

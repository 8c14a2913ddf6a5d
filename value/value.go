// Package value implements the spreadsheet cell-value sum type and its
// arbitrary-precision arithmetic, following Excel's coercion rules.
package value

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the variants of CellValue.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindNumber
	KindText
	KindBool
	KindDateTime
	KindError
	KindFormula
	KindRichText
)

// ErrorKind enumerates the Excel-faithful error codes a formula can
// produce.
type ErrorKind uint8

const (
	ErrDiv0 ErrorKind = iota + 1
	ErrValue
	ErrRef
	ErrName
	ErrNum
	ErrNA
	ErrNull
	ErrGettingData
)

// errorTokens maps an ErrorKind to the text Excel displays for it.
var errorTokens = map[ErrorKind]string{
	ErrDiv0:        "#DIV/0!",
	ErrValue:       "#VALUE!",
	ErrRef:         "#REF!",
	ErrName:        "#NAME?",
	ErrNum:         "#NUM!",
	ErrNA:          "#N/A",
	ErrNull:        "#NULL!",
	ErrGettingData: "#GETTING_DATA",
}

// Token returns the canonical Excel error string, e.g. "#DIV/0!".
func (k ErrorKind) Token() string {
	if tok, ok := errorTokens[k]; ok {
		return tok
	}
	return "#ERROR!"
}

func (k ErrorKind) String() string { return k.Token() }

// FormulaCell is the payload of a KindFormula CellValue: the formula's
// source text and, optionally, its last computed result. Cached is never
// itself a KindFormula value — see CellValue's invariant.
type FormulaCell struct {
	Source string
	Cached *CellValue
}

// CellValue is the tagged sum type every cell and every expression result
// is expressed as. Only the field matching Kind is meaningful.
type CellValue struct {
	Kind     Kind
	Num      decimal.Decimal
	Text     string
	Bool     bool
	DateTime time.Time
	Err      ErrorKind
	Formula  *FormulaCell
	// RichRuns holds the plain-text runs of a KindRichText value; for
	// formula purposes a rich-text cell behaves exactly like KindText of
	// its concatenated runs.
	RichRuns []string
}

func Empty() CellValue { return CellValue{Kind: KindEmpty} }

func Num(d decimal.Decimal) CellValue { return CellValue{Kind: KindNumber, Num: d} }

func NumFromInt(i int64) CellValue { return Num(decimal.NewFromInt(i)) }

func NumFromFloat(f float64) CellValue { return Num(decimal.NewFromFloat(f)) }

func Text(s string) CellValue { return CellValue{Kind: KindText, Text: s} }

func Bool(b bool) CellValue { return CellValue{Kind: KindBool, Bool: b} }

func DateTime(t time.Time) CellValue { return CellValue{Kind: KindDateTime, DateTime: t} }

func Error(k ErrorKind) CellValue { return CellValue{Kind: KindError, Err: k} }

// Formula constructs a formula-cell value. cached must not itself carry
// KindFormula; callers violating this invariant get a #VALUE! cached
// result rather than a panic, since this is cheap to make defensive at a
// boundary few callers cross.
func Formula(source string, cached *CellValue) CellValue {
	if cached != nil && cached.Kind == KindFormula {
		bad := Error(ErrValue)
		cached = &bad
	}
	return CellValue{Kind: KindFormula, Formula: &FormulaCell{Source: source, Cached: cached}}
}

func RichText(runs []string) CellValue { return CellValue{Kind: KindRichText, RichRuns: runs} }

// PlainText returns the plain-text content of a KindRichText value, or the
// empty string for any other kind.
func (v CellValue) PlainText() string {
	if v.Kind != KindRichText {
		return ""
	}
	out := ""
	for _, r := range v.RichRuns {
		out += r
	}
	return out
}

// IsError reports whether v is a KindError value.
func (v CellValue) IsError() bool { return v.Kind == KindError }

// AsCoercionError returns a *CoercionError reflecting v.Err when v is a
// KindError value, nil otherwise.
func (v CellValue) AsCoercionError() error {
	if !v.IsError() {
		return nil
	}
	return &CoercionError{Kind: v.Err}
}

package eval

import (
	"errors"
	"fmt"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/value"
)

// EvalErrorKind enumerates the dynamic (runtime) failure kinds, distinct
// from parser.ParseError's static ones.
type EvalErrorKind uint8

const (
	ErrDivByZero EvalErrorKind = iota
	ErrCodecFailed
	ErrEvalFailed
	ErrMissingWorkbook
	ErrUnknownSheet
	ErrCycleDetected
	ErrRecursionLimit
)

// EvalError is the dynamic error type the evaluator and function registry
// return; the sheetface entry points hand it to the caller as an error,
// and ToCellError gives the matching value.ErrorKind where a cell value
// is needed instead.
type EvalError struct {
	Kind      EvalErrorKind
	Message   string
	Cause     error
	SheetName string
	Trace     []address.QualifiedRef
	// ExcelKind overrides the default Kind->ErrorKind mapping when a
	// caller (typically a built-in function) knows the precise Excel
	// error token to surface, e.g. VLOOKUP not found -> NA, IRR failing
	// to converge -> Num, INDEX out of bounds -> Ref.
	ExcelKind value.ErrorKind
}

func (e *EvalError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case ErrDivByZero:
		return "division by zero"
	case ErrCodecFailed:
		return "value coercion failed"
	case ErrEvalFailed:
		return "evaluation failed"
	case ErrMissingWorkbook:
		return "formula references another sheet but no workbook was supplied"
	case ErrUnknownSheet:
		return fmt.Sprintf("unknown sheet %q", e.SheetName)
	case ErrCycleDetected:
		return "circular reference detected"
	case ErrRecursionLimit:
		return "recursion depth limit exceeded"
	default:
		return "evaluation error"
	}
}

func (e *EvalError) Unwrap() error { return e.Cause }

// ToCellError maps e onto the Excel-faithful error token a cell should
// display.
func (e *EvalError) ToCellError() value.ErrorKind {
	if e.ExcelKind != 0 {
		return e.ExcelKind
	}
	switch e.Kind {
	case ErrDivByZero:
		return value.ErrDiv0
	case ErrCodecFailed:
		return value.ErrValue
	case ErrEvalFailed:
		return value.ErrValue
	case ErrMissingWorkbook, ErrUnknownSheet:
		return value.ErrRef
	case ErrCycleDetected, ErrRecursionLimit:
		return value.ErrNum
	default:
		return value.ErrValue
	}
}

// FromCoercionError converts a value.CoercionError (or a KindError
// CellValue's AsCoercionError) into an *EvalError, preserving the precise
// Excel error kind it already carried.
func FromCoercionError(err error) *EvalError {
	var ce *value.CoercionError
	if errors.As(err, &ce) {
		if ce.Kind == value.ErrDiv0 {
			return &EvalError{Kind: ErrDivByZero, Message: ce.Error(), Cause: err, ExcelKind: ce.Kind}
		}
		return &EvalError{Kind: ErrCodecFailed, Message: ce.Error(), Cause: err, ExcelKind: ce.Kind}
	}
	return &EvalError{Kind: ErrEvalFailed, Message: err.Error(), Cause: err}
}

// AsEvalError unwraps err into an *EvalError, converting a bare
// value.CoercionError if that's what it finds, or wrapping anything else
// as an opaque ErrEvalFailed.
func AsEvalError(err error) *EvalError {
	var ee *EvalError
	if errors.As(err, &ee) {
		return ee
	}
	return FromCoercionError(err)
}

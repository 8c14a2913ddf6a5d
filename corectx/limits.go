package corectx

import "github.com/shopspring/decimal"

// Limits collects the engine's tunables into one struct of knobs with a
// documented default, alongside the Clock injection point in contracts.go.
type Limits struct {
	// RecursionDepth caps descent into uncached formula cells;
	// exceeding it surfaces as EvalError RecursionLimit.
	RecursionDepth int
	// FormulaMaxLen is the ParseError.FormulaTooLong threshold.
	FormulaMaxLen int
	// IRRMaxIterations and IRRTolerance bound IRR/XIRR's Newton's-method
	// search: converge to |NPV| < tolerance within the iteration cap.
	IRRMaxIterations int
	IRRTolerance     decimal.Decimal
	// RateMaxIterations bounds RATE's Newton's-method search.
	RateMaxIterations int
	RateTolerance     decimal.Decimal
	// SuggestionMaxDistance bounds the Levenshtein distance used for
	// ParseError.UnknownFunction suggestions.
	SuggestionMaxDistance int
}

// DefaultLimits returns the stock limits.
func DefaultLimits() Limits {
	return Limits{
		RecursionDepth:        128,
		FormulaMaxLen:         10_000,
		IRRMaxIterations:      100,
		IRRTolerance:          decimal.NewFromFloat(1e-7),
		RateMaxIterations:     100,
		RateTolerance:         decimal.NewFromFloat(1e-7),
		SuggestionMaxDistance: 2,
	}
}

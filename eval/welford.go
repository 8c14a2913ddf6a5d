package eval

import (
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

// Welford accumulates mean and variance with Welford's online algorithm:
// numerically stable even when the values differ only in the last
// digits of a large magnitude, where a naive sum-of-squares loses all
// precision. Carried in decimals so AVERAGE stays exact.
type Welford struct {
	n    int64
	mean decimal.Decimal
	m2   decimal.Decimal
}

// Add folds one observation into the accumulator.
func (w *Welford) Add(x decimal.Decimal) {
	w.n++
	delta := x.Sub(w.mean)
	w.mean = w.mean.Add(delta.DivRound(decimal.NewFromInt(w.n), value.DivisionPrecision))
	delta2 := x.Sub(w.mean)
	w.m2 = w.m2.Add(delta.Mul(delta2))
}

// Count returns the number of observations folded so far.
func (w *Welford) Count() int64 { return w.n }

// Mean returns the running mean; zero before any observation.
func (w *Welford) Mean() decimal.Decimal { return w.mean }

// SampleVariance returns the n-1 variance, or ok=false with fewer than
// two observations.
func (w *Welford) SampleVariance() (decimal.Decimal, bool) {
	if w.n < 2 {
		return decimal.Decimal{}, false
	}
	return w.m2.DivRound(decimal.NewFromInt(w.n-1), value.DivisionPrecision), true
}

// PopulationVariance returns the n variance, or ok=false with no
// observations.
func (w *Welford) PopulationVariance() (decimal.Decimal, bool) {
	if w.n < 1 {
		return decimal.Decimal{}, false
	}
	return w.m2.DivRound(decimal.NewFromInt(w.n), value.DivisionPrecision), true
}

// SampleStdDev returns sqrt of the sample variance.
func (w *Welford) SampleStdDev() (decimal.Decimal, bool) {
	v, ok := w.SampleVariance()
	if !ok {
		return decimal.Decimal{}, false
	}
	s, err := value.Sqrt(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return s, true
}

// PopulationStdDev returns sqrt of the population variance.
func (w *Welford) PopulationStdDev() (decimal.Decimal, bool) {
	v, ok := w.PopulationVariance()
	if !ok {
		return decimal.Decimal{}, false
	}
	s, err := value.Sqrt(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return s, true
}

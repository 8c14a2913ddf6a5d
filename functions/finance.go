package functions

import (
	"math"
	"time"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

func registerFinance(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "NPV",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Range(), ast.VariadicRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			rate, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			onePlus := rate.Add(decimal.NewFromInt(1))
			if onePlus.IsZero() {
				return value.CellValue{}, failf(value.ErrDiv0, "NPV rate of -1")
			}
			total := decimal.Zero
			i := int64(0)
			// Non-numeric cells are silently skipped; the period index
			// advances only on numeric flows.
			err = foldNumbers(ctx, args[1:], func(cf decimal.Decimal) error {
				i++
				denom := onePlus.Pow(decimal.NewFromInt(i))
				total = total.Add(cf.DivRound(denom, value.DivisionPrecision))
				return nil
			})
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Num(total), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "IRR",
		Args: []ast.ArgSpec{ast.Range(), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			flows, err := collectFloats(ctx, args[:1])
			if err != nil {
				return value.CellValue{}, err
			}
			guess, err := numberOr(ctx, args, 1, decimal.NewFromFloat(0.1))
			if err != nil {
				return value.CellValue{}, err
			}
			if !hasBothSigns(flows) {
				return value.CellValue{}, failf(value.ErrNum, "IRR requires at least one positive and one negative cash flow")
			}
			tol, _ := ctx.Limits().IRRTolerance.Float64()
			rate, ok := newtonIRR(flows, mustFloat(guess), tol, ctx.Limits().IRRMaxIterations)
			if !ok {
				return value.CellValue{}, failf(value.ErrNum, "IRR did not converge")
			}
			return value.NumFromFloat(rate), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "XNPV",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Range(), ast.Range()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			rate, err := numberAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			flows, dates, err := flowsAndDates(ctx, args, 1, 2)
			if err != nil {
				return value.CellValue{}, err
			}
			r0, _ := rate.Float64()
			if r0 <= -1 {
				return value.CellValue{}, failf(value.ErrNum, "XNPV rate must exceed -1")
			}
			return value.NumFromFloat(xnpvAt(r0, flows, dates)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "XIRR",
		Args: []ast.ArgSpec{ast.Range(), ast.Range(), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			flows, dates, err := flowsAndDates(ctx, args, 0, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			if !hasBothSigns(flows) {
				return value.CellValue{}, failf(value.ErrNum, "XIRR requires at least one positive and one negative cash flow")
			}
			guess, err := numberOr(ctx, args, 2, decimal.NewFromFloat(0.1))
			if err != nil {
				return value.CellValue{}, err
			}
			tol, _ := ctx.Limits().IRRTolerance.Float64()
			rate, ok := newtonXIRR(flows, dates, mustFloat(guess), tol, ctx.Limits().IRRMaxIterations)
			if !ok {
				return value.CellValue{}, failf(value.ErrNum, "XIRR did not converge")
			}
			return value.NumFromFloat(rate), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "PMT",
		Args: tvmArgs(5),
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			rate, nper, pv, fv, due, err := tvmInputs(ctx, args, 0, 1, 2, 3, 4)
			if err != nil {
				return value.CellValue{}, err
			}
			if nper == 0 {
				return value.CellValue{}, failf(value.ErrNum, "PMT with zero periods")
			}
			if rate == 0 {
				return value.NumFromFloat(-(pv + fv) / nper), nil
			}
			growth := math.Pow(1+rate, nper)
			pmt := -(pv*growth + fv) * rate / ((1 + rate*due) * (growth - 1))
			return tvmResult(pmt)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "FV",
		Args: tvmArgs(5),
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			rate, nper, pmt, pv, due, err := tvmInputs(ctx, args, 0, 1, 2, 3, 4)
			if err != nil {
				return value.CellValue{}, err
			}
			if rate == 0 {
				return value.NumFromFloat(-(pv + pmt*nper)), nil
			}
			growth := math.Pow(1+rate, nper)
			fv := -(pv*growth + pmt*(1+rate*due)*(growth-1)/rate)
			return tvmResult(fv)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "PV",
		Args: tvmArgs(5),
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			rate, nper, pmt, fv, due, err := tvmInputs(ctx, args, 0, 1, 2, 3, 4)
			if err != nil {
				return value.CellValue{}, err
			}
			if rate == 0 {
				return value.NumFromFloat(-(fv + pmt*nper)), nil
			}
			growth := math.Pow(1+rate, nper)
			pv := -(fv + pmt*(1+rate*due)*(growth-1)/rate) / growth
			return tvmResult(pv)
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "NPER",
		Args: tvmArgs(5),
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			rate, pmt, pv, fv, due, err := tvmInputs(ctx, args, 0, 1, 2, 3, 4)
			if err != nil {
				return value.CellValue{}, err
			}
			if rate == 0 {
				if pmt == 0 {
					return value.CellValue{}, failf(value.ErrDiv0, "NPER with zero rate and zero payment")
				}
				return value.NumFromFloat(-(pv + fv) / pmt), nil
			}
			adj := pmt * (1 + rate*due) / rate
			num := (adj - fv) / (pv + adj)
			if num <= 0 {
				return value.CellValue{}, failf(value.ErrNum, "NPER has no solution for these inputs")
			}
			return tvmResult(math.Log(num) / math.Log(1+rate))
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "RATE",
		Args: tvmArgs(6),
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			nper, pmt, pv, fv, due, err := tvmInputs(ctx, args, 0, 1, 2, 3, 4)
			if err != nil {
				return value.CellValue{}, err
			}
			guess, err := numberOr(ctx, args, 5, decimal.NewFromFloat(0.1))
			if err != nil {
				return value.CellValue{}, err
			}
			tol, _ := ctx.Limits().RateTolerance.Float64()
			rate, ok := newtonRate(nper, pmt, pv, fv, due, mustFloat(guess), tol, ctx.Limits().RateMaxIterations)
			if !ok {
				return value.CellValue{}, failf(value.ErrNum, "RATE did not converge")
			}
			return value.NumFromFloat(rate), nil
		},
	})
}

// tvmArgs builds the shared TVM signature: three required numbers plus
// n-3 optional trailing ones.
func tvmArgs(n int) []ast.ArgSpec {
	specs := []ast.ArgSpec{
		ast.Scalar(ast.DecodeNumber),
		ast.Scalar(ast.DecodeNumber),
		ast.Scalar(ast.DecodeNumber),
	}
	for len(specs) < n {
		specs = append(specs, ast.OptionalScalar(ast.DecodeNumber))
	}
	return specs
}

// tvmInputs reads five TVM operands; the last two default to 0 (fv and
// the end-of-period type flag).
func tvmInputs(ctx ast.EvalContext, args []ast.FuncArg, i0, i1, i2, i3, i4 int) (a, b, c, d, e float64, err error) {
	read := func(i int, optional bool) (float64, error) {
		if optional {
			dec, err := numberOr(ctx, args, i, decimal.Zero)
			if err != nil {
				return 0, err
			}
			return mustFloat(dec), nil
		}
		dec, err := numberAt(ctx, args, i)
		if err != nil {
			return 0, err
		}
		return mustFloat(dec), nil
	}
	if a, err = read(i0, false); err != nil {
		return
	}
	if b, err = read(i1, false); err != nil {
		return
	}
	if c, err = read(i2, false); err != nil {
		return
	}
	if d, err = read(i3, true); err != nil {
		return
	}
	e, err = read(i4, true)
	return
}

func tvmResult(f float64) (value.CellValue, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return value.CellValue{}, failf(value.ErrNum, "result overflow")
	}
	return value.NumFromFloat(f), nil
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func collectFloats(ctx ast.EvalContext, args []ast.FuncArg) ([]float64, error) {
	var out []float64
	err := foldNumbers(ctx, args, func(d decimal.Decimal) error {
		out = append(out, mustFloat(d))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func hasBothSigns(flows []float64) bool {
	pos, neg := false, false
	for _, f := range flows {
		if f > 0 {
			pos = true
		}
		if f < 0 {
			neg = true
		}
	}
	return pos && neg
}

// npvAt values the flow series at rate with the first flow at period 0,
// the IRR convention.
func npvAt(rate float64, flows []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		total += cf / math.Pow(1+rate, float64(i))
	}
	return total
}

func npvDerivAt(rate float64, flows []float64) float64 {
	total := 0.0
	for i, cf := range flows {
		if i == 0 {
			continue
		}
		total -= float64(i) * cf / math.Pow(1+rate, float64(i+1))
	}
	return total
}

func newtonIRR(flows []float64, guess, tol float64, maxIter int) (float64, bool) {
	rate := guess
	for iter := 0; iter < maxIter; iter++ {
		f := npvAt(rate, flows)
		if math.Abs(f) < tol {
			return rate, true
		}
		deriv := npvDerivAt(rate, flows)
		if deriv == 0 || math.IsNaN(deriv) {
			return 0, false
		}
		next := rate - f/deriv
		if next <= -1 {
			next = (rate - 1) / 2 // stay above the -100% pole
		}
		rate = next
	}
	return 0, false
}

// flowsAndDates reads the paired values/dates ranges for XNPV/XIRR,
// requiring equal lengths.
func flowsAndDates(ctx ast.EvalContext, args []ast.FuncArg, vi, di int) ([]float64, []time.Time, error) {
	valuesView, err := viewArg(ctx, args[vi])
	if err != nil {
		return nil, nil, err
	}
	datesView, err := viewArg(ctx, args[di])
	if err != nil {
		return nil, nil, err
	}
	var flows []float64
	for cell := range valuesView.All() {
		switch cell.Kind {
		case value.KindError:
			return nil, nil, failf(cell.Err, "error cell in values range")
		case value.KindNumber:
			flows = append(flows, mustFloat(cell.Num))
		}
	}
	var dates []time.Time
	for cell := range datesView.All() {
		switch cell.Kind {
		case value.KindError:
			return nil, nil, failf(cell.Err, "error cell in dates range")
		case value.KindDateTime:
			dates = append(dates, value.DateOnly(cell.DateTime))
		case value.KindNumber:
			dates = append(dates, value.DateOnly(value.SerialToTime(cell.Num)))
		}
	}
	if len(flows) != len(dates) || len(flows) == 0 {
		return nil, nil, failf(value.ErrValue, "values and dates ranges must have matching length")
	}
	return flows, dates, nil
}

// xnpvAt discounts each flow by (date_i - date_0)/365 years.
func xnpvAt(rate float64, flows []float64, dates []time.Time) float64 {
	total := 0.0
	for i, cf := range flows {
		years := dates[i].Sub(dates[0]).Hours() / 24 / 365
		total += cf / math.Pow(1+rate, years)
	}
	return total
}

// newtonXIRR runs Newton with a numeric derivative, falling back to
// bisection when Newton diverges.
func newtonXIRR(flows []float64, dates []time.Time, guess, tol float64, maxIter int) (float64, bool) {
	rate := guess
	for iter := 0; iter < maxIter; iter++ {
		f := xnpvAt(rate, flows, dates)
		if math.Abs(f) < tol {
			return rate, true
		}
		const h = 1e-7
		deriv := (xnpvAt(rate+h, flows, dates) - f) / h
		if deriv == 0 || math.IsNaN(deriv) {
			break
		}
		next := rate - f/deriv
		if math.IsNaN(next) || next <= -1 {
			break
		}
		rate = next
	}
	return bisectXIRR(flows, dates, tol, maxIter)
}

func bisectXIRR(flows []float64, dates []time.Time, tol float64, maxIter int) (float64, bool) {
	lo, hi := -0.9999999, 10.0
	flo := xnpvAt(lo, flows, dates)
	fhi := xnpvAt(hi, flows, dates)
	if flo*fhi > 0 {
		return 0, false
	}
	for iter := 0; iter < maxIter*2; iter++ {
		mid := (lo + hi) / 2
		fmid := xnpvAt(mid, flows, dates)
		if math.Abs(fmid) < tol {
			return mid, true
		}
		if flo*fmid < 0 {
			hi = mid
		} else {
			lo, flo = mid, fmid
		}
	}
	return (lo + hi) / 2, true
}

// rateF is the TVM balance equation RATE drives to zero.
func rateF(rate, nper, pmt, pv, fv, due float64) float64 {
	if rate == 0 {
		return pv + pmt*nper + fv
	}
	growth := math.Pow(1+rate, nper)
	return pv*growth + pmt*(1+rate*due)*(growth-1)/rate + fv
}

func newtonRate(nper, pmt, pv, fv, due, guess, tol float64, maxIter int) (float64, bool) {
	rate := guess
	for iter := 0; iter < maxIter; iter++ {
		f := rateF(rate, nper, pmt, pv, fv, due)
		if math.Abs(f) < tol {
			return rate, true
		}
		const h = 1e-7
		deriv := (rateF(rate+h, nper, pmt, pv, fv, due) - f) / h
		if deriv == 0 || math.IsNaN(deriv) {
			return 0, false
		}
		next := rate - f/deriv
		if math.IsNaN(next) || next <= -1 {
			return 0, false
		}
		rate = next
	}
	return 0, false
}

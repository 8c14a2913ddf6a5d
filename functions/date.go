package functions

import (
	"time"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/value"
	"github.com/shopspring/decimal"
)

func registerDate(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "TODAY",
		Args: nil,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			return value.DateTime(ctx.Env().Clock().Today()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "NOW",
		Args: nil,
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			return value.DateTime(ctx.Env().Clock().Now()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "DATE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			y, err := intOr(ctx, args, 0, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			m, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			d, err := intOr(ctx, args, 2, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			// time.Date normalises out-of-range month/day the same way
			// Excel does (DATE(2020,13,1) = Jan 2021).
			return value.DateTime(time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "YEAR",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate)},
		Eval: datePart(func(t time.Time) int64 { return int64(t.Year()) }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "MONTH",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate)},
		Eval: datePart(func(t time.Time) int64 { return int64(t.Month()) }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "DAY",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate)},
		Eval: datePart(func(t time.Time) int64 { return int64(t.Day()) }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "HOUR",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate)},
		Eval: datePart(func(t time.Time) int64 { return int64(t.Hour()) }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "MINUTE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate)},
		Eval: datePart(func(t time.Time) int64 { return int64(t.Minute()) }),
	})
	r.Register(&ast.FunctionSpec{
		Name: "SECOND",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate)},
		Eval: datePart(func(t time.Time) int64 { return int64(t.Second()) }),
	})

	r.Register(&ast.FunctionSpec{
		Name: "WEEKDAY",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			t, err := dateAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			mode, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			wd := int64(t.Weekday()) // 0=Sunday
			switch mode {
			case 1:
				return value.NumFromInt(wd + 1), nil // 1=Sunday..7=Saturday
			case 2:
				return value.NumFromInt((wd+6)%7 + 1), nil // 1=Monday..7=Sunday
			case 3:
				return value.NumFromInt((wd + 6) % 7), nil // 0=Monday..6=Sunday
			default:
				return value.CellValue{}, failf(value.ErrNum, "WEEKDAY return type must be 1, 2, or 3")
			}
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "EDATE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			t, err := dateAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			months, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.DateTime(addMonthsClamped(value.DateOnly(t), months)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "EOMONTH",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			t, err := dateAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			months, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			shifted := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months+1, -1)
			return value.DateTime(shifted), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "DATEDIF",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeText)},
		Eval: evalDatedif,
	})

	r.Register(&ast.FunctionSpec{
		Name: "NETWORKDAYS",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeDate), ast.OptionalRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			start, err := dateAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			end, err := dateAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			holidays, err := holidaySet(ctx, args, 2)
			if err != nil {
				return value.CellValue{}, err
			}
			sign := int64(1)
			s, e := value.DateOnly(start), value.DateOnly(end)
			if e.Before(s) {
				s, e = e, s
				sign = -1
			}
			count := int64(0)
			for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
				if isWorkday(d, holidays) {
					count++
				}
			}
			return value.NumFromInt(sign * count), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "WORKDAY",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeNumber), ast.OptionalRange()},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			start, err := dateAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			days, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			holidays, err := holidaySet(ctx, args, 2)
			if err != nil {
				return value.CellValue{}, err
			}
			step := 1
			if days < 0 {
				step = -1
				days = -days
			}
			d := value.DateOnly(start)
			for remaining := days; remaining > 0; {
				d = d.AddDate(0, 0, step)
				if isWorkday(d, holidays) {
					remaining--
				}
			}
			return value.DateTime(d), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "YEARFRAC",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeDate), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: evalYearfrac,
	})

	r.Register(&ast.FunctionSpec{
		Name: "DAYS",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeDate), ast.Scalar(ast.DecodeDate)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			end, err := dateAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			start, err := dateAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			diff := value.DateOnly(end).Sub(value.DateOnly(start)).Hours() / 24
			return value.NumFromInt(int64(diff)), nil
		},
	})
}

func datePart(part func(time.Time) int64) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		t, err := dateAt(ctx, args, 0)
		if err != nil {
			return value.CellValue{}, err
		}
		return value.NumFromInt(part(t)), nil
	}
}

// addMonthsClamped shifts t by months, clamping the day to the target
// month's end instead of letting it spill over (Jan 31 + 1 month is
// Feb 28/29, not Mar 3).
func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, t.Location())
}

func isWorkday(d time.Time, holidays map[time.Time]bool) bool {
	if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		return false
	}
	return !holidays[d]
}

// holidaySet reads the optional holidays range argument into a set of
// dates: DateTime cells by their date, number cells as date serials. An
// error cell fails the call; cells of any other kind are ignored.
func holidaySet(ctx ast.EvalContext, args []ast.FuncArg, i int) (map[time.Time]bool, error) {
	out := map[time.Time]bool{}
	if omitted(args, i) {
		return out, nil
	}
	view, err := viewArg(ctx, args[i])
	if err != nil {
		return nil, err
	}
	for cell := range view.All() {
		switch cell.Kind {
		case value.KindDateTime:
			out[value.DateOnly(cell.DateTime)] = true
		case value.KindNumber:
			out[value.DateOnly(value.SerialToTime(cell.Num))] = true
		case value.KindError:
			return nil, failf(cell.Err, "error cell in holidays range")
		}
	}
	return out, nil
}

func evalDatedif(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
	start, err := dateAt(ctx, args, 0)
	if err != nil {
		return value.CellValue{}, err
	}
	end, err := dateAt(ctx, args, 1)
	if err != nil {
		return value.CellValue{}, err
	}
	unit, err := textAt(ctx, args, 2)
	if err != nil {
		return value.CellValue{}, err
	}
	s, e := value.DateOnly(start), value.DateOnly(end)
	if e.Before(s) {
		return value.CellValue{}, failf(value.ErrNum, "DATEDIF end date precedes start date")
	}

	wholeMonths := func() int {
		months := (e.Year()-s.Year())*12 + int(e.Month()) - int(s.Month())
		if e.Day() < s.Day() {
			months--
		}
		return months
	}

	switch unit {
	case "Y", "y":
		return value.NumFromInt(int64(wholeMonths() / 12)), nil
	case "M", "m":
		return value.NumFromInt(int64(wholeMonths())), nil
	case "D", "d":
		return value.NumFromInt(int64(e.Sub(s).Hours() / 24)), nil
	case "MD", "md":
		// Days ignoring months and years.
		anchor := time.Date(e.Year(), e.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
		if anchor.After(e) {
			anchor = anchor.AddDate(0, -1, 0)
		}
		return value.NumFromInt(int64(e.Sub(anchor).Hours() / 24)), nil
	case "YM", "ym":
		return value.NumFromInt(int64(wholeMonths() % 12)), nil
	case "YD", "yd":
		// Days ignoring years.
		anchor := time.Date(e.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
		if anchor.After(e) {
			anchor = anchor.AddDate(-1, 0, 0)
		}
		return value.NumFromInt(int64(e.Sub(anchor).Hours() / 24)), nil
	default:
		return value.CellValue{}, failf(value.ErrNum, "DATEDIF unit must be Y, M, D, MD, YM, or YD")
	}
}

func evalYearfrac(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
	start, err := dateAt(ctx, args, 0)
	if err != nil {
		return value.CellValue{}, err
	}
	end, err := dateAt(ctx, args, 1)
	if err != nil {
		return value.CellValue{}, err
	}
	basis, err := intOr(ctx, args, 2, 0)
	if err != nil {
		return value.CellValue{}, err
	}
	s, e := value.DateOnly(start), value.DateOnly(end)
	if e.Before(s) {
		s, e = e, s
	}
	actualDays := decimal.NewFromFloat(e.Sub(s).Hours() / 24)

	switch basis {
	case 0:
		// US (NASD) 30/360.
		return value.Num(days360US(s, e).DivRound(decimal.NewFromInt(360), value.DivisionPrecision)), nil
	case 1:
		// Actual/actual: divide by the average year length of the span.
		yearLen := decimal.NewFromFloat(actualYearLength(s, e))
		return value.Num(actualDays.DivRound(yearLen, value.DivisionPrecision)), nil
	case 2:
		return value.Num(actualDays.DivRound(decimal.NewFromInt(360), value.DivisionPrecision)), nil
	case 3:
		return value.Num(actualDays.DivRound(decimal.NewFromInt(365), value.DivisionPrecision)), nil
	case 4:
		// European 30/360.
		return value.Num(days360EU(s, e).DivRound(decimal.NewFromInt(360), value.DivisionPrecision)), nil
	default:
		return value.CellValue{}, failf(value.ErrNum, "YEARFRAC basis must be 0-4")
	}
}

func days360US(s, e time.Time) decimal.Decimal {
	d1, d2 := s.Day(), e.Day()
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 && d1 == 30 {
		d2 = 30
	}
	days := (e.Year()-s.Year())*360 + (int(e.Month())-int(s.Month()))*30 + (d2 - d1)
	return decimal.NewFromInt(int64(days))
}

func days360EU(s, e time.Time) decimal.Decimal {
	d1, d2 := s.Day(), e.Day()
	if d1 == 31 {
		d1 = 30
	}
	if d2 == 31 {
		d2 = 30
	}
	days := (e.Year()-s.Year())*360 + (int(e.Month())-int(s.Month()))*30 + (d2 - d1)
	return decimal.NewFromInt(int64(days))
}

func actualYearLength(s, e time.Time) float64 {
	if s.Year() == e.Year() {
		if isLeapYear(s.Year()) {
			return 366
		}
		return 365
	}
	total, years := 0, 0
	for y := s.Year(); y <= e.Year(); y++ {
		if isLeapYear(y) {
			total += 366
		} else {
			total += 365
		}
		years++
	}
	return float64(total) / float64(years)
}

func isLeapYear(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

package functions

import (
	"strings"

	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/eval"
	"github.com/calcengine/formulacore/value"
)

func registerText(r *ast.Registry) {
	r.Register(&ast.FunctionSpec{
		Name: "CONCATENATE",
		Args: []ast.ArgSpec{ast.VariadicScalar(ast.DecodeText)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			var b strings.Builder
			for i := range args {
				if args[i].Omitted {
					continue
				}
				s, err := textAt(ctx, args, i)
				if err != nil {
					return value.CellValue{}, err
				}
				b.WriteString(s)
			}
			return value.Text(b.String()), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "LEN",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			s, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.NumFromInt(int64(len([]rune(s)))), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "UPPER",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText)},
		Eval: mapText(strings.ToUpper),
	})
	r.Register(&ast.FunctionSpec{
		Name: "LOWER",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText)},
		Eval: mapText(strings.ToLower),
	})
	r.Register(&ast.FunctionSpec{
		Name: "TRIM",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText)},
		Eval: mapText(func(s string) string {
			// Excel's TRIM also collapses interior runs of spaces.
			return strings.Join(strings.Fields(s), " ")
		}),
	})

	r.Register(&ast.FunctionSpec{
		Name: "LEFT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			s, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			n, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			if n < 0 {
				return value.CellValue{}, failf(value.ErrValue, "LEFT count is negative")
			}
			runes := []rune(s)
			if n > len(runes) {
				n = len(runes)
			}
			return value.Text(string(runes[:n])), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "RIGHT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			s, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			n, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			if n < 0 {
				return value.CellValue{}, failf(value.ErrValue, "RIGHT count is negative")
			}
			runes := []rune(s)
			if n > len(runes) {
				n = len(runes)
			}
			return value.Text(string(runes[len(runes)-n:])), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "MID",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			s, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			start, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			count, err := intOr(ctx, args, 2, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			if start < 1 || count < 0 {
				return value.CellValue{}, failf(value.ErrValue, "MID start or count out of range")
			}
			runes := []rune(s)
			if start > len(runes) {
				return value.Text(""), nil
			}
			end := start - 1 + count
			if end > len(runes) {
				end = len(runes)
			}
			return value.Text(string(runes[start-1 : end])), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "FIND",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeText), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: findIn(false),
	})
	r.Register(&ast.FunctionSpec{
		Name: "SEARCH",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeText), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: findIn(true),
	})

	r.Register(&ast.FunctionSpec{
		Name: "REPLACE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeNumber), ast.Scalar(ast.DecodeText)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			old, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			start, err := intOr(ctx, args, 1, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			count, err := intOr(ctx, args, 2, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			repl, err := textAt(ctx, args, 3)
			if err != nil {
				return value.CellValue{}, err
			}
			if start < 1 || count < 0 {
				return value.CellValue{}, failf(value.ErrValue, "REPLACE start or count out of range")
			}
			runes := []rune(old)
			if start > len(runes)+1 {
				start = len(runes) + 1
			}
			end := start - 1 + count
			if end > len(runes) {
				end = len(runes)
			}
			return value.Text(string(runes[:start-1]) + repl + string(runes[end:])), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "SUBSTITUTE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeText), ast.OptionalScalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			s, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			from, err := textAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			to, err := textAt(ctx, args, 2)
			if err != nil {
				return value.CellValue{}, err
			}
			if from == "" {
				return value.Text(s), nil
			}
			if omitted(args, 3) {
				return value.Text(strings.ReplaceAll(s, from, to)), nil
			}
			nth, err := intOr(ctx, args, 3, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			if nth < 1 {
				return value.CellValue{}, failf(value.ErrValue, "SUBSTITUTE instance must be >= 1")
			}
			idx, seen := 0, 0
			for {
				found := strings.Index(s[idx:], from)
				if found == -1 {
					return value.Text(s), nil
				}
				seen++
				if seen == nth {
					at := idx + found
					return value.Text(s[:at] + to + s[at+len(from):]), nil
				}
				idx += found + len(from)
			}
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "REPT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeNumber)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			s, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			n, err := intOr(ctx, args, 1, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			if n < 0 {
				return value.CellValue{}, failf(value.ErrValue, "REPT count is negative")
			}
			return value.Text(strings.Repeat(s, n)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "EXACT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeText), ast.Scalar(ast.DecodeText)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			a, err := textAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			b, err := textAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Bool(a == b), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "TEXT",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny), ast.Scalar(ast.DecodeText)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			v, err := scalarAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			format, err := textAt(ctx, args, 1)
			if err != nil {
				return value.CellValue{}, err
			}
			return value.Text(formatNumberPattern(v, format)), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "VALUE",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			v, err := scalarAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			d, err := value.ToNumber(v)
			if err != nil {
				return value.CellValue{}, eval.FromCoercionError(err)
			}
			return value.Num(d), nil
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "N",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			// N maps numbers and dates to numbers, TRUE to 1, everything
			// else to 0 — it never raises on text.
			v, err := scalarAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			switch v.Kind {
			case value.KindNumber:
				return v, nil
			case value.KindDateTime:
				return value.Num(value.TimeToSerial(v.DateTime)), nil
			case value.KindBool:
				if v.Bool {
					return value.NumFromInt(1), nil
				}
				return value.NumFromInt(0), nil
			default:
				return value.NumFromInt(0), nil
			}
		},
	})

	r.Register(&ast.FunctionSpec{
		Name: "T",
		Args: []ast.ArgSpec{ast.Scalar(ast.DecodeAny)},
		Eval: func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
			v, err := scalarAt(ctx, args, 0)
			if err != nil {
				return value.CellValue{}, err
			}
			if v.Kind == value.KindText || v.Kind == value.KindRichText {
				s, _ := value.ToText(v)
				return value.Text(s), nil
			}
			return value.Text(""), nil
		},
	})
}

func mapText(f func(string) string) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		s, err := textAt(ctx, args, 0)
		if err != nil {
			return value.CellValue{}, err
		}
		return value.Text(f(s)), nil
	}
}

// findIn builds FIND (case-sensitive, no wildcards) and SEARCH
// (case-insensitive). Both return the 1-based position or #VALUE! when
// absent.
func findIn(foldCase bool) ast.EvalFunc {
	return func(ctx ast.EvalContext, args []ast.FuncArg) (value.CellValue, error) {
		needle, err := textAt(ctx, args, 0)
		if err != nil {
			return value.CellValue{}, err
		}
		hay, err := textAt(ctx, args, 1)
		if err != nil {
			return value.CellValue{}, err
		}
		start, err := intOr(ctx, args, 2, 1)
		if err != nil {
			return value.CellValue{}, err
		}
		if start < 1 || start > len(hay)+1 {
			return value.CellValue{}, failf(value.ErrValue, "start position out of range")
		}
		h, n := hay, needle
		if foldCase {
			h, n = strings.ToUpper(hay), strings.ToUpper(needle)
		}
		idx := strings.Index(h[start-1:], n)
		if idx == -1 {
			return value.CellValue{}, failf(value.ErrValue, "substring not found")
		}
		return value.NumFromInt(int64(start + idx)), nil
	}
}

// formatNumberPattern implements the small slice of TEXT's format-code
// language the engine supports. For a number: "0" and "#" digit
// placeholders with an optional decimal section and thousands separators
// in the integer section; the result is the formatted number alone, and
// other characters of the format are not copied to the output. For a
// DateTime whose format contains y, m or d: yyyy, yy, mm and dd are
// replaced in the lowercased format and its other characters are kept.
func formatNumberPattern(v value.CellValue, format string) string {
	lower := strings.ToLower(format)
	if v.Kind == value.KindDateTime && strings.ContainsAny(lower, "ymd") {
		out := lower
		out = strings.ReplaceAll(out, "yyyy", v.DateTime.Format("2006"))
		out = strings.ReplaceAll(out, "yy", v.DateTime.Format("06"))
		out = strings.ReplaceAll(out, "mm", v.DateTime.Format("01"))
		out = strings.ReplaceAll(out, "dd", v.DateTime.Format("02"))
		return out
	}
	d, err := value.ToNumber(v)
	if err != nil {
		s, _ := value.ToText(v)
		return s
	}
	decIdx := strings.IndexByte(format, '.')
	if decIdx == -1 {
		s := d.Round(0).String()
		if strings.Contains(format, ",") {
			s = groupThousands(s)
		}
		return s
	}
	places := int32(strings.Count(format[decIdx+1:], "0") + strings.Count(format[decIdx+1:], "#"))
	s := d.StringFixed(places)
	if strings.Contains(format[:decIdx], ",") {
		dot := strings.IndexByte(s, '.')
		s = groupThousands(s[:dot]) + s[dot:]
	}
	return s
}

func groupThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		return "-" + out
	}
	return out
}

package parser

import (
	"strings"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/ast"
	"github.com/calcengine/formulacore/corectx"
	"github.com/calcengine/formulacore/value"
	"github.com/pkg/errors"
)

// Parser implements the recursive-descent formula grammar:
//
//	Concat (&) < Comparison < Additive < Multiplicative < Unary < Power < Percent < Primary
//
// with Power right-associative and binding tighter than a leading unary
// minus (so "-2^2" parses as "-(2^2)", the Excel reading), and Percent
// binding tighter than unary.
type Parser struct {
	toks     []Token
	pos      int
	registry *ast.Registry
	limits   corectx.Limits
}

// Parse parses formula text into a type-resolved expression tree (PolyRef
// nodes already replaced by typed Refs). The leading "=" is optional and
// stripped if present.
func Parse(formula string, registry *ast.Registry, limits corectx.Limits) (ast.Expr, error) {
	trimmed := strings.TrimSpace(formula)
	if trimmed == "" {
		return nil, &ParseError{Kind: ErrEmptyFormula}
	}
	if len(trimmed) > limits.FormulaMaxLen {
		return nil, &ParseError{
			Kind: ErrFormulaTooLong,
			Msg:  formulaTooLongMsg(len(trimmed), limits.FormulaMaxLen),
		}
	}
	body := trimmed
	if strings.HasPrefix(body, "=") {
		body = body[1:]
	}
	if strings.TrimSpace(body) == "" {
		return nil, &ParseError{Kind: ErrEmptyFormula}
	}

	lx := NewLexer(body)
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, errors.Wrap(err, "lexing formula")
	}

	p := &Parser{toks: toks, registry: registry, limits: limits}
	expr, err := p.parseConcat()
	if err != nil {
		return nil, err
	}
	if p.cur().Type != TokEOF {
		return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: p.cur().Pos, Msg: "trailing input: " + p.cur().Value}
	}
	return ast.ResolveTypes(expr, ast.DecodeAny), nil
}

func formulaTooLongMsg(n, limit int) string {
	return "formula length " + itoa(n) + " exceeds limit " + itoa(limit)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) isOp(vals ...string) bool {
	t := p.cur()
	if t.Type != TokOp {
		return false
	}
	for _, v := range vals {
		if t.Value == v {
			return true
		}
	}
	return false
}

// parseConcat: Concat < Comparison.
func (p *Parser) parseConcat() (ast.Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.isOp("&") {
		pos := p.advance().Pos
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = ast.NewConcat(ast.Position{Start: pos}, left, right)
	}
	return left, nil
}

// parseComparison: non-associative — at most one comparison operator at
// this level.
func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.isOp("=", "<>", "<", "<=", ">", ">=") {
		tok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return ast.NewCompare(ast.Position{Start: tok.Pos}, compareOpFor(tok.Value), left, right), nil
	}
	return left, nil
}

func compareOpFor(op string) ast.CompareOp {
	switch op {
	case "<":
		return ast.OpLt
	case "<=":
		return ast.OpLte
	case ">":
		return ast.OpGt
	case ">=":
		return ast.OpGte
	case "<>":
		return ast.OpNeq
	default:
		return ast.OpEq
	}
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		tok := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		op := ast.OpAdd
		if tok.Value == "-" {
			op = ast.OpSub
		}
		left = ast.NewArith(ast.Position{Start: tok.Pos}, op, left, right)
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/") {
		tok := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		op := ast.OpMul
		if tok.Value == "/" {
			op = ast.OpDiv
		}
		left = ast.NewArith(ast.Position{Start: tok.Pos}, op, left, right)
	}
	return left, nil
}

// parseUnary handles a leading +/- prefix. Its non-prefixed fallthrough
// goes straight to parseExponent so that "-2^2" parses as "-(2^2)": the
// sign wraps the *entire* exponent chain rather than just its left
// operand.
func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.isOp("+", "-") {
		tok := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if tok.Value == "-" {
			return ast.NewNeg(ast.Position{Start: tok.Pos}, operand), nil
		}
		return operand, nil
	}
	return p.parseExponent()
}

// parseExponent implements right-associative "^", with each rhs operand
// parsed by parseExponentOperand so that "2^-2" and "2^2^2" both work.
func (p *Parser) parseExponent() (ast.Expr, error) {
	left, err := p.parsePercent()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		tok := p.advance()
		right, err := p.parseExponentOperand()
		if err != nil {
			return nil, err
		}
		return ast.NewArith(ast.Position{Start: tok.Pos}, ast.OpPow, left, right), nil
	}
	return left, nil
}

func (p *Parser) parseExponentOperand() (ast.Expr, error) {
	if p.isOp("+", "-") {
		tok := p.advance()
		operand, err := p.parseExponentOperand()
		if err != nil {
			return nil, err
		}
		if tok.Value == "-" {
			return ast.NewNeg(ast.Position{Start: tok.Pos}, operand), nil
		}
		return operand, nil
	}
	return p.parseExponent()
}

// parsePercent applies postfix "%", binding tighter than unary.
func (p *Parser) parsePercent() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.isOp("%") {
		tok := p.advance()
		e = ast.NewPercent(ast.Position{Start: tok.Pos}, e)
	}
	return e, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case TokNumber:
		p.advance()
		text := tok.Value
		if strings.HasPrefix(text, ".") {
			text = "0" + text
		}
		d, err := value.ToNumber(value.Text(text))
		if err != nil {
			return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: tok.Pos, Msg: "invalid number " + tok.Value}
		}
		return ast.NewLit(ast.Position{Start: tok.Pos}, value.Num(d)), nil
	case TokString:
		p.advance()
		return ast.NewLit(ast.Position{Start: tok.Pos}, value.Text(tok.Value)), nil
	case TokBool:
		p.advance()
		return ast.NewLit(ast.Position{Start: tok.Pos}, value.Bool(tok.Value == "TRUE")), nil
	case TokRef:
		p.advance()
		return parseRefToken(tok)
	case TokLParen:
		p.advance()
		e, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		if p.cur().Type != TokRParen {
			return nil, &ParseError{Kind: ErrUnbalancedParens, Pos: p.cur().Pos, Msg: "expected ')'"}
		}
		p.advance()
		return e, nil
	case TokIdent:
		return p.parseIdentOrCall(tok)
	case TokEOF:
		return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: tok.Pos, Msg: "unexpected end of formula"}
	default:
		return nil, &ParseError{Kind: ErrUnexpectedToken, Pos: tok.Pos, Msg: "unexpected token " + tok.Value}
	}
}

func (p *Parser) parseIdentOrCall(tok Token) (ast.Expr, error) {
	p.advance()
	if p.cur().Type != TokLParen {
		// Bare identifier: a name-ref, resolved against corectx.NameTable
		// at eval time.
		return ast.NewNameRef(ast.Position{Start: tok.Pos}, tok.Value), nil
	}
	spec, ok := p.registry.Lookup(tok.Value)
	if !ok {
		return nil, &ParseError{
			Kind:        ErrUnknownFunction,
			Pos:         tok.Pos,
			FuncName:    tok.Value,
			Suggestions: suggestFunctionNames(strings.ToUpper(tok.Value), p.registry.AllNames(), p.limits.SuggestionMaxDistance),
		}
	}
	p.advance() // consume '('
	args, err := p.parseArgs(spec, tok)
	if err != nil {
		return nil, err
	}
	return ast.NewCall(ast.Position{Start: tok.Pos}, spec, args), nil
}

func (p *Parser) parseArgs(spec *ast.FunctionSpec, fnTok Token) ([]ast.FuncArg, error) {
	var raw []ast.FuncArg
	if p.cur().Type != TokRParen {
		for {
			a, err := p.parseOneArg()
			if err != nil {
				return nil, err
			}
			raw = append(raw, a)
			if p.cur().Type == TokComma {
				p.advance()
				continue
			}
			break
		}
	}
	if p.cur().Type != TokRParen {
		return nil, &ParseError{Kind: ErrUnbalancedParens, Pos: p.cur().Pos, Msg: "expected ')' in call to " + spec.Name}
	}
	p.advance()

	min, max := spec.MinArgs(), spec.MaxArgs()
	if len(raw) < min || (max >= 0 && len(raw) > max) {
		expected := itoa(min)
		if max < 0 {
			expected = "at least " + itoa(min)
		} else if max != min {
			expected = itoa(min) + "-" + itoa(max)
		}
		return nil, &ParseError{Kind: ErrBadArgCount, FuncName: spec.Name, Expected: expected, Got: len(raw), Pos: fnTok.Pos}
	}

	out := make([]ast.FuncArg, len(spec.Args))
	for i := range spec.Args {
		if i < len(raw) {
			out[i] = raw[i]
		} else {
			out[i] = ast.FuncArg{Omitted: true}
		}
	}
	// Variadic trailing args beyond the declared slots are appended as
	// additional FuncArg entries; the evaluator reads them by indexing
	// past len(spec.Args)-1, all sharing the variadic slot's shape.
	if len(spec.Args) > 0 && spec.Args[len(spec.Args)-1].Variadic && len(raw) > len(spec.Args) {
		out = append(out, raw[len(spec.Args):]...)
	}
	return out, nil
}

func (p *Parser) parseOneArg() (ast.FuncArg, error) {
	if p.cur().Type == TokRef {
		tok := p.cur()
		if loc, isRange, ok := tryRangeLocation(tok.Value); ok && isRange {
			p.advance()
			return ast.FuncArg{IsRange: true, RangeLoc: loc}, nil
		}
	}
	e, err := p.parseConcat()
	if err != nil {
		return ast.FuncArg{}, err
	}
	return ast.FuncArg{Scalar: e}, nil
}

// tryRangeLocation parses raw ref text (as produced by the lexer's TokRef)
// into a RangeLocation if it denotes a range (contains ":"), reporting
// isRange=false for a bare cell reference so the caller falls through to
// normal expression parsing (so A1*2 still works inside a call).
func tryRangeLocation(raw string) (loc ast.RangeLocation, isRange bool, ok bool) {
	sheet, body, hasSheet := splitSheetQualifier(raw)
	if !strings.Contains(body, ":") {
		return ast.RangeLocation{}, false, true
	}
	rng, err := address.ParseRange(body)
	if err != nil {
		return ast.RangeLocation{}, false, false
	}
	if hasSheet {
		return ast.RangeLocation{Sheet: sheet, Range: rng}, true, true
	}
	return ast.RangeLocation{Range: rng}, true, true
}

// splitSheetQualifier splits "Sheet1!A1:B2" / "'My Sheet'!A1" into sheet
// name and the bare reference body.
func splitSheetQualifier(raw string) (sheet, body string, hasSheet bool) {
	if strings.HasPrefix(raw, "'") {
		end := -1
		for i := 1; i < len(raw); i++ {
			if raw[i] == '\'' {
				if i+1 < len(raw) && raw[i+1] == '\'' {
					i++
					continue
				}
				end = i
				break
			}
		}
		if end == -1 {
			return "", raw, false
		}
		sheet = strings.ReplaceAll(raw[1:end], "''", "'")
		rest := raw[end+1:]
		rest = strings.TrimPrefix(rest, "!")
		return sheet, rest, true
	}
	idx := strings.IndexByte(raw, '!')
	if idx == -1 {
		return "", raw, false
	}
	return raw[:idx], raw[idx+1:], true
}

// parseRefToken turns a lexed TokRef into a PolyRef/SheetPolyRef or
// RangeRef/SheetRangeRef expression node.
func parseRefToken(tok Token) (ast.Expr, error) {
	sheet, body, hasSheet := splitSheetQualifier(tok.Value)
	pos := ast.Position{Start: tok.Pos}
	if strings.Contains(body, ":") {
		rng, err := address.ParseRange(body)
		if err != nil {
			return nil, &ParseError{Kind: ErrInvalidReference, Pos: tok.Pos, Msg: tok.Value}
		}
		if hasSheet {
			return ast.NewSheetRangeRef(pos, sheet, rng), nil
		}
		return ast.NewRangeRef(pos, rng), nil
	}
	at, anchor, err := address.ParseA1(body)
	if err != nil {
		return nil, &ParseError{Kind: ErrInvalidReference, Pos: tok.Pos, Msg: tok.Value}
	}
	if hasSheet {
		return ast.NewSheetPolyRef(pos, sheet, at, anchor), nil
	}
	return ast.NewPolyRef(pos, at, anchor), nil
}

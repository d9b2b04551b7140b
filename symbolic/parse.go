package symbolic

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"text/scanner"
)

var (
	// ErrParse reports malformed expression text.
	ErrParse = errors.New("symbolic: parse error")
	// ErrUnknownSymbol reports an identifier outside the allowed symbol set.
	ErrUnknownSymbol = errors.New("symbolic: unknown symbol")
)

// funcAliases maps accepted spellings onto kernel function names.
var funcAliases = map[string]string{
	"arcsin": "asin",
	"arccos": "acos",
	"arctan": "atan",
	"ln":     "log",
	"Abs":    "abs",
}

type parseConfig struct {
	symbols map[string]struct{}
}

// ParseOption configures Parse.
type ParseOption func(*parseConfig)

// WithSymbols restricts free identifiers to names. A listed name shadows the
// constants pi and E.
func WithSymbols(names ...string) ParseOption {
	return func(c *parseConfig) {
		if c.symbols == nil {
			c.symbols = make(map[string]struct{}, len(names))
		}
		for _, n := range names {
			c.symbols[n] = struct{}{}
		}
	}
}

// Parse reads an infix expression. Both ^ and ** denote powers and bind right
// to left; unary minus binds looser than a power, so -x^2 is -(x^2).
// Multiplication must be explicit.
func Parse(text string, opts ...ParseOption) (Expr, error) {
	cfg := parseConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := &parser{cfg: cfg}
	p.s.Init(strings.NewReader(text))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats
	p.s.Error = func(s *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = fmt.Errorf("%w at offset %d: %s", ErrParse, s.Pos().Offset, msg)
		}
	}
	p.next()

	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.tok != scanner.EOF {
		return nil, p.errorf("unexpected %q", p.text)
	}
	if p.err != nil {
		return nil, p.err
	}
	return e.Simplify(), nil
}

// MustParse is Parse for literals known to be valid; it panics on error.
func MustParse(text string, opts ...ParseOption) Expr {
	e, err := Parse(text, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	s    scanner.Scanner
	cfg  parseConfig
	tok  rune
	text string
	off  int
	err  error
}

// next advances one token, folding ** into a single power token.
func (p *parser) next() {
	p.tok = p.s.Scan()
	p.text = p.s.TokenText()
	p.off = p.s.Position.Offset
	if p.tok == '*' && p.s.Peek() == '*' {
		p.s.Next()
		p.tok = '^'
		p.text = "**"
	}
}

func (p *parser) errorf(format string, args ...any) error {
	if p.err != nil {
		return p.err
	}
	return fmt.Errorf("%w at offset %d: %s", ErrParse, p.off, fmt.Sprintf(format, args...))
}

func (p *parser) expect(tok rune) error {
	if p.tok != tok {
		if p.tok == scanner.EOF {
			return p.errorf("expected %q, got end of input", string(tok))
		}
		return p.errorf("expected %q, got %q", string(tok), p.text)
	}
	p.next()
	return nil
}

// expr := term (('+' | '-') term)*
func (p *parser) parseExpr() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.tok == '+' || p.tok == '-' {
		op := p.tok
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if op == '-' {
			right = &Mul{factors: []Expr{N(-1), right}}
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return &Add{terms: terms}, nil
}

// term := unary (('*' | '/') unary)*
func (p *parser) parseTerm() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	factors := []Expr{left}
	for p.tok == '*' || p.tok == '/' {
		op := p.tok
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == '/' {
			right = &Pow{base: right, exp: N(-1)}
		}
		factors = append(factors, right)
	}
	if len(factors) == 1 {
		return left, nil
	}
	return &Mul{factors: factors}, nil
}

// unary := ('-' | '+') unary | power
func (p *parser) parseUnary() (Expr, error) {
	switch p.tok {
	case '-':
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Mul{factors: []Expr{N(-1), operand}}, nil
	case '+':
		p.next()
		return p.parseUnary()
	}
	return p.parsePower()
}

// power := atom ('^' unary)?
func (p *parser) parsePower() (Expr, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	if p.tok != '^' {
		return base, nil
	}
	p.next()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Pow{base: base, exp: exp}, nil
}

// atom := number | ident | ident '(' expr ')' | '(' expr ')'
func (p *parser) parseAtom() (Expr, error) {
	switch p.tok {
	case scanner.Int, scanner.Float:
		r, ok := new(big.Rat).SetString(p.text)
		if !ok {
			return nil, p.errorf("invalid number %q", p.text)
		}
		p.next()
		return &Num{val: r}, nil

	case scanner.Ident:
		name := p.text
		p.next()
		if p.tok == '(' {
			return p.parseCall(name)
		}
		return p.resolveIdent(name)

	case '(':
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return inner, nil

	case scanner.EOF:
		return nil, p.errorf("unexpected end of input")
	}
	return nil, p.errorf("unexpected %q", p.text)
}

func (p *parser) parseCall(name string) (Expr, error) {
	off := p.off
	p.next()
	arg, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	if alias, ok := funcAliases[name]; ok {
		name = alias
	}
	if name == "sqrt" {
		return &Pow{base: arg, exp: F(1, 2)}, nil
	}
	if _, known := unary[name]; !known {
		return nil, fmt.Errorf("%w at offset %d: unknown function %q", ErrParse, off, name)
	}
	return funcOf(name, arg), nil
}

func (p *parser) resolveIdent(name string) (Expr, error) {
	if p.cfg.symbols != nil {
		if _, ok := p.cfg.symbols[name]; ok {
			return S(name), nil
		}
	}
	switch name {
	case "pi":
		return Pi, nil
	case "E":
		return Euler, nil
	}
	if p.cfg.symbols != nil {
		return nil, fmt.Errorf("%w: %w %q", ErrParse, ErrUnknownSymbol, name)
	}
	return S(name), nil
}

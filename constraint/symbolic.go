package constraint

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/scrbench/symbolic"
)

// derivative is one partial derivative of the candidate, labelled by the
// variables it was taken against.
type derivative struct {
	expr  symbolic.Expr
	vars  []string
	order int
	fn    func([]float64) float64
}

// Symbolic differentiates the candidate expression analytically: every first
// partial and every ordered second partial.
type Symbolic struct {
	expr    symbolic.Expr
	names   []string
	display bool
	derivs  []*derivative
}

// NewSymbolic parses candidate against names, which are the canonical or the
// display variable names in variable order. display selects which names of
// each constraint are matched.
func NewSymbolic(candidate string, names []string, display bool) (*Symbolic, error) {
	expr, err := symbolic.Parse(candidate, symbolic.WithSymbols(names...))
	if err != nil {
		return nil, err
	}
	return NewSymbolicExpr(expr, names, display), nil
}

// NewSymbolicExpr is NewSymbolic for an already built expression.
func NewSymbolicExpr(expr symbolic.Expr, names []string, display bool) *Symbolic {
	s := &Symbolic{expr: expr, names: slices.Clone(names), display: display}
	first := make([]*derivative, len(names))
	for i, v := range names {
		first[i] = &derivative{expr: symbolic.Diff(expr, v), vars: []string{v}, order: 1}
	}
	s.derivs = append(s.derivs, first...)
	for _, d := range first {
		for _, v := range names {
			s.derivs = append(s.derivs, &derivative{
				expr:  symbolic.Diff(d.expr, v),
				vars:  []string{d.vars[0], v},
				order: 2,
			})
		}
	}
	return s
}

// Expr returns the parsed candidate.
func (s *Symbolic) Expr() symbolic.Expr { return s.expr }

// Derivative returns the unique derivative matching c.
func (s *Symbolic) Derivative(c Constraint) (symbolic.Expr, error) {
	d, err := s.match(c)
	if err != nil {
		return nil, err
	}
	return d.expr, nil
}

func (s *Symbolic) match(c Constraint) (*derivative, error) {
	want := c.Names(s.display)
	var found []*derivative
	for _, d := range s.derivs {
		if d.order == c.Order && slices.Equal(d.vars, want) {
			found = append(found, d)
		}
	}
	if len(found) != 1 {
		return nil, fmt.Errorf("%w: %d derivatives match order %d over %v", ErrDerivativeMatch, len(found), c.Order, want)
	}
	return found[0], nil
}

// Values evaluates the matched derivative at every sample row.
func (s *Symbolic) Values(c Constraint, samples *mat.Dense) ([]float64, error) {
	d, err := s.match(c)
	if err != nil {
		return nil, err
	}
	if d.fn == nil {
		fn, err := symbolic.Compile(d.expr, s.names)
		if err != nil {
			return nil, err
		}
		d.fn = fn
	}
	rows, cols := samples.Dims()
	if cols != len(s.names) {
		return nil, fmt.Errorf("%w: %d sample columns for %d variables", ErrConfiguration, cols, len(s.names))
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = d.fn(samples.RawRowView(i))
	}
	return out, nil
}

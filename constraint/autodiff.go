package constraint

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/hyperdual"

	"github.com/njchilds90/scrbench/symbolic"
)

// DualFunc is a function differentiable by hyperdual evaluation.
type DualFunc func(x []hyperdual.Number) hyperdual.Number

// Autodiff differentiates the candidate by forward-mode evaluation over
// hyperdual numbers. A single evaluation seeded on coordinates i and j yields
// df/dxi and d2f/dxi dxj.
type Autodiff struct {
	f       DualFunc
	names   []string
	display bool
	buf     []hyperdual.Number
}

// NewAutodiff parses candidate against names and compiles it once.
func NewAutodiff(candidate string, names []string, display bool) (*Autodiff, error) {
	expr, err := symbolic.Parse(candidate, symbolic.WithSymbols(names...))
	if err != nil {
		return nil, err
	}
	return NewAutodiffExpr(expr, names, display)
}

// NewAutodiffExpr compiles an already built expression.
func NewAutodiffExpr(expr symbolic.Expr, names []string, display bool) (*Autodiff, error) {
	f, err := symbolic.CompileHyperdual(expr, names)
	if err != nil {
		return nil, err
	}
	return NewAutodiffFunc(f, names, display), nil
}

// NewAutodiffFunc wraps a Go function of len(names) hyperdual arguments.
func NewAutodiffFunc(f DualFunc, names []string, display bool) *Autodiff {
	return &Autodiff{
		f:       f,
		names:   slices.Clone(names),
		display: display,
		buf:     make([]hyperdual.Number, len(names)),
	}
}

// seed loads x and marks coordinate i with the first and j with the second
// infinitesimal part.
func (a *Autodiff) seed(x []float64, i, j int) []hyperdual.Number {
	for k, v := range x {
		a.buf[k] = hyperdual.Number{Real: v}
	}
	a.buf[i].E1mag = 1
	a.buf[j].E2mag = 1
	return a.buf
}

// Gradient returns every first partial of f at x.
func (a *Autodiff) Gradient(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = a.f(a.seed(x, i, i)).E1mag
	}
	return out
}

// Hessian returns every second partial of f at x.
func (a *Autodiff) Hessian(x []float64) *mat.SymDense {
	n := len(x)
	h := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			h.SetSym(i, j, a.f(a.seed(x, i, j)).E1E2mag)
		}
	}
	return h
}

// Values evaluates the constraint's derivative entry at every sample row.
func (a *Autodiff) Values(c Constraint, samples *mat.Dense) ([]float64, error) {
	want := c.Names(a.display)
	var i, j int
	switch c.Order {
	case 1:
		if len(want) != 1 {
			return nil, fmt.Errorf("%w: first derivative over %v", ErrDerivativeMatch, want)
		}
		idx, err := indexOfName(a.names, want[0])
		if err != nil {
			return nil, err
		}
		i, j = idx, idx
	case 2:
		if len(want) != 2 {
			return nil, fmt.Errorf("%w: second derivative over %v", ErrDerivativeMatch, want)
		}
		var err error
		if i, err = indexOfName(a.names, want[0]); err != nil {
			return nil, err
		}
		if j, err = indexOfName(a.names, want[1]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: derivative order %d", ErrConfiguration, c.Order)
	}

	rows, cols := samples.Dims()
	if cols != len(a.names) {
		return nil, fmt.Errorf("%w: %d sample columns for %d variables", ErrConfiguration, cols, len(a.names))
	}
	out := make([]float64, rows)
	for r := range out {
		d := a.f(a.seed(samples.RawRowView(r), i, j))
		if c.Order == 1 {
			out[r] = d.E1mag
		} else {
			out[r] = d.E1E2mag
		}
	}
	return out, nil
}

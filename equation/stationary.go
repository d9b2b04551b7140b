package equation

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/njchilds90/scrbench/sampling"
	"github.com/njchilds90/scrbench/symbolic"
)

// newtonStarts is the number of random starting points tried when the
// gradient system has no closed form.
const newtonStarts = 64

// Point is a location in variable space, coordinates in variable order.
type Point []float64

// FindStationaryPoints returns the real points where every first partial
// derivative vanishes. With excludeSaddle, points where the Hessian
// determinant is negative are dropped; for a single variable that is where
// the second derivative is negative. Points violating a positivity hint are
// discarded. Solver failures are logged and yield no points.
func (e *Equation) FindStationaryPoints(excludeSaddle bool) []Point {
	names := e.names()
	grad := symbolic.Gradient(e.expr, names)

	points, err := e.solveGradient(grad, names)
	if err != nil {
		e.logger.Warn("stationary point search failed", "equation", e.name, "error", err)
		return []Point{}
	}

	kept := make([]Point, 0, len(points))
	for _, p := range points {
		if e.admissible(p) {
			kept = append(kept, p)
		}
	}
	if !excludeSaddle || len(kept) == 0 {
		return kept
	}

	det := symbolic.Hessian(e.expr, names).Det()
	out := kept[:0]
	for _, p := range kept {
		if d, ok := symbolic.EvalAt(det, names, p); ok && d < 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// solveGradient tries, in order, exact elimination for affine gradients,
// polynomial root finding for one variable and multi-start Newton. The
// closed forms return every real root; Newton only reports roots inside the
// sampling box.
func (e *Equation) solveGradient(grad []symbolic.Expr, names []string) ([]Point, error) {
	sol, err := symbolic.SolveLinearSystem(grad, names)
	switch {
	case err == nil:
		p := make(Point, len(sol))
		for i, n := range sol {
			p[i] = n.Float64()
		}
		return []Point{p}, nil
	case !errors.Is(err, symbolic.ErrNoClosedForm):
		return nil, err
	}

	if len(names) == 1 && symbolic.IsPolynomial(grad[0], names) {
		roots, err := symbolic.PolyRoots(grad[0], names[0])
		if err != nil {
			return nil, err
		}
		out := make([]Point, len(roots))
		for i, r := range roots {
			out[i] = Point{r}
		}
		return out, nil
	}

	ranges := e.DomainRanges()
	opts := symbolic.NewtonOptions{Low: make([]float64, len(ranges)), High: make([]float64, len(ranges))}
	for i, r := range ranges {
		opts.Low[i], opts.High[i] = r.Low, r.High
	}
	roots, err := symbolic.SolveNewton(grad, names, e.newtonStarts(), opts)
	if err != nil {
		return nil, err
	}
	out := make([]Point, len(roots))
	for i, r := range roots {
		out[i] = Point(r)
	}
	return out, nil
}

// newtonStarts spreads starting points over the sampling box: its center
// followed by uniform draws from a fixed seed so results are repeatable.
func (e *Equation) newtonStarts() [][]float64 {
	n := len(e.vars)
	ranges := e.DomainRanges()
	center := make([]float64, n)
	for i, r := range ranges {
		center[i] = (r.Low + r.High) / 2
	}
	starts := [][]float64{center}
	flat := sampling.Box(rand.NewPCG(1, 2), ranges, newtonStarts)
	for i := 0; i < newtonStarts; i++ {
		starts = append(starts, flat[i*n:(i+1)*n])
	}
	return starts
}

func (e *Equation) admissible(p Point) bool {
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		if e.vars[i].Positive && v <= 0 {
			return false
		}
	}
	return true
}

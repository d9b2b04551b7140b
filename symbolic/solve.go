package symbolic

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoClosedForm reports a system the solvers cannot handle.
	ErrNoClosedForm = errors.New("symbolic: no closed-form solution")
	// ErrSingular reports a system without a unique solution.
	ErrSingular = errors.New("symbolic: system is singular")
)

// ============================================================
// Linear systems (exact)
// ============================================================

// SolveLinearSystem solves eqs = 0 for vars when every equation is affine in
// vars with numeric coefficients. Elimination runs over big.Rat, so integer
// and rational inputs give exact solutions.
func SolveLinearSystem(eqs []Expr, vars []string) ([]*Num, error) {
	n := len(vars)
	if len(eqs) != n {
		return nil, fmt.Errorf("%w: %d equations for %d unknowns", ErrSingular, len(eqs), n)
	}
	index := make(map[string]int, n)
	for i, v := range vars {
		index[v] = i
	}

	// augmented rows [a_0 .. a_{n-1} | -b]
	rows := make([][]*big.Rat, n)
	for i, eq := range eqs {
		row, err := linearRow(eq, index)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}

	for col := 0; col < n; col++ {
		pivot := -1
		for r := col; r < n; r++ {
			if rows[r][col].Sign() != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			return nil, ErrSingular
		}
		rows[col], rows[pivot] = rows[pivot], rows[col]
		inv := new(big.Rat).Inv(rows[col][col])
		for k := col; k <= n; k++ {
			rows[col][k].Mul(rows[col][k], inv)
		}
		for r := 0; r < n; r++ {
			if r == col || rows[r][col].Sign() == 0 {
				continue
			}
			factor := new(big.Rat).Set(rows[r][col])
			for k := col; k <= n; k++ {
				rows[r][k].Sub(rows[r][k], new(big.Rat).Mul(factor, rows[col][k]))
			}
		}
	}

	out := make([]*Num, n)
	for i := range out {
		out[i] = &Num{val: rows[i][n]}
	}
	return out, nil
}

func linearRow(eq Expr, index map[string]int) ([]*big.Rat, error) {
	n := len(index)
	row := make([]*big.Rat, n+1)
	for i := range row {
		row[i] = new(big.Rat)
	}
	expanded := Expand(eq)
	terms := []Expr{expanded}
	if a, ok := expanded.(*Add); ok {
		terms = a.terms
	}
	for _, t := range terms {
		if c, ok := t.Eval(); ok {
			row[n].Sub(row[n], c.val)
			continue
		}
		coeff, rest := splitNumeric(t)
		sym, ok := rest.(*Sym)
		if !ok {
			return nil, fmt.Errorf("%w: term %s is not linear", ErrNoClosedForm, t)
		}
		col, ok := index[sym.name]
		if !ok {
			return nil, fmt.Errorf("%w: unexpected symbol %s", ErrNoClosedForm, sym.name)
		}
		row[col].Add(row[col], coeff.val)
	}
	return row, nil
}

// splitNumeric separates the symbol-free factors of a product (numbers and
// named constants, evaluated) from the rest.
func splitNumeric(t Expr) (*Num, Expr) {
	factors := []Expr{t}
	if m, ok := t.(*Mul); ok {
		factors = m.factors
	}
	coeff := N(1)
	rest := make([]Expr, 0, len(factors))
	for _, f := range factors {
		if c, ok := f.Eval(); ok {
			coeff = numMul(coeff, c)
		} else {
			rest = append(rest, f)
		}
	}
	return coeff, MulOf(rest...)
}

// ============================================================
// Univariate polynomials
// ============================================================

// PolyRoots returns the real roots of a polynomial in varName with numeric
// coefficients: closed form up to degree three, Newton scanning above.
func PolyRoots(expr Expr, varName string) ([]float64, error) {
	deg := Degree(Expand(expr), varName)
	if deg < 0 {
		return nil, fmt.Errorf("%w: %s is not polynomial in %s", ErrNoClosedForm, expr, varName)
	}
	coeffs := PolyCoeffs(expr, varName)
	c := make([]float64, deg+1)
	for d, e := range coeffs {
		v, ok := e.Eval()
		if !ok {
			return nil, fmt.Errorf("%w: coefficient %s is not numeric", ErrNoClosedForm, e)
		}
		c[d] = v.Float64()
	}
	// trim vanishing leading coefficients
	for deg > 0 && c[deg] == 0 {
		deg--
	}

	var roots []float64
	switch deg {
	case 0:
		if c[0] == 0 {
			return nil, ErrSingular
		}
		return nil, nil
	case 1:
		roots = []float64{-c[0] / c[1]}
	case 2:
		roots = solveQuadratic(c[2], c[1], c[0])
	case 3:
		roots = solveCubic(c[3], c[2], c[1], c[0])
	default:
		fn, err := Compile(expr, []string{varName})
		if err != nil {
			return nil, err
		}
		dfn, err := Compile(Diff(expr, varName), []string{varName})
		if err != nil {
			return nil, err
		}
		roots = newtonScan(
			func(x float64) float64 { return fn([]float64{x}) },
			func(x float64) float64 { return dfn([]float64{x}) },
			cauchyBound(c), 1e-12, 100,
		)
	}
	sort.Float64s(roots)
	return dedupe(roots, 1e-9), nil
}

func solveQuadratic(a, b, c float64) []float64 {
	disc := b*b - 4*a*c
	switch {
	case disc < 0:
		return nil
	case disc == 0:
		return []float64{-b / (2 * a)}
	}
	sq := math.Sqrt(disc)
	return []float64{(-b + sq) / (2 * a), (-b - sq) / (2 * a)}
}

// solveCubic returns the real roots of a*x³+b*x²+c*x+d (Cardano / Viète).
func solveCubic(a, b, c, d float64) []float64 {
	p := (3*a*c - b*b) / (3 * a * a)
	q := (2*b*b*b - 9*a*b*c + 27*a*a*d) / (27 * a * a * a)
	offset := b / (3 * a)
	disc := -(4*p*p*p + 27*q*q)

	switch {
	case disc > 0:
		m := 2 * math.Sqrt(-p/3)
		theta := math.Acos(3*q/(p*m)) / 3
		roots := make([]float64, 3)
		for k := range roots {
			roots[k] = m*math.Cos(theta-2*math.Pi*float64(k)/3) - offset
		}
		return roots
	case disc == 0:
		if p == 0 {
			return []float64{-offset}
		}
		return []float64{3*q/p - offset, -3*q/(2*p) - offset}
	}
	A := math.Cbrt(-q/2 + math.Sqrt(q*q/4+p*p*p/27))
	B := 0.0
	if A != 0 {
		B = -p / (3 * A)
	}
	return []float64{A + B - offset}
}

// cauchyBound bounds the magnitude of every root of the polynomial.
func cauchyBound(c []float64) float64 {
	lead := c[len(c)-1]
	bound := 0.0
	for _, v := range c[:len(c)-1] {
		bound = math.Max(bound, math.Abs(v/lead))
	}
	return 1 + bound
}

func newtonScan(f, df func(float64) float64, searchRange, tol float64, maxIter int) []float64 {
	var roots []float64
	for i := 0; i <= 200; i++ {
		x := -searchRange + 2*searchRange*float64(i)/200
		for iter := 0; iter < maxIter; iter++ {
			fx := f(x)
			if math.IsNaN(fx) {
				break
			}
			if math.Abs(fx) < tol {
				roots = append(roots, x)
				break
			}
			dfx := df(x)
			if math.IsNaN(dfx) || math.Abs(dfx) < 1e-15 {
				break
			}
			x -= fx / dfx
			if math.Abs(x) > searchRange*10 {
				break
			}
		}
	}
	return roots
}

func dedupe(sorted []float64, tol float64) []float64 {
	out := sorted[:0]
	for _, v := range sorted {
		if len(out) > 0 && math.Abs(v-out[len(out)-1]) <= tol*math.Max(1, math.Abs(v)) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ============================================================
// Nonlinear systems (Newton)
// ============================================================

// NewtonOptions tune SolveNewton.
//
// Low and High, when set, bound the region of interest: iterates that stray
// more than Reach box widths outside it are abandoned and only roots inside
// it are returned.
type NewtonOptions struct {
	// Tolerance bounds the final step relative to max(1, |x|).
	Tolerance float64
	// Residual bounds |eqs(x)| relative to max(1, |eqs(start)|).
	Residual  float64
	MaxIter   int

	Low, High []float64
	Reach     float64
}

func (o *NewtonOptions) defaults() {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-10
	}
	if o.Residual <= 0 {
		o.Residual = 1e-8
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 100
	}
	if o.Reach <= 0 {
		o.Reach = 2
	}
}

// SolveNewton runs Newton's method on eqs = 0 from every start point and
// returns the distinct converged roots. A start converges once its last step
// is below Tolerance and its residual below Residual. Starts whose Jacobian
// is exactly singular, whose iterates leave the finite range or the region
// of interest, or that run out of iterations are abandoned.
func SolveNewton(eqs []Expr, vars []string, starts [][]float64, opts NewtonOptions) ([][]float64, error) {
	opts.defaults()
	n := len(vars)
	if len(eqs) != n {
		return nil, fmt.Errorf("%w: %d equations for %d unknowns", ErrSingular, len(eqs), n)
	}
	bounded := opts.Low != nil || opts.High != nil
	if bounded && (len(opts.Low) != n || len(opts.High) != n) {
		return nil, fmt.Errorf("%w: bounds for %d of %d unknowns", ErrSingular, min(len(opts.Low), len(opts.High)), n)
	}
	fs := make([]func([]float64) float64, n)
	js := make([][]func([]float64) float64, n)
	jac := Jacobian(eqs, vars)
	for i, eq := range eqs {
		f, err := Compile(eq, vars)
		if err != nil {
			return nil, err
		}
		fs[i] = f
		js[i] = make([]func([]float64) float64, n)
		for j := range vars {
			if js[i][j], err = Compile(jac.Get(i, j), vars); err != nil {
				return nil, err
			}
		}
	}

	// residual fills F with -eqs(x) and returns max |eqs(x)|, or NaN.
	F := mat.NewVecDense(n, nil)
	residual := func(x []float64) float64 {
		norm := 0.0
		for i := range fs {
			v := fs[i](x)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return math.NaN()
			}
			F.SetVec(i, -v)
			norm = math.Max(norm, math.Abs(v))
		}
		return norm
	}
	merge := 1e4 * opts.Tolerance

	var roots [][]float64
	x := make([]float64, n)
	J := mat.NewDense(n, n, nil)
	var step mat.VecDense
	for _, start := range starts {
		copy(x, start)
		scale := residual(x)
		if math.IsNaN(scale) {
			continue
		}
		scale = math.Max(1, scale)
		converged := false
		for iter := 0; iter < opts.MaxIter; iter++ {
			res := residual(x)
			if math.IsNaN(res) {
				break
			}
			if res == 0 || (converged && res <= opts.Residual*scale) {
				if !bounded || inside(x, opts.Low, opts.High, 0, merge) {
					roots = appendDistinct(roots, x, merge)
				}
				break
			}
			for i := range js {
				for j := range js[i] {
					J.Set(i, j, js[i][j](x))
				}
			}
			if err := step.SolveVec(J, F); err != nil {
				var cond mat.Condition
				if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
					break
				}
			}
			stepNorm, xNorm := 0.0, 0.0
			for i := range x {
				d := step.AtVec(i)
				x[i] += d
				stepNorm = math.Max(stepNorm, math.Abs(d))
				xNorm = math.Max(xNorm, math.Abs(x[i]))
			}
			if math.IsNaN(stepNorm) || math.IsInf(xNorm, 0) || math.IsNaN(xNorm) {
				break
			}
			if bounded && !inside(x, opts.Low, opts.High, opts.Reach, 0) {
				break
			}
			converged = stepNorm <= opts.Tolerance*math.Max(1, xNorm)
		}
	}
	return roots, nil
}

// inside reports whether x lies in the box widened by reach widths on each
// side, with a relative slack for coordinates on the edge.
func inside(x, low, high []float64, reach, slack float64) bool {
	for i, v := range x {
		pad := reach*(high[i]-low[i]) + slack*math.Max(1, math.Max(math.Abs(low[i]), math.Abs(high[i])))
		if v < low[i]-pad || v > high[i]+pad {
			return false
		}
	}
	return true
}

func appendDistinct(roots [][]float64, x []float64, tol float64) [][]float64 {
	for _, r := range roots {
		same := true
		for i := range r {
			if math.Abs(r[i]-x[i]) > tol*math.Max(1, math.Abs(x[i])) {
				same = false
				break
			}
		}
		if same {
			return roots
		}
	}
	return append(roots, append([]float64(nil), x...))
}

package symbolic_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/num/hyperdual"

	"github.com/njchilds90/scrbench/symbolic"
)

var (
	x = symbolic.S("x")
	y = symbolic.S("y")
)

// ============================================================
// Num tests
// ============================================================

func TestNum_Integer(t *testing.T) {
	n := symbolic.N(42)
	if n.String() != "42" {
		t.Errorf("want 42, got %s", n.String())
	}
}

func TestNum_Rational(t *testing.T) {
	if got := symbolic.F(2, 6).String(); got != "1/3" {
		t.Errorf("want 1/3, got %s", got)
	}
}

func TestNum_Diff_IsZero(t *testing.T) {
	if got := symbolic.String(symbolic.N(5).Diff("x")); got != "0" {
		t.Errorf("d/dx(5) should be 0, got %s", got)
	}
}

// ============================================================
// Arithmetic simplification
// ============================================================

func TestAdd_LikeTerms(t *testing.T) {
	if got := symbolic.AddOf(x, x).String(); got != "2*x" {
		t.Errorf("want 2*x, got %s", got)
	}
}

func TestAdd_CollapseToZero(t *testing.T) {
	if got := symbolic.SubOf(x, x).String(); got != "0" {
		t.Errorf("x - x should be 0, got %s", got)
	}
}

func TestMul_ZeroCollapse(t *testing.T) {
	if got := symbolic.MulOf(symbolic.N(0), x, y).String(); got != "0" {
		t.Errorf("want 0, got %s", got)
	}
}

func TestMul_MergesBases(t *testing.T) {
	if got := symbolic.MulOf(x, x, x).String(); got != "x^3" {
		t.Errorf("want x^3, got %s", got)
	}
	if got := symbolic.MulOf(x, symbolic.PowOf(x, symbolic.N(-1))).String(); got != "1" {
		t.Errorf("x/x should be 1, got %s", got)
	}
}

func TestPow_ZeroExp(t *testing.T) {
	if got := symbolic.PowOf(x, symbolic.N(0)).String(); got != "1" {
		t.Errorf("want 1, got %s", got)
	}
}

func TestPow_NumericFold(t *testing.T) {
	if got := symbolic.PowOf(symbolic.N(2), symbolic.N(-2)).String(); got != "1/4" {
		t.Errorf("want 1/4, got %s", got)
	}
}

// ============================================================
// Differentiation
// ============================================================

func TestDiff_PowerRule(t *testing.T) {
	got := symbolic.Diff(symbolic.PowOf(x, symbolic.N(3)), "x")
	if got.String() != "3*x^2" {
		t.Errorf("want 3*x^2, got %s", got)
	}
}

func TestDiff_Chain(t *testing.T) {
	cases := []struct {
		expr symbolic.Expr
		want string
	}{
		{symbolic.SinOf(x), "cos(x)"},
		{symbolic.CosOf(x), "-sin(x)"},
		{symbolic.ExpOf(x), "exp(x)"},
		{symbolic.LnOf(x), "x^(-1)"},
		{symbolic.AbsOf(x), "sign(x)"},
	}
	for _, c := range cases {
		if got := symbolic.Diff(c.expr, "x").String(); got != c.want {
			t.Errorf("d/dx %s: want %s, got %s", c.expr, c.want, got)
		}
	}
}

func TestDiff_InverseTrig(t *testing.T) {
	cases := []struct {
		name string
		expr symbolic.Expr
		want func(float64) float64
	}{
		{"asin", symbolic.AsinOf(x), func(v float64) float64 { return 1 / math.Sqrt(1-v*v) }},
		{"acos", symbolic.AcosOf(x), func(v float64) float64 { return -1 / math.Sqrt(1-v*v) }},
		{"atan", symbolic.AtanOf(x), func(v float64) float64 { return 1 / (1 + v*v) }},
	}
	for _, c := range cases {
		d, err := symbolic.Compile(symbolic.Diff(c.expr, "x"), []string{"x"})
		if err != nil {
			t.Fatalf("compile d/dx %s: %v", c.name, err)
		}
		for _, v := range []float64{-0.5, 0.25, 0.75} {
			if got := d([]float64{v}); math.Abs(got-c.want(v)) > 1e-9 {
				t.Errorf("d/dx %s at %g: want %g, got %g", c.name, v, c.want(v), got)
			}
		}
	}
}

func TestDiff_ProductRule(t *testing.T) {
	got := symbolic.Diff(symbolic.MulOf(x, y), "x")
	if !got.Equal(y) {
		t.Errorf("d/dx(x*y) should be y, got %s", got)
	}
}

func TestHessian_Det(t *testing.T) {
	vars := []string{"x", "y"}
	bowl := symbolic.AddOf(symbolic.PowOf(x, symbolic.N(2)), symbolic.PowOf(y, symbolic.N(2)))
	if got := symbolic.Hessian(bowl, vars).Det().String(); got != "4" {
		t.Errorf("det of bowl Hessian: want 4, got %s", got)
	}
	saddle := symbolic.SubOf(symbolic.PowOf(x, symbolic.N(2)), symbolic.PowOf(y, symbolic.N(2)))
	if got := symbolic.Hessian(saddle, vars).Det().String(); got != "-4" {
		t.Errorf("det of saddle Hessian: want -4, got %s", got)
	}
}

func TestHessian_MixedEntries(t *testing.T) {
	f := symbolic.MulOf(symbolic.PowOf(x, symbolic.N(2)), y)
	h := symbolic.Hessian(f, []string{"x", "y"})
	if got := h.Get(0, 1).String(); got != "2*x" {
		t.Errorf("d2/dxdy: want 2*x, got %s", got)
	}
	if !h.Get(0, 1).Equal(h.Get(1, 0)) {
		t.Errorf("mixed partials differ: %s vs %s", h.Get(0, 1), h.Get(1, 0))
	}
}

// ============================================================
// Analysis helpers
// ============================================================

func TestFreeSymbols(t *testing.T) {
	e := symbolic.AddOf(symbolic.SinOf(x), symbolic.MulOf(symbolic.Pi, y))
	got := symbolic.SortedSymbols(e)
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("want [x y], got %v", got)
	}
}

func TestRename_Simultaneous(t *testing.T) {
	e := symbolic.AddOf(x, symbolic.PowOf(y, symbolic.N(2)))
	got := symbolic.Rename(e, map[string]string{"x": "y", "y": "x"})
	want := symbolic.AddOf(y, symbolic.PowOf(x, symbolic.N(2)))
	if !got.Equal(want) {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestCountOps(t *testing.T) {
	cases := map[string]int{
		"x0^2 + x1":    2,
		"sin(x0)*x1":   2,
		"x0":           0,
		"-x0":          1,
		"x0*x1*x2 + 1": 3,
		"exp(-x0^2/2)": 4,
	}
	for text, want := range cases {
		if got := symbolic.CountOps(symbolic.MustParse(text)); got != want {
			t.Errorf("CountOps(%s): want %d, got %d", text, want, got)
		}
	}
}

func TestExpand_Square(t *testing.T) {
	e := symbolic.PowOf(symbolic.AddOf(x, symbolic.N(1)), symbolic.N(2))
	got := symbolic.Expand(e)
	want := symbolic.AddOf(symbolic.PowOf(x, symbolic.N(2)), symbolic.MulOf(symbolic.N(2), x), symbolic.N(1))
	if !got.Equal(want) {
		t.Errorf("want %s, got %s", want, got)
	}
}

func TestDegree(t *testing.T) {
	if d := symbolic.Degree(symbolic.MustParse("3*x^2 + x*y + 1"), "x"); d != 2 {
		t.Errorf("want 2, got %d", d)
	}
	if d := symbolic.Degree(symbolic.MustParse("sin(x)"), "x"); d != -1 {
		t.Errorf("sin(x) is not polynomial, got degree %d", d)
	}
	if !symbolic.IsPolynomial(symbolic.MustParse("(x + y)^3"), []string{"x", "y"}) {
		t.Errorf("(x+y)^3 should be polynomial")
	}
}

// ============================================================
// Solvers
// ============================================================

func TestSolveLinearSystem_Exact(t *testing.T) {
	f := symbolic.MustParse("x0^2 + x1^2 - 2*x0 + x1/3")
	vars := []string{"x0", "x1"}
	sol, err := symbolic.SolveLinearSystem(symbolic.Gradient(f, vars), vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sol[0].String() != "1" || sol[1].String() != "-1/6" {
		t.Errorf("want (1, -1/6), got (%s, %s)", sol[0], sol[1])
	}
}

func TestSolveLinearSystem_Singular(t *testing.T) {
	vars := []string{"x0", "x1"}
	eqs := []symbolic.Expr{symbolic.MustParse("x0 + x1"), symbolic.MustParse("2*x0 + 2*x1")}
	if _, err := symbolic.SolveLinearSystem(eqs, vars); !errors.Is(err, symbolic.ErrSingular) {
		t.Errorf("want ErrSingular, got %v", err)
	}
}

func TestSolveLinearSystem_NotLinear(t *testing.T) {
	vars := []string{"x0"}
	eqs := []symbolic.Expr{symbolic.MustParse("x0^2 - 1")}
	if _, err := symbolic.SolveLinearSystem(eqs, vars); !errors.Is(err, symbolic.ErrNoClosedForm) {
		t.Errorf("want ErrNoClosedForm, got %v", err)
	}
}

func TestPolyRoots_Quadratic(t *testing.T) {
	roots, err := symbolic.PolyRoots(symbolic.MustParse("x^2 - 4"), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 2 || roots[0] != -2 || roots[1] != 2 {
		t.Errorf("want [-2 2], got %v", roots)
	}
}

func TestPolyRoots_NoRealRoots(t *testing.T) {
	roots, err := symbolic.PolyRoots(symbolic.MustParse("x^2 + 1"), "x")
	if err != nil || len(roots) != 0 {
		t.Errorf("want no roots, got %v (%v)", roots, err)
	}
}

func TestPolyRoots_Cubic(t *testing.T) {
	roots, err := symbolic.PolyRoots(symbolic.MustParse("x^3 - 6*x^2 + 11*x - 6"), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{1, 2, 3}
	if len(roots) != len(want) {
		t.Fatalf("want %v, got %v", want, roots)
	}
	for i := range want {
		if math.Abs(roots[i]-want[i]) > 1e-9 {
			t.Errorf("root %d: want %v, got %v", i, want[i], roots[i])
		}
	}
}

func TestPolyRoots_Quartic(t *testing.T) {
	roots, err := symbolic.PolyRoots(symbolic.MustParse("x^4 - 5*x^2 + 4"), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{-2, -1, 1, 2}
	if len(roots) != len(want) {
		t.Fatalf("want %v, got %v", want, roots)
	}
	for i := range want {
		if math.Abs(roots[i]-want[i]) > 1e-6 {
			t.Errorf("root %d: want %v, got %v", i, want[i], roots[i])
		}
	}
}

func TestSolveNewton(t *testing.T) {
	eqs := []symbolic.Expr{symbolic.MustParse("x0^2 - 2")}
	roots, err := symbolic.SolveNewton(eqs, []string{"x0"}, [][]float64{{1}, {-1}, {3}}, symbolic.NewtonOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("want 2 distinct roots, got %v", roots)
	}
	for _, r := range roots {
		if math.Abs(math.Abs(r[0])-math.Sqrt2) > 1e-9 {
			t.Errorf("want ±sqrt(2), got %v", r[0])
		}
	}
}

func TestSolveNewton_NoRootInRegion(t *testing.T) {
	eqs := []symbolic.Expr{symbolic.ExpOf(symbolic.S("x0"))}
	starts := [][]float64{{-3}, {0}, {2.5}}
	roots, err := symbolic.SolveNewton(eqs, []string{"x0"}, starts,
		symbolic.NewtonOptions{Low: []float64{-3}, High: []float64{3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 0 {
		t.Errorf("exp has no root, got %v", roots)
	}
}

func TestSolveNewton_DegenerateRootMerged(t *testing.T) {
	// x0^3 has a triple root, so Newton converges only linearly.
	eqs := []symbolic.Expr{symbolic.MustParse("x0^3")}
	starts := [][]float64{{-1}, {-0.3}, {0.2}, {0.9}}
	roots, err := symbolic.SolveNewton(eqs, []string{"x0"}, starts,
		symbolic.NewtonOptions{Low: []float64{-1}, High: []float64{1}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 || math.Abs(roots[0][0]) > 1e-6 {
		t.Errorf("want a single root at 0, got %v", roots)
	}
}

func TestSolveNewton_OnlyRootsInsideBox(t *testing.T) {
	eqs := []symbolic.Expr{symbolic.CosOf(symbolic.S("x0"))}
	starts := [][]float64{{0.3}, {1}, {1.9}, {2.8}, {3.1}}
	roots, err := symbolic.SolveNewton(eqs, []string{"x0"}, starts,
		symbolic.NewtonOptions{Low: []float64{0}, High: []float64{3}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roots) != 1 || math.Abs(roots[0][0]-math.Pi/2) > 1e-9 {
		t.Errorf("want only pi/2, got %v", roots)
	}
}

// ============================================================
// Parser
// ============================================================

func TestParse_Precedence(t *testing.T) {
	cases := map[string]string{
		"-x0**2":         "-x0^2",
		"2^3^2":          "512",
		"sin(x0)/2":      "1/2*sin(x0)",
		"x0^-1":          "x0^(-1)",
		"(x0 + 1)*2 - 2": "2*(x0 + 1) - 2",
		"ln(E)":          "1",
		"sqrt(x0)":       "x0^(1/2)",
	}
	for text, want := range cases {
		got, err := symbolic.Parse(text)
		if err != nil {
			t.Errorf("Parse(%q): %v", text, err)
			continue
		}
		if got.String() != want {
			t.Errorf("Parse(%q): want %s, got %s", text, want, got)
		}
	}
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		"x0^2 + x1",
		"-3*x0*x1^2 + x2/7",
		"exp(-x0^2/2)/sqrt(2*pi)",
		"x0^(x1 - 1) + abs(x2)",
		"1.5e-3*x0 - 0.25",
	}
	for _, text := range inputs {
		first := symbolic.MustParse(text)
		second, err := symbolic.Parse(first.String())
		if err != nil {
			t.Errorf("reparse of %q (%s): %v", text, first, err)
			continue
		}
		if !first.Equal(second) {
			t.Errorf("round trip of %q: %s != %s", text, first, second)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	for _, text := range []string{"2x0", "x0 +", "(x0", "foo(x0)", "x0 $ 1", ""} {
		if _, err := symbolic.Parse(text); !errors.Is(err, symbolic.ErrParse) {
			t.Errorf("Parse(%q): want ErrParse, got %v", text, err)
		}
	}
}

func TestParse_WithSymbols(t *testing.T) {
	_, err := symbolic.Parse("x0 + y", symbolic.WithSymbols("x0"))
	if !errors.Is(err, symbolic.ErrUnknownSymbol) {
		t.Errorf("want ErrUnknownSymbol, got %v", err)
	}
	e, err := symbolic.Parse("E*m", symbolic.WithSymbols("E", "m"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := symbolic.SortedSymbols(e); len(got) != 2 {
		t.Errorf("E should be a symbol when listed, got %v", got)
	}
}

// ============================================================
// Compilation
// ============================================================

func TestCompile_Float(t *testing.T) {
	fn, err := symbolic.Compile(symbolic.MustParse("x0^2 + x1/4 - sqrt(x0)"), []string{"x0", "x1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fn([]float64{4, 8}); got != 16 {
		t.Errorf("want 16, got %v", got)
	}
}

func TestCompile_UnknownSymbol(t *testing.T) {
	_, err := symbolic.Compile(symbolic.MustParse("x0 + x9"), []string{"x0"})
	if !errors.Is(err, symbolic.ErrUnknownSymbol) {
		t.Errorf("want ErrUnknownSymbol, got %v", err)
	}
}

func TestCompileHyperdual_Partials(t *testing.T) {
	fn, err := symbolic.CompileHyperdual(symbolic.MustParse("x0^2*x1"), []string{"x0", "x1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := fn([]hyperdual.Number{{Real: 3, E1mag: 1}, {Real: 2, E2mag: 1}})
	want := hyperdual.Number{Real: 18, E1mag: 12, E2mag: 9, E1E2mag: 6}
	if got != want {
		t.Errorf("want %+v, got %+v", want, got)
	}
}

func TestCompileHyperdual_MatchesSymbolic(t *testing.T) {
	f := symbolic.MustParse("sin(x0)*exp(x1) + log(x0)*x1^3")
	vars := []string{"x0", "x1"}
	dual, err := symbolic.CompileHyperdual(f, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mixed, err := symbolic.Compile(symbolic.Hessian(f, vars).Get(0, 1), vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	point := []float64{1.3, 0.7}
	got := dual([]hyperdual.Number{{Real: point[0], E1mag: 1}, {Real: point[1], E2mag: 1}}).E1E2mag
	if want := mixed(point); math.Abs(got-want) > 1e-12*math.Max(1, math.Abs(want)) {
		t.Errorf("mixed partial: hyperdual %v, symbolic %v", got, want)
	}
}

// ============================================================
// JSON
// ============================================================

func TestFromJSON_RoundTrip(t *testing.T) {
	e := symbolic.MustParse("x0^(1/2)*cos(pi*x1) - 3/4")
	s, err := symbolic.ToJSON(e)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back, err := symbolic.FromJSON(m)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if !back.Equal(e) {
		t.Errorf("want %s, got %s", e, back)
	}
}

func TestDeterminism(t *testing.T) {
	text := "x2*x0 + x1^2 - sin(x0*x1)"
	first := symbolic.MustParse(text).String()
	for i := 0; i < 10; i++ {
		if got := symbolic.MustParse(text).String(); got != first {
			t.Fatalf("non-deterministic output: %s vs %s", first, got)
		}
	}
}

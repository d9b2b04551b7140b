package catalog_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/scrbench/catalog"
	"github.com/njchilds90/scrbench/constraint"
	"github.com/njchilds90/scrbench/equation"
	"github.com/njchilds90/scrbench/sampling"
)

func defaultCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return c
}

func TestDefault_Accessors(t *testing.T) {
	c := defaultCatalog(t)
	names := c.Names()
	assert.Len(t, names, 10)
	assert.IsIncreasing(t, names)

	raw, err := c.RawExpression("FeynmanICh12Eq1")
	require.NoError(t, err)
	assert.Equal(t, "mu*N_n", raw)

	vars, err := c.VariableNames("FeynmanICh12Eq1")
	require.NoError(t, err)
	assert.Equal(t, []string{"mu", "N_n"}, vars)

	out, err := c.OutputName("FeynmanICh12Eq1")
	require.NoError(t, err)
	assert.Equal(t, "F", out)
}

func TestDefault_NotFound(t *testing.T) {
	c := defaultCatalog(t)
	_, err := c.RawExpression("FeynmanNope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	_, err = c.Equation("FeynmanNope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestDefault_ConstraintDefaults(t *testing.T) {
	c := defaultCatalog(t)
	cs, err := c.Constraints("FeynmanICh14Eq4")
	require.NoError(t, err)
	require.Len(t, cs, 5)

	first := cs[1]
	assert.Equal(t, []string{"x1"}, first.Vars)
	assert.Equal(t, []string{"x"}, first.DisplayVars)
	assert.Equal(t, []sampling.Range{
		{Name: "x0", Low: 1e2, High: 1e4},
		{Name: "x1", Low: 1e-2, High: 1},
	}, first.Domain)

	// an explicit domain is kept
	assert.Equal(t, -1.0, cs[4].Domain[1].Low)
	assert.Equal(t, constraint.None, cs[4].Descriptor)
}

func TestDefault_EquationsBuild(t *testing.T) {
	c := defaultCatalog(t)
	for _, name := range c.Names() {
		t.Run(name, func(t *testing.T) {
			eq, err := c.Equation(name)
			require.NoError(t, err)
			assert.Equal(t, name, eq.Name())
			assert.True(t, eq.CheckVariableConsistency())

			display, err := c.VariableNames(name)
			require.NoError(t, err)
			assert.Equal(t, display, eq.VariableNames(true))

			data, err := eq.CreateDataset(rand.NewPCG(11, 13), 200, 10)
			require.NoError(t, err)
			rows, cols := data.Dims()
			assert.Equal(t, 200, rows)
			assert.Equal(t, eq.VariableCount()+1, cols)
		})
	}
}

// Each equation satisfies the constraints declared for it.
func TestDefault_EquationsSatisfyOwnConstraints(t *testing.T) {
	c := defaultCatalog(t)
	src := rand.NewPCG(17, 19)
	for _, name := range c.Names() {
		t.Run(name, func(t *testing.T) {
			eq, err := c.Equation(name)
			require.NoError(t, err)
			cs, err := c.Constraints(name)
			require.NoError(t, err)

			samples := constraint.Samples{}
			for _, con := range constraint.Checkable(cs) {
				xs, err := constraint.Sample(src, con, 2000)
				require.NoError(t, err)
				samples[con.ID] = xs
			}

			raw, err := c.RawExpression(name)
			require.NoError(t, err)
			sym, err := constraint.NewSymbolic(raw, eq.VariableNames(true), true)
			require.NoError(t, err)
			ad, err := constraint.NewAutodiffExpr(eq.Expr(), eq.VariableNames(false), false)
			require.NoError(t, err)

			for backend, ev := range map[string]constraint.Evaluator{"symbolic": sym, "autodiff": ad} {
				res, err := constraint.Check(ev, cs, samples)
				require.NoError(t, err, backend)
				assert.True(t, res.Passed, "%s: violated %v, observed %v", backend, res.ViolatedIDs(), res.Observed)
			}
		})
	}
}

const customEquations = `
equations:
  - name: Custom
    source: elsewhere
    expression: a*b
    output: y
    variables:
      - {name: a, low: 0, high: 1}
      - {name: b, low: 1, high: 2}
`

func TestLoad_UnsupportedSource(t *testing.T) {
	c, err := catalog.Load([]byte(customEquations), []byte("equations: []"))
	require.NoError(t, err)
	_, err = c.RawExpression("Custom")
	assert.ErrorIs(t, err, catalog.ErrConfiguration)
	_, err = c.Constraints("Custom")
	assert.ErrorIs(t, err, catalog.ErrConfiguration)

	// the registry still builds it
	eq, err := c.Equation("Custom")
	require.NoError(t, err)
	assert.Equal(t, 2, eq.VariableCount())
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"bad yaml": {"equations: [", "equations: []"},
		"no expression": {`
equations:
  - {name: E, source: srsd-feynman, output: y, variables: [{name: a, low: 0, high: 1}]}
`, "equations: []"},
		"empty range": {`
equations:
  - {name: E, source: srsd-feynman, expression: a, output: y, variables: [{name: a, low: 1, high: 0}]}
`, "equations: []"},
		"unknown kind": {`
equations:
  - {name: E, source: srsd-feynman, expression: a, output: y, variables: [{name: a, kind: normal, low: 0, high: 1}]}
`, "equations: []"},
		"unknown equation": {"equations: []", `
equations:
  - equation: E
    constraints: []
`},
		"unknown variable": {`
equations:
  - {name: E, source: srsd-feynman, expression: a, output: y, variables: [{name: a, low: 0, high: 1}]}
`, `
equations:
  - equation: E
    constraints:
      - {id: c, order: 1, vars: [x3], descriptor: positive}
`},
		"bad descriptor": {`
equations:
  - {name: E, source: srsd-feynman, expression: a, output: y, variables: [{name: a, low: 0, high: 1}]}
`, `
equations:
  - equation: E
    constraints:
      - {id: c, order: 1, vars: [x0], descriptor: rising}
`},
	}
	for name, tc := range cases {
		_, err := catalog.Load([]byte(tc[0]), []byte(tc[1]))
		assert.ErrorIs(t, err, catalog.ErrConfiguration, name)
	}
}

func TestRegister(t *testing.T) {
	c, err := catalog.Load([]byte("equations: []"), []byte("equations: []"))
	require.NoError(t, err)
	entry := catalog.Entry{
		Name:       "Custom",
		Source:     catalog.SourceSRSDFeynman,
		Expression: "a*b",
		Output:     "y",
		Variables: []catalog.VariableSpec{
			{Name: "a", Low: 0, High: 1, Positive: true},
			{Name: "b", Low: 1, High: 2},
		},
	}
	cs := []constraint.Constraint{{ID: "c1", Order: 1, Vars: []string{"x1"}, Descriptor: constraint.Positive}}
	require.NoError(t, c.Register(entry, nil, cs))

	assert.Equal(t, []string{"Custom"}, c.Names())
	got, err := c.Constraints("Custom")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, got[0].DisplayVars)
	assert.Len(t, got[0].Domain, 2)

	eq, err := c.Equation("Custom", equation.WithOutputName("z"))
	require.NoError(t, err)
	assert.Equal(t, "z", eq.OutputName())
	assert.True(t, eq.Variables()[0].Positive)
	assert.False(t, eq.Variables()[1].Positive)
}

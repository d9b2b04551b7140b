package scrbench_test

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/hyperdual"

	"github.com/njchilds90/scrbench"
	"github.com/njchilds90/scrbench/catalog"
	"github.com/njchilds90/scrbench/constraint"
	"github.com/njchilds90/scrbench/dataset"
	"github.com/njchilds90/scrbench/equation"
	"github.com/njchilds90/scrbench/sampling"
	"github.com/njchilds90/scrbench/symbolic"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// scenarioBenchmark is f(x0, x1) = x0^2 + x1 sampled on [-10, 10]^2 with
// declared signs of df/dx1 over x1 in [0, 10].
func scenarioBenchmark(t *testing.T, opts ...scrbench.Option) *scrbench.Benchmark {
	t.Helper()
	objectives := []sampling.Objective{sampling.Uniform{Low: -10, High: 10}, sampling.Uniform{Low: -10, High: 10}}
	eq, err := equation.FromExpression(symbolic.MustParse("x0^2 + x1"), objectives, equation.WithName("scenario"))
	require.NoError(t, err)
	domain := []sampling.Range{{Name: "x0", Low: -10, High: 10}, {Name: "x1", Low: 0, High: 10}}
	cs := []constraint.Constraint{
		{ID: "dx1-positive", Order: 1, Vars: []string{"x1"}, Domain: domain, Descriptor: constraint.Positive},
		{ID: "dx1-negative", Order: 1, Vars: []string{"x1"}, Domain: domain, Descriptor: constraint.Negative},
	}
	opts = append([]scrbench.Option{scrbench.WithSeed(1), scrbench.WithConstraintSampleSize(2000), scrbench.WithLogger(quiet())}, opts...)
	b, err := scrbench.NewFromEquation(eq, cs, opts...)
	require.NoError(t, err)
	return b
}

func TestCreateDataset_Scenario(t *testing.T) {
	b := scenarioBenchmark(t)
	train, test, err := b.CreateDataset(1000, 0, nil, 5)
	require.NoError(t, err)
	assert.Nil(t, test)
	r, c := train.Dims()
	assert.Equal(t, 1000, r)
	assert.Equal(t, 3, c)
	for i := 0; i < r; i++ {
		x0, x1, y := train.At(i, 0), train.At(i, 1), train.At(i, 2)
		assert.InDelta(t, x0*x0+x1, y, 1e-9)
	}
}

func TestCheckConstraints_Scenario(t *testing.T) {
	b := scenarioBenchmark(t)
	for _, backend := range []scrbench.Backend{scrbench.BackendSymbolic, scrbench.BackendAutodiff} {
		res, err := b.CheckConstraints("x0^2 + x1", backend, false)
		require.NoError(t, err, backend)
		assert.False(t, res.Passed, backend)
		assert.Equal(t, []string{"dx1-negative"}, res.ViolatedIDs(), backend)
	}
}

func TestCheckConstraints_UnsupportedBackend(t *testing.T) {
	b := scenarioBenchmark(t)
	_, err := b.CheckConstraints("x0", "jax", false)
	assert.ErrorIs(t, err, scrbench.ErrConfiguration)

	_, err = scrbench.ParseBackend("sympy")
	assert.ErrorIs(t, err, scrbench.ErrConfiguration)
}

func TestCheckConstraints_ParseError(t *testing.T) {
	b := scenarioBenchmark(t)
	_, err := b.CheckConstraints("x0 + mass", scrbench.BackendSymbolic, false)
	assert.ErrorIs(t, err, symbolic.ErrParse)
}

func TestCreateDataset_NoiseLevelRange(t *testing.T) {
	b := scenarioBenchmark(t)
	for _, noise := range []float64{-0.1, 1.5} {
		_, _, err := b.CreateDataset(10, noise, nil, 5)
		assert.ErrorIs(t, err, scrbench.ErrConfiguration)
	}
	_, _, err := b.CreateDataset(0, 0, nil, 5)
	assert.ErrorIs(t, err, scrbench.ErrConfiguration)
	assert.ErrorIs(t, err, dataset.ErrConfiguration)
}

func TestCreateDataset_SeededNoiseIsDeterministic(t *testing.T) {
	b := scenarioBenchmark(t)
	seed := uint64(42)
	first, _, err := b.CreateDataset(500, 0.25, &seed, 10)
	require.NoError(t, err)
	second, _, err := b.CreateDataset(500, 0.25, &seed, 10)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, second))

	other := uint64(43)
	third, _, err := b.CreateDataset(500, 0.25, &other, 10)
	require.NoError(t, err)
	assert.False(t, mat.Equal(first, third))
}

func TestCreateDataset_NoiseOnlyTouchesOutput(t *testing.T) {
	b := scenarioBenchmark(t)
	seed := uint64(42)
	clean, _, err := b.CreateDataset(500, 0, &seed, 10)
	require.NoError(t, err)
	noisy, _, err := b.CreateDataset(500, 0.25, &seed, 10)
	require.NoError(t, err)

	assert.Equal(t, mat.Col(nil, 0, clean), mat.Col(nil, 0, noisy))
	assert.Equal(t, mat.Col(nil, 1, clean), mat.Col(nil, 1, noisy))
	assert.NotEqual(t, mat.Col(nil, 2, clean), mat.Col(nil, 2, noisy))
}

func TestCache_BuiltEagerly(t *testing.T) {
	b := scenarioBenchmark(t)
	samples := b.ConstraintSamples()
	require.Len(t, samples, 2)
	r, c := samples["dx1-positive"].Dims()
	assert.Equal(t, 2000, r)
	assert.Equal(t, 2, c)
}

func TestCache_Lazy(t *testing.T) {
	b := scenarioBenchmark(t, scrbench.WithLazyCache())
	assert.Empty(t, b.ConstraintSamples())

	_, err := b.CheckConstraints("x0^2 + x1", scrbench.BackendSymbolic, false)
	require.NoError(t, err)
	built := b.ConstraintSamples()
	require.Len(t, built, 2)

	_, err = b.CheckConstraints("x1", scrbench.BackendAutodiff, false)
	require.NoError(t, err)
	again := b.ConstraintSamples()
	assert.Same(t, built["dx1-positive"], again["dx1-positive"])
}

func TestNew_Catalog(t *testing.T) {
	b, err := scrbench.New("FeynmanICh12Eq1",
		scrbench.WithSeed(3), scrbench.WithConstraintSampleSize(1000), scrbench.WithLogger(quiet()))
	require.NoError(t, err)
	assert.Equal(t, "FeynmanICh12Eq1", b.Name())
	assert.Len(t, b.Constraints(), 5)

	res, err := b.CheckConstraints("mu*N_n", scrbench.BackendAutodiff, true)
	require.NoError(t, err)
	assert.True(t, res.Passed)

	res, err = b.CheckConstraints("mu/N_n", scrbench.BackendSymbolic, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"FeynmanICh12Eq1-d-x1",
		"FeynmanICh12Eq1-d2-x0-x1",
		"FeynmanICh12Eq1-d2-x1-x1",
	}, res.ViolatedIDs())

	res, err = b.CheckConstraintsFunc(func(x []hyperdual.Number) hyperdual.Number {
		return hyperdual.Mul(x[0], x[1])
	})
	require.NoError(t, err)
	assert.True(t, res.Passed)
}

func TestNew_UnknownEquation(t *testing.T) {
	_, err := scrbench.New("FeynmanNope", scrbench.WithLogger(quiet()))
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestNew_NoCheckableConstraints(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	b, err := scrbench.New("FeynmanIICh15Eq4", scrbench.WithLogger(logger), scrbench.WithConstraintSampleSize(10))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "no constraints to check")

	res, err := b.CheckConstraints("mom", scrbench.BackendSymbolic, true)
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Empty(t, res.Violations)
}

func TestCreateDataframe_Reference(t *testing.T) {
	b, err := scrbench.New("FeynmanICh12Eq1",
		scrbench.WithReferenceDir("testdata"), scrbench.WithSeed(5),
		scrbench.WithLazyCache(), scrbench.WithLogger(quiet()))
	require.NoError(t, err)

	train, test, err := b.CreateDataframe(50, 0.1, nil, 10, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"mu", "N_n", "F"}, train.Columns)
	assert.Equal(t, 50, train.Rows())
	require.NotNil(t, test)
	assert.Equal(t, 3, test.Rows())
	f, err := test.Column("F")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.03, 0.2}, f)
}

func TestCreateDataset_MissingReference(t *testing.T) {
	b, err := scrbench.New("FeynmanICh25Eq13",
		scrbench.WithReferenceDir("testdata"), scrbench.WithLazyCache(), scrbench.WithLogger(quiet()))
	require.NoError(t, err)
	_, _, err = b.CreateDataset(10, 0, nil, 10)
	assert.Error(t, err)
}

func TestNewFromEquation_DomainMismatch(t *testing.T) {
	eq, err := equation.FromExpression(symbolic.MustParse("x0*x1"),
		[]sampling.Objective{sampling.Uniform{Low: 0, High: 1}, sampling.Uniform{Low: 0, High: 1}})
	require.NoError(t, err)
	cs := []constraint.Constraint{{ID: "c", Order: 1, Vars: []string{"x0"}, Descriptor: constraint.Positive,
		Domain: []sampling.Range{{Name: "x0", Low: 0, High: 1}}}}
	_, err = scrbench.NewFromEquation(eq, cs)
	assert.ErrorIs(t, err, scrbench.ErrConfiguration)
}

func TestNewFromEquation_NilLogger(t *testing.T) {
	eq, err := equation.FromExpression(symbolic.MustParse("x0 + 1"),
		[]sampling.Objective{sampling.Uniform{Low: 0, High: 1}})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		b, err := scrbench.NewFromEquation(eq, nil, scrbench.WithLogger(nil), scrbench.WithSeed(2))
		require.NoError(t, err)
		res, err := b.CheckConstraints("x0", scrbench.BackendSymbolic, false)
		require.NoError(t, err)
		assert.True(t, res.Passed)
	})
}

type fakeRecorder struct {
	mu     sync.Mutex
	rounds int
	checks []bool
}

func (f *fakeRecorder) ObserveRound(round, drawn, accepted int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds++
}

func (f *fakeRecorder) ObserveCheck(equation, backend string, passed bool, violations int, elapsed time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, passed)
}

func TestMetricsRecorder(t *testing.T) {
	rec := &fakeRecorder{}
	b := scenarioBenchmark(t, scrbench.WithMetrics(rec))
	_, _, err := b.CreateDataset(100, 0, nil, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rec.rounds, 1)

	_, err = b.CheckConstraints("x0^2 + x1", scrbench.BackendSymbolic, false)
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, rec.checks)
}

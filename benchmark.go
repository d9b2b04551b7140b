// Package scrbench benchmarks symbolic regression candidates against known
// equations: it generates noisy training data by rejection sampling and
// checks candidates for the derivative signs declared for each equation.
package scrbench

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/njchilds90/scrbench/catalog"
	"github.com/njchilds90/scrbench/constraint"
	"github.com/njchilds90/scrbench/dataset"
	"github.com/njchilds90/scrbench/equation"
)

const (
	// ConstraintSampleSize is the number of points drawn per constraint.
	ConstraintSampleSize = 100_000
	// DefaultPatience is the retry budget used when none is given.
	DefaultPatience = 10
)

// ErrConfiguration reports an unsupported backend, an out-of-range noise
// level or an inconsistent catalog record. Configuration errors raised by the
// lower packages are wrapped so they match it too.
var ErrConfiguration = errors.New("scrbench: invalid configuration")

// Backend names a constraint checking backend.
type Backend string

const (
	BackendSymbolic Backend = "symbolic"
	BackendAutodiff Backend = "autodiff"
)

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(s); b {
	case BackendSymbolic, BackendAutodiff:
		return b, nil
	}
	return "", fmt.Errorf("%w: backend %q is not supported", ErrConfiguration, s)
}

// Recorder observes dataset generation rounds and constraint checks.
type Recorder interface {
	dataset.Recorder
	ObserveCheck(equation, backend string, passed bool, violations int, elapsed time.Duration)
}

// Benchmark pairs an equation with its declared constraints and keeps the
// per-constraint sample cache.
type Benchmark struct {
	eq          *equation.Equation
	constraints []constraint.Constraint

	catalog   *catalog.Catalog
	logger    *slog.Logger
	recorder  Recorder
	refDir    string
	lazy      bool
	cacheSize int

	mu      sync.Mutex
	src     rand.Source
	samples constraint.Samples
}

// Option configures a Benchmark.
type Option func(*Benchmark)

// WithCatalog resolves equations from c instead of the embedded catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(b *Benchmark) { b.catalog = c }
}

// WithSeed seeds the benchmark's random source.
func WithSeed(seed uint64) Option {
	return func(b *Benchmark) { b.src = seededSource(seed) }
}

// WithSource sets the benchmark's random source.
func WithSource(src rand.Source) Option {
	return func(b *Benchmark) { b.src = src }
}

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Benchmark) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithReferenceDir sets the directory holding <equation>.csv test tables.
func WithReferenceDir(dir string) Option {
	return func(b *Benchmark) { b.refDir = dir }
}

// WithMetrics reports sampling and checking statistics to r.
func WithMetrics(r Recorder) Option {
	return func(b *Benchmark) { b.recorder = r }
}

// WithLazyCache defers drawing constraint samples until the first check.
func WithLazyCache() Option {
	return func(b *Benchmark) { b.lazy = true }
}

// WithConstraintSampleSize overrides ConstraintSampleSize.
func WithConstraintSampleSize(n int) Option {
	return func(b *Benchmark) { b.cacheSize = n }
}

func seededSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// New builds the benchmark for a catalog equation.
func New(name string, opts ...Option) (*Benchmark, error) {
	b := newBenchmark(opts)
	if b.catalog == nil {
		c, err := catalog.Default()
		if err != nil {
			return nil, wrapConfig(err)
		}
		b.catalog = c
	}
	eq, err := b.catalog.Equation(name, equation.WithLogger(b.logger))
	if err != nil {
		return nil, wrapConfig(err)
	}
	cs, err := b.catalog.Constraints(name)
	if err != nil {
		return nil, wrapConfig(err)
	}
	return b.init(eq, cs)
}

// NewFromEquation builds a benchmark for an equation outside the catalog.
func NewFromEquation(eq *equation.Equation, cs []constraint.Constraint, opts ...Option) (*Benchmark, error) {
	return newBenchmark(opts).init(eq, cs)
}

func newBenchmark(opts []Option) *Benchmark {
	b := &Benchmark{logger: slog.Default(), cacheSize: ConstraintSampleSize}
	for _, opt := range opts {
		opt(b)
	}
	if b.src == nil {
		b.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return b
}

func (b *Benchmark) init(eq *equation.Equation, cs []constraint.Constraint) (*Benchmark, error) {
	if b.cacheSize <= 0 {
		return nil, fmt.Errorf("%w: constraint sample size %d", ErrConfiguration, b.cacheSize)
	}
	for _, c := range cs {
		if len(c.Domain) != eq.VariableCount() {
			return nil, fmt.Errorf("%w: %s: constraint %s has %d domain ranges for %d variables",
				ErrConfiguration, eq.Name(), c.ID, len(c.Domain), eq.VariableCount())
		}
	}
	b.eq = eq
	b.constraints = cs
	if !b.lazy {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := b.buildSamples(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// buildSamples draws the samples of every checkable constraint not yet
// cached. The caller holds b.mu.
func (b *Benchmark) buildSamples() error {
	checkable := constraint.Checkable(b.constraints)
	if b.samples == nil {
		b.samples = make(constraint.Samples, len(checkable))
		if len(checkable) == 0 {
			b.logger.Warn("equation has no constraints to check, every check passes", "equation", b.eq.Name())
		}
	}
	for _, c := range checkable {
		if _, ok := b.samples[c.ID]; ok {
			continue
		}
		xs, err := constraint.Sample(b.src, c, b.cacheSize)
		if err != nil {
			return wrapConfig(err)
		}
		b.samples[c.ID] = xs
	}
	return nil
}

// Name is the equation name.
func (b *Benchmark) Name() string { return b.eq.Name() }

// Equation returns the underlying equation descriptor.
func (b *Benchmark) Equation() *equation.Equation { return b.eq }

// Constraints returns every declared constraint, checkable or not.
func (b *Benchmark) Constraints() []constraint.Constraint {
	return append([]constraint.Constraint(nil), b.constraints...)
}

// ConstraintSamples returns the cached samples; empty until built.
func (b *Benchmark) ConstraintSamples() constraint.Samples {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(constraint.Samples, len(b.samples))
	for id, xs := range b.samples {
		out[id] = xs
	}
	return out
}

// CreateDataset draws sampleSize training rows and adds Gaussian noise with
// standard deviation sqrt(noiseLevel) times the population standard deviation
// of the output. A non-nil seed reseeds the benchmark's source first, so equal
// seeds give equal tables. The test table is the reference CSV for the
// equation when a reference directory is set, nil otherwise.
func (b *Benchmark) CreateDataset(sampleSize int, noiseLevel float64, seed *uint64, patience int) (train, test *mat.Dense, err error) {
	if math.IsNaN(noiseLevel) || noiseLevel < 0 || noiseLevel > 1 {
		return nil, nil, fmt.Errorf("%w: noise level %g outside [0, 1]", ErrConfiguration, noiseLevel)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if seed != nil {
		b.src = seededSource(*seed)
	}

	var opts []dataset.Option
	if b.recorder != nil {
		opts = append(opts, dataset.WithRecorder(b.recorder))
	}
	train, err = b.eq.CreateDataset(b.src, sampleSize, patience, opts...)
	if err != nil {
		return nil, nil, wrapConfig(err)
	}
	if noiseLevel > 0 {
		addNoise(b.src, train, noiseLevel)
	}

	test, err = b.referenceTable()
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func addNoise(src rand.Source, data *mat.Dense, noiseLevel float64) {
	rows, cols := data.Dims()
	y := mat.Col(nil, cols-1, data)
	noise := distuv.Normal{Mu: 0, Sigma: stat.PopStdDev(y, nil) * math.Sqrt(noiseLevel), Src: src}
	for i := 0; i < rows; i++ {
		data.Set(i, cols-1, y[i]+noise.Rand())
	}
}

func (b *Benchmark) referenceTable() (*mat.Dense, error) {
	if b.refDir == "" {
		return nil, nil
	}
	frame, err := dataset.ReadCSVFile(filepath.Join(b.refDir, b.eq.Name()+".csv"))
	if err != nil {
		return nil, fmt.Errorf("reference table for %s: %w", b.eq.Name(), err)
	}
	return frame.Data, nil
}

// CreateDataframe is CreateDataset with labelled columns. The test frame is
// nil when there is no reference table.
func (b *Benchmark) CreateDataframe(sampleSize int, noiseLevel float64, seed *uint64, patience int, useDisplayNames bool) (train, test *dataset.Frame, err error) {
	trainData, testData, err := b.CreateDataset(sampleSize, noiseLevel, seed, patience)
	if err != nil {
		return nil, nil, err
	}
	if train, err = b.eq.ToFrame(trainData, useDisplayNames); err != nil {
		return nil, nil, wrapConfig(err)
	}
	if testData != nil {
		if test, err = b.eq.ToFrame(testData, useDisplayNames); err != nil {
			return nil, nil, wrapConfig(err)
		}
	}
	return train, test, nil
}

// CheckConstraints parses candidate against the canonical or display variable
// names and checks it against every checkable constraint with the chosen
// backend.
func (b *Benchmark) CheckConstraints(candidate string, backend Backend, useDisplayNames bool) (constraint.Result, error) {
	if _, err := ParseBackend(string(backend)); err != nil {
		return constraint.Result{}, err
	}
	return b.check(string(backend), func(names []string) (constraint.Evaluator, error) {
		if backend == BackendSymbolic {
			return constraint.NewSymbolic(candidate, names, useDisplayNames)
		}
		return constraint.NewAutodiff(candidate, names, useDisplayNames)
	}, useDisplayNames)
}

// CheckConstraintsFunc checks a Go function of the variables, in canonical
// order, with the autodiff backend.
func (b *Benchmark) CheckConstraintsFunc(f constraint.DualFunc) (constraint.Result, error) {
	return b.check(string(BackendAutodiff), func(names []string) (constraint.Evaluator, error) {
		return constraint.NewAutodiffFunc(f, names, false), nil
	}, false)
}

func (b *Benchmark) check(backend string, build func(names []string) (constraint.Evaluator, error), display bool) (constraint.Result, error) {
	if len(constraint.Checkable(b.constraints)) == 0 {
		return constraint.Result{Passed: true, Violations: []constraint.Constraint{}, Observed: map[string]constraint.Descriptor{}}, nil
	}
	start := time.Now()

	b.mu.Lock()
	err := b.buildSamples()
	samples := b.samples
	b.mu.Unlock()
	if err != nil {
		return constraint.Result{}, err
	}

	ev, err := build(b.eq.VariableNames(display))
	if err != nil {
		return constraint.Result{}, err
	}
	res, err := constraint.Check(ev, b.constraints, samples)
	if err != nil {
		return constraint.Result{}, wrapConfig(err)
	}

	elapsed := time.Since(start)
	if b.recorder != nil {
		b.recorder.ObserveCheck(b.eq.Name(), backend, res.Passed, len(res.Violations), elapsed)
	}
	b.logger.Debug("constraints checked",
		"equation", b.eq.Name(), "backend", backend,
		"passed", res.Passed, "violations", res.ViolatedIDs(), "elapsed", elapsed)
	return res, nil
}

// wrapConfig makes configuration errors of the lower packages match
// ErrConfiguration as well.
func wrapConfig(err error) error {
	switch {
	case errors.Is(err, ErrConfiguration):
		return err
	case errors.Is(err, constraint.ErrConfiguration),
		errors.Is(err, dataset.ErrConfiguration),
		errors.Is(err, equation.ErrConfiguration),
		errors.Is(err, catalog.ErrConfiguration):
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return err
}

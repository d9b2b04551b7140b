// Package equation binds a symbolic expression to its input variables and
// their sampling objectives, and derives metadata and datasets from it.
package equation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/scrbench/dataset"
	"github.com/njchilds90/scrbench/sampling"
	"github.com/njchilds90/scrbench/symbolic"
)

// ErrConfiguration reports an equation whose parts do not fit together.
var ErrConfiguration = errors.New("equation: invalid configuration")

// DefaultOutput labels the output column when no name is given.
const DefaultOutput = "y"

// Variable is one real-valued input.
type Variable struct {
	// Name is the symbol used in the expression.
	Name string
	// Display is the catalog name; it defaults to Name.
	Display string
	// Positive restricts stationary points to positive coordinates.
	Positive bool
}

// Equation is an immutable expression over positionally bound variables.
type Equation struct {
	name       string
	vars       []Variable
	objectives []sampling.Objective
	expr       symbolic.Expr
	output     string
	fn         func([]float64) float64
	logger     *slog.Logger

	order    []string
	reindex  bool
	positive []string
}

// Option configures New and FromExpression.
type Option func(*Equation)

// WithName sets the equation name.
func WithName(name string) Option {
	return func(e *Equation) { e.name = name }
}

// WithOutputName sets the output column label.
func WithOutputName(name string) Option {
	return func(e *Equation) { e.output = name }
}

// WithLogger sets the logger for diagnostics. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Equation) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithVariableOrder fixes which free symbol binds to which objective in
// FromExpression. Without it symbols are taken in lexical order.
func WithVariableOrder(names ...string) Option {
	return func(e *Equation) { e.order = names }
}

// WithoutReindex keeps the original symbol names in FromExpression instead of
// renaming them to x0..xN-1.
func WithoutReindex() Option {
	return func(e *Equation) { e.reindex = false }
}

// WithPositive marks variables, by name or display name, as taking only
// positive values.
func WithPositive(names ...string) Option {
	return func(e *Equation) { e.positive = append(e.positive, names...) }
}

// New binds expr to vars and objectives by position.
func New(vars []Variable, objectives []sampling.Objective, expr symbolic.Expr, opts ...Option) (*Equation, error) {
	e := &Equation{output: DefaultOutput, logger: slog.Default(), reindex: true}
	for _, opt := range opts {
		opt(e)
	}
	if len(vars) != len(objectives) {
		return nil, fmt.Errorf("%w: %d variables for %d sampling objectives", ErrConfiguration, len(vars), len(objectives))
	}
	e.vars = make([]Variable, len(vars))
	for i, v := range vars {
		if v.Display == "" {
			v.Display = v.Name
		}
		if slices.Contains(e.positive, v.Name) || slices.Contains(e.positive, v.Display) {
			v.Positive = true
		}
		e.vars[i] = v
	}
	e.objectives = append([]sampling.Objective(nil), objectives...)
	e.expr = expr.Simplify()

	fn, err := symbolic.Compile(e.expr, e.names())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	e.fn = fn
	return e, nil
}

// FromExpression builds an equation from a bare expression, binding its free
// symbols to objectives and, unless WithoutReindex is given, renaming them to
// x0..xN-1 so catalog metadata keyed by canonical names applies.
func FromExpression(expr symbolic.Expr, objectives []sampling.Objective, opts ...Option) (*Equation, error) {
	probe := &Equation{reindex: true}
	for _, opt := range opts {
		opt(probe)
	}
	order := probe.order
	if order == nil {
		order = symbolic.SortedSymbols(expr)
	}
	if len(order) != len(objectives) {
		return nil, fmt.Errorf("%w: expression has %d variables for %d sampling objectives",
			ErrConfiguration, len(order), len(objectives))
	}

	vars := make([]Variable, len(order))
	renames := make(map[string]string, len(order))
	for i, name := range order {
		vars[i] = Variable{Name: name}
		if probe.reindex {
			canonical := fmt.Sprintf("x%d", i)
			renames[name] = canonical
			vars[i] = Variable{Name: canonical, Display: name}
		}
	}
	if probe.reindex {
		expr = symbolic.Rename(expr, renames)
	}
	return New(vars, objectives, expr, opts...)
}

func (e *Equation) names() []string {
	out := make([]string, len(e.vars))
	for i, v := range e.vars {
		out[i] = v.Name
	}
	return out
}

func (e *Equation) Name() string                     { return e.name }
func (e *Equation) Expr() symbolic.Expr              { return e.expr }
func (e *Equation) OutputName() string               { return e.output }
func (e *Equation) Variables() []Variable            { return append([]Variable(nil), e.vars...) }
func (e *Equation) Objectives() []sampling.Objective { return append([]sampling.Objective(nil), e.objectives...) }
func (e *Equation) VariableCount() int               { return len(e.vars) }

// VariableNames lists the canonical or display names in position order.
func (e *Equation) VariableNames(display bool) []string {
	out := make([]string, len(e.vars))
	for i, v := range e.vars {
		if display {
			out[i] = v.Display
		} else {
			out[i] = v.Name
		}
	}
	return out
}

// OperatorCount counts the operator nodes of the expression.
func (e *Equation) OperatorCount() int { return symbolic.CountOps(e.expr) }

// Evaluate computes the output for every sample; columns holds one slice per
// variable.
func (e *Equation) Evaluate(columns [][]float64) []float64 {
	if len(columns) == 0 {
		return nil
	}
	out := make([]float64, len(columns[0]))
	point := make([]float64, len(columns))
	for i := range out {
		for j, col := range columns {
			point[j] = col[i]
		}
		out[i] = e.fn(point)
	}
	return out
}

// EvaluatePoint computes the output at a single point.
func (e *Equation) EvaluatePoint(x []float64) float64 { return e.fn(x) }

// DomainSpan is |log10| of the width of the widest interval covering every
// objective's bounds, a rough difficulty signal.
func (e *Equation) DomainSpan() float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, obj := range e.objectives {
		l, h := obj.Bounds()
		lo = math.Min(lo, l)
		hi = math.Max(hi, h)
	}
	return math.Abs(math.Log10(math.Abs(hi - lo)))
}

// DomainRanges reports each variable's sampling bounds.
func (e *Equation) DomainRanges() []sampling.Range {
	out := make([]sampling.Range, len(e.vars))
	for i, v := range e.vars {
		l, h := e.objectives[i].Bounds()
		out[i] = sampling.Range{Name: v.Name, Low: l, High: h}
	}
	return out
}

// CheckVariableConsistency reports whether every declared variable occurs in
// the expression.
func (e *Equation) CheckVariableConsistency() bool {
	used := len(symbolic.FreeSymbols(e.expr))
	if used != len(e.vars) {
		e.logger.Debug("variable count mismatch",
			"equation", e.name, "declared", len(e.vars), "used", used)
		return false
	}
	return true
}

// CreateDataset samples sampleSize valid rows of inputs and output.
func (e *Equation) CreateDataset(src rand.Source, sampleSize, patience int, opts ...dataset.Option) (*mat.Dense, error) {
	opts = append([]dataset.Option{dataset.WithLogger(e.logger)}, opts...)
	data, err := dataset.Generate(src, e.objectives, e.Evaluate, dataset.IsValid, sampleSize, patience, opts...)
	if err != nil {
		return nil, fmt.Errorf("equation %s: %w", e.name, err)
	}
	return data, nil
}

// CreateInputDataset is CreateDataset without the output column.
func (e *Equation) CreateInputDataset(src rand.Source, sampleSize, patience int) (*mat.Dense, error) {
	data, err := e.CreateDataset(src, sampleSize, patience)
	if err != nil {
		return nil, err
	}
	return dataset.Inputs(data), nil
}

// ToFrame labels data with variable names and the output name.
func (e *Equation) ToFrame(data *mat.Dense, display bool) (*dataset.Frame, error) {
	return dataset.NewFrame(append(e.VariableNames(display), e.output), data)
}

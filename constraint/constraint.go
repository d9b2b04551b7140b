// Package constraint checks candidate expressions against declared signs of
// their first and second partial derivatives.
package constraint

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/scrbench/sampling"
)

var (
	// ErrConfiguration reports an unsupported constraint or missing samples.
	ErrConfiguration = errors.New("constraint: invalid configuration")
	// ErrDerivativeMatch reports a constraint whose target derivative matches
	// zero or several derivatives of the candidate.
	ErrDerivativeMatch = errors.New("constraint: derivative not matched uniquely")
	// ErrUnclassifiableSignPattern reports values whose sign set fits none of
	// the known descriptors, which means NaN or an empty evaluation.
	ErrUnclassifiableSignPattern = errors.New("constraint: unclassifiable sign pattern")
)

// Descriptor classifies the sign pattern of a derivative over a domain.
type Descriptor string

const (
	Positive Descriptor = "positive"
	Negative Descriptor = "negative"
	Zero     Descriptor = "zero"
	None     Descriptor = "none"
	Unknown  Descriptor = "unknown"
)

// Valid reports whether d is one of the known descriptors.
func (d Descriptor) Valid() bool {
	switch d {
	case Positive, Negative, Zero, None, Unknown:
		return true
	}
	return false
}

// Constraint declares the expected sign of one partial derivative over a
// sub-domain. Vars holds one name for a first derivative and the ordered
// pair for a second derivative.
type Constraint struct {
	ID          string           `json:"id" yaml:"id" validate:"required"`
	Order       int              `json:"order" yaml:"order" validate:"min=1"`
	Vars        []string         `json:"vars" yaml:"vars" validate:"min=1,max=2,dive,required"`
	DisplayVars []string         `json:"display_vars,omitempty" yaml:"display_vars"`
	Domain      []sampling.Range `json:"domain" yaml:"domain" validate:"min=1"`
	Descriptor  Descriptor       `json:"descriptor" yaml:"descriptor" validate:"oneof=positive negative zero none unknown"`
}

// Names returns the derivative variable names, display ones if asked and
// declared.
func (c Constraint) Names(display bool) []string {
	if display && len(c.DisplayVars) > 0 {
		return c.DisplayVars
	}
	return c.Vars
}

// Checkable reports whether the constraint takes part in checking.
func (c Constraint) Checkable() bool { return c.Descriptor != None }

func (c Constraint) String() string {
	return fmt.Sprintf("%s: d%d/d(%v) %s", c.ID, c.Order, c.Vars, c.Descriptor)
}

// Checkable filters out constraints declared as carrying no constraint.
func Checkable(cs []Constraint) []Constraint {
	out := make([]Constraint, 0, len(cs))
	for _, c := range cs {
		if c.Checkable() {
			out = append(out, c)
		}
	}
	return out
}

// ClassifySignPattern maps the set of signs observed in values to a
// descriptor. Zeros alongside a single strict sign keep that sign.
func ClassifySignPattern(values []float64) (Descriptor, error) {
	var neg, zero, pos bool
	for _, v := range values {
		switch {
		case v < 0:
			neg = true
		case v > 0:
			pos = true
		case v == 0:
			zero = true
		default:
			return Unknown, fmt.Errorf("%w: NaN among %d values", ErrUnclassifiableSignPattern, len(values))
		}
	}
	switch {
	case neg && pos:
		return None, nil
	case neg:
		return Negative, nil
	case pos:
		return Positive, nil
	case zero:
		return Zero, nil
	}
	return Unknown, fmt.Errorf("%w: no values", ErrUnclassifiableSignPattern)
}

// Samples holds the evaluation points for each constraint, keyed by ID; rows
// are points and columns follow variable order.
type Samples map[string]*mat.Dense

// Sample draws n points uniformly from the constraint's domain.
func Sample(src rand.Source, c Constraint, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: sample size %d", ErrConfiguration, n)
	}
	if len(c.Domain) == 0 {
		return nil, fmt.Errorf("%w: constraint %s has no domain", ErrConfiguration, c.ID)
	}
	for _, r := range c.Domain {
		if !(r.Low <= r.High) || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
			return nil, fmt.Errorf("%w: constraint %s: bad range %s=[%g, %g]", ErrConfiguration, c.ID, r.Name, r.Low, r.High)
		}
	}
	return mat.NewDense(n, len(c.Domain), sampling.Box(src, c.Domain, n)), nil
}

// Evaluator computes the derivative a constraint targets at every sample
// row.
type Evaluator interface {
	Values(c Constraint, samples *mat.Dense) ([]float64, error)
}

// Result is the outcome of checking a candidate.
type Result struct {
	Passed     bool                  `json:"passed"`
	Violations []Constraint          `json:"violations"`
	Observed   map[string]Descriptor `json:"observed"`
}

// ViolatedIDs lists the IDs of violated constraints in check order.
func (r Result) ViolatedIDs() []string {
	ids := make([]string, len(r.Violations))
	for i, c := range r.Violations {
		ids[i] = c.ID
	}
	return ids
}

// Check classifies every checkable constraint with ev over its samples. A
// constraint is violated when the observed descriptor differs from the
// declared one. With nothing to check the candidate passes.
func Check(ev Evaluator, constraints []Constraint, samples Samples) (Result, error) {
	res := Result{Violations: []Constraint{}, Observed: map[string]Descriptor{}}
	for _, c := range Checkable(constraints) {
		xs, ok := samples[c.ID]
		if !ok {
			return Result{}, fmt.Errorf("%w: no samples for constraint %s", ErrConfiguration, c.ID)
		}
		values, err := ev.Values(c, xs)
		if err != nil {
			return Result{}, fmt.Errorf("constraint %s: %w", c.ID, err)
		}
		got, err := ClassifySignPattern(values)
		if err != nil {
			return Result{}, fmt.Errorf("constraint %s: %w", c.ID, err)
		}
		res.Observed[c.ID] = got
		if got != c.Descriptor {
			res.Violations = append(res.Violations, c)
		}
	}
	res.Passed = len(res.Violations) == 0
	return res, nil
}

// indexOfName resolves a derivative variable against names; the name must
// occur exactly once.
func indexOfName(names []string, name string) (int, error) {
	i := slices.Index(names, name)
	if i < 0 {
		return 0, fmt.Errorf("%w: unknown variable %q", ErrDerivativeMatch, name)
	}
	if slices.Contains(names[i+1:], name) {
		return 0, fmt.Errorf("%w: variable %q is not unique", ErrDerivativeMatch, name)
	}
	return i, nil
}

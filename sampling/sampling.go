// Package sampling provides the per-variable value samplers that feed dataset
// generation. Every sampler draws from an explicit random source so runs are
// reproducible without process-wide state.
package sampling

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Objective draws values for one input variable over a declared range.
type Objective interface {
	// Sample returns n independent draws.
	Sample(src rand.Source, n int) []float64
	// Bounds reports the declared [low, high] range.
	Bounds() (low, high float64)
}

// Uniform samples uniformly over [Low, High].
type Uniform struct {
	Low, High float64
}

func (u Uniform) Sample(src rand.Source, n int) []float64 {
	dist := distuv.Uniform{Min: u.Low, Max: u.High, Src: src}
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

func (u Uniform) Bounds() (float64, float64) { return u.Low, u.High }

func (u Uniform) String() string { return fmt.Sprintf("U[%g, %g]", u.Low, u.High) }

// LogUniform samples magnitudes whose base-10 logarithm is uniform over
// [log10(Low), log10(High)]. Negative flips the sign of each draw with
// probability one half.
type LogUniform struct {
	Low, High float64
	Negative  bool
}

func (l LogUniform) Sample(src rand.Source, n int) []float64 {
	exponent := distuv.Uniform{Min: math.Log10(l.Low), Max: math.Log10(l.High), Src: src}
	coin := distuv.Bernoulli{P: 0.5, Src: src}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Pow(10, exponent.Rand())
		if l.Negative && coin.Rand() == 1 {
			out[i] = -out[i]
		}
	}
	return out
}

// Bounds covers both signs when Negative is set.
func (l LogUniform) Bounds() (float64, float64) {
	if l.Negative {
		return -l.High, l.High
	}
	return l.Low, l.High
}

func (l LogUniform) String() string {
	if l.Negative {
		return fmt.Sprintf("±LogU[%g, %g]", l.Low, l.High)
	}
	return fmt.Sprintf("LogU[%g, %g]", l.Low, l.High)
}

// Integer samples integers uniformly from [Low, High].
type Integer struct {
	Low, High int
}

func (s Integer) Sample(src rand.Source, n int) []float64 {
	dist := distuv.Uniform{Min: float64(s.Low), Max: float64(s.High + 1), Src: src}
	out := make([]float64, n)
	for i := range out {
		v := math.Floor(dist.Rand())
		// guard the open upper end against rounding up to High+1
		out[i] = math.Min(v, float64(s.High))
	}
	return out
}

func (s Integer) Bounds() (float64, float64) { return float64(s.Low), float64(s.High) }

func (s Integer) String() string { return fmt.Sprintf("Z[%d, %d]", s.Low, s.High) }

// Range is a named closed interval.
type Range struct {
	Name string  `json:"name" yaml:"name"`
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// Box draws n rows uniformly over the ranges, one column per range, laid out
// row-major.
func Box(src rand.Source, ranges []Range, n int) []float64 {
	cols := len(ranges)
	out := make([]float64, n*cols)
	dists := make([]distuv.Uniform, cols)
	for j, r := range ranges {
		dists[j] = distuv.Uniform{Min: r.Low, Max: r.High, Src: src}
	}
	for i := 0; i < n; i++ {
		for j := range dists {
			out[i*cols+j] = dists[j].Rand()
		}
	}
	return out
}

// New builds an Objective from a kind name as used in catalogs and configs:
// "uniform", "log-uniform" or "integer".
func New(kind string, low, high float64, negative bool) (Objective, error) {
	switch kind {
	case "uniform", "":
		if high < low {
			return nil, fmt.Errorf("sampling: uniform range [%g, %g] is empty", low, high)
		}
		return Uniform{Low: low, High: high}, nil
	case "log-uniform":
		if low <= 0 || high < low {
			return nil, fmt.Errorf("sampling: log-uniform range [%g, %g] must be positive and non-empty", low, high)
		}
		return LogUniform{Low: low, High: high, Negative: negative}, nil
	case "integer":
		if high < low || low != math.Trunc(low) || high != math.Trunc(high) {
			return nil, fmt.Errorf("sampling: integer range [%g, %g] is invalid", low, high)
		}
		return Integer{Low: int(low), High: int(high)}, nil
	}
	return nil, fmt.Errorf("sampling: unknown objective kind %q", kind)
}

// Package dataset draws input/output tables for an equation by rejection
// sampling and carries them around as labelled frames.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/njchilds90/scrbench/sampling"
)

var (
	// ErrSamplingExhausted reports that the retry budget ran out before enough
	// valid rows were collected.
	ErrSamplingExhausted = errors.New("dataset: sampling exhausted")
	// ErrConfiguration reports invalid generator arguments.
	ErrConfiguration = errors.New("dataset: invalid configuration")
)

// RetryFactor scales the missing row count into the draw size of each retry.
const RetryFactor = 5

// EvalFunc maps input columns (one slice per variable) to outputs.
type EvalFunc func(columns [][]float64) []float64

// Validity reports whether an output value is acceptable.
type Validity func(v float64) bool

// IsValid accepts finite float64 values that are not subnormal or zero.
func IsValid(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= -math.MaxFloat64 && v <= math.MaxFloat64 && math.Abs(v) >= 0x1p-1022
}

// IsValidFloat32 is IsValid against the float32 limits.
func IsValidFloat32(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= -math.MaxFloat32 && v <= math.MaxFloat32 && math.Abs(v) >= 0x1p-126
}

// Recorder observes every sampling round: round 0 is the initial draw.
type Recorder interface {
	ObserveRound(round, drawn, accepted int)
}

type config struct {
	recorder Recorder
	logger   *slog.Logger
}

// Option configures Generate.
type Option func(*config)

// WithRecorder reports per-round draw statistics to r.
func WithRecorder(r Recorder) Option {
	return func(c *config) { c.recorder = r }
}

// WithLogger sets the logger used for round diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// Generate returns a sampleSize x (len(objectives)+1) table whose last column
// is eval of the preceding ones and passes valid. After the initial draw it
// retries up to patience times, each time drawing RetryFactor times the rows
// still missing. Fresh valid rows are placed ahead of older ones and the
// table keeps the first sampleSize rows; row order carries no meaning.
func Generate(src rand.Source, objectives []sampling.Objective, eval EvalFunc, valid Validity, sampleSize, patience int, opts ...Option) (*mat.Dense, error) {
	switch {
	case len(objectives) == 0:
		return nil, fmt.Errorf("%w: at least one sampling objective is required", ErrConfiguration)
	case sampleSize <= 0:
		return nil, fmt.Errorf("%w: sample size %d must be positive", ErrConfiguration, sampleSize)
	case patience < 0:
		return nil, fmt.Errorf("%w: patience %d must not be negative", ErrConfiguration, patience)
	}
	if valid == nil {
		valid = IsValid
	}
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	cols := len(objectives) + 1
	draw := func(round, n int) []float64 {
		xs := make([][]float64, len(objectives))
		for j, obj := range objectives {
			xs[j] = obj.Sample(src, n)
		}
		y := eval(xs)
		rows := make([]float64, 0, n*cols)
		for i := 0; i < n; i++ {
			if !valid(y[i]) {
				continue
			}
			for j := range xs {
				rows = append(rows, xs[j][i])
			}
			rows = append(rows, y[i])
		}
		if cfg.recorder != nil {
			cfg.recorder.ObserveRound(round, n, len(rows)/cols)
		}
		return rows
	}

	rows := draw(0, sampleSize)
	for round := 1; len(rows)/cols < sampleSize; round++ {
		if round > patience {
			return nil, fmt.Errorf("%w: %d of %d valid samples after %d retries",
				ErrSamplingExhausted, len(rows)/cols, sampleSize, patience)
		}
		missing := sampleSize - len(rows)/cols
		cfg.logger.Debug("resampling", "round", round, "missing", missing)
		rows = append(draw(round, RetryFactor*missing), rows...)
	}
	return mat.NewDense(sampleSize, cols, rows[:sampleSize*cols]), nil
}

// Inputs returns a copy of every column but the last.
func Inputs(data *mat.Dense) *mat.Dense {
	r, c := data.Dims()
	out := mat.NewDense(r, c-1, nil)
	out.Copy(data.Slice(0, r, 0, c-1))
	return out
}

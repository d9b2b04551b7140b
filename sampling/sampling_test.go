package sampling_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/scrbench/sampling"
)

func TestUniform_StaysInRange(t *testing.T) {
	u := sampling.Uniform{Low: -10, High: 10}
	values := u.Sample(rand.NewPCG(1, 2), 5000)
	require.Len(t, values, 5000)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, -10.0)
		assert.LessOrEqual(t, v, 10.0)
	}
	low, high := u.Bounds()
	assert.Equal(t, -10.0, low)
	assert.Equal(t, 10.0, high)
}

func TestUniform_Deterministic(t *testing.T) {
	u := sampling.Uniform{Low: 0, High: 1}
	a := u.Sample(rand.NewPCG(42, 42), 100)
	b := u.Sample(rand.NewPCG(42, 42), 100)
	assert.Equal(t, a, b)
}

func TestLogUniform_Magnitudes(t *testing.T) {
	l := sampling.LogUniform{Low: 1e-2, High: 1e2, Negative: true}
	values := l.Sample(rand.NewPCG(7, 7), 5000)
	var neg, pos int
	for _, v := range values {
		m := math.Abs(v)
		assert.GreaterOrEqual(t, m, 1e-2*(1-1e-12))
		assert.LessOrEqual(t, m, 1e2*(1+1e-12))
		if v < 0 {
			neg++
		} else {
			pos++
		}
	}
	assert.Positive(t, neg)
	assert.Positive(t, pos)
}

func TestLogUniform_PositiveOnly(t *testing.T) {
	l := sampling.LogUniform{Low: 1, High: 5}
	for _, v := range l.Sample(rand.NewPCG(3, 4), 1000) {
		assert.Positive(t, v)
	}
}

func TestInteger_Values(t *testing.T) {
	s := sampling.Integer{Low: 1, High: 3}
	seen := map[float64]bool{}
	for _, v := range s.Sample(rand.NewPCG(9, 9), 2000) {
		assert.Equal(t, math.Trunc(v), v)
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 3.0)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
}

func TestBox_Layout(t *testing.T) {
	rows := sampling.Box(rand.NewPCG(5, 6), []sampling.Range{{Low: 0, High: 1}, {Low: 100, High: 200}}, 1000)
	require.Len(t, rows, 2000)
	for i := 0; i < 1000; i++ {
		assert.True(t, rows[2*i] >= 0 && rows[2*i] <= 1)
		assert.True(t, rows[2*i+1] >= 100 && rows[2*i+1] <= 200)
	}
}

func TestNew(t *testing.T) {
	obj, err := sampling.New("log-uniform", 1, 10, true)
	require.NoError(t, err)
	assert.Equal(t, sampling.LogUniform{Low: 1, High: 10, Negative: true}, obj)

	_, err = sampling.New("log-uniform", -1, 10, false)
	assert.Error(t, err)
	_, err = sampling.New("integer", 1.5, 3, false)
	assert.Error(t, err)
	_, err = sampling.New("gaussian", 0, 1, false)
	assert.Error(t, err)
}

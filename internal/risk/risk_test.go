package risk_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airwaycast/airwaycast/internal/risk"
)

var levels = []float64{1, 2, 3, 4, 5}

func TestNormalize_ClassDistribution(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  float64
	}{
		{name: "certain lowest", probs: []float64{1, 0, 0, 0, 0}, want: 1},
		{name: "certain highest", probs: []float64{0, 0, 0, 0, 1}, want: 5},
		{name: "uniform", probs: []float64{0.2, 0.2, 0.2, 0.2, 0.2}, want: 3},
		{name: "skewed", probs: []float64{0.1, 0.2, 0.3, 0.25, 0.15}, want: 3.15},
		{name: "rounded", probs: []float64{0.333, 0.333, 0.334, 0, 0}, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := risk.Normalize(risk.ClassDistribution{Levels: levels, Probabilities: tt.probs})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNormalize_FlareProbability(t *testing.T) {
	assert.Equal(t, 1.0, risk.Normalize(risk.FlareProbability{P: 0}))
	assert.Equal(t, 5.0, risk.Normalize(risk.FlareProbability{P: 1}))
	assert.Equal(t, 3.0, risk.Normalize(risk.FlareProbability{P: 0.5}))
	assert.Equal(t, 1.49, risk.Normalize(risk.FlareProbability{P: 0.1234}))
}

func TestNormalize_AlwaysWithinScale(t *testing.T) {
	// Walk a grid over the probability simplex plus out-of-range inputs.
	const steps = 8
	for a := 0; a <= steps; a++ {
		for b := 0; a+b <= steps; b++ {
			for c := 0; a+b+c <= steps; c++ {
				for d := 0; a+b+c+d <= steps; d++ {
					e := steps - a - b - c - d
					probs := []float64{
						float64(a) / steps, float64(b) / steps, float64(c) / steps,
						float64(d) / steps, float64(e) / steps,
					}
					got := risk.Normalize(risk.ClassDistribution{Levels: levels, Probabilities: probs})
					assert.GreaterOrEqual(t, got, risk.Min)
					assert.LessOrEqual(t, got, risk.Max)
				}
			}
		}
	}

	for _, p := range []float64{-1, -0.01, 0, 0.37, 1, 1.5, math.NaN(), math.Inf(1)} {
		got := risk.Normalize(risk.FlareProbability{P: p})
		assert.GreaterOrEqual(t, got, risk.Min, "p=%v", p)
		assert.LessOrEqual(t, got, risk.Max, "p=%v", p)
	}

	// Levels outside the scale are clamped too.
	got := risk.Normalize(risk.ClassDistribution{Levels: []float64{0, 9}, Probabilities: []float64{0.1, 0.9}})
	assert.Equal(t, risk.Max, got)
}

func TestConfidence(t *testing.T) {
	dist := risk.ClassDistribution{Levels: levels, Probabilities: []float64{0.1, 0.6, 0.1, 0.1, 0.1}}
	assert.Equal(t, 0.6, dist.Confidence())
	assert.Equal(t, 0.42, risk.FlareProbability{P: 0.42}.Confidence())
}

func TestNormalize_MismatchedLengths(t *testing.T) {
	got := risk.Normalize(risk.ClassDistribution{Levels: []float64{1, 2, 3}, Probabilities: []float64{0, 1}})
	assert.Equal(t, 2.0, got)
}

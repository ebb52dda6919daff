package model

import (
	"errors"
	"fmt"
	"math"
)

// Classifier produces one probability vector per input row.
type Classifier interface {
	PredictProba(x [][]float64) ([][]float64, error)
}

// ErrFeatureWidth is returned when an input row does not match the fitted width.
var ErrFeatureWidth = errors.New("feature width mismatch")

// Logistic is a fitted (multinomial) logistic regression. A single
// coefficient row is a binary model scored with a sigmoid; several rows are
// scored with a softmax.
type Logistic struct {
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
}

var _ Classifier = (*Logistic)(nil)

// PredictProba returns class probabilities. Binary models yield [P(0), P(1)].
func (l *Logistic) PredictProba(x [][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, row := range x {
		z, err := l.decision(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if len(z) == 1 {
			p := sigmoid(z[0])
			out[i] = []float64{1 - p, p}
			continue
		}
		out[i] = softmax(z)
	}
	return out, nil
}

func (l *Logistic) decision(row []float64) ([]float64, error) {
	z := make([]float64, len(l.Coefficients))
	for k, coef := range l.Coefficients {
		if len(coef) != len(row) {
			return nil, fmt.Errorf("%w: got %d want %d", ErrFeatureWidth, len(row), len(coef))
		}
		sum := l.Intercepts[k]
		for j, c := range coef {
			sum += c * row[j]
		}
		z[k] = sum
	}
	return z, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(z []float64) []float64 {
	maxZ := math.Inf(-1)
	for _, v := range z {
		maxZ = math.Max(maxZ, v)
	}
	out := make([]float64, len(z))
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - maxZ)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

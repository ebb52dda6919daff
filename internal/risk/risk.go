// Package risk maps raw classifier output onto the shared 1-5 risk scale.
package risk

import "math"

// Scale bounds for every normalized risk value.
const (
	Min = 1.0
	Max = 5.0
)

// Output is the raw output of a classifier. It is one of ClassDistribution or
// FlareProbability; each variant carries what its own normalization needs.
type Output interface {
	expected() float64
	// Confidence is the probability mass backing the prediction.
	Confidence() float64
}

// ClassDistribution is a probability distribution over discrete risk levels.
type ClassDistribution struct {
	Levels        []float64
	Probabilities []float64
}

// FlareProbability is the probability of a flare day from a binary classifier.
type FlareProbability struct {
	P float64
}

var (
	_ Output = ClassDistribution{}
	_ Output = FlareProbability{}
)

// expected returns the probability-weighted level.
func (c ClassDistribution) expected() float64 {
	n := min(len(c.Levels), len(c.Probabilities))
	var sum float64
	for i := 0; i < n; i++ {
		sum += c.Levels[i] * c.Probabilities[i]
	}
	return sum
}

// Confidence returns the largest class probability.
func (c ClassDistribution) Confidence() float64 {
	best := 0.0
	for _, p := range c.Probabilities {
		if p > best {
			best = p
		}
	}
	return best
}

func (f FlareProbability) expected() float64 {
	return Min + (Max-Min)*f.P
}

// Confidence returns the flare probability itself.
func (f FlareProbability) Confidence() float64 {
	return f.P
}

// Normalize converts o into a risk value in [Min, Max] rounded to two decimals.
func Normalize(o Output) float64 {
	return Round(Clamp(o.expected()))
}

// Clamp bounds v to the risk scale. NaN maps to Min.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < Min {
		return Min
	}
	if v > Max {
		return Max
	}
	return v
}

// Round rounds v to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

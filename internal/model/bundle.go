// Package model loads pre-trained model bundles and scores feature rows with
// them.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/airwaycast/airwaycast/internal/risk"
)

// Target names the label a bundle was trained against.
type Target string

// Known targets.
const (
	TargetRisk  Target = "risk_1_5"
	TargetFlare Target = "flare_binary"
)

// ErrInvalidBundle is returned when a bundle artifact is malformed.
var ErrInvalidBundle = errors.New("invalid model bundle")

// Row is a feature row addressable by model column name.
type Row interface {
	Numeric(col string) (float64, bool)
	Categorical(col string) (string, bool)
}

// Scaler standardizes columns as (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Bundle is an immutable fitted classifier with its expected feature schema.
type Bundle struct {
	Name           string
	Target         Target
	FeatureColumns []string
	Classes        []float64

	classifier Classifier
	scaler     *Scaler
	encoders   map[string]*LabelEncoder
}

type bundleFile struct {
	Name           string              `json:"name"`
	Target         Target              `json:"target"`
	FeatureColumns []string            `json:"feature_columns"`
	Classes        []float64           `json:"classes"`
	Scaler         *Scaler             `json:"scaler,omitempty"`
	Classifier     *Logistic           `json:"classifier"`
	Encoders       map[string][]string `json:"encoders,omitempty"`
}

// Load reads a bundle from a JSON file.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads and validates a bundle from r.
func Decode(r io.Reader) (*Bundle, error) {
	var raw bundleFile
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if err := raw.validate(); err != nil {
		return nil, err
	}

	encoders := make(map[string]*LabelEncoder, len(raw.Encoders))
	for col, labels := range raw.Encoders {
		encoders[col] = NewLabelEncoder(labels)
	}

	return New(raw.Name, raw.Target, raw.FeatureColumns, raw.Classes, raw.Classifier, raw.Scaler, encoders), nil
}

// New assembles a bundle from already fitted parts.
func New(name string, target Target, columns []string, classes []float64, clf Classifier, scaler *Scaler, encoders map[string]*LabelEncoder) *Bundle {
	if name == "" {
		name = string(target)
	}
	return &Bundle{
		Name:           name,
		Target:         target,
		FeatureColumns: append([]string(nil), columns...),
		Classes:        append([]float64(nil), classes...),
		classifier:     clf,
		scaler:         scaler,
		encoders:       encoders,
	}
}

func (b *bundleFile) validate() error {
	switch b.Target {
	case TargetRisk, TargetFlare:
	default:
		return fmt.Errorf("%w: unknown target %q", ErrInvalidBundle, b.Target)
	}
	if len(b.FeatureColumns) == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidBundle)
	}
	if b.Classifier == nil || len(b.Classifier.Coefficients) == 0 {
		return fmt.Errorf("%w: missing classifier", ErrInvalidBundle)
	}
	if len(b.Classifier.Intercepts) != len(b.Classifier.Coefficients) {
		return fmt.Errorf("%w: %d intercepts for %d coefficient rows",
			ErrInvalidBundle, len(b.Classifier.Intercepts), len(b.Classifier.Coefficients))
	}
	for i, coef := range b.Classifier.Coefficients {
		if len(coef) != len(b.FeatureColumns) {
			return fmt.Errorf("%w: coefficient row %d has %d values for %d columns",
				ErrInvalidBundle, i, len(coef), len(b.FeatureColumns))
		}
	}

	wantClasses := len(b.Classifier.Coefficients)
	if wantClasses == 1 {
		wantClasses = 2
	}
	if len(b.Classes) != wantClasses {
		return fmt.Errorf("%w: %d classes for %d outputs", ErrInvalidBundle, len(b.Classes), wantClasses)
	}
	if b.Scaler != nil && (len(b.Scaler.Mean) != len(b.FeatureColumns) || len(b.Scaler.Scale) != len(b.FeatureColumns)) {
		return fmt.Errorf("%w: scaler width does not match feature columns", ErrInvalidBundle)
	}
	return nil
}

// Matrix builds the model input for rows in FeatureColumns order. Columns a
// row cannot supply are zero-filled; their names are returned as missing.
func (b *Bundle) Matrix(rows []Row) ([][]float64, []string) {
	missingSet := make(map[string]struct{})
	x := make([][]float64, len(rows))

	for i, row := range rows {
		vec := make([]float64, len(b.FeatureColumns))
		for j, col := range b.FeatureColumns {
			v, ok := b.value(row, col)
			if !ok {
				missingSet[col] = struct{}{}
			}
			if b.scaler != nil && b.scaler.Scale[j] != 0 {
				v = (v - b.scaler.Mean[j]) / b.scaler.Scale[j]
			}
			vec[j] = v
		}
		x[i] = vec
	}

	var missing []string
	for _, col := range b.FeatureColumns {
		if _, ok := missingSet[col]; ok {
			missing = append(missing, col)
		}
	}
	return x, missing
}

func (b *Bundle) value(row Row, col string) (float64, bool) {
	if enc, ok := b.encoders[col]; ok {
		label, ok := row.Categorical(col)
		if !ok {
			return UnknownCode, false
		}
		return float64(enc.Encode(label)), true
	}
	return row.Numeric(col)
}

// Predict scores rows and returns one raw output per row.
func (b *Bundle) Predict(rows []Row) ([]risk.Output, []string, error) {
	if len(rows) == 0 {
		return nil, nil, nil
	}
	x, missing := b.Matrix(rows)
	proba, err := b.classifier.PredictProba(x)
	if err != nil {
		return nil, missing, fmt.Errorf("predict %s: %w", b.Name, err)
	}

	out := make([]risk.Output, len(proba))
	for i, p := range proba {
		out[i] = b.Output(p)
	}
	return out, missing, nil
}

// Output wraps a probability vector in the risk variant matching the
// bundle's target.
func (b *Bundle) Output(proba []float64) risk.Output {
	if b.Target == TargetFlare {
		return risk.FlareProbability{P: b.positiveProbability(proba)}
	}
	return risk.ClassDistribution{Levels: b.Classes, Probabilities: proba}
}

// positiveProbability picks P(class 1), falling back to the last column.
func (b *Bundle) positiveProbability(proba []float64) float64 {
	if len(proba) == 0 {
		return 0
	}
	for i, c := range b.Classes {
		if c == 1 && i < len(proba) {
			return proba[i]
		}
	}
	return proba[len(proba)-1]
}

package features

import (
	"time"

	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/user"
)

// Symptom columns as named by the model.
const (
	ColWheeze          = "wheeze"
	ColCough           = "cough"
	ColChestTightness  = "chestTightness"
	ColExerciseMinutes = "exerciseMinutes"
	ColSymptomScore    = "symptom_score"
)

// LagSuffix marks a column shifted by one row within its group.
const LagSuffix = "_lag1"

// Row is one (user, date) feature row.
type Row struct {
	UserID string
	Date   time.Time
	// Recorded reports whether a check-in exists for the user and date.
	Recorded bool
	Symptoms user.Symptoms
	Env      environment.DayRecord

	userLags map[string]float64
	envExtra map[string]float64
	profile  *user.Profile
	profileF map[string]float64
}

// Numeric implements model.Row. Lookups resolve symptom columns first, then
// derived columns, then environmental and finally profile columns.
func (r *Row) Numeric(col string) (float64, bool) {
	switch col {
	case ColWheeze:
		return r.Symptoms.Wheeze, true
	case ColCough:
		return r.Symptoms.Cough, true
	case ColChestTightness:
		return r.Symptoms.ChestTightness, true
	case ColExerciseMinutes:
		return r.Symptoms.ExerciseMinutes, true
	case ColSymptomScore:
		return r.Symptoms.Score(), true
	}
	if v, ok := r.userLags[col]; ok {
		return v, true
	}
	if v, ok := r.envExtra[col]; ok {
		return v, true
	}
	if v, ok := r.Env.Numeric(col); ok {
		return v, true
	}
	if v, ok := r.profileF[col]; ok {
		return v, true
	}
	return 0, false
}

// Categorical implements model.Row.
func (r *Row) Categorical(col string) (string, bool) {
	if col == "user_id" {
		return r.UserID, true
	}
	if v, ok := r.Env.Categorical(col); ok {
		return v, true
	}
	if r.profile != nil {
		return r.profile.Categorical(col)
	}
	return "", false
}

// Package user holds the profile and check-in records the risk pipeline reads.
//
// Profiles carry free-form attributes collected at onboarding (height, weight,
// asthma severity and similar). Check-ins are daily self-reported symptoms.
// Both are read-only to the pipeline; writes come from ingestion tooling.
package user

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
)

// Repository errors.
var (
	ErrUserNotFound = errors.New("user not found")
)

// Attribute keys with derived features.
const (
	AttrHeight         = "height"
	AttrHeightCM       = "height_cm"
	AttrWeight         = "weight"
	AttrWeightKG       = "weight_kg"
	AttrAsthmaSeverity = "asthma_severity"
)

// FeaturePrefix prefixes every profile-derived model column.
const FeaturePrefix = "profile_"

// Profile is a user's static attributes.
type Profile struct {
	ID         string
	LocationID string
	Latitude   *float64
	Longitude  *float64
	Zip        string
	// Attributes are present-or-absent strings keyed by attribute name.
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Location returns the environmental location the profile maps to. Missing
// coordinates are taken from fallback.
func (p *Profile) Location(fallback environment.Location) environment.Location {
	loc := environment.Location{
		ID:        p.LocationID,
		Latitude:  fallback.Latitude,
		Longitude: fallback.Longitude,
		Zip:       p.Zip,
	}
	if p.Latitude != nil && p.Longitude != nil {
		loc.Latitude, loc.Longitude = *p.Latitude, *p.Longitude
	}
	if loc.ID == "" {
		loc.ID = environment.LocationID(p.Zip, p.Latitude, p.Longitude)
	}
	if loc.ID == environment.UnknownLocationID && fallback.ID != "" {
		loc.ID = fallback.ID
	}
	return loc
}

// Features derives the numeric model columns of the profile.
func (p *Profile) Features() map[string]float64 {
	out := make(map[string]float64, len(p.Attributes)+4)
	for k, v := range p.Attributes {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			out[FeaturePrefix+k] = f
		}
	}

	heightIn, okH := p.heightInches()
	if okH {
		out[FeaturePrefix+"height_in"] = heightIn
	}
	weightLb, okW := p.weightPounds()
	if okW {
		out[FeaturePrefix+"weight_lb"] = weightLb
	}
	if okH && okW && heightIn > 0 {
		out[FeaturePrefix+"bmi"] = 703 * weightLb / (heightIn * heightIn)
	}
	out[FeaturePrefix+"asthma_severity_code"] = SeverityCode(p.Attributes[AttrAsthmaSeverity])
	return out
}

// Categorical returns a raw attribute for a profile_<key> column.
func (p *Profile) Categorical(col string) (string, bool) {
	key, ok := strings.CutPrefix(col, FeaturePrefix)
	if !ok {
		return "", false
	}
	v, ok := p.Attributes[key]
	return v, ok
}

func (p *Profile) heightInches() (float64, bool) {
	if v, ok := ParseHeightInches(p.Attributes[AttrHeight]); ok {
		return v, true
	}
	if cm, err := strconv.ParseFloat(strings.TrimSpace(p.Attributes[AttrHeightCM]), 64); err == nil && cm > 0 {
		return cm / 2.54, true
	}
	return 0, false
}

func (p *Profile) weightPounds() (float64, bool) {
	if v, ok := ParseWeightPounds(p.Attributes[AttrWeight]); ok {
		return v, true
	}
	if kg, err := strconv.ParseFloat(strings.TrimSpace(p.Attributes[AttrWeightKG]), 64); err == nil && kg > 0 {
		return kg * 2.20462, true
	}
	return 0, false
}

// ParseHeightInches parses feet'inches notation such as 5'10" into inches.
func ParseHeightInches(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
	feet, rest, found := strings.Cut(s, "'")
	if !found {
		return 0, false
	}
	f, err := strconv.ParseFloat(feet, 64)
	if err != nil {
		return 0, false
	}
	rest = strings.TrimSpace(strings.ReplaceAll(rest, `"`, ""))
	if rest == "" {
		rest = "0"
	}
	in, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return f*12 + in, true
}

// ParseWeightPounds parses a weight such as "150 lbs" into pounds.
func ParseWeightPounds(s string) (float64, bool) {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "lbs", "")
	s = strings.ReplaceAll(s, "lb", "")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// SeverityCode maps an asthma severity label to its ordinal code.
func SeverityCode(severity string) float64 {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "mild":
		return 1
	case "moderate":
		return 2
	case "severe":
		return 3
	}
	return 0
}

// Symptoms are the self-reported values of one check-in.
type Symptoms struct {
	Wheeze          float64
	Cough           float64
	ChestTightness  float64
	ExerciseMinutes float64
}

// Score is the composite symptom score.
func (s Symptoms) Score() float64 {
	return s.Wheeze + s.Cough + s.ChestTightness
}

// CheckIn is one user's symptom report for one date.
type CheckIn struct {
	UserID     string
	Date       time.Time
	Symptoms   Symptoms
	RecordedAt time.Time
}

type checkInKey struct {
	userID string
	date   time.Time
}

func keyOf(c CheckIn) checkInKey {
	return checkInKey{userID: c.UserID, date: calendar.Day(c.Date)}
}

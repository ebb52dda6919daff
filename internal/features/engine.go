// Package features joins environmental records, profiles and check-ins into
// model feature rows with grouped lag and rolling-window columns.
package features

import (
	"sort"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/user"
)

// Mode selects how rows without a predecessor are treated.
type Mode int

const (
	// Serving zero-fills lag and rolling columns and never drops rows.
	Serving Mode = iota
	// Training drops rows lacking a predecessor in their user or location group.
	Training
)

func (m Mode) String() string {
	if m == Training {
		return "training"
	}
	return "serving"
}

// Engine builds feature rows.
type Engine struct {
	Mode Mode
	// Fallback supplies coordinates for profiles without any.
	Fallback environment.Location
}

// Enrich crosses every profile with the environmental dates of its location,
// left-joins check-ins on (user, date) and derives the lag columns. Rows are
// returned sorted by user then date.
func (e Engine) Enrich(env []environment.DayRecord, profiles []user.Profile, checkIns []user.CheckIn) []Row {
	byLocation := groupByLocation(env)
	if len(byLocation) == 0 || len(profiles) == 0 {
		return nil
	}
	single := ""
	if len(byLocation) == 1 {
		for id := range byLocation {
			single = id
		}
	}

	reports := make(map[string]map[time.Time]user.Symptoms)
	for _, c := range checkIns {
		days, ok := reports[c.UserID]
		if !ok {
			days = make(map[time.Time]user.Symptoms)
			reports[c.UserID] = days
		}
		days[calendar.Day(c.Date)] = c.Symptoms
	}

	sorted := make([]user.Profile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var out []Row
	seen := make(map[string]bool, len(sorted))
	for i := range sorted {
		p := &sorted[i]
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true

		locID := single
		if locID == "" {
			locID = p.Location(e.Fallback).ID
		}
		arena, ok := byLocation[locID]
		if !ok {
			continue
		}

		profileF := p.Features()
		userRows := make([]Row, len(arena.records))
		for j, rec := range arena.records {
			symptoms, recorded := reports[p.ID][rec.Date]
			userRows[j] = Row{
				UserID:   p.ID,
				Date:     rec.Date,
				Recorded: recorded,
				Symptoms: symptoms,
				Env:      rec,
				envExtra: arena.derived[j],
				profile:  p,
				profileF: profileF,
			}
		}
		addUserLags(userRows)

		if e.Mode == Training && len(userRows) > 0 {
			// The first row of a user is also the first of its location.
			userRows = userRows[1:]
		}
		out = append(out, userRows...)
	}
	return out
}

// Window returns the rows whose date lies in [start, end].
func Window(rows []Row, start, end time.Time) []Row {
	start, end = calendar.Day(start), calendar.Day(end)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func addUserLags(rows []Row) {
	for i := range rows {
		var prev user.Symptoms
		if i > 0 {
			prev = rows[i-1].Symptoms
		}
		rows[i].userLags = map[string]float64{
			ColWheeze + LagSuffix:          prev.Wheeze,
			ColCough + LagSuffix:           prev.Cough,
			ColChestTightness + LagSuffix:  prev.ChestTightness,
			ColExerciseMinutes + LagSuffix: prev.ExerciseMinutes,
			ColSymptomScore + LagSuffix:    prev.Score(),
		}
	}
}

package features

import (
	"sort"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
)

// Environmental derived columns.
const (
	ColTempSwing      = "temp_swing"
	ColPM25Delta      = "pm25_delta"
	ColPM25Lag        = "pm25_lag1"
	ColPM25Roll3      = "pm25_roll3_mean"
	ColPM25Roll7      = "pm25_roll7_mean"
	ColAQILag         = "aqi_lag1"
	ColAQIRoll3       = "aqi_roll3_mean"
	ColAQIRoll7       = "aqi_roll7_mean"
	ColPollenTotal    = "pollen_total"
	ColPollenTotalLag = "pollen_total_lag1"
	ColPM25xHumidity  = "pm25_x_humidity"
	ColPollenxWind    = "pollen_x_wind"
)

type locationArena struct {
	records []environment.DayRecord
	derived []map[string]float64
}

// groupByLocation splits records per location, one per date in date order,
// and derives the environmental lag and rolling columns within each group.
func groupByLocation(env []environment.DayRecord) map[string]*locationArena {
	arenas := make(map[string]*locationArena)
	dates := make(map[string]map[time.Time]bool)
	for _, rec := range env {
		rec.Date = calendar.Day(rec.Date)
		a, ok := arenas[rec.LocationID]
		if !ok {
			a = &locationArena{}
			arenas[rec.LocationID] = a
			dates[rec.LocationID] = make(map[time.Time]bool)
		}
		if dates[rec.LocationID][rec.Date] {
			continue
		}
		dates[rec.LocationID][rec.Date] = true
		a.records = append(a.records, rec)
	}

	for _, a := range arenas {
		sort.SliceStable(a.records, func(i, j int) bool { return a.records[i].Date.Before(a.records[j].Date) })
		a.derived = deriveEnvironment(a.records)
	}
	return arenas
}

func deriveEnvironment(records []environment.DayRecord) []map[string]float64 {
	pm := make([]float64, len(records))
	aqi := make([]float64, len(records))
	pollen := make([]float64, len(records))
	for i := range records {
		pm[i] = records[i].PM25Mean
		aqi[i] = records[i].AQI
		pollen[i] = records[i].PollenTotal()
	}

	out := make([]map[string]float64, len(records))
	for i := range records {
		rec := &records[i]
		out[i] = map[string]float64{
			ColTempSwing:      rec.TempSwing(),
			ColPM25Delta:      delta(pm, i),
			ColPM25Lag:        lag(pm, i),
			ColPM25Roll3:      trailingMean(pm, i, 3),
			ColPM25Roll7:      trailingMean(pm, i, 7),
			ColAQILag:         lag(aqi, i),
			ColAQIRoll3:       trailingMean(aqi, i, 3),
			ColAQIRoll7:       trailingMean(aqi, i, 7),
			ColPollenTotal:    pollen[i],
			ColPollenTotalLag: lag(pollen, i),
			ColPM25xHumidity:  rec.PM25Mean * rec.HumidityMean,
			ColPollenxWind:    pollen[i] * rec.WindMean,
		}
	}
	return out
}

func lag(xs []float64, i int) float64 {
	if i == 0 {
		return 0
	}
	return xs[i-1]
}

func delta(xs []float64, i int) float64 {
	if i == 0 {
		return 0
	}
	return xs[i] - xs[i-1]
}

// trailingMean averages up to n values strictly before i.
func trailingMean(xs []float64, i, n int) float64 {
	if i == 0 {
		return 0
	}
	lo := max(0, i-n)
	sum := 0.0
	for _, v := range xs[lo:i] {
		sum += v
	}
	return sum / float64(i-lo)
}

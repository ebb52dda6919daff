package environment

import (
	"fmt"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// SyntheticSource generates deterministic placeholder records. Values vary
// smoothly over a weekly cycle of the date ordinal so consecutive days differ.
type SyntheticSource struct{}

// Record returns the synthetic record for one date at (lat, lon).
func (SyntheticSource) Record(date time.Time, lat, lon float64) DayRecord {
	j := float64(calendar.Ordinal(date)%7) / 7.0
	pm := 10.0 + 8*j

	rec := DayRecord{
		Date:          date,
		LocationID:    fmt.Sprintf("%.2f-%.2f", lat, lon),
		PM25Mean:      pm,
		PM25Max:       pm * 1.4,
		AQI:           40.0 + 30*j,
		TempMin:       10.0 + 3*j,
		TempMax:       22.0 + 5*j,
		HumidityMean:  55.0 + 20*j,
		WindMean:      5.0 + 5*j,
		Precipitation: 0,
		PressureMean:  PlaceholderPressure,
		PollenTree:    PlaceholderPollen,
		PollenGrass:   PlaceholderPollen,
		PollenWeed:    PlaceholderPollen,
		AllergyTrend:  PlaceholderAllergyTrend,
		Provenance:    ProvenanceSynthetic,
	}
	rec.FillCalendar()
	return rec
}

// Records returns one synthetic record per date from start to end inclusive.
func (s SyntheticSource) Records(loc Location, start, end time.Time) []DayRecord {
	days := calendar.Range(start, end)
	out := make([]DayRecord, 0, len(days))
	for _, d := range days {
		out = append(out, s.Record(d, loc.Latitude, loc.Longitude))
	}
	return out
}

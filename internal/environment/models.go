// Package environment resolves daily environmental records (air quality,
// weather, pollen and calendar context) for a location and date range.
package environment

import (
	"errors"
	"fmt"
	"time"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// Sentinel errors for environment resolution.
var (
	ErrInsufficientData = errors.New("insufficient environmental data")
	ErrProviderFailure  = errors.New("environmental provider failure")
)

// Provenance records which tier produced a DayRecord.
type Provenance string

// Provenance values.
const (
	ProvenancePersisted Provenance = "persisted"
	ProvenanceLive      Provenance = "live"
	ProvenanceSynthetic Provenance = "synthetic"
)

// Placeholder values substituted for fields a source could not supply.
const (
	PlaceholderPM25         = 10.0
	PlaceholderAQI          = 50.0
	PlaceholderTempMin      = 15.0
	PlaceholderTempMax      = 20.0
	PlaceholderHumidity     = 50.0
	PlaceholderWind         = 0.0
	PlaceholderPrecip       = 0.0
	PlaceholderPressure     = 1013.0
	PlaceholderPollen       = 0.0
	PlaceholderAllergyTrend = 50.0
)

// Location identifies where environmental data is resolved for.
type Location struct {
	ID        string
	Latitude  float64
	Longitude float64
	Zip       string
}

// UnknownLocationID identifies records with neither zip code nor coordinates.
const UnknownLocationID = "unknown"

// LocationID derives a stable identifier: zip code first, then rounded
// coordinates, then UnknownLocationID.
func LocationID(zip string, lat, lon *float64) string {
	if zip != "" {
		return "zip_" + zip
	}
	if lat != nil && lon != nil {
		return fmt.Sprintf("%.4f_%.4f", *lat, *lon)
	}
	return UnknownLocationID
}

// NewLocation builds a Location with a derived ID.
func NewLocation(zip string, lat, lon float64) Location {
	return Location{
		ID:        LocationID(zip, &lat, &lon),
		Latitude:  lat,
		Longitude: lon,
		Zip:       zip,
	}
}

// DayRecord is one day of environmental context at one location.
type DayRecord struct {
	Date       time.Time
	LocationID string

	PM25Mean float64
	PM25Max  float64
	AQI      float64

	TempMin       float64
	TempMax       float64
	HumidityMean  float64
	WindMean      float64
	Precipitation float64
	PressureMean  float64

	PollenTree   float64
	PollenGrass  float64
	PollenWeed   float64
	AllergyTrend float64

	DayOfWeek string
	Month     int
	Season    string
	Holiday   bool

	Provenance Provenance
}

// PollenTotal sums the pollen components.
func (r *DayRecord) PollenTotal() float64 {
	return r.PollenTree + r.PollenGrass + r.PollenWeed
}

// TempSwing is the daily temperature range.
func (r *DayRecord) TempSwing() float64 {
	return r.TempMax - r.TempMin
}

// FillCalendar derives the calendar context fields from Date.
func (r *DayRecord) FillCalendar() {
	r.Date = calendar.Day(r.Date)
	r.DayOfWeek = r.Date.Weekday().String()
	r.Month = int(r.Date.Month())
	r.Season = calendar.Season(r.Date.Month())
	r.Holiday = calendar.IsHoliday(r.Date)
}

// Numeric returns the named model column if it is an environmental field.
func (r *DayRecord) Numeric(col string) (float64, bool) {
	switch col {
	case "PM2_5_mean":
		return r.PM25Mean, true
	case "PM2_5_max":
		return r.PM25Max, true
	case "AQI":
		return r.AQI, true
	case "temp_min":
		return r.TempMin, true
	case "temp_max":
		return r.TempMax, true
	case "humidity":
		return r.HumidityMean, true
	case "wind":
		return r.WindMean, true
	case "rain":
		return r.Precipitation, true
	case "pressure":
		return r.PressureMean, true
	case "pollen_tree":
		return r.PollenTree, true
	case "pollen_grass":
		return r.PollenGrass, true
	case "pollen_weed":
		return r.PollenWeed, true
	case "pollen_total":
		return r.PollenTotal(), true
	case "google_trends_allergy":
		return r.AllergyTrend, true
	case "month":
		return float64(r.Month), true
	case "holiday_flag":
		if r.Holiday {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Categorical returns the named categorical column.
func (r *DayRecord) Categorical(col string) (string, bool) {
	switch col {
	case "day_of_week":
		return r.DayOfWeek, true
	case "season":
		return r.Season, true
	case "locationid":
		return r.LocationID, true
	}
	return "", false
}

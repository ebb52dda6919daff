package environment

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/calendar"
)

// Endpoint selects the live service dataset.
type Endpoint string

// Endpoints of the live forecast service.
const (
	EndpointForecast Endpoint = "forecast"
	EndpointArchive  Endpoint = "archive"
)

// WeatherDay is one day of weather aggregates. Nil fields were not reported.
type WeatherDay struct {
	Date          time.Time
	TempMin       *float64
	TempMax       *float64
	HumidityMean  *float64
	WindMean      *float64
	Precipitation *float64
	PressureMean  *float64
}

// AirQualityDay is one day of air quality and pollen aggregates.
type AirQualityDay struct {
	Date        time.Time
	PM25Mean    *float64
	PM25Max     *float64
	AQI         *float64
	PollenTree  *float64
	PollenGrass *float64
	PollenWeed  *float64
}

// PollenDay is one day of pollen counts from a supplementary source.
type PollenDay struct {
	Date  time.Time
	Tree  *float64
	Grass *float64
	Weed  *float64
}

// PollenProvider supplies pollen counts where the live forecast service
// reports none.
type PollenProvider interface {
	FetchPollen(ctx context.Context, lat, lon float64, start, end time.Time) ([]PollenDay, error)
}

// LiveProvider is the live forecast service.
type LiveProvider interface {
	FetchWeather(ctx context.Context, endpoint Endpoint, lat, lon float64, start, end time.Time) ([]WeatherDay, error)
	FetchAirQuality(ctx context.Context, lat, lon float64, start, end time.Time) ([]AirQualityDay, error)
}

// LiveStrategyConfig configures a LiveStrategy.
type LiveStrategyConfig struct {
	Provider LiveProvider
	// Pollen is optional.
	Pollen PollenProvider
	Logger zerolog.Logger
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// LiveStrategy serves ranges from the live forecast service. A weather
// failure fails the tier; an air quality failure degrades to placeholders.
type LiveStrategy struct {
	provider LiveProvider
	pollen   PollenProvider
	logger   zerolog.Logger
	now      func() time.Time
}

// NewLiveStrategy creates a LiveStrategy.
func NewLiveStrategy(cfg LiveStrategyConfig) *LiveStrategy {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &LiveStrategy{
		provider: cfg.Provider,
		pollen:   cfg.Pollen,
		logger:   cfg.Logger.With().Str("component", "environment.live").Logger(),
		now:      cfg.Now,
	}
}

// Name implements Strategy.
func (s *LiveStrategy) Name() string { return string(ProvenanceLive) }

// EndpointFor picks the endpoint serving date d: the forecast endpoint for
// today or later, the archive endpoint for earlier dates.
func (s *LiveStrategy) EndpointFor(d time.Time) Endpoint {
	if calendar.Day(d).Before(calendar.Day(s.now().UTC())) {
		return EndpointArchive
	}
	return EndpointForecast
}

// Segment is a contiguous part of a range served by one endpoint.
type Segment struct {
	Endpoint Endpoint
	Start    time.Time
	End      time.Time
}

// Segments splits [start, end] at today: dates before today go to the
// archive, the rest to the forecast endpoint.
func (s *LiveStrategy) Segments(start, end time.Time) []Segment {
	start, end = calendar.Day(start), calendar.Day(end)
	if end.Before(start) {
		return nil
	}
	today := calendar.Day(s.now().UTC())
	switch {
	case !start.Before(today):
		return []Segment{{EndpointForecast, start, end}}
	case end.Before(today):
		return []Segment{{EndpointArchive, start, end}}
	default:
		return []Segment{
			{EndpointArchive, start, today.AddDate(0, 0, -1)},
			{EndpointForecast, today, end},
		}
	}
}

// Resolve implements Strategy. Ranges spanning today are fetched from both
// endpoints and merged in date order.
func (s *LiveStrategy) Resolve(ctx context.Context, loc Location, start, end time.Time) ([]DayRecord, error) {
	var weather []WeatherDay
	for _, seg := range s.Segments(start, end) {
		days, err := s.provider.FetchWeather(ctx, seg.Endpoint, loc.Latitude, loc.Longitude, seg.Start, seg.End)
		if err != nil {
			return nil, fmt.Errorf("%w: %s weather: %w", ErrProviderFailure, seg.Endpoint, err)
		}
		weather = append(weather, days...)
	}
	if len(weather) == 0 {
		return nil, fmt.Errorf("%w: weather returned no days", ErrInsufficientData)
	}

	aqByDate := make(map[time.Time]AirQualityDay)
	aq, err := s.provider.FetchAirQuality(ctx, loc.Latitude, loc.Longitude, start, end)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("location_id", loc.ID).
			Msg("air quality unavailable, using placeholders")
	}
	for _, d := range aq {
		aqByDate[calendar.Day(d.Date)] = d
	}

	pollenByDate := s.fetchPollen(ctx, loc, start, end)

	out := make([]DayRecord, 0, len(weather))
	for _, w := range weather {
		day := calendar.Day(w.Date)
		a := aqByDate[day]
		if p, ok := pollenByDate[day]; ok {
			a.PollenTree = firstSet(a.PollenTree, p.Tree)
			a.PollenGrass = firstSet(a.PollenGrass, p.Grass)
			a.PollenWeed = firstSet(a.PollenWeed, p.Weed)
		}

		pmMean := valueOr(a.PM25Mean, PlaceholderPM25)
		rec := DayRecord{
			Date:          day,
			LocationID:    loc.ID,
			PM25Mean:      pmMean,
			PM25Max:       valueOr(a.PM25Max, pmMean),
			AQI:           valueOr(a.AQI, PlaceholderAQI),
			TempMin:       valueOr(w.TempMin, PlaceholderTempMin),
			TempMax:       valueOr(w.TempMax, PlaceholderTempMax),
			HumidityMean:  valueOr(w.HumidityMean, PlaceholderHumidity),
			WindMean:      valueOr(w.WindMean, PlaceholderWind),
			Precipitation: valueOr(w.Precipitation, PlaceholderPrecip),
			PressureMean:  valueOr(w.PressureMean, PlaceholderPressure),
			PollenTree:    valueOr(a.PollenTree, PlaceholderPollen),
			PollenGrass:   valueOr(a.PollenGrass, PlaceholderPollen),
			PollenWeed:    valueOr(a.PollenWeed, PlaceholderPollen),
			AllergyTrend:  PlaceholderAllergyTrend,
			Provenance:    ProvenanceLive,
		}
		rec.FillCalendar()
		out = append(out, rec)
	}
	return out, nil
}

func (s *LiveStrategy) fetchPollen(ctx context.Context, loc Location, start, end time.Time) map[time.Time]PollenDay {
	if s.pollen == nil {
		return nil
	}
	days, err := s.pollen.FetchPollen(ctx, loc.Latitude, loc.Longitude, start, end)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("location_id", loc.ID).
			Msg("supplementary pollen unavailable")
		return nil
	}
	out := make(map[time.Time]PollenDay, len(days))
	for _, d := range days {
		out[calendar.Day(d.Date)] = d
	}
	return out
}

func firstSet(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

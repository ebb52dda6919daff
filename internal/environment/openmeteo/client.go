// Package openmeteo implements the live forecast collaborator on top of the
// Open-Meteo forecast, archive and air quality APIs.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "openmeteo"

	// DefaultForecastURL is the forecast API endpoint.
	DefaultForecastURL = "https://api.open-meteo.com/v1/forecast"

	// DefaultArchiveURL is the historical weather API endpoint.
	DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

	// DefaultAirQualityURL is the air quality API endpoint.
	DefaultAirQualityURL = "https://air-quality-api.open-meteo.com/v1/air-quality"
)

var dailyWeatherVars = []string{
	"temperature_2m_min",
	"temperature_2m_max",
	"relative_humidity_2m_mean",
	"wind_speed_10m_mean",
	"precipitation_sum",
	"surface_pressure_mean",
}

var hourlyAirQualityVars = []string{
	"pm2_5",
	"us_aqi",
	"alder_pollen",
	"birch_pollen",
	"olive_pollen",
	"grass_pollen",
	"mugwort_pollen",
	"ragweed_pollen",
}

// ClientConfig holds configuration for the Open-Meteo client.
type ClientConfig struct {
	ForecastURL   string
	ArchiveURL    string
	AirQualityURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an Open-Meteo API client.
type Client struct {
	forecastURL   string
	archiveURL    string
	airQualityURL string
	httpClient    *resilience.Client
	logger        zerolog.Logger
}

var _ environment.LiveProvider = (*Client)(nil)

// NewClient creates a new Open-Meteo client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.ForecastURL == "" {
		cfg.ForecastURL = DefaultForecastURL
	}
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultArchiveURL
	}
	if cfg.AirQualityURL == "" {
		cfg.AirQualityURL = DefaultAirQualityURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		forecastURL:   cfg.ForecastURL,
		archiveURL:    cfg.ArchiveURL,
		airQualityURL: cfg.AirQualityURL,
		httpClient:    httpClient,
		logger:        cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchWeather returns daily weather aggregates for [start, end].
func (c *Client) FetchWeather(ctx context.Context, endpoint environment.Endpoint, lat, lon float64, start, end time.Time) ([]environment.WeatherDay, error) {
	base := c.forecastURL
	if endpoint == environment.EndpointArchive {
		base = c.archiveURL
	}

	params := rangeParams(lat, lon, start, end)
	params.Set("daily", strings.Join(dailyWeatherVars, ","))

	var resp weatherResponse
	if err := c.get(ctx, base, params, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s weather: %w", endpoint, err)
	}

	d := resp.Daily
	days := make([]environment.WeatherDay, 0, len(d.Time))
	for i, ts := range d.Time {
		date, err := calendar.Parse(ts)
		if err != nil {
			return nil, err
		}
		days = append(days, environment.WeatherDay{
			Date:          date,
			TempMin:       at(d.TempMin, i),
			TempMax:       at(d.TempMax, i),
			HumidityMean:  at(d.Humidity, i),
			WindMean:      at(d.Wind, i),
			Precipitation: at(d.Precipitation, i),
			PressureMean:  at(d.Pressure, i),
		})
	}
	return days, nil
}

// FetchAirQuality returns daily air quality and pollen aggregates for
// [start, end], reduced from hourly values.
func (c *Client) FetchAirQuality(ctx context.Context, lat, lon float64, start, end time.Time) ([]environment.AirQualityDay, error) {
	params := rangeParams(lat, lon, start, end)
	params.Set("hourly", strings.Join(hourlyAirQualityVars, ","))

	var resp airQualityResponse
	if err := c.get(ctx, c.airQualityURL, params, &resp); err != nil {
		return nil, fmt.Errorf("fetch air quality: %w", err)
	}

	h := resp.Hourly
	buckets := make(map[string]*dayBucket)
	var order []string
	for i, ts := range h.Time {
		if len(ts) < len(calendar.DateLayout) {
			continue
		}
		key := ts[:len(calendar.DateLayout)]
		b, ok := buckets[key]
		if !ok {
			b = &dayBucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.pm25.add(at(h.PM25, i))
		b.aqi.add(at(h.USAQI, i))
		b.tree.add(sum(at(h.Alder, i), at(h.Birch, i), at(h.Olive, i)))
		b.grass.add(at(h.Grass, i))
		b.weed.add(sum(at(h.Mugwort, i), at(h.Ragweed, i)))
	}

	days := make([]environment.AirQualityDay, 0, len(order))
	for _, key := range order {
		date, err := calendar.Parse(key)
		if err != nil {
			return nil, err
		}
		b := buckets[key]
		days = append(days, environment.AirQualityDay{
			Date:        date,
			PM25Mean:    b.pm25.mean(),
			PM25Max:     b.pm25.maximum(),
			AQI:         b.aqi.maximum(),
			PollenTree:  b.tree.mean(),
			PollenGrass: b.grass.mean(),
			PollenWeed:  b.weed.mean(),
		})
	}
	return days, nil
}

func (c *Client) get(ctx context.Context, base string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Str("url", base).
			Msg("unexpected open-meteo response")
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func rangeParams(lat, lon float64, start, end time.Time) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("start_date", calendar.Format(start))
	params.Set("end_date", calendar.Format(end))
	params.Set("timezone", "UTC")
	return params
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

// sum adds the non-nil values; it is nil when all are nil.
func sum(values ...*float64) *float64 {
	var total float64
	seen := false
	for _, v := range values {
		if v != nil {
			total += *v
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &total
}

type series struct {
	total float64
	max   float64
	n     int
}

func (s *series) add(v *float64) {
	if v == nil {
		return
	}
	if s.n == 0 || *v > s.max {
		s.max = *v
	}
	s.total += *v
	s.n++
}

func (s *series) mean() *float64 {
	if s.n == 0 {
		return nil
	}
	m := s.total / float64(s.n)
	return &m
}

func (s *series) maximum() *float64 {
	if s.n == 0 {
		return nil
	}
	m := s.max
	return &m
}

type dayBucket struct {
	pm25, aqi, tree, grass, weed series
}

// Open-Meteo API response types

type weatherResponse struct {
	Daily struct {
		Time          []string   `json:"time"`
		TempMin       []*float64 `json:"temperature_2m_min"`
		TempMax       []*float64 `json:"temperature_2m_max"`
		Humidity      []*float64 `json:"relative_humidity_2m_mean"`
		Wind          []*float64 `json:"wind_speed_10m_mean"`
		Precipitation []*float64 `json:"precipitation_sum"`
		Pressure      []*float64 `json:"surface_pressure_mean"`
	} `json:"daily"`
}

type airQualityResponse struct {
	Hourly struct {
		Time    []string   `json:"time"`
		PM25    []*float64 `json:"pm2_5"`
		USAQI   []*float64 `json:"us_aqi"`
		Alder   []*float64 `json:"alder_pollen"`
		Birch   []*float64 `json:"birch_pollen"`
		Olive   []*float64 `json:"olive_pollen"`
		Grass   []*float64 `json:"grass_pollen"`
		Mugwort []*float64 `json:"mugwort_pollen"`
		Ragweed []*float64 `json:"ragweed_pollen"`
	} `json:"hourly"`
}

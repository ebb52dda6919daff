// Package ambee supplements live environmental data with Ambee pollen counts,
// which cover regions the Open-Meteo pollen model does not.
package ambee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/airwaycast/airwaycast/internal/calendar"
	"github.com/airwaycast/airwaycast/internal/environment"
	"github.com/airwaycast/airwaycast/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider in the resilience registry.
	ProviderName = "ambee"

	// DefaultBaseURL is the Ambee API base URL.
	DefaultBaseURL = "https://api.ambeedata.com"
)

// ClientConfig holds configuration for the Ambee client.
type ClientConfig struct {
	// APIKey is the Ambee API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Ambee API).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an Ambee API client for pollen data.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

var _ environment.PollenProvider = (*Client)(nil)

// NewClient creates a new Ambee client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger.With().Str("component", "environment.ambee").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// FetchPollen implements environment.PollenProvider. Ranges ending before
// today use the history endpoint, others the forecast endpoint. Readings are
// averaged per calendar day and days outside [start, end] are dropped.
func (c *Client) FetchPollen(ctx context.Context, lat, lon float64, start, end time.Time) ([]environment.PollenDay, error) {
	start, end = calendar.Day(start), calendar.Day(end)

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lng", strconv.FormatFloat(lon, 'f', 6, 64))

	path := "/forecast/pollen/by-lat-lng"
	if end.Before(calendar.Today()) {
		path = "/history/pollen/by-lat-lng"
		q.Set("from", start.Format(time.DateTime))
		q.Set("to", end.Add(24*time.Hour-time.Second).Format(time.DateTime))
	}
	reqURL := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body pollenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	days := toPollenDays(body.Data, start, end)
	c.logger.Debug().
		Int("readings", len(body.Data)).
		Int("days", len(days)).
		Msg("pollen fetched")
	return days, nil
}

type accumulator struct {
	tree, grass, weed float64
	n                 int
}

func toPollenDays(data []pollenData, start, end time.Time) []environment.PollenDay {
	byDay := make(map[time.Time]*accumulator)
	for i := range data {
		day, ok := readingDay(&data[i])
		if !ok || day.Before(start) || day.After(end) {
			continue
		}
		acc := byDay[day]
		if acc == nil {
			acc = &accumulator{}
			byDay[day] = acc
		}
		acc.tree += float64(data[i].Count.TreePollen)
		acc.grass += float64(data[i].Count.GrassPollen)
		acc.weed += float64(data[i].Count.WeedPollen)
		acc.n++
	}

	out := make([]environment.PollenDay, 0, len(byDay))
	for day, acc := range byDay {
		n := float64(acc.n)
		tree, grass, weed := acc.tree/n, acc.grass/n, acc.weed/n
		out = append(out, environment.PollenDay{
			Date:  day,
			Tree:  &tree,
			Grass: &grass,
			Weed:  &weed,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// readingDay extracts the calendar date of a reading. Forecast and history
// responses carry an RFC 3339 timestamp in "time" or "updatedAt".
func readingDay(d *pollenData) (time.Time, bool) {
	for _, s := range []string{d.Time, d.UpdatedAt} {
		if s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return calendar.Day(t.UTC()), true
		}
		if len(s) >= len(calendar.DateLayout) {
			if t, err := calendar.Parse(s[:len(calendar.DateLayout)]); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Ambee API response structures.

type pollenResponse struct {
	Message string       `json:"message"`
	Data    []pollenData `json:"data"`
}

type pollenData struct {
	Count struct {
		GrassPollen int `json:"grass_pollen"`
		TreePollen  int `json:"tree_pollen"`
		WeedPollen  int `json:"weed_pollen"`
	} `json:"Count"`
	UpdatedAt string `json:"updatedAt"`
	Time      string `json:"time"`
}

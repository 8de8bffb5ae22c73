// Package geo resolves place names to coordinates and fetches hourly weather
// for them, producing records the weather forecast kind accepts.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/models"
)

var (
	// ErrLocationNotFound means the geocoder returned no match.
	ErrLocationNotFound = errors.New("location not found")
	// ErrNoWeatherData means the weather service returned no hourly series.
	ErrNoWeatherData = errors.New("no weather data returned")
)

const (
	maxResponseBytes = 4 << 20
	geocodeCacheTTL  = 24 * time.Hour
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	DisplayName string  `json:"display_name,omitempty"`
}

// Client talks to a Nominatim-compatible geocoder and an Open-Meteo-compatible
// forecast API.
type Client struct {
	httpClient   *http.Client
	geocodeURL   string
	weatherURL   string
	userAgent    string
	forecastDays int
	cache        *geocodeCache
	logger       *slog.Logger
}

// NewClient creates a client from the geo configuration.
func NewClient(cfg config.GeoConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		geocodeURL:   cfg.GeocodeURL,
		weatherURL:   cfg.WeatherURL,
		userAgent:    cfg.UserAgent,
		forecastDays: cfg.ForecastDays,
		cache:        newGeocodeCache(geocodeCacheTTL),
		logger:       logger,
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocode returns the best match for query. Matches are cached; misses are not.
func (c *Client) Geocode(ctx context.Context, query string) (Coordinates, error) {
	if coords, ok := c.cache.get(query); ok {
		return coords, nil
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	var places []nominatimPlace
	if err := c.getJSON(ctx, c.geocodeURL, params, &places); err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: %w", query, err)
	}

	if len(places) == 0 {
		return Coordinates{}, ErrLocationNotFound
	}

	lat, err := strconv.ParseFloat(places[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: invalid latitude %q", query, places[0].Lat)
	}
	lon, err := strconv.ParseFloat(places[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode %q: invalid longitude %q", query, places[0].Lon)
	}

	c.logger.Debug("location geocoded", "query", query, "lat", lat, "lon", lon)

	coords := Coordinates{Latitude: lat, Longitude: lon, DisplayName: places[0].DisplayName}
	c.cache.put(query, coords)
	return coords, nil
}

type openMeteoResponse struct {
	Hourly *struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		Humidity    []*float64 `json:"relative_humidity_2m"`
		CloudCover  []*float64 `json:"cloudcover"`
	} `json:"hourly"`
}

// HourlyWeather returns one record per forecast hour with datetime,
// temperature, humidity and cloud_cover. A response without an hourly block
// yields an empty slice.
func (c *Client) HourlyWeather(ctx context.Context, at Coordinates) ([]models.Record, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(at.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(at.Longitude, 'f', -1, 64))
	params.Set("hourly", "temperature_2m,relative_humidity_2m,cloudcover")
	params.Set("forecast_days", strconv.Itoa(c.forecastDays))
	params.Set("timezone", "auto")

	var resp openMeteoResponse
	if err := c.getJSON(ctx, c.weatherURL, params, &resp); err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}

	records := []models.Record{}
	if resp.Hourly == nil {
		return records, nil
	}

	h := resp.Hourly
	for i, ts := range h.Time {
		records = append(records, models.Record{
			"datetime":    ts,
			"temperature": valueAt(h.Temperature, i),
			"humidity":    valueAt(h.Humidity, i),
			"cloud_cover": valueAt(h.CloudCover, i),
		})
	}

	return records, nil
}

// WeatherForLocation geocodes location and fetches its hourly weather. An
// empty series is reported as ErrNoWeatherData.
func (c *Client) WeatherForLocation(ctx context.Context, location string) (Coordinates, []models.Record, error) {
	at, err := c.Geocode(ctx, location)
	if err != nil {
		return Coordinates{}, nil, err
	}

	records, err := c.HourlyWeather(ctx, at)
	if err != nil {
		return at, nil, err
	}
	if len(records) == 0 {
		return at, nil, ErrNoWeatherData
	}

	return at, records, nil
}

// valueAt returns series[i], or nil when the series is short or the value is null.
func valueAt(series []*float64, i int) interface{} {
	if i >= len(series) || series[i] == nil {
		return nil
	}
	return *series[i]
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("geo request finished",
		"host", req.URL.Host,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

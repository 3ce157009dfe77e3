package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"weather-widget/internal/models"
)

const maxErrorBody = 512

// Options are the fixed query parameters sent with every forecast request.
type Options struct {
	APIKey  string
	Units   string
	Exclude []string
}

type Client struct {
	baseURL    string
	opts       Options
	httpClient *http.Client
}

// StatusError is returned when the forecast endpoint answers with a non-200 status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API returned status %d", e.Status)
	}
	return fmt.Sprintf("API returned status %d: %s", e.Status, e.Body)
}

func New(baseURL string, opts Options) *Client {
	return &Client{
		baseURL: baseURL,
		opts:    opts,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Options() Options { return c.opts }

// BuildURL merges the coordinate into opts and encodes them onto base.
func BuildURL(base string, opts Options, coord models.Coordinate) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse forecast url: %w", err)
	}
	q := u.Query()
	if opts.APIKey != "" {
		q.Set("appid", opts.APIKey)
	}
	if opts.Units != "" {
		q.Set("units", opts.Units)
	}
	if len(opts.Exclude) > 0 {
		q.Set("exclude", strings.Join(opts.Exclude, ","))
	}
	q.Set("lat", strconv.FormatFloat(coord.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(coord.Lon, 'f', -1, 64))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Forecast issues a single GET for coord and decodes the body.
func (c *Client) Forecast(ctx context.Context, coord models.Coordinate) (models.ForecastResponse, error) {
	if c.opts.APIKey == "" {
		return sampleForecast(coord, time.Now()), nil
	}

	u, err := BuildURL(c.baseURL, c.opts, coord)
	if err != nil {
		return models.ForecastResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.ForecastResponse{}, fmt.Errorf("build forecast request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ForecastResponse{}, fmt.Errorf("fetching forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.ForecastResponse{}, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out models.ForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.ForecastResponse{}, fmt.Errorf("decoding forecast: %w", err)
	}
	return out, nil
}

// sampleForecast keeps the widget usable without an API key.
func sampleForecast(coord models.Coordinate, now time.Time) models.ForecastResponse {
	icons := []string{"01d", "02d", "03d", "10d", "01d", "04d", "13d", "50d"}
	start := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, time.UTC)

	daily := make([]models.ForecastDay, 0, 8)
	for i := 0; i < 8; i++ {
		lo := 55 + float64((i%4)*2)
		daily = append(daily, models.ForecastDay{
			Dt:        start.AddDate(0, 0, i).Unix(),
			Temp:      models.Temperature{Day: lo + 8, Min: lo, Max: lo + 14},
			Weather:   []models.Condition{{Icon: icons[i]}},
			Humidity:  float64(40 + (i%5)*5),
			WindSpeed: float64(4 + i%3),
			Pressure:  float64(1012 + i%4),
		})
	}

	return models.ForecastResponse{
		Lat:      coord.Lat,
		Lon:      coord.Lon,
		Timezone: "UTC",
		Daily:    daily,
	}
}

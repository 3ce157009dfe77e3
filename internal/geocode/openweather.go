package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"weather-widget/internal/models"
)

const defaultOpenWeatherURL = "https://api.openweathermap.org/geo/1.0/direct"

// OpenWeather uses the OpenWeatherMap direct geocoding API.
type OpenWeather struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func (o *OpenWeather) Geocode(ctx context.Context, text string) (models.LonLat, error) {
	locations, err := o.SearchLocations(ctx, text, 1)
	if err != nil {
		return models.LonLat{}, err
	}
	if len(locations) == 0 {
		return models.LonLat{}, ErrNoResult
	}
	return locations[0].Coordinate().LonLat(), nil
}

func (o *OpenWeather) SearchLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if o.apiKey == "" {
		if city, ok := lookupKnown(query); ok {
			return []models.Location{city}, nil
		}
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("q", query)
	q.Set("limit", fmt.Sprint(limit))
	q.Set("appid", o.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: geocoding API returned status %d", ErrLookup, resp.StatusCode)
	}

	var results []struct {
		Name    string  `json:"name"`
		Country string  `json:"country"`
		State   string  `json:"state"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	locations := make([]models.Location, len(results))
	for i, r := range results {
		locations[i] = models.Location{Name: r.Name, Country: r.Country, State: r.State, Lat: r.Lat, Lon: r.Lon}
	}
	return locations, nil
}

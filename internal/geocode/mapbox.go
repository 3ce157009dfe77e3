package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"weather-widget/internal/models"
)

const defaultMapboxURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Mapbox uses the Mapbox forward geocoding API.
type Mapbox struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type mapboxResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

func (m *Mapbox) Geocode(ctx context.Context, text string) (models.LonLat, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.LonLat{}, ErrNoResult
	}
	if m.token == "" {
		city, ok := lookupKnown(text)
		if !ok {
			return models.LonLat{}, ErrNoResult
		}
		return city.Coordinate().LonLat(), nil
	}

	endpoint := strings.TrimRight(m.baseURL, "/") + "/" + url.PathEscape(text) + ".json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.LonLat{}, fmt.Errorf("build request: %w", err)
	}
	q := req.URL.Query()
	q.Set("access_token", m.token)
	q.Set("limit", "1")
	req.URL.RawQuery = q.Encode()

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return models.LonLat{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.LonLat{}, fmt.Errorf("%w: mapbox returned status %d", ErrLookup, resp.StatusCode)
	}

	var decoded mapboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.LonLat{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	if len(decoded.Features) == 0 {
		return models.LonLat{}, ErrNoResult
	}
	center := decoded.Features[0].Center
	if len(center) != 2 {
		return models.LonLat{}, fmt.Errorf("%w: invalid center for %q", ErrNoResult, text)
	}
	return models.LonLat{center[0], center[1]}, nil
}

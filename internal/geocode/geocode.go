package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"weather-widget/internal/models"
)

var (
	// ErrNoResult means the query resolved to nothing usable.
	ErrNoResult = errors.New("no geocoding result")
	// ErrLookup wraps transport and upstream failures.
	ErrLookup = errors.New("geocoding lookup failed")
)

// Geocoder resolves free text to a [lon, lat] position.
type Geocoder interface {
	Geocode(ctx context.Context, text string) (models.LonLat, error)
}

// New returns the geocoder for provider. An empty key resolves against the
// built-in city table instead of calling upstream.
func New(provider, key, baseURL string) (Geocoder, error) {
	hc := &http.Client{Timeout: 10 * time.Second}
	switch strings.ToLower(provider) {
	case "", "mapbox":
		if baseURL == "" {
			baseURL = defaultMapboxURL
		}
		return &Mapbox{token: key, baseURL: baseURL, httpClient: hc}, nil
	case "openweather":
		if baseURL == "" {
			baseURL = defaultOpenWeatherURL
		}
		return &OpenWeather{apiKey: key, baseURL: baseURL, httpClient: hc}, nil
	default:
		return nil, fmt.Errorf("unknown geocoder provider %q", provider)
	}
}

var knownCities = []models.Location{
	{Name: "San Antonio", Country: "US", State: "Texas", Lat: 29.4241, Lon: -98.4936},
	{Name: "Budapest", Country: "HU", Lat: 47.4979, Lon: 19.0402},
	{Name: "London", Country: "GB", Lat: 51.5074, Lon: -0.1278},
	{Name: "New York", Country: "US", State: "New York", Lat: 40.7128, Lon: -74.0060},
	{Name: "Tokyo", Country: "JP", Lat: 35.6762, Lon: 139.6503},
	{Name: "Paris", Country: "FR", Lat: 48.8566, Lon: 2.3522},
	{Name: "Berlin", Country: "DE", Lat: 52.5200, Lon: 13.4050},
	{Name: "Sydney", Country: "AU", Lat: -33.8688, Lon: 151.2093},
	{Name: "San Francisco", Country: "US", State: "California", Lat: 37.7749, Lon: -122.4194},
	{Name: "Amsterdam", Country: "NL", Lat: 52.3676, Lon: 4.9041},
	{Name: "Vienna", Country: "AT", Lat: 48.2082, Lon: 16.3738},
}

func lookupKnown(text string) (models.Location, bool) {
	q := strings.ToLower(strings.TrimSpace(text))
	for _, city := range knownCities {
		if strings.Contains(strings.ToLower(city.Name), q) {
			return city, true
		}
	}
	return models.Location{}, false
}

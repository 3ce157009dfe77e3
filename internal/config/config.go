package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"weather-widget/internal/models"
)

const (
	DefaultForecastURL = "https://api.openweathermap.org/data/2.5/onecall"
	DefaultIconBase    = "https://openweathermap.org/img/w/"
	DefaultMapStyle    = "mapbox://styles/mapbox/streets-v9"
)

type OpenWeather struct {
	APIKey  string
	BaseURL string
	Units   string
	Exclude []string
}

type Geocoder struct {
	Provider string
	BaseURL  string
}

type Map struct {
	AccessToken string
	Style       string
	Default     models.Coordinate
	Zoom        int
}

type Panel struct {
	Days     int
	IconBase string
}

type Log struct {
	Level  string
	Format string
}

// Config is the settings object handed to every component at startup.
type Config struct {
	Port        string
	OpenWeather OpenWeather
	Geocoder    Geocoder
	Map         Map
	Panel       Panel
	Log         Log
}

var envBindings = map[string][]string{
	"port":                 {"PORT", "WEATHER_WIDGET_PORT"},
	"openweather.api_key":  {"OPENWEATHER_API_KEY", "OPEN_WEATHER_APPID"},
	"openweather.base_url": {"OPENWEATHER_BASE_URL"},
	"openweather.units":    {"OPENWEATHER_UNITS"},
	"openweather.exclude":  {"OPENWEATHER_EXCLUDE"},
	"mapbox.access_token":  {"MAPBOX_ACCESS_TOKEN", "MAPBOX_KEY"},
	"geocoder.provider":    {"GEOCODER_PROVIDER"},
	"geocoder.base_url":    {"GEOCODER_BASE_URL"},
	"map.default_lat":      {"DEFAULT_LAT"},
	"map.default_lon":      {"DEFAULT_LON"},
	"map.zoom":             {"MAP_ZOOM"},
	"map.style":            {"MAP_STYLE"},
	"panel.days":           {"PANEL_DAYS"},
	"panel.icon_base":      {"PANEL_ICON_BASE"},
	"log.level":            {"LOG_LEVEL"},
	"log.format":           {"LOG_FORMAT"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8096")
	v.SetDefault("openweather.api_key", "")
	v.SetDefault("openweather.base_url", DefaultForecastURL)
	v.SetDefault("openweather.units", "imperial")
	v.SetDefault("openweather.exclude", "minutely,hourly")
	v.SetDefault("mapbox.access_token", "")
	v.SetDefault("geocoder.provider", "mapbox")
	v.SetDefault("geocoder.base_url", "")
	v.SetDefault("map.default_lat", 29.4241)
	v.SetDefault("map.default_lon", -98.4936)
	v.SetDefault("map.zoom", 13)
	v.SetDefault("map.style", DefaultMapStyle)
	v.SetDefault("panel.days", 5)
	v.SetDefault("panel.icon_base", DefaultIconBase)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load merges defaults, an optional YAML file, .env and the environment.
// An empty path searches config/ and the working directory for weather-widget.yaml.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env", "error", err)
	}

	v := viper.New()
	setDefaults(v)
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("weather-widget")
		v.AddConfigPath("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := Config{
		Port: strings.TrimSpace(v.GetString("port")),
		OpenWeather: OpenWeather{
			APIKey:  strings.TrimSpace(v.GetString("openweather.api_key")),
			BaseURL: strings.TrimSpace(v.GetString("openweather.base_url")),
			Units:   strings.ToLower(strings.TrimSpace(v.GetString("openweather.units"))),
			Exclude: splitList(v.GetString("openweather.exclude")),
		},
		Geocoder: Geocoder{
			Provider: strings.ToLower(strings.TrimSpace(v.GetString("geocoder.provider"))),
			BaseURL:  strings.TrimSpace(v.GetString("geocoder.base_url")),
		},
		Map: Map{
			AccessToken: strings.TrimSpace(v.GetString("mapbox.access_token")),
			Style:       v.GetString("map.style"),
			Default: models.Coordinate{
				Lat: v.GetFloat64("map.default_lat"),
				Lon: v.GetFloat64("map.default_lon"),
			},
			Zoom: v.GetInt("map.zoom"),
		},
		Panel: Panel{
			Days:     v.GetInt("panel.days"),
			IconBase: v.GetString("panel.icon_base"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GeocoderKey returns the credential for the configured geocoding provider.
func (c Config) GeocoderKey() string {
	if c.Geocoder.Provider == "openweather" {
		return c.OpenWeather.APIKey
	}
	return c.Map.AccessToken
}

func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	switch c.OpenWeather.Units {
	case "standard", "metric", "imperial":
	default:
		errs = append(errs, fmt.Errorf("unsupported units %q", c.OpenWeather.Units))
	}
	switch c.Geocoder.Provider {
	case "mapbox", "openweather":
	default:
		errs = append(errs, fmt.Errorf("unsupported geocoder provider %q", c.Geocoder.Provider))
	}
	if !c.Map.Default.Valid() {
		errs = append(errs, fmt.Errorf("default coordinate %s out of range", c.Map.Default))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, fmt.Errorf("zoom %d out of range 0-22", c.Map.Zoom))
	}
	if c.Panel.Days < 1 || c.Panel.Days > 8 {
		errs = append(errs, fmt.Errorf("panel days %d out of range 1-8", c.Panel.Days))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"weather-widget/internal/geocode"
	"weather-widget/internal/models"
	"weather-widget/internal/output"
	"weather-widget/internal/panel"
	"weather-widget/internal/pipeline"
)

type forecastOptions struct {
	Lat    float64
	Lon    float64
	Query  string
	Format string
}

func newForecastCommand(rt *runtime) *cobra.Command {
	opts := forecastOptions{}
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Run one location cycle and print the weather panels.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(opts.Format, output.FormatHTML, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			start := rt.cfg.Map.Default
			if cmd.Flags().Changed("lat") {
				start.Lat = opts.Lat
			}
			if cmd.Flags().Changed("lon") {
				start.Lon = opts.Lon
			}
			if !start.Valid() {
				return fmt.Errorf("coordinate %s out of range", start)
			}
			return runForecast(cmd, rt, start, opts.Query, format)
		},
	}
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "Latitude; defaults to the configured map centre.")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "Longitude; defaults to the configured map centre.")
	cmd.Flags().StringVar(&opts.Query, "search", "", "Place name to geocode instead of --lat/--lon.")
	cmd.Flags().StringVar(&opts.Format, "format", "html", "Output format: html, json or yaml.")
	return cmd
}

// recordingForecaster keeps the last response so structured output can show
// the days that were rendered.
type recordingForecaster struct {
	pipeline.Forecaster

	mu   sync.Mutex
	last models.ForecastResponse
}

func (f *recordingForecaster) Forecast(ctx context.Context, c models.Coordinate) (models.ForecastResponse, error) {
	resp, err := f.Forecaster.Forecast(ctx, c)
	if err == nil {
		f.mu.Lock()
		f.last = resp
		f.mu.Unlock()
	}
	return resp, err
}

type forecastPayload struct {
	Coordinate models.Coordinate    `json:"coordinate" yaml:"coordinate"`
	Timezone   string               `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Daily      []models.ForecastDay `json:"daily" yaml:"daily"`
}

func runForecast(cmd *cobra.Command, rt *runtime, start models.Coordinate, query string, format output.Format) error {
	geocoder, err := geocode.New(rt.cfg.Geocoder.Provider, rt.cfg.GeocoderKey(), rt.cfg.Geocoder.BaseURL)
	if err != nil {
		return err
	}
	forecaster := &recordingForecaster{Forecaster: newForecaster(rt.cfg)}
	renderer := newRenderer(rt.cfg)
	mapHost := pipeline.NewStaticMap(start)

	var out panel.Buffer
	app := pipeline.New(pipeline.Deps{
		Default:    start,
		Map:        mapHost,
		Geocoder:   geocoder,
		Forecaster: forecaster,
		Renderer:   renderer,
		Panel:      &out,
		Logger:     rt.logger,
	})

	ctx := cmd.Context()
	if query != "" {
		err = app.Search(ctx, query)
	} else {
		err = app.Startup(ctx)
	}
	if err != nil {
		return err
	}

	if format == output.FormatHTML {
		return output.WriteOutput(cmd.OutOrStdout(), string(out.HTML()))
	}

	forecaster.mu.Lock()
	resp := forecaster.last
	forecaster.mu.Unlock()
	text, err := output.RenderPayload(forecastPayload{
		Coordinate: mapHost.MarkerPosition(),
		Timezone:   resp.Timezone,
		Daily:      renderer.Days(resp),
	}, format)
	if err != nil {
		return err
	}
	return output.WriteOutput(cmd.OutOrStdout(), text)
}

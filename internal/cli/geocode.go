package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"weather-widget/internal/geocode"
	"weather-widget/internal/models"
	"weather-widget/internal/output"
)

type geocodePayload struct {
	Query  string        `json:"query" yaml:"query"`
	Center models.LonLat `json:"center" yaml:"center,flow"`
	Lat    float64       `json:"lat" yaml:"lat"`
	Lon    float64       `json:"lon" yaml:"lon"`
}

func newGeocodeCommand(rt *runtime) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "geocode <text>",
		Short: "Resolve a place name to a map position.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := output.ParseFormat(format, output.FormatJSON, output.FormatYAML)
			if err != nil {
				return err
			}
			query := strings.TrimSpace(strings.Join(args, " "))

			geocoder, err := geocode.New(rt.cfg.Geocoder.Provider, rt.cfg.GeocoderKey(), rt.cfg.Geocoder.BaseURL)
			if err != nil {
				return err
			}
			pos, err := geocoder.Geocode(cmd.Context(), query)
			if errors.Is(err, geocode.ErrNoResult) {
				return &exitError{code: 2, err: fmt.Errorf("no results for %q", query)}
			}
			if err != nil {
				return err
			}

			c := pos.Coordinate()
			text, err := output.RenderPayload(geocodePayload{Query: query, Center: pos, Lat: c.Lat, Lon: c.Lon}, f)
			if err != nil {
				return err
			}
			return output.WriteOutput(cmd.OutOrStdout(), text)
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json or yaml.")
	return cmd
}

package models

import "fmt"

// Coordinate is a latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// LonLat returns the coordinate as a [lon, lat] pair for map and geocoder APIs.
func (c Coordinate) LonLat() LonLat { return LonLat{c.Lon, c.Lat} }

// LonLat is a position in [lon, lat] order, as geocoders and map SDKs report it.
type LonLat [2]float64

func (p LonLat) Coordinate() Coordinate { return Coordinate{Lat: p[1], Lon: p[0]} }

type Location struct {
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	State   string  `json:"state,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (l Location) Coordinate() Coordinate { return Coordinate{Lat: l.Lat, Lon: l.Lon} }

type Temperature struct {
	Day   float64 `json:"day" yaml:"day"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
	Night float64 `json:"night,omitempty" yaml:"night,omitempty"`
	Eve   float64 `json:"eve,omitempty" yaml:"eve,omitempty"`
	Morn  float64 `json:"morn,omitempty" yaml:"morn,omitempty"`
}

type Condition struct {
	ID          int    `json:"id,omitempty" yaml:"id,omitempty"`
	Main        string `json:"main,omitempty" yaml:"main,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string `json:"icon" yaml:"icon"`
}

// ForecastDay is one daily summary from the One Call API.
type ForecastDay struct {
	Dt        int64       `json:"dt" yaml:"dt"`
	Temp      Temperature `json:"temp" yaml:"temp"`
	Weather   []Condition `json:"weather" yaml:"weather"`
	Humidity  float64     `json:"humidity" yaml:"humidity"`
	WindSpeed float64     `json:"wind_speed" yaml:"wind_speed"`
	Pressure  float64     `json:"pressure" yaml:"pressure"`
}

// Icon returns the icon code of the primary weather condition, or "".
func (d ForecastDay) Icon() string {
	if len(d.Weather) == 0 {
		return ""
	}
	return d.Weather[0].Icon
}

type ForecastResponse struct {
	Lat            float64       `json:"lat" yaml:"lat"`
	Lon            float64       `json:"lon" yaml:"lon"`
	Timezone       string        `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	TimezoneOffset int           `json:"timezone_offset" yaml:"timezone_offset"`
	Daily          []ForecastDay `json:"daily" yaml:"daily"`
}

// Package pipeline drives the location → forecast → panel cycle for one page.
//
// Every entry point yields exactly one coordinate and at most one forecast
// request. Cycles are not serialised: concurrent cycles race on the network,
// and only the most recently dispatched one may replace the panel.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"weather-widget/internal/models"
	"weather-widget/internal/observability"
)

// ErrStale marks a response superseded by a newer dispatch.
var ErrStale = errors.New("superseded by a newer location")

// ErrNoLocation is returned by Retry before any cycle ran.
var ErrNoLocation = errors.New("no location to retry")

type Forecaster interface {
	Forecast(ctx context.Context, c models.Coordinate) (models.ForecastResponse, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, text string) (models.LonLat, error)
}

type Renderer interface {
	Render(w io.Writer, resp models.ForecastResponse) error
}

type Container interface {
	Replace(ctx context.Context, html template.HTML) error
}

// MapHost owns the visible map and the draggable marker.
type MapHost interface {
	Recenter(ctx context.Context, c models.Coordinate) error
	MoveMarker(ctx context.Context, c models.Coordinate) error
	MarkerPosition() models.Coordinate
}

// Failure describes a cycle that did not update the panel.
type Failure struct {
	Op         string
	Coordinate models.Coordinate
	Query      string
	Err        error
}

func (f *Failure) Error() string {
	if f.Query != "" {
		return fmt.Sprintf("%s %q: %v", f.Op, f.Query, f.Err)
	}
	return fmt.Sprintf("%s %s: %v", f.Op, f.Coordinate, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

type Deps struct {
	Default    models.Coordinate
	Map        MapHost
	Geocoder   Geocoder
	Forecaster Forecaster
	Renderer   Renderer
	Panel      Container
	// OnError receives every failure except stale responses.
	OnError func(ctx context.Context, f *Failure)
	Logger  *slog.Logger
}

// App is the per-page aggregate read by every cycle.
type App struct {
	deps   Deps
	logger *slog.Logger

	seq atomic.Uint64

	mu   sync.Mutex
	last *models.Coordinate
}

func New(deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{deps: deps, logger: logger}
}

// Startup runs the cycle for the configured default coordinate.
func (a *App) Startup(ctx context.Context) error {
	return a.Refresh(ctx, a.deps.Default)
}

// DragEnd recentres the map on the marker and refreshes for its position.
func (a *App) DragEnd(ctx context.Context) error {
	pos := a.deps.Map.MarkerPosition()
	if err := a.deps.Map.Recenter(ctx, pos); err != nil {
		return a.fail(ctx, &Failure{Op: "recenter", Coordinate: pos, Err: err})
	}
	return a.Refresh(ctx, pos)
}

// Search geocodes text and, on success, moves map and marker before refreshing.
// A failed lookup leaves map, marker and panel untouched.
func (a *App) Search(ctx context.Context, text string) error {
	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline.search")
	defer span.End()

	pos, err := a.deps.Geocoder.Geocode(ctx, text)
	if err != nil {
		observability.GeocodeRequests.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		return a.fail(ctx, &Failure{Op: "geocode", Query: text, Err: err})
	}
	observability.GeocodeRequests.WithLabelValues("ok").Inc()

	c := pos.Coordinate()
	span.SetAttributes(attribute.Float64("geo.lat", c.Lat), attribute.Float64("geo.lon", c.Lon))
	if err := a.deps.Map.Recenter(ctx, c); err != nil {
		return a.fail(ctx, &Failure{Op: "recenter", Coordinate: c, Err: err})
	}
	if err := a.deps.Map.MoveMarker(ctx, c); err != nil {
		return a.fail(ctx, &Failure{Op: "recenter", Coordinate: c, Err: err})
	}
	return a.Refresh(ctx, c)
}

// Retry re-runs the cycle for the last coordinate a cycle was dispatched for.
func (a *App) Retry(ctx context.Context) error {
	a.mu.Lock()
	last := a.last
	a.mu.Unlock()
	if last == nil {
		return ErrNoLocation
	}
	return a.Refresh(ctx, *last)
}

// Refresh fetches the forecast for c and replaces the panel if this is still
// the latest dispatched cycle when the response arrives.
func (a *App) Refresh(ctx context.Context, c models.Coordinate) error {
	id := a.dispatch(c)

	ctx, span := otel.Tracer("pipeline").Start(ctx, "pipeline.refresh")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("pipeline.seq", int64(id)),
		attribute.Float64("geo.lat", c.Lat),
		attribute.Float64("geo.lon", c.Lon),
	)

	resp, err := a.deps.Forecaster.Forecast(ctx, c)
	if err != nil {
		observability.ForecastRequests.WithLabelValues("error").Inc()
		span.SetStatus(codes.Error, err.Error())
		if !a.isLatest(id) {
			return a.stale(id, c)
		}
		return a.fail(ctx, &Failure{Op: "forecast", Coordinate: c, Err: err})
	}
	observability.ForecastRequests.WithLabelValues("ok").Inc()

	var buf bytes.Buffer
	if err := a.deps.Renderer.Render(&buf, resp); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return a.fail(ctx, &Failure{Op: "render", Coordinate: c, Err: err})
	}

	a.mu.Lock()
	if !a.isLatest(id) {
		a.mu.Unlock()
		return a.stale(id, c)
	}
	err = a.deps.Panel.Replace(ctx, template.HTML(buf.String()))
	a.mu.Unlock()
	if err != nil {
		return a.fail(ctx, &Failure{Op: "render", Coordinate: c, Err: err})
	}
	a.logger.Debug("panel updated", "seq", id, "coord", c.String(), "days", len(resp.Daily))
	return nil
}

// Seq returns the sequence number of the latest dispatched cycle.
func (a *App) Seq() uint64 { return a.seq.Load() }

func (a *App) dispatch(c models.Coordinate) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = &c
	return a.seq.Add(1)
}

func (a *App) isLatest(id uint64) bool { return a.seq.Load() == id }

func (a *App) stale(id uint64, c models.Coordinate) error {
	observability.StaleResponses.Inc()
	a.logger.Debug("discarding stale forecast", "seq", id, "latest", a.seq.Load(), "coord", c.String())
	return ErrStale
}

func (a *App) fail(ctx context.Context, f *Failure) error {
	a.logger.Warn("location pipeline failed", "op", f.Op, "error", f.Err)
	if a.deps.OnError != nil {
		a.deps.OnError(ctx, f)
	}
	return f
}

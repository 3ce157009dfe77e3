package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"weather-widget/internal/config"
	"weather-widget/internal/geocode"
	"weather-widget/internal/models"
	"weather-widget/internal/panel"
	"weather-widget/internal/pipeline"
	"weather-widget/web"
)

const socketPath = "/ws"

type Server struct {
	cfg        config.Config
	forecaster pipeline.Forecaster
	geocoder   pipeline.Geocoder
	renderer   *panel.Renderer
	sessions   http.Handler
}

func NewServer(cfg config.Config, forecaster pipeline.Forecaster, geocoder pipeline.Geocoder, renderer *panel.Renderer, sessions http.Handler) *Server {
	return &Server{cfg: cfg, forecaster: forecaster, geocoder: geocoder, renderer: renderer, sessions: sessions}
}

// RegisterRoutes mounts the page, its assets, the API and the page socket.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(web.Static()))))
	r.Get(socketPath, s.sessions.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/settings", s.handleSettings)
		r.Get("/forecast", s.handleForecast)
		r.Get("/panels", s.handlePanels)
		r.Get("/geocode", s.handleGeocode)
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type pageSettings struct {
	AccessToken string            `json:"access_token"`
	Style       string            `json:"style"`
	Center      models.Coordinate `json:"center"`
	Zoom        int               `json:"zoom"`
	SocketPath  string            `json:"socket_path"`
	Days        int               `json:"days"`
}

func (s *Server) settings() pageSettings {
	return pageSettings{
		AccessToken: s.cfg.Map.AccessToken,
		Style:       s.cfg.Map.Style,
		Center:      s.cfg.Map.Default,
		Zoom:        s.cfg.Map.Zoom,
		SocketPath:  socketPath,
		Days:        s.renderer.MaxDays,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.Page.Execute(w, s.settings()); err != nil {
		slog.Error("failed to render page", "error", err)
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.settings())
}

func parseCoordinate(r *http.Request) (models.Coordinate, error) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		return models.Coordinate{}, errors.New("lat and lon parameters are required")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return models.Coordinate{}, errors.New("invalid lat parameter")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return models.Coordinate{}, errors.New("invalid lon parameter")
	}
	c := models.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return models.Coordinate{}, fmt.Errorf("coordinate %s out of range", c)
	}
	return c, nil
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	resp, err := s.forecaster.Forecast(r.Context(), c)
	if err != nil {
		slog.Warn("forecast failed", "coord", c.String(), "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch weather"})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePanels runs one headless pipeline cycle and returns the panel markup.
func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	c, err := parseCoordinate(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var out panel.Buffer
	app := pipeline.New(pipeline.Deps{
		Default:    c,
		Map:        pipeline.NewStaticMap(c),
		Geocoder:   s.geocoder,
		Forecaster: s.forecaster,
		Renderer:   s.renderer,
		Panel:      &out,
	})
	if err := app.Refresh(r.Context(), c); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch weather"})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.HTML()))
}

type geocodeResponse struct {
	Center models.LonLat `json:"center"`
	Lat    float64       `json:"lat"`
	Lon    float64       `json:"lon"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query parameter 'q' is required"})
		return
	}

	pos, err := s.geocoder.Geocode(r.Context(), query)
	switch {
	case errors.Is(err, geocode.ErrNoResult):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "location not found"})
		return
	case err != nil:
		slog.Warn("geocode failed", "query", query, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to search locations"})
		return
	}

	c := pos.Coordinate()
	writeJSON(w, http.StatusOK, geocodeResponse{Center: pos, Lat: c.Lat, Lon: c.Lon})
}

package session

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"weather-widget/internal/geocode"
	"weather-widget/internal/models"
	"weather-widget/internal/panel"
	"weather-widget/internal/pipeline"
)

var sanAntonio = models.Coordinate{Lat: 29.4241, Lon: -98.4936}

type recordingForecaster struct {
	mu    sync.Mutex
	calls []models.Coordinate
}

func (f *recordingForecaster) Forecast(_ context.Context, c models.Coordinate) (models.ForecastResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return models.ForecastResponse{Daily: []models.ForecastDay{{
		Dt:        1700000000,
		Temp:      models.Temperature{Min: c.Lat, Max: c.Lat * 2},
		Weather:   []models.Condition{{Icon: "01d"}},
		Humidity:  40,
		WindSpeed: 5,
		Pressure:  1015,
	}}}, nil
}

func (f *recordingForecaster) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type cityGeocoder struct{}

func (cityGeocoder) Geocode(_ context.Context, text string) (models.LonLat, error) {
	if text == "Vienna" {
		return models.LonLat{16.3738, 48.2082}, nil
	}
	return models.LonLat{}, geocode.ErrNoResult
}

func dial(t *testing.T, fc *recordingForecaster) *websocket.Conn {
	t.Helper()
	h := NewHandler(pipeline.Deps{
		Default:    sanAntonio,
		Geocoder:   cityGeocoder{},
		Forecaster: fc,
		Renderer:   panel.NewRenderer(5, "https://openweathermap.org/img/w/", "imperial"),
	})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws: %v", err)
	}
	var out Outbound
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return out
}

func write(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write ws: %v", err)
	}
}

func TestSessionStartupSendsPanels(t *testing.T) {
	conn := dial(t, &recordingForecaster{})

	msg := read(t, conn)
	if msg.Type != "panels" {
		t.Fatalf("expected panels, got %+v", msg)
	}
	if strings.Count(msg.HTML, `<article class="weather-panel">`) != 1 {
		t.Fatalf("expected one panel, got %q", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "29.4241° / 58.8482°") {
		t.Fatalf("expected default coordinate forecast, got %q", msg.HTML)
	}
	if msg.Seq != 1 {
		t.Fatalf("expected seq 1, got %d", msg.Seq)
	}
}

func TestSessionDragEnd(t *testing.T) {
	fc := &recordingForecaster{}
	conn := dial(t, fc)
	_ = read(t, conn)

	write(t, conn, map[string]any{"type": "dragend", "lat": 30.0, "lon": -97.0})

	recenter := read(t, conn)
	if recenter.Type != "recenter" || recenter.Lat != 30 || recenter.Lon != -97 {
		t.Fatalf("expected recenter to 30,-97, got %+v", recenter)
	}
	panels := read(t, conn)
	if panels.Type != "panels" || !strings.Contains(panels.HTML, "30° / 60°") {
		t.Fatalf("expected panels for dragged marker, got %+v", panels)
	}
	if fc.count() != 2 {
		t.Fatalf("expected 2 forecast requests, got %d", fc.count())
	}
}

func TestSessionSearch(t *testing.T) {
	conn := dial(t, &recordingForecaster{})
	_ = read(t, conn)

	write(t, conn, Inbound{Type: "search", Text: "Vienna"})

	if msg := read(t, conn); msg.Type != "recenter" || msg.Lat != 48.2082 {
		t.Fatalf("expected recenter to Vienna, got %+v", msg)
	}
	if msg := read(t, conn); msg.Type != "marker" || msg.Lon != 16.3738 {
		t.Fatalf("expected marker move to Vienna, got %+v", msg)
	}
	if msg := read(t, conn); msg.Type != "panels" || !strings.Contains(msg.HTML, "48.2082° / 96.4164°") {
		t.Fatalf("expected Vienna panels, got %+v", msg)
	}
}

func TestSessionUnresolvableSearch(t *testing.T) {
	fc := &recordingForecaster{}
	conn := dial(t, fc)
	_ = read(t, conn)

	write(t, conn, Inbound{Type: "search", Text: "Atlantis"})

	msg := read(t, conn)
	if msg.Type != "error" || msg.Op != "geocode" || msg.Retry {
		t.Fatalf("expected non-retryable geocode error, got %+v", msg)
	}
	if !strings.Contains(msg.Message, "Atlantis") {
		t.Fatalf("expected query in message, got %q", msg.Message)
	}
	if fc.count() != 1 {
		t.Fatalf("expected no forecast request beyond startup, got %d", fc.count())
	}
}

func TestSessionRejectsBadInput(t *testing.T) {
	conn := dial(t, &recordingForecaster{})
	_ = read(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := read(t, conn); msg.Type != "error" || msg.Op != "input" {
		t.Fatalf("expected input error, got %+v", msg)
	}

	write(t, conn, map[string]any{"type": "dragend", "lat": 123.0, "lon": 0.0})
	if msg := read(t, conn); msg.Type != "error" || !strings.Contains(msg.Message, "out of range") {
		t.Fatalf("expected range error, got %+v", msg)
	}

	write(t, conn, Inbound{Type: "teleport"})
	if msg := read(t, conn); msg.Type != "error" || !strings.Contains(msg.Message, "teleport") {
		t.Fatalf("expected unknown type error, got %+v", msg)
	}
}

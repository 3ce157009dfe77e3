// Package session bridges a browser page to a location pipeline over a websocket.
//
// The page owns the map, the marker and the #weather-panels element; the
// session stands in for them on the server by turning pipeline calls into
// outbound messages and inbound events into pipeline entry points.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"weather-widget/internal/geocode"
	"weather-widget/internal/models"
	"weather-widget/internal/observability"
	"weather-widget/internal/pipeline"
)

const (
	sendBuffer   = 16
	readLimit    = 4096
	pongWait     = 60 * time.Second
	pingInterval = 25 * time.Second
	writeWait    = 5 * time.Second
)

// Inbound is a page event.
type Inbound struct {
	Type string   `json:"type"`
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
	Text string   `json:"text,omitempty"`
}

// Outbound is a command for the page.
type Outbound struct {
	Type    string  `json:"type"`
	Lat     float64 `json:"lat,omitempty"`
	Lon     float64 `json:"lon,omitempty"`
	HTML    string  `json:"html,omitempty"`
	Seq     uint64  `json:"seq,omitempty"`
	Op      string  `json:"op,omitempty"`
	Message string  `json:"message,omitempty"`
	Retry   bool    `json:"retry,omitempty"`
}

// Handler upgrades page connections and gives each one its own pipeline.
// Map, Panel and OnError in deps are replaced per session.
type Handler struct {
	upgrader websocket.Upgrader
	deps     pipeline.Deps
	logger   *slog.Logger
}

func NewHandler(deps pipeline.Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		deps:   deps,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	s := h.newSession(context.WithoutCancel(r.Context()), conn)
	observability.SessionsActive.Inc()
	defer observability.SessionsActive.Dec()

	s.logger.Info("session opened", "remote", r.RemoteAddr)
	go s.writePump()
	s.spawn(s.app.Startup)
	s.readPump()
	s.close()
	s.logger.Info("session closed")
}

// Session is one connected page.
type Session struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	app    *pipeline.App
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	marker models.Coordinate
}

func (h *Handler) newSession(parent context.Context, conn *websocket.Conn) *Session {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	s := &Session{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: h.logger.With("session", id),
		ctx:    ctx,
		cancel: cancel,
		marker: h.deps.Default,
	}

	deps := h.deps
	deps.Map = s
	deps.Panel = s
	deps.OnError = s.reportFailure
	deps.Logger = s.logger
	s.app = pipeline.New(deps)
	return s
}

func (s *Session) ID() string { return s.id }

// Recenter asks the page to centre the map on c.
func (s *Session) Recenter(ctx context.Context, c models.Coordinate) error {
	return s.enqueue(ctx, Outbound{Type: "recenter", Lat: c.Lat, Lon: c.Lon})
}

// MoveMarker asks the page to move the marker to c.
func (s *Session) MoveMarker(ctx context.Context, c models.Coordinate) error {
	s.mu.Lock()
	s.marker = c
	s.mu.Unlock()
	return s.enqueue(ctx, Outbound{Type: "marker", Lat: c.Lat, Lon: c.Lon})
}

// MarkerPosition is the last position the page reported or was sent.
func (s *Session) MarkerPosition() models.Coordinate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker
}

// Replace swaps the whole content of the page's panel container.
func (s *Session) Replace(ctx context.Context, html template.HTML) error {
	return s.enqueue(ctx, Outbound{Type: "panels", HTML: string(html), Seq: s.app.Seq()})
}

func (s *Session) reportFailure(ctx context.Context, f *pipeline.Failure) {
	msg := Outbound{Type: "error", Op: f.Op}
	switch f.Op {
	case "geocode":
		if errors.Is(f.Err, geocode.ErrNoResult) {
			msg.Message = fmt.Sprintf("No results for %q.", f.Query)
		} else {
			msg.Message = "The location search is unavailable right now."
			msg.Retry = true
		}
	case "forecast", "render":
		msg.Message = "Could not load the forecast."
		msg.Retry = true
	default:
		msg.Message = "Could not move the map."
	}
	if err := s.enqueue(ctx, msg); err != nil {
		s.logger.Debug("dropping error report", "error", err)
	}
}

func (s *Session) enqueue(ctx context.Context, msg Outbound) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", msg.Type, err)
	}
	select {
	case s.send <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// spawn runs fn on its own goroutine; cycles are allowed to race.
func (s *Session) spawn(fn func(context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(s.ctx); err != nil && !errors.Is(err, pipeline.ErrStale) {
			s.logger.Debug("pipeline run ended with error", "error", err)
		}
	}()
}

func (s *Session) handle(in Inbound) {
	switch in.Type {
	case "dragend":
		if in.Lat == nil || in.Lon == nil {
			s.rejectInput("dragend requires lat and lon")
			return
		}
		pos := models.Coordinate{Lat: *in.Lat, Lon: *in.Lon}
		if !pos.Valid() {
			s.rejectInput(fmt.Sprintf("coordinate %s out of range", pos))
			return
		}
		s.mu.Lock()
		s.marker = pos
		s.mu.Unlock()
		s.spawn(s.app.DragEnd)
	case "search":
		text := in.Text
		s.spawn(func(ctx context.Context) error { return s.app.Search(ctx, text) })
	case "retry":
		s.spawn(s.app.Retry)
	default:
		s.rejectInput(fmt.Sprintf("unknown message type %q", in.Type))
	}
}

func (s *Session) rejectInput(reason string) {
	s.logger.Debug("rejecting page message", "reason", reason)
	_ = s.enqueue(s.ctx, Outbound{Type: "error", Op: "input", Message: reason})
}

func (s *Session) readPump() {
	s.conn.SetReadLimit(readLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in Inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.rejectInput("invalid message format")
			continue
		}
		s.handle(in)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = s.conn.Close()
				return
			}
		case <-s.ctx.Done():
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) close() {
	s.cancel()
	s.wg.Wait()
	_ = s.conn.Close()
}

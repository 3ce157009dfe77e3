package pipeline

import (
	"context"
	"sync"

	"weather-widget/internal/models"
)

// StaticMap is an in-memory MapHost for headless runs.
type StaticMap struct {
	mu     sync.Mutex
	center models.Coordinate
	marker models.Coordinate
}

func NewStaticMap(start models.Coordinate) *StaticMap {
	return &StaticMap{center: start, marker: start}
}

func (m *StaticMap) Recenter(_ context.Context, c models.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.center = c
	return nil
}

func (m *StaticMap) MoveMarker(_ context.Context, c models.Coordinate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marker = c
	return nil
}

func (m *StaticMap) MarkerPosition() models.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marker
}

func (m *StaticMap) Center() models.Coordinate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center
}

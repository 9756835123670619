package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// ErrNotFound is returned when no durable row exists for the id.
var ErrNotFound = errors.New("storage: trip not found")

// TripStore defines durable persistence for trips from MATCHED onward.
// Trips that never match stay ephemeral and never reach this store.
type TripStore interface {
	InsertTrip(ctx context.Context, t *models.Trip) error
	UpdateTrip(ctx context.Context, t *models.Trip) error
	GetTrip(ctx context.Context, id string) (*models.Trip, error)
	// AppendEvent adds one audit row; events are never mutated or deleted.
	AppendEvent(ctx context.Context, e *models.TripEvent) error
	Events(ctx context.Context, tripID string) ([]models.TripEvent, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	trips  map[string]*models.Trip
	events []models.TripEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trips: make(map[string]*models.Trip)}
}

func (m *MemoryStore) InsertTrip(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateTrip(_ context.Context, t *models.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trips[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.trips[t.ID] = &cp
	return nil
}

func (m *MemoryStore) GetTrip(_ context.Context, id string) (*models.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trips[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, e *models.TripEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *MemoryStore) Events(_ context.Context, tripID string) ([]models.TripEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TripEvent
	for _, e := range m.events {
		if e.TripID == tripID {
			out = append(out, e)
		}
	}
	return out, nil
}

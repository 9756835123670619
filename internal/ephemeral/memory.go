package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// MemoryStore is an in-process Store for tests and single-node local runs.
// Expiry is checked lazily on read, which is enough for both uses.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]memEntry
	sets     map[string]memSetEntry
	statuses map[string]models.DriverAvailability
}

type memEntry struct {
	value     string
	trip      *models.Trip
	expiresAt time.Time
}

type memSetEntry struct {
	members   map[string]struct{}
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   make(map[string]memEntry),
		sets:     make(map[string]memSetEntry),
		statuses: make(map[string]models.DriverAvailability),
	}
}

func (e memEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func (m *MemoryStore) get(key string) (memEntry, bool) {
	e, ok := m.values[key]
	if !ok || e.expired() {
		delete(m.values, key)
		return memEntry{}, false
	}
	return e, true
}

func (m *MemoryStore) GetTrip(_ context.Context, tripID string) (*models.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(tripKey(tripID))
	if !ok || e.trip == nil {
		return nil, ErrNotFound
	}
	cp := *e.trip
	return &cp, nil
}

func (m *MemoryStore) PutTrip(_ context.Context, trip *models.Trip, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *trip
	m.values[tripKey(trip.ID)] = memEntry{trip: &cp, expiresAt: expiry(ttl)}
	return nil
}

func (m *MemoryStore) DeleteTrip(_ context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, tripKey(tripID))
	return nil
}

func (m *MemoryStore) SetPassengerTrip(_ context.Context, passengerID, tripID string, ttl time.Duration) error {
	return m.setValue(passengerKey(passengerID), tripID, ttl)
}

func (m *MemoryStore) PassengerTrip(_ context.Context, passengerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.get(passengerKey(passengerID))
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) DeletePassengerTrip(_ context.Context, passengerID string) error {
	return m.deleteValue(passengerKey(passengerID))
}

func (m *MemoryStore) SetDriverTrip(_ context.Context, driverID, tripID string, ttl time.Duration) error {
	return m.setValue(driverTripKey(driverID), tripID, ttl)
}

func (m *MemoryStore) DeleteDriverTrip(_ context.Context, driverID string) error {
	return m.deleteValue(driverTripKey(driverID))
}

func (m *MemoryStore) PutNotifiedDrivers(_ context.Context, tripID string, driverIDs []string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	members := make(map[string]struct{}, len(driverIDs))
	for _, id := range driverIDs {
		members[id] = struct{}{}
	}
	m.sets[notifiedKey(tripID)] = memSetEntry{members: members, expiresAt: expiry(ttl)}
	return nil
}

func (m *MemoryStore) NotifiedDrivers(_ context.Context, tripID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sets[notifiedKey(tripID)]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		delete(m.sets, notifiedKey(tripID))
		return nil, nil
	}
	out := make([]string, 0, len(e.members))
	for id := range e.members {
		out = append(out, id)
	}
	return out, nil
}

func (m *MemoryStore) DeleteNotifiedDrivers(_ context.Context, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, notifiedKey(tripID))
	return nil
}

func (m *MemoryStore) SetTimeoutFlag(_ context.Context, tripID string, ttl time.Duration) error {
	return m.setValue(timeoutKey(tripID), "1", ttl)
}

func (m *MemoryStore) TimeoutFlagSet(_ context.Context, tripID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.get(timeoutKey(tripID))
	return ok, nil
}

func (m *MemoryStore) ClearTimeoutFlag(_ context.Context, tripID string) error {
	return m.deleteValue(timeoutKey(tripID))
}

func (m *MemoryStore) AcquireLock(_ context.Context, tripID, token string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.get(lockKey(tripID)); held {
		return false, nil
	}
	m.values[lockKey(tripID)] = memEntry{value: token, expiresAt: expiry(ttl)}
	return true, nil
}

func (m *MemoryStore) ReleaseLock(_ context.Context, tripID, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.get(lockKey(tripID)); ok && e.value == token {
		delete(m.values, lockKey(tripID))
	}
	return nil
}

func (m *MemoryStore) SetBusy(_ context.Context, driverID, tripID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	av := m.statuses[driverID]
	av.DriverID = driverID
	av.Available = false
	av.CurrentTripID = tripID
	av.Updated = time.Now()
	m.statuses[driverID] = av
	return nil
}

func (m *MemoryStore) SetAvailable(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	av := m.statuses[driverID]
	av.DriverID = driverID
	av.Available = true
	av.CurrentTripID = ""
	av.Updated = time.Now()
	m.statuses[driverID] = av
	return nil
}

func (m *MemoryStore) SetOnline(_ context.Context, driverID string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	av, ok := m.statuses[driverID]
	if !ok {
		// a driver with no status yet is dispatchable, matching Availability
		av.Available = true
	}
	av.DriverID = driverID
	av.Online = online
	av.Updated = time.Now()
	m.statuses[driverID] = av
	return nil
}

func (m *MemoryStore) Availability(_ context.Context, driverID string) (models.DriverAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	av, ok := m.statuses[driverID]
	if !ok {
		return models.DriverAvailability{DriverID: driverID, Available: true}, nil
	}
	return av, nil
}

func (m *MemoryStore) setValue(key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = memEntry{value: value, expiresAt: expiry(ttl)}
	return nil
}

func (m *MemoryStore) deleteValue(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

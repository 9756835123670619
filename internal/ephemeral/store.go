// Package ephemeral holds all in-flight dispatch state: the pre-match trip
// record, reverse indexes, the notified-driver set, the redundant timeout
// flag, and the per-trip acceptance lock. Every key carries a TTL so a
// crashed process can never strand state forever.
package ephemeral

import (
	"context"
	"errors"
	"time"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// ErrNotFound is returned when a key is absent or already expired.
var ErrNotFound = errors.New("ephemeral: not found")

// Store is the in-flight trip state shared by every process instance.
type Store interface {
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	PutTrip(ctx context.Context, trip *models.Trip, ttl time.Duration) error
	DeleteTrip(ctx context.Context, tripID string) error

	SetPassengerTrip(ctx context.Context, passengerID, tripID string, ttl time.Duration) error
	// PassengerTrip returns the passenger's in-flight trip id, or ErrNotFound.
	PassengerTrip(ctx context.Context, passengerID string) (string, error)
	DeletePassengerTrip(ctx context.Context, passengerID string) error
	SetDriverTrip(ctx context.Context, driverID, tripID string, ttl time.Duration) error
	DeleteDriverTrip(ctx context.Context, driverID string) error

	PutNotifiedDrivers(ctx context.Context, tripID string, driverIDs []string, ttl time.Duration) error
	NotifiedDrivers(ctx context.Context, tripID string) ([]string, error)
	DeleteNotifiedDrivers(ctx context.Context, tripID string) error

	SetTimeoutFlag(ctx context.Context, tripID string, ttl time.Duration) error
	TimeoutFlagSet(ctx context.Context, tripID string) (bool, error)
	ClearTimeoutFlag(ctx context.Context, tripID string) error

	// AcquireLock is set-if-absent; false means another holder has the token.
	AcquireLock(ctx context.Context, tripID, token string, ttl time.Duration) (bool, error)
	// ReleaseLock deletes the lock only if it still holds token
	// (compare-and-delete), so a lock reacquired after TTL expiry is safe.
	ReleaseLock(ctx context.Context, tripID, token string) error
}

// AvailabilityStore tracks which drivers can take new offers.
type AvailabilityStore interface {
	SetBusy(ctx context.Context, driverID, tripID string) error
	SetAvailable(ctx context.Context, driverID string) error
	SetOnline(ctx context.Context, driverID string, online bool) error
	Availability(ctx context.Context, driverID string) (models.DriverAvailability, error)
}

func tripKey(id string) string      { return "trip:" + id }
func passengerKey(id string) string { return "trip:passenger:" + id }
func driverTripKey(id string) string { return "trip:driver:" + id }
func notifiedKey(id string) string  { return "trip:notified:" + id }
func timeoutKey(id string) string   { return "trip:timeout:" + id }
func lockKey(id string) string      { return "trip:lock:" + id }
func statusKey(id string) string    { return "driver:status:" + id }

// Package dispatch is the trip matching core: offer broadcast, single-winner
// acceptance, timeout reaping, cancellation, and the post-match lifecycle.
// All operations tolerate arbitrary interleavings for the same trip across
// process instances; the per-trip lock in the shared ephemeral store is the
// only serialization point.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/agodwin12/wegoBackend-sub002/internal/accounts"
	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/eta"
	"github.com/agodwin12/wegoBackend-sub002/internal/geo"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/payments"
	"github.com/agodwin12/wegoBackend-sub002/internal/storage"
)

// notifiedGrace keeps the notified set and timeout flag alive a bit longer
// than the offer so a slow reap still finds them.
const notifiedGrace = 60 * time.Second

// EventPublisher mirrors audit events to a broker; nil disables mirroring.
type EventPublisher interface {
	PublishEvent(ctx context.Context, e *models.TripEvent) error
}

type Service struct {
	Ephemeral    ephemeral.Store
	Availability ephemeral.AvailabilityStore
	Durable      storage.TripStore
	Locator      geo.Locator
	Accounts     accounts.Client
	Notifier     *notify.Notifier
	Timers       TimerRegistry
	Events       EventPublisher   // optional
	Settler      payments.Settler // optional
	ETAClient    eta.Client       // optional routing engine
	ETACache     *eta.Cache       // optional
	Logger       *slog.Logger

	OfferTTL        time.Duration
	SearchRadiusKm  float64
	LockTTL         time.Duration
	MatchedTripTTL  time.Duration
	DefaultSpeedMps float64

	// Now overrides the clock in tests.
	Now func() time.Time
}

func (s *Service) clock() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// preMatchTTL is how long pre-match ephemeral keys may live.
func (s *Service) preMatchTTL() time.Duration { return s.OfferTTL + notifiedGrace }

// party resolves an account summary, degrading to a bare id when the
// accounts service is unreachable rather than blocking dispatch.
func (s *Service) party(ctx context.Context, id string) notify.PartyInfo {
	sum, err := s.Accounts.GetAccountSummary(ctx, id)
	if err != nil {
		s.Logger.Warn("account summary lookup failed", "account", id, "error", err)
		return notify.PartyInfo{ID: id}
	}
	return notify.PartyFromSummary(sum)
}

// appendEvent writes one audit row and mirrors it to the broker.
func (s *Service) appendEvent(ctx context.Context, tripID, typ string, payload map[string]any) {
	e := &models.TripEvent{TripID: tripID, Type: typ, Payload: payload, Timestamp: s.clock()}
	if err := s.Durable.AppendEvent(ctx, e); err != nil {
		s.Logger.Error("audit event append failed", "trip", tripID, "type", typ, "error", err)
	}
	if s.Events != nil {
		if err := s.Events.PublishEvent(ctx, e); err != nil {
			s.Logger.Warn("audit event mirror failed", "trip", tripID, "type", typ, "error", err)
		}
	}
}

// clearEphemeral removes every pre-match key for a trip.
func (s *Service) clearEphemeral(ctx context.Context, trip *models.Trip) {
	_ = s.Ephemeral.DeleteTrip(ctx, trip.ID)
	_ = s.Ephemeral.DeletePassengerTrip(ctx, trip.PassengerID)
	_ = s.Ephemeral.DeleteNotifiedDrivers(ctx, trip.ID)
	_ = s.Ephemeral.ClearTimeoutFlag(ctx, trip.ID)
}

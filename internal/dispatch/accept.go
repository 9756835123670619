package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/observability"
)

// Accept is the only path that moves a trip out of SEARCHING. The per-trip
// lock in the shared store guarantees a single winner no matter how many
// drivers or process instances race.
func (s *Service) Accept(ctx context.Context, tripID, driverID string) (AcceptResult, error) {
	token := uuid.NewString()
	ok, err := s.Ephemeral.AcquireLock(ctx, tripID, token, s.LockTTL)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("acquire lock %s: %w", tripID, err)
	}
	if !ok {
		observability.AcceptsTotal.WithLabelValues("contended").Inc()
		return failAccept(ReasonLockContention, "trip is already being accepted by another driver"), nil
	}
	// compare-and-delete: never releases a lock reacquired after TTL expiry
	defer func() {
		if err := s.Ephemeral.ReleaseLock(context.WithoutCancel(ctx), tripID, token); err != nil {
			s.Logger.Warn("lock release failed", "trip", tripID, "error", err)
		}
	}()

	// re-validate under the lock; this closes the window between the
	// driver's stale offer screen and the lock acquisition
	trip, err := s.Ephemeral.GetTrip(ctx, tripID)
	if errors.Is(err, ephemeral.ErrNotFound) {
		observability.AcceptsTotal.WithLabelValues("gone").Inc()
		return failAccept(ReasonNotFound, "trip no longer available"), nil
	}
	if err != nil {
		return AcceptResult{}, fmt.Errorf("accept %s: %w", tripID, err)
	}
	if trip.Status != models.StatusSearching {
		observability.AcceptsTotal.WithLabelValues("stale").Inc()
		return failAccept(ReasonStateConflict, "trip no longer available"), nil
	}

	av, err := s.Availability.Availability(ctx, driverID)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("availability %s: %w", driverID, err)
	}
	if !av.Available {
		observability.AcceptsTotal.WithLabelValues("driver_busy").Inc()
		return failAccept(ReasonStateConflict, "you already have an active trip"), nil
	}

	// an accepted trip must never be reaped: clear both the local timer and
	// the shared flag
	s.Timers.Cancel(tripID)
	if err := s.Ephemeral.ClearTimeoutFlag(ctx, tripID); err != nil {
		return AcceptResult{}, fmt.Errorf("clear timeout flag %s: %w", tripID, err)
	}

	now := s.clock()
	trip.DriverID = driverID
	trip.Status = models.StatusMatched
	trip.MatchedAt = &now

	if err := s.Durable.InsertTrip(ctx, trip); err != nil {
		return AcceptResult{}, fmt.Errorf("persist matched trip %s: %w", tripID, err)
	}
	s.appendEvent(ctx, trip.ID, models.EventTripCreated, map[string]any{
		"passenger_id": trip.PassengerID,
		"fare_estimate": trip.FareEstimate,
	})
	s.appendEvent(ctx, trip.ID, models.EventDriverMatched, map[string]any{"driver_id": driverID})

	if err := s.Ephemeral.PutTrip(ctx, trip, s.MatchedTripTTL); err != nil {
		return AcceptResult{}, fmt.Errorf("extend trip %s: %w", tripID, err)
	}
	_ = s.Ephemeral.SetPassengerTrip(ctx, trip.PassengerID, trip.ID, s.MatchedTripTTL)
	_ = s.Ephemeral.SetDriverTrip(ctx, driverID, trip.ID, s.MatchedTripTTL)

	if err := s.Availability.SetBusy(ctx, driverID, trip.ID); err != nil {
		s.Logger.Error("set driver busy failed", "driver", driverID, "trip", trip.ID, "error", err)
	}

	// tell every losing driver the offer is closed
	notified, err := s.Ephemeral.NotifiedDrivers(ctx, tripID)
	if err != nil {
		s.Logger.Warn("notified set read failed", "trip", tripID, "error", err)
	}
	closed := notify.OfferClosedPayload{TripID: trip.ID, Reason: "offer_expired"}
	for _, other := range notified {
		if other == driverID {
			continue
		}
		s.Notifier.DeliverAll(ctx, other, notify.EventOfferExpired, closed)
	}
	_ = s.Ephemeral.DeleteNotifiedDrivers(ctx, tripID)

	driver := s.party(ctx, driverID)
	passenger := s.party(ctx, trip.PassengerID)
	s.Notifier.DeliverAll(ctx, trip.PassengerID, notify.EventDriverAssigned, notify.AssignmentPayload{
		TripID:    trip.ID,
		Driver:    driver,
		Passenger: passenger,
		MatchedAt: now,
	})

	s.Logger.Info("driver matched", "trip", trip.ID, "driver", driverID,
		"losers_notified", max(len(notified)-1, 0))
	observability.AcceptsTotal.WithLabelValues("won").Inc()
	observability.MatchLatency.Observe(now.Sub(trip.RequestedAt).Seconds())
	return AcceptResult{Success: true, Driver: driver, Passenger: passenger, Trip: trip}, nil
}

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
	"github.com/agodwin12/wegoBackend-sub002/internal/storage"
)

// Cancel applies a cancellation from either party. It takes the same
// per-trip lock as Accept, so the two can never interleave for one trip;
// whichever acquires first decides the final state and the other sees a
// clean StateConflict or LockContention instead of a half-applied race.
func (s *Service) Cancel(ctx context.Context, tripID, actorID, reason string) (CancelResult, error) {
	token := uuid.NewString()
	ok, err := s.Ephemeral.AcquireLock(ctx, tripID, token, s.LockTTL)
	if err != nil {
		return CancelResult{}, fmt.Errorf("cancel %s: acquire lock: %w", tripID, err)
	}
	if !ok {
		return failCancel(ReasonLockContention, "trip is being updated, try again"), nil
	}
	defer func() {
		if err := s.Ephemeral.ReleaseLock(context.WithoutCancel(ctx), tripID, token); err != nil {
			s.Logger.Warn("lock release failed", "trip", tripID, "error", err)
		}
	}()

	trip, err := s.Ephemeral.GetTrip(ctx, tripID)
	if errors.Is(err, ephemeral.ErrNotFound) {
		// past the ephemeral phase (or never existed); consult the durable store
		trip, err = s.Durable.GetTrip(ctx, tripID)
		if errors.Is(err, storage.ErrNotFound) {
			return failCancel(ReasonNotFound, "trip not found"), nil
		}
	}
	if err != nil {
		return CancelResult{}, fmt.Errorf("cancel %s: %w", tripID, err)
	}

	var actor string
	switch actorID {
	case trip.PassengerID:
		actor = "passenger"
	case trip.DriverID:
		if actorID == "" {
			return failCancel(ReasonUnauthorized, "not a party to this trip"), nil
		}
		actor = "driver"
	default:
		return failCancel(ReasonUnauthorized, "not a party to this trip"), nil
	}

	if trip.Status.Terminal() {
		return failCancel(ReasonStateConflict, "trip is already finished"), nil
	}

	if trip.Status == models.StatusSearching {
		return s.cancelSearching(ctx, trip, actor, reason)
	}
	return s.cancelMatched(ctx, trip, actor, reason)
}

// cancelSearching handles the ephemeral-only phase: no durable row exists
// and none is created.
func (s *Service) cancelSearching(ctx context.Context, trip *models.Trip, actor, reason string) (CancelResult, error) {
	s.Timers.Cancel(trip.ID)

	// drivers still holding the offer card should see it close now rather
	// than waiting for their local expiry
	notified, _ := s.Ephemeral.NotifiedDrivers(ctx, trip.ID)
	closed := notify.OfferClosedPayload{TripID: trip.ID, Reason: "trip_no_longer_available"}
	for _, d := range notified {
		s.Notifier.DeliverAll(ctx, d, notify.EventOfferExpired, closed)
	}

	s.clearEphemeral(ctx, trip)
	s.Notifier.DeliverAll(ctx, trip.PassengerID, notify.EventTripCanceled, notify.CancelPayload{
		TripID: trip.ID, CanceledBy: actor, Reason: reason, At: s.clock(),
	})

	s.Logger.Info("searching trip canceled", "trip", trip.ID, "by", actor)
	observability.CancellationsTotal.WithLabelValues("searching", actor).Inc()
	return CancelResult{Success: true}, nil
}

// cancelMatched handles every durable phase before COMPLETED.
func (s *Service) cancelMatched(ctx context.Context, trip *models.Trip, actor, reason string) (CancelResult, error) {
	now := s.clock()
	trip.Status = models.StatusCanceled
	trip.CanceledBy = actor
	trip.CancelReason = reason
	trip.CanceledAt = &now

	if err := s.Durable.UpdateTrip(ctx, trip); err != nil {
		return CancelResult{}, fmt.Errorf("cancel %s: persist: %w", trip.ID, err)
	}
	s.appendEvent(ctx, trip.ID, models.EventTripCanceled, map[string]any{
		"canceled_by": actor,
		"reason":      reason,
	})

	if trip.DriverID != "" {
		if err := s.Availability.SetAvailable(ctx, trip.DriverID); err != nil {
			s.Logger.Error("release driver failed", "driver", trip.DriverID, "trip", trip.ID, "error", err)
		}
		_ = s.Ephemeral.DeleteDriverTrip(ctx, trip.DriverID)
	}
	s.clearEphemeral(ctx, trip)

	if trip.PaymentHoldID != "" && s.Settler != nil {
		if err := s.Settler.Cancel(ctx, trip.PaymentHoldID); err != nil {
			s.Logger.Error("payment hold release failed", "trip", trip.ID, "error", err)
		}
	}

	payload := notify.CancelPayload{TripID: trip.ID, CanceledBy: actor, Reason: reason, At: now}
	s.Notifier.DeliverAll(ctx, trip.PassengerID, notify.EventTripCanceled, payload)
	if trip.DriverID != "" {
		s.Notifier.DeliverAll(ctx, trip.DriverID, notify.EventTripCanceled, payload)
	}

	s.Logger.Info("matched trip canceled", "trip", trip.ID, "by", actor, "reason", reason)
	observability.CancellationsTotal.WithLabelValues("durable", actor).Inc()
	return CancelResult{Success: true}, nil
}

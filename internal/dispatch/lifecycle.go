package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/observability"
	"github.com/agodwin12/wegoBackend-sub002/internal/storage"
)

// previousOf maps each forward lifecycle target to the only status it may
// follow. CANCELED is handled by Cancel, never here.
var previousOf = map[models.TripStatus]models.TripStatus{
	models.StatusDriverEnRoute: models.StatusMatched,
	models.StatusDriverArrived: models.StatusDriverEnRoute,
	models.StatusInProgress:    models.StatusDriverArrived,
	models.StatusCompleted:     models.StatusInProgress,
}

// Advance applies one driver-initiated forward transition. The current
// status is validated server-side before anything is written.
func (s *Service) Advance(ctx context.Context, tripID, driverID string, target models.TripStatus, fareFinal *float64) (TransitionResult, error) {
	prev, known := previousOf[target]
	if !known {
		return failTransition(ReasonStateConflict, fmt.Sprintf("invalid target status %s", target)), nil
	}

	trip, err := s.Durable.GetTrip(ctx, tripID)
	if errors.Is(err, storage.ErrNotFound) {
		return failTransition(ReasonNotFound, "trip not found"), nil
	}
	if err != nil {
		return TransitionResult{}, fmt.Errorf("advance %s: %w", tripID, err)
	}

	if trip.DriverID != driverID {
		return failTransition(ReasonUnauthorized, "not the assigned driver"), nil
	}
	if trip.Status != prev {
		return failTransition(ReasonStateConflict,
			fmt.Sprintf("cannot move to %s from %s", target, trip.Status)), nil
	}

	now := s.clock()
	trip.Status = target
	switch target {
	case models.StatusDriverEnRoute:
		trip.DriverEnRouteAt = &now
	case models.StatusDriverArrived:
		trip.DriverArrivedAt = &now
	case models.StatusInProgress:
		trip.TripStartedAt = &now
	case models.StatusCompleted:
		trip.TripCompletedAt = &now
		if fareFinal != nil {
			trip.FareFinal = fareFinal
		}
	}

	if err := s.Durable.UpdateTrip(ctx, trip); err != nil {
		return TransitionResult{}, fmt.Errorf("advance %s: persist: %w", tripID, err)
	}

	if target == models.StatusCompleted {
		s.appendEvent(ctx, trip.ID, models.EventTripCompleted, map[string]any{
			"driver_id":  driverID,
			"fare_final": trip.FareFinal,
		})
		s.finishTrip(ctx, trip)
	} else {
		s.appendEvent(ctx, trip.ID, models.EventStatusChanged, map[string]any{
			"status": string(target),
		})
		// keep the ephemeral read copy fresh for the active-trip lookups
		if err := s.Ephemeral.PutTrip(ctx, trip, s.MatchedTripTTL); err != nil {
			s.Logger.Warn("refresh ephemeral trip failed", "trip", trip.ID, "error", err)
		}
	}

	s.Notifier.DeliverAll(ctx, trip.PassengerID, notify.EventTripStatus, notify.StatusPayload{
		TripID: trip.ID, Status: target, FareFinal: trip.FareFinal, At: now,
	})

	s.Logger.Info("trip transitioned", "trip", trip.ID, "status", target)
	observability.TransitionsTotal.WithLabelValues(string(target)).Inc()
	return TransitionResult{Success: true, Trip: trip}, nil
}

// finishTrip releases the driver and retires every ephemeral key after
// COMPLETED, and settles the payment hold when one exists.
func (s *Service) finishTrip(ctx context.Context, trip *models.Trip) {
	if err := s.Availability.SetAvailable(ctx, trip.DriverID); err != nil {
		s.Logger.Error("release driver failed", "driver", trip.DriverID, "trip", trip.ID, "error", err)
	}
	_ = s.Ephemeral.DeleteDriverTrip(ctx, trip.DriverID)
	s.clearEphemeral(ctx, trip)

	if trip.PaymentHoldID != "" && s.Settler != nil {
		if err := s.Settler.Capture(ctx, trip.PaymentHoldID); err != nil {
			s.Logger.Error("payment capture failed", "trip", trip.ID, "error", err)
		}
	}
}

// ActiveTrip resolves a party's current non-terminal trip, checking the
// ephemeral store first and falling back to the durable row.
func (s *Service) ActiveTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.Ephemeral.GetTrip(ctx, tripID)
	if err == nil {
		return trip, nil
	}
	if !errors.Is(err, ephemeral.ErrNotFound) {
		return nil, err
	}
	return s.Durable.GetTrip(ctx, tripID)
}

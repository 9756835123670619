package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/observability"
)

// Reap expires an unanswered offer. It is idempotent and safe to run on any
// process instance: every step re-checks shared state and short-circuits,
// because a reap can fire while an accept is mid-flight.
func (s *Service) Reap(ctx context.Context, tripID string) (ReapResult, error) {
	// the shared flag is ground truth, not the local timer; an accept that
	// already cleared it wins
	flagged, err := s.Ephemeral.TimeoutFlagSet(ctx, tripID)
	if err != nil {
		return ReapResult{}, fmt.Errorf("reap %s: read flag: %w", tripID, err)
	}
	if !flagged {
		observability.ReapsTotal.WithLabelValues("already_accepted").Inc()
		return ReapResult{Outcome: "already_accepted"}, nil
	}

	trip, err := s.Ephemeral.GetTrip(ctx, tripID)
	if errors.Is(err, ephemeral.ErrNotFound) {
		observability.ReapsTotal.WithLabelValues("already_gone").Inc()
		return ReapResult{Outcome: "already_gone"}, nil
	}
	if err != nil {
		return ReapResult{}, fmt.Errorf("reap %s: read trip: %w", tripID, err)
	}

	if trip.Status != models.StatusSearching {
		// matched or canceled elsewhere; just retire the flag
		if err := s.Ephemeral.ClearTimeoutFlag(ctx, tripID); err != nil {
			return ReapResult{}, fmt.Errorf("reap %s: clear flag: %w", tripID, err)
		}
		observability.ReapsTotal.WithLabelValues("not_searching").Inc()
		return ReapResult{Outcome: "not_searching"}, nil
	}

	// nobody accepted: no durable row is ever created for this trip
	s.clearEphemeral(ctx, trip)
	s.Notifier.DeliverAll(ctx, trip.PassengerID, notify.EventNoDriverAccepted,
		notify.NoticePayload{TripID: trip.ID, Message: "no drivers accepted your trip"})

	s.Logger.Info("offer reaped", "trip", trip.ID, "passenger", trip.PassengerID)
	observability.ReapsTotal.WithLabelValues("reaped").Inc()
	return ReapResult{Reaped: true, Outcome: "reaped"}, nil
}

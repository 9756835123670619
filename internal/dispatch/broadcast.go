package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/eta"
	"github.com/agodwin12/wegoBackend-sub002/internal/geo"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/observability"
)

// Broadcast fans a SEARCHING trip out to nearby drivers and arms the offer
// timeout. The trip record must already exist in the ephemeral store
// (written by the trip-creation flow).
func (s *Service) Broadcast(ctx context.Context, tripID string) (BroadcastResult, error) {
	trip, err := s.Ephemeral.GetTrip(ctx, tripID)
	if errors.Is(err, ephemeral.ErrNotFound) {
		observability.BroadcastsTotal.WithLabelValues("not_found").Inc()
		return failBroadcast(ReasonNotFound, "trip not found"), nil
	}
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("broadcast %s: %w", tripID, err)
	}
	if trip.Status != models.StatusSearching {
		observability.BroadcastsTotal.WithLabelValues("state_conflict").Inc()
		return failBroadcast(ReasonStateConflict, "trip is not searching for a driver"), nil
	}

	passenger := s.party(ctx, trip.PassengerID)

	located, err := s.Locator.Nearby(ctx, trip.Pickup.Lat, trip.Pickup.Lng, s.SearchRadiusKm)
	if err != nil {
		// abort without touching state so the caller can retry
		s.Logger.Error("geo lookup failed", "trip", tripID, "error", err)
		observability.BroadcastsTotal.WithLabelValues("upstream_unavailable").Inc()
		return failBroadcast(ReasonUpstreamUnavailable, "driver search is temporarily unavailable"), nil
	}
	if len(located) == 0 {
		return s.noDrivers(ctx, trip)
	}

	if trip.DurationS == 0 {
		trip.DurationS = s.tripDuration(trip)
	}

	candidates := make([]geo.NearbyDriver, 0, len(located))
	for _, cand := range located {
		av, err := s.Availability.Availability(ctx, cand.DriverID)
		if err != nil {
			s.Logger.Warn("availability read failed", "driver", cand.DriverID, "error", err)
		} else if !av.Available {
			continue
		}
		candidates = append(candidates, cand)
	}
	if len(candidates) == 0 {
		return s.noDrivers(ctx, trip)
	}

	// all shared state is written before the first offer goes out; once a
	// driver can see the trip an accept may land at any moment, and its
	// writes must not be overwritten here
	if err := s.Ephemeral.PutTrip(ctx, trip, s.preMatchTTL()); err != nil {
		return BroadcastResult{}, fmt.Errorf("refresh trip %s: %w", tripID, err)
	}
	// redundant timeout: the shared flag survives a process restart, the
	// local timer is the low-latency fast path
	if err := s.Ephemeral.SetTimeoutFlag(ctx, trip.ID, s.OfferTTL+notifiedGrace); err != nil {
		return BroadcastResult{}, fmt.Errorf("arm timeout flag %s: %w", tripID, err)
	}
	s.Timers.Schedule(trip.ID, s.OfferTTL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*s.LockTTL)
		defer cancel()
		if _, err := s.Reap(ctx, trip.ID); err != nil {
			s.Logger.Error("scheduled reap failed", "trip", trip.ID, "error", err)
		}
	})

	now := s.clock()
	expiresAt := now.Add(s.OfferTTL)
	notified := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		offer := notify.OfferPayload{
			TripID:             trip.ID,
			Pickup:             trip.Pickup,
			Dropoff:            trip.Dropoff,
			DistanceM:          trip.DistanceM,
			DurationS:          trip.DurationS,
			FareEstimate:       trip.FareEstimate,
			Passenger:          passenger,
			DistanceToPickupKm: cand.DistanceKm,
			PickupEtaS:         cand.DistanceKm * 1000 / s.speed(),
			ExpiresAt:          expiresAt,
		}
		// a driver reachable by no channel is skipped, not an error
		if s.Notifier.Deliver(ctx, cand.DriverID, notify.EventTripOffer, offer) {
			notified = append(notified, cand.DriverID)
		}
	}
	if len(notified) == 0 {
		s.Timers.Cancel(trip.ID)
		return s.noDrivers(ctx, trip)
	}

	s.persistNotified(ctx, trip.ID, notified)

	s.Logger.Info("offer broadcast", "trip", trip.ID, "drivers_notified", len(notified), "expires_at", expiresAt)
	observability.BroadcastsTotal.WithLabelValues("ok").Inc()
	observability.DriversNotified.Observe(float64(len(notified)))
	return BroadcastResult{Success: true, DriversNotified: len(notified), NotifiedIDs: notified}, nil
}

// persistNotified stores the notified set once fanout is done. A driver can
// accept while offers are still going out, so the write happens under the
// acceptance lock and only while the trip is still searching; anything else
// would resurrect the set after the winner deleted it.
func (s *Service) persistNotified(ctx context.Context, tripID string, notified []string) {
	token := uuid.NewString()
	ok, err := s.Ephemeral.AcquireLock(ctx, tripID, token, s.LockTTL)
	if err != nil || !ok {
		// an accept or cancel is concluding the trip right now
		s.Logger.Warn("notified set write skipped", "trip", tripID, "error", err)
		return
	}
	defer func() {
		if err := s.Ephemeral.ReleaseLock(context.WithoutCancel(ctx), tripID, token); err != nil {
			s.Logger.Warn("lock release failed", "trip", tripID, "error", err)
		}
	}()
	trip, err := s.Ephemeral.GetTrip(ctx, tripID)
	if err != nil || trip.Status != models.StatusSearching {
		return
	}
	if err := s.Ephemeral.PutNotifiedDrivers(ctx, tripID, notified, s.OfferTTL+notifiedGrace); err != nil {
		s.Logger.Warn("notified set write failed", "trip", tripID, "error", err)
	}
}

// noDrivers applies the empty-locator policy: the ephemeral trip is removed
// and the passenger told immediately, rather than parking the request for a
// hypothetical out-of-band acceptance.
func (s *Service) noDrivers(ctx context.Context, trip *models.Trip) (BroadcastResult, error) {
	s.clearEphemeral(ctx, trip)
	s.Notifier.DeliverAll(ctx, trip.PassengerID, notify.EventNoDriversFound,
		notify.NoticePayload{TripID: trip.ID, Message: "no drivers available"})
	s.Logger.Info("broadcast found no drivers", "trip", trip.ID)
	observability.BroadcastsTotal.WithLabelValues("no_drivers").Inc()
	return failBroadcast(ReasonNoDrivers, "no drivers available"), nil
}

func (s *Service) speed() float64 {
	if s.DefaultSpeedMps > 0 {
		return s.DefaultSpeedMps
	}
	return 10
}

// tripDuration estimates pickup->dropoff seconds when the creation flow did
// not supply one, preferring the routing engine over the naive estimate.
func (s *Service) tripDuration(trip *models.Trip) float64 {
	from, to := trip.Pickup.Coord(), trip.Dropoff.Coord()
	if s.ETACache != nil {
		if v, ok := s.ETACache.Get(from, to); ok {
			return v
		}
	}
	if s.ETAClient != nil {
		if v, err := s.ETAClient.EstimateSeconds(from, to); err == nil {
			if s.ETACache != nil {
				s.ETACache.Set(from, to, v)
			}
			return v
		}
	}
	return eta.EstimateSeconds(from, to, s.speed())
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agodwin12/wegoBackend-sub002/internal/dispatch"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
	"github.com/agodwin12/wegoBackend-sub002/internal/observability"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps business outcomes onto HTTP codes. Results keep their
// structured {success, reason} body either way.
func statusFor(reason dispatch.Reason) int {
	switch reason {
	case dispatch.ReasonNone, dispatch.ReasonNoDrivers:
		return http.StatusOK
	case dispatch.ReasonNotFound:
		return http.StatusNotFound
	case dispatch.ReasonUnauthorized:
		return http.StatusForbidden
	case dispatch.ReasonStateConflict, dispatch.ReasonLockContention:
		return http.StatusConflict
	case dispatch.ReasonUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusOK
	}
}

type createTripRequest struct {
	PassengerID   string          `json:"passenger_id"`
	Pickup        models.Location `json:"pickup"`
	Dropoff       models.Location `json:"dropoff"`
	DistanceM     float64         `json:"distance_m"`
	DurationS     float64         `json:"duration_s"`
	FareEstimate  float64         `json:"fare_estimate"`
	PaymentMethod string          `json:"payment_method"`
	PaymentHoldID string          `json:"payment_hold_id"`
	// Broadcast immediately instead of waiting for a second call.
	Broadcast bool `json:"broadcast"`
}

// handleCreateTrip writes the initial SEARCHING record to the ephemeral
// store; nothing durable exists until a driver matches.
func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	var req createTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.PassengerID == "" {
		http.Error(w, "passenger_id required", http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	// one non-terminal trip per passenger
	if existing, err := s.Dispatch.Ephemeral.PassengerTrip(ctx, req.PassengerID); err == nil {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success": false,
			"reason":  dispatch.ReasonStateConflict,
			"message": "passenger already has an active trip",
			"trip_id": existing,
		})
		return
	}
	trip := &models.Trip{
		ID:            uuid.NewString(),
		PassengerID:   req.PassengerID,
		Status:        models.StatusSearching,
		Pickup:        req.Pickup,
		Dropoff:       req.Dropoff,
		DistanceM:     req.DistanceM,
		DurationS:     req.DurationS,
		FareEstimate:  req.FareEstimate,
		PaymentMethod: req.PaymentMethod,
		PaymentHoldID: req.PaymentHoldID,
		RequestedAt:   time.Now(),
	}
	ttl := s.Dispatch.OfferTTL + time.Minute
	if err := s.Dispatch.Ephemeral.PutTrip(ctx, trip, ttl); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := s.Dispatch.Ephemeral.SetPassengerTrip(ctx, trip.PassengerID, trip.ID, ttl); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	if !req.Broadcast {
		writeJSON(w, http.StatusCreated, map[string]any{"trip_id": trip.ID, "status": trip.Status})
		return
	}
	res, err := s.Dispatch.Broadcast(ctx, trip.ID)
	if err != nil {
		s.logger.Error("broadcast failed", "trip", trip.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"trip_id": trip.ID, "broadcast": res})
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	trip, err := s.Dispatch.ActiveTrip(r.Context(), tripID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "reason": dispatch.ReasonNotFound})
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	res, err := s.Dispatch.Broadcast(r.Context(), tripID)
	if err != nil {
		s.logger.Error("broadcast failed", "trip", tripID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var req struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	res, err := s.Dispatch.Accept(r.Context(), tripID, req.DriverID)
	if err != nil {
		s.logger.Error("accept failed", "trip", tripID, "driver", req.DriverID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var req struct {
		ActorID string `json:"actor_id"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ActorID == "" {
		http.Error(w, "actor_id required", http.StatusBadRequest)
		return
	}
	res, err := s.Dispatch.Cancel(r.Context(), tripID, req.ActorID, req.Reason)
	if err != nil {
		s.logger.Error("cancel failed", "trip", tripID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var req struct {
		DriverID  string   `json:"driver_id"`
		Status    string   `json:"status"`
		FareFinal *float64 `json:"fare_final"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" || req.Status == "" {
		http.Error(w, "driver_id and status required", http.StatusBadRequest)
		return
	}
	res, err := s.Dispatch.Advance(r.Context(), tripID, req.DriverID, models.TripStatus(req.Status), req.FareFinal)
	if err != nil {
		s.logger.Error("transition failed", "trip", tripID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, statusFor(res.Reason), res)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d.Online = true
	// publish to kafka if configured
	if s.Kafka != nil {
		_ = s.Kafka.PublishLocation(d)
	}
	// update geo store
	if err := s.Locator.Upsert(r.Context(), d); err != nil {
		s.logger.Warn("geo upsert failed", "driver", d.ID, "error", err)
	}
	// a location ping also marks the driver dispatchable
	if err := s.Dispatch.Availability.SetOnline(r.Context(), d.ID, true); err != nil {
		s.logger.Warn("set online failed", "driver", d.ID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	s.handleWS(w, r, s.DriverWS, mux.Vars(r)["driver_id"], observability.DriversOnline)
}

func (s *Server) handleUserWS(w http.ResponseWriter, r *http.Request) {
	s.handleWS(w, r, s.UserWS, mux.Vars(r)["user_id"], nil)
}

// handleWS upgrades the request and parks the connection in the registry.
// The gauge, when given, counts ids with a live session, so it moves only
// when a session for a new id appears or the last connection of an id dies.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, reg *notify.WSRegistry, id string, online prometheus.Gauge) {
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the handshake error
		return
	}
	if !reg.Add(id, conn) && online != nil {
		online.Inc()
	}
	// drain until the peer goes away so we can drop the session
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if reg.Remove(id, conn) && online != nil {
					online.Dec()
				}
				return
			}
		}
	}()
}

package notify

import (
	"time"

	"github.com/agodwin12/wegoBackend-sub002/internal/accounts"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// Event names pushed to clients.
const (
	EventTripOffer        = "trip_offer"
	EventOfferExpired     = "offer_expired"
	EventDriverAssigned   = "driver_assigned"
	EventTripStatus       = "trip_status_update"
	EventTripCanceled     = "trip_canceled"
	EventNoDriversFound   = "no_drivers_available"
	EventNoDriverAccepted = "no_drivers_accepted"
)

// Envelope wraps every payload sent over a channel.
type Envelope struct {
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// OfferPayload is the trip offer pushed to each candidate driver.
type OfferPayload struct {
	TripID             string          `json:"trip_id"`
	Pickup             models.Location `json:"pickup"`
	Dropoff            models.Location `json:"dropoff"`
	DistanceM          float64         `json:"distance_m"`
	DurationS          float64         `json:"duration_s"`
	FareEstimate       float64         `json:"fare_estimate"`
	Passenger          PartyInfo       `json:"passenger"`
	DistanceToPickupKm float64         `json:"distance_to_pickup_km"`
	PickupEtaS         float64         `json:"pickup_eta_s,omitempty"`
	ExpiresAt          time.Time       `json:"expires_at"`
}

// PartyInfo is the enriched identity of one side of a trip.
type PartyInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone,omitempty"`
	Avatar  string  `json:"avatar,omitempty"`
	Rating  float64 `json:"rating"`
	Vehicle string  `json:"vehicle,omitempty"`
}

func PartyFromSummary(s accounts.Summary) PartyInfo {
	return PartyInfo{ID: s.ID, Name: s.Name, Phone: s.Phone, Avatar: s.Avatar, Rating: s.Rating, Vehicle: s.Vehicle}
}

// AssignmentPayload tells the passenger who is coming.
type AssignmentPayload struct {
	TripID    string     `json:"trip_id"`
	Driver    PartyInfo  `json:"driver"`
	Passenger PartyInfo  `json:"passenger"`
	MatchedAt time.Time  `json:"matched_at"`
}

// OfferClosedPayload tells a losing driver the offer is gone.
type OfferClosedPayload struct {
	TripID string `json:"trip_id"`
	Reason string `json:"reason"` // "offer_expired" or "trip_no_longer_available"
}

// StatusPayload is a lifecycle transition push.
type StatusPayload struct {
	TripID    string            `json:"trip_id"`
	Status    models.TripStatus `json:"status"`
	FareFinal *float64          `json:"fare_final,omitempty"`
	At        time.Time         `json:"at"`
}

// CancelPayload announces a cancellation to both parties.
type CancelPayload struct {
	TripID     string    `json:"trip_id"`
	CanceledBy string    `json:"canceled_by"`
	Reason     string    `json:"reason,omitempty"`
	At         time.Time `json:"at"`
}

// NoticePayload is a plain informational push with no extra structure.
type NoticePayload struct {
	TripID  string `json:"trip_id"`
	Message string `json:"message"`
}

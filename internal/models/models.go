package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a coordinate plus the human-readable address shown in apps.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (l Location) Coord() Coord { return Coord{Lat: l.Lat, Lng: l.Lng} }

// TripStatus is the single source of truth for the trip lifecycle.
type TripStatus string

const (
	StatusSearching     TripStatus = "SEARCHING"
	StatusMatched       TripStatus = "MATCHED"
	StatusDriverEnRoute TripStatus = "DRIVER_EN_ROUTE"
	StatusDriverArrived TripStatus = "DRIVER_ARRIVED"
	StatusInProgress    TripStatus = "IN_PROGRESS"
	StatusCompleted     TripStatus = "COMPLETED"
	StatusCanceled      TripStatus = "CANCELED"
)

// Terminal reports whether no further transition is allowed.
func (s TripStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Cancelable reports whether either party may still cancel.
func (s TripStatus) Cancelable() bool { return !s.Terminal() }

type Trip struct {
	ID            string     `json:"id"`
	PassengerID   string     `json:"passenger_id"`
	DriverID      string     `json:"driver_id,omitempty"` // empty until matched
	Status        TripStatus `json:"status"`
	Pickup        Location   `json:"pickup"`
	Dropoff       Location   `json:"dropoff"`
	DistanceM     float64    `json:"distance_m"`
	DurationS     float64    `json:"duration_s"`
	FareEstimate  float64    `json:"fare_estimate"`
	FareFinal     *float64   `json:"fare_final,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	// PaymentHoldID references a pre-authorized PaymentIntent created by the
	// trip-creation flow; empty for cash trips.
	PaymentHoldID string `json:"payment_hold_id,omitempty"`

	RequestedAt     time.Time  `json:"requested_at"`
	MatchedAt       *time.Time `json:"matched_at,omitempty"`
	DriverEnRouteAt *time.Time `json:"driver_en_route_at,omitempty"`
	DriverArrivedAt *time.Time `json:"driver_arrived_at,omitempty"`
	TripStartedAt   *time.Time `json:"trip_started_at,omitempty"`
	TripCompletedAt *time.Time `json:"trip_completed_at,omitempty"`
	CanceledAt      *time.Time `json:"canceled_at,omitempty"`
	CanceledBy      string     `json:"canceled_by,omitempty"` // "passenger" or "driver"
	CancelReason    string     `json:"cancel_reason,omitempty"`
}

// DriverAvailability is the dispatchable state of one driver.
type DriverAvailability struct {
	DriverID      string    `json:"driver_id"`
	Online        bool      `json:"online"`
	Available     bool      `json:"available"`
	CurrentTripID string    `json:"current_trip_id,omitempty"`
	Updated       time.Time `json:"updated"`
}

// TripEvent is one row of the append-only audit log.
type TripEvent struct {
	TripID    string         `json:"trip_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Audit event types.
const (
	EventTripCreated   = "trip_created"
	EventDriverMatched = "driver_matched"
	EventStatusChanged = "status_changed"
	EventTripCanceled  = "trip_canceled"
	EventTripCompleted = "trip_completed"
)

// Driver is the location-ingest shape published on the driver-locations
// topic and mirrored into the geo index.
type Driver struct {
	ID      string    `json:"id"`
	Loc     Coord     `json:"loc"`
	Rating  float64   `json:"rating"` // 0..5
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

package dispatch

import (
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
)

// Reason classifies an expected business outcome. These are returned in
// result structs for caller-side branching, never as Go errors; Go errors
// are reserved for infrastructure failures.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonNotFound            Reason = "not_found"
	ReasonStateConflict       Reason = "state_conflict"
	ReasonLockContention      Reason = "lock_contention"
	ReasonUnauthorized        Reason = "unauthorized"
	ReasonNoDrivers           Reason = "no_drivers_available"
	ReasonUpstreamUnavailable Reason = "upstream_unavailable"
)

// BroadcastResult reports the outcome of fanning an offer out.
type BroadcastResult struct {
	Success         bool     `json:"success"`
	Reason          Reason   `json:"reason,omitempty"`
	Message         string   `json:"message,omitempty"`
	DriversNotified int      `json:"drivers_notified"`
	NotifiedIDs     []string `json:"notified_ids,omitempty"`
}

// AcceptResult reports the outcome of one driver's acceptance attempt.
type AcceptResult struct {
	Success   bool             `json:"success"`
	Reason    Reason           `json:"reason,omitempty"`
	Message   string           `json:"message,omitempty"`
	Driver    notify.PartyInfo `json:"driver,omitempty"`
	Passenger notify.PartyInfo `json:"passenger,omitempty"`
	Trip      *models.Trip     `json:"trip,omitempty"`
}

// ReapResult reports what a timeout fire actually did.
type ReapResult struct {
	Reaped  bool   `json:"reaped"`
	Outcome string `json:"outcome"` // "reaped", "already_accepted", "already_gone", "not_searching"
}

// CancelResult reports the outcome of a cancellation attempt.
type CancelResult struct {
	Success bool   `json:"success"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

// TransitionResult reports the outcome of a lifecycle transition.
type TransitionResult struct {
	Success bool         `json:"success"`
	Reason  Reason       `json:"reason,omitempty"`
	Message string       `json:"message,omitempty"`
	Trip    *models.Trip `json:"trip,omitempty"`
}

func failBroadcast(reason Reason, msg string) BroadcastResult {
	return BroadcastResult{Reason: reason, Message: msg}
}

func failAccept(reason Reason, msg string) AcceptResult {
	return AcceptResult{Reason: reason, Message: msg}
}

func failCancel(reason Reason, msg string) CancelResult {
	return CancelResult{Reason: reason, Message: msg}
}

func failTransition(reason Reason, msg string) TransitionResult {
	return TransitionResult{Reason: reason, Message: msg}
}

package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrNoRecipient means the channel has no open connection for the
// recipient. It is an expected outcome, not a delivery failure.
var ErrNoRecipient = errors.New("notify: no recipient connection")

// Channel delivers one event to one recipient. Implementations must return
// ErrNoRecipient for an unknown recipient instead of failing.
type Channel interface {
	Deliver(ctx context.Context, recipientID, event string, payload any) error
}

// Notifier fans an event out across an ordered channel chain: driver-scoped
// sessions first, then generic user sessions, then push. Delivery stops at
// the first channel that reaches the recipient.
type Notifier struct {
	channels []Channel
	logger   *slog.Logger
}

func NewNotifier(logger *slog.Logger, channels ...Channel) *Notifier {
	return &Notifier{channels: channels, logger: logger}
}

// Deliver returns true if any channel reached the recipient. A recipient
// reachable by no channel is a silent no-op.
func (n *Notifier) Deliver(ctx context.Context, recipientID, event string, payload any) bool {
	env := Envelope{Event: event, Payload: payload, SentAt: time.Now()}
	for _, ch := range n.channels {
		err := ch.Deliver(ctx, recipientID, event, env)
		if err == nil {
			return true
		}
		if errors.Is(err, ErrNoRecipient) {
			continue
		}
		n.logger.Warn("notify delivery error", "recipient", recipientID, "event", event, "error", err)
	}
	return false
}

// DeliverAll sends the event on every channel that can reach the recipient
// rather than stopping at the first. Used for events both apps must see
// even when a client holds stale duplicate connections.
func (n *Notifier) DeliverAll(ctx context.Context, recipientID, event string, payload any) bool {
	env := Envelope{Event: event, Payload: payload, SentAt: time.Now()}
	delivered := false
	for _, ch := range n.channels {
		err := ch.Deliver(ctx, recipientID, event, env)
		if err == nil {
			delivered = true
			continue
		}
		if !errors.Is(err, ErrNoRecipient) {
			n.logger.Warn("notify delivery error", "recipient", recipientID, "event", event, "error", err)
		}
	}
	return delivered
}

package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

type fakeChannel struct {
	known map[string]bool
	err   error
	sent  []string
}

func (f *fakeChannel) Deliver(_ context.Context, recipientID, event string, _ any) error {
	if f.err != nil {
		return f.err
	}
	if !f.known[recipientID] {
		return ErrNoRecipient
	}
	f.sent = append(f.sent, recipientID+":"+event)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDeliverStopsAtFirstReachingChannel(t *testing.T) {
	first := &fakeChannel{known: map[string]bool{"d1": true}}
	second := &fakeChannel{known: map[string]bool{"d1": true}}
	n := NewNotifier(discardLogger(), first, second)

	if !n.Deliver(context.Background(), "d1", EventTripOffer, nil) {
		t.Fatal("expected delivery")
	}
	if len(first.sent) != 1 || len(second.sent) != 0 {
		t.Fatalf("expected first channel only, got first=%v second=%v", first.sent, second.sent)
	}
}

func TestDeliverFallsThroughOnNoRecipient(t *testing.T) {
	first := &fakeChannel{known: map[string]bool{}}
	second := &fakeChannel{known: map[string]bool{"d1": true}}
	n := NewNotifier(discardLogger(), first, second)

	if !n.Deliver(context.Background(), "d1", EventTripOffer, nil) {
		t.Fatal("expected fallback delivery")
	}
	if len(second.sent) != 1 {
		t.Fatalf("expected second channel, got %v", second.sent)
	}
}

func TestDeliverUnreachableIsSilentNoop(t *testing.T) {
	n := NewNotifier(discardLogger(), &fakeChannel{known: map[string]bool{}})
	if n.Deliver(context.Background(), "ghost", EventTripOffer, nil) {
		t.Fatal("expected no delivery")
	}
}

func TestDeliverSkipsFailingChannel(t *testing.T) {
	broken := &fakeChannel{err: errors.New("socket gone")}
	ok := &fakeChannel{known: map[string]bool{"d1": true}}
	n := NewNotifier(discardLogger(), broken, ok)

	if !n.Deliver(context.Background(), "d1", EventOfferExpired, nil) {
		t.Fatal("expected delivery despite failing channel")
	}
}

func TestDeliverAllHitsEveryChannel(t *testing.T) {
	first := &fakeChannel{known: map[string]bool{"p1": true}}
	second := &fakeChannel{known: map[string]bool{"p1": true}}
	n := NewNotifier(discardLogger(), first, second)

	if !n.DeliverAll(context.Background(), "p1", EventTripCanceled, nil) {
		t.Fatal("expected delivery")
	}
	if len(first.sent) != 1 || len(second.sent) != 1 {
		t.Fatalf("expected both channels, got first=%v second=%v", first.sent, second.sent)
	}
}

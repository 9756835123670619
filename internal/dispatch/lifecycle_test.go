package dispatch

import (
	"context"
	"testing"

	"github.com/agodwin12/wegoBackend-sub002/internal/ephemeral"
	"github.com/agodwin12/wegoBackend-sub002/internal/models"
	"github.com/agodwin12/wegoBackend-sub002/internal/notify"
)

func matchTrip(t *testing.T, f *fixture) {
	t.Helper()
	f.seedTrip(t)
	f.seedThreeDrivers()
	ctx := context.Background()
	if _, err := f.svc.Broadcast(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if res, _ := f.svc.Accept(ctx, "t1", "dB"); !res.Success {
		t.Fatal("accept failed")
	}
}

func TestLifecycleWalksForward(t *testing.T) {
	f := newFixture("dA", "dB", "dC", "p1")
	matchTrip(t, f)
	ctx := context.Background()

	fare := 1450.0
	steps := []struct {
		target models.TripStatus
		fare   *float64
	}{
		{models.StatusDriverEnRoute, nil},
		{models.StatusDriverArrived, nil},
		{models.StatusInProgress, nil},
		{models.StatusCompleted, &fare},
	}
	for _, step := range steps {
		res, err := f.svc.Advance(ctx, "t1", "dB", step.target, step.fare)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Success {
			t.Fatalf("transition to %s failed: %+v", step.target, res)
		}
	}

	durable, _ := f.durable.GetTrip(ctx, "t1")
	if durable.Status != models.StatusCompleted {
		t.Fatalf("status = %s", durable.Status)
	}
	if durable.FareFinal == nil || *durable.FareFinal != fare {
		t.Fatalf("fare final = %v", durable.FareFinal)
	}
	if durable.DriverEnRouteAt == nil || durable.DriverArrivedAt == nil || durable.TripStartedAt == nil || durable.TripCompletedAt == nil {
		t.Fatalf("missing transition timestamps: %+v", durable)
	}

	// each transition pushed to the passenger
	if got := f.channel.count("p1", notify.EventTripStatus); got != 4 {
		t.Fatalf("passenger saw %d status pushes, want 4", got)
	}

	// driver released, ephemeral retired
	av, _ := f.eph.Availability(ctx, "dB")
	if !av.Available || av.CurrentTripID != "" {
		t.Fatalf("driver not released: %+v", av)
	}
	if _, err := f.eph.GetTrip(ctx, "t1"); err != ephemeral.ErrNotFound {
		t.Fatal("ephemeral trip should be retired after completion")
	}
}

func TestLifecycleRejectsSkippedState(t *testing.T) {
	f := newFixture("dA", "dB", "dC", "p1")
	matchTrip(t, f)

	res, err := f.svc.Advance(context.Background(), "t1", "dB", models.StatusInProgress, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Reason != ReasonStateConflict {
		t.Fatalf("skipping DRIVER_EN_ROUTE must be rejected: %+v", res)
	}
}

func TestLifecycleRejectsWrongDriver(t *testing.T) {
	f := newFixture("dA", "dB", "dC", "p1")
	matchTrip(t, f)

	res, err := f.svc.Advance(context.Background(), "t1", "dA", models.StatusDriverEnRoute, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Reason != ReasonUnauthorized {
		t.Fatalf("unassigned driver must be rejected: %+v", res)
	}
}

func TestLifecycleRejectsUnknownTarget(t *testing.T) {
	f := newFixture("dA", "dB", "dC", "p1")
	matchTrip(t, f)

	res, err := f.svc.Advance(context.Background(), "t1", "dB", models.StatusCanceled, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Reason != ReasonStateConflict {
		t.Fatalf("CANCELED is not a forward transition: %+v", res)
	}
}

func TestCancelMidLifecycle(t *testing.T) {
	f := newFixture("dA", "dB", "dC", "p1")
	matchTrip(t, f)
	ctx := context.Background()

	if res, _ := f.svc.Advance(ctx, "t1", "dB", models.StatusDriverEnRoute, nil); !res.Success {
		t.Fatal("transition failed")
	}
	res, err := f.svc.Cancel(ctx, "t1", "p1", "waited too long")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("cancel failed: %+v", res)
	}
	durable, _ := f.durable.GetTrip(ctx, "t1")
	if durable.Status != models.StatusCanceled || durable.CanceledBy != "passenger" {
		t.Fatalf("durable trip wrong: %+v", durable)
	}
	// both parties notified
	if f.channel.count("p1", notify.EventTripCanceled) != 1 || f.channel.count("dB", notify.EventTripCanceled) != 1 {
		t.Fatal("both parties must be told")
	}
}

func TestAdvanceAfterCompletionRejected(t *testing.T) {
	f := newFixture("dA", "dB", "dC", "p1")
	matchTrip(t, f)
	ctx := context.Background()

	for _, target := range []models.TripStatus{models.StatusDriverEnRoute, models.StatusDriverArrived, models.StatusInProgress, models.StatusCompleted} {
		if res, _ := f.svc.Advance(ctx, "t1", "dB", target, nil); !res.Success {
			t.Fatalf("transition to %s failed", target)
		}
	}
	res, err := f.svc.Advance(ctx, "t1", "dB", models.StatusCompleted, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || res.Reason != ReasonStateConflict {
		t.Fatalf("completing twice must be rejected: %+v", res)
	}
}

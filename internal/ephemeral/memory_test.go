package ephemeral

import (
	"context"
	"testing"
	"time"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

func TestLockSingleHolder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ok, err := s.AcquireLock(ctx, "t1", "tokA", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = s.AcquireLock(ctx, "t1", "tokB", time.Minute)
	if err != nil || ok {
		t.Fatalf("second acquire should contend: ok=%v err=%v", ok, err)
	}
}

func TestLockReleaseIsCompareAndDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := s.AcquireLock(ctx, "t1", "tokA", time.Minute); !ok {
		t.Fatal("acquire failed")
	}
	// wrong token must not release
	if err := s.ReleaseLock(ctx, "t1", "tokB"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.AcquireLock(ctx, "t1", "tokC", time.Minute); ok {
		t.Fatal("lock released by non-holder")
	}
	if err := s.ReleaseLock(ctx, "t1", "tokA"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.AcquireLock(ctx, "t1", "tokC", time.Minute); !ok {
		t.Fatal("lock not released by holder")
	}
}

func TestLockExpires(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if ok, _ := s.AcquireLock(ctx, "t1", "tokA", 10*time.Millisecond); !ok {
		t.Fatal("acquire failed")
	}
	time.Sleep(20 * time.Millisecond)
	if ok, _ := s.AcquireLock(ctx, "t1", "tokB", time.Minute); !ok {
		t.Fatal("expired lock should be reacquirable")
	}
}

func TestTripTTL(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	trip := &models.Trip{ID: "t1", PassengerID: "p1", Status: models.StatusSearching}
	if err := s.PutTrip(ctx, trip, 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTrip(ctx, "t1"); err != nil {
		t.Fatalf("trip should exist: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := s.GetTrip(ctx, "t1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPassengerTripIndex(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.PassengerTrip(ctx, "p1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetPassengerTrip(ctx, "p1", "t1", time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := s.PassengerTrip(ctx, "p1")
	if err != nil || got != "t1" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if err := s.DeletePassengerTrip(ctx, "p1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.PassengerTrip(ctx, "p1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestAvailabilityDefaultsToAvailable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	av, err := s.Availability(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !av.Available || av.CurrentTripID != "" {
		t.Fatalf("unexpected default availability: %+v", av)
	}

	if err := s.SetBusy(ctx, "d1", "t1"); err != nil {
		t.Fatal(err)
	}
	av, _ = s.Availability(ctx, "d1")
	if av.Available || av.CurrentTripID != "t1" {
		t.Fatalf("expected busy on t1, got %+v", av)
	}

	if err := s.SetAvailable(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	av, _ = s.Availability(ctx, "d1")
	if !av.Available || av.CurrentTripID != "" {
		t.Fatalf("expected available, got %+v", av)
	}
}

func TestSetOnlineKeepsFreshDriverAvailable(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.SetOnline(ctx, "d2", true); err != nil {
		t.Fatal(err)
	}
	av, err := s.Availability(ctx, "d2")
	if err != nil {
		t.Fatal(err)
	}
	if !av.Online || !av.Available {
		t.Fatalf("first location ping must leave the driver dispatchable: %+v", av)
	}

	// going online must not release a busy driver
	if err := s.SetBusy(ctx, "d2", "t9"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetOnline(ctx, "d2", true); err != nil {
		t.Fatal(err)
	}
	av, _ = s.Availability(ctx, "d2")
	if av.Available || av.CurrentTripID != "t9" {
		t.Fatalf("online ping disturbed busy state: %+v", av)
	}
}

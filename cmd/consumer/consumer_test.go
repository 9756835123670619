package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// fakeUpdater implements RedisUpdater for tests
type fakeUpdater struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
	hKeys    []string
}

func (f *fakeUpdater) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeUpdater) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	f.hKeys = append(f.hKeys, key)
	return nil
}

func TestUpdateRedisWithRetry_SucceedsAfterRetries(t *testing.T) {
	f := &fakeUpdater{failGeo: 1, failH: 1}
	d := &models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lng: 2}, Rating: 4.5, Online: true}
	ctx := context.Background()
	start := time.Now()
	if err := updateRedisWithRetry(ctx, f, "drivers_geo", d, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpdateRedisWithRetry_FailsWhenExhausted(t *testing.T) {
	f := &fakeUpdater{failGeo: 5, failH: 0}
	d := &models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lng: 2}, Rating: 4.5, Online: true}
	ctx := context.Background()
	if err := updateRedisWithRetry(ctx, f, "drivers_geo", d, 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}

func TestUpdateRedisWithRetry_WritesStatusHash(t *testing.T) {
	f := &fakeUpdater{}
	d := &models.Driver{ID: "d1", Loc: models.Coord{Lat: 1, Lng: 2}, Online: true}
	if err := updateRedisWithRetry(context.Background(), f, "drivers_geo", d, 1, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"driver:meta:d1": true, "driver:status:d1": true}
	for _, k := range f.hKeys {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Fatalf("missing hash writes: %v (got %v)", want, f.hKeys)
	}
}

package geo

import (
	"context"
	"testing"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestIndexNearbyFiltersByRadiusAndOnline(t *testing.T) {
	g := NewIndex()
	ctx := context.Background()
	_ = g.Upsert(ctx, models.Driver{ID: "close", Loc: models.Coord{Lat: 0.001, Lng: 0}, Online: true})
	_ = g.Upsert(ctx, models.Driver{ID: "far", Loc: models.Coord{Lat: 1, Lng: 1}, Online: true})
	_ = g.Upsert(ctx, models.Driver{ID: "offline", Loc: models.Coord{Lat: 0, Lng: 0.001}, Online: false})

	got, err := g.Nearby(ctx, 0, 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DriverID != "close" {
		t.Fatalf("expected only close driver, got %v", got)
	}
	if got[0].DistanceKm <= 0 || got[0].DistanceKm > 5 {
		t.Fatalf("unexpected distance %f", got[0].DistanceKm)
	}
}

package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// NearbyDriver is one locator hit: a candidate driver and how far it is
// from the queried point.
type NearbyDriver struct {
	DriverID   string  `json:"driver_id"`
	DistanceKm float64 `json:"distance_km"`
}

// Locator finds online drivers within a radius of a point.
type Locator interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyDriver, error)
	Upsert(ctx context.Context, d models.Driver) error
}

type Index struct {
	mu      sync.RWMutex
	drivers map[string]models.Driver
}

func NewIndex() *Index {
	return &Index{drivers: make(map[string]models.Driver)}
}

func (g *Index) Upsert(_ context.Context, d models.Driver) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	d.Updated = time.Now()
	g.drivers[d.ID] = d
	return nil
}

// naive scan; in prod use the Redis GEO index
func (g *Index) Nearby(_ context.Context, lat, lng, radiusKm float64) ([]NearbyDriver, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]NearbyDriver, 0, len(g.drivers))
	for _, d := range g.drivers {
		if !d.Online {
			continue
		}
		distKm := Haversine(lat, lng, d.Loc.Lat, d.Loc.Lng) / 1000
		if distKm > radiusKm {
			continue
		}
		out = append(out, NearbyDriver{DriverID: d.ID, DistanceKm: distKm})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out, nil
}

// Haversine distance in meters
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

package geo

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// RedisGeo implements Locator using Redis GEO commands.
type RedisGeo struct {
	client *redis.Client
	key    string
}

func NewRedisGeo(client *redis.Client, key string) *RedisGeo {
	return &RedisGeo{client: client, key: key}
}

func (r *RedisGeo) Upsert(ctx context.Context, d models.Driver) error {
	// store as GEOADD and HSET for metadata
	if _, err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: d.Loc.Lng, Latitude: d.Loc.Lat, Name: d.ID}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, metaKey(d.ID), map[string]interface{}{
		"rating":  fmt.Sprintf("%f", d.Rating),
		"online":  strconv.FormatBool(d.Online),
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisGeo) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyDriver, error) {
	res, err := r.client.GeoRadius(ctx, r.key, lng, lat, &redis.GeoRadiusQuery{
		Radius:   radiusKm,
		Unit:     "km",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo radius: %w", err)
	}
	out := make([]NearbyDriver, 0, len(res))
	for _, g := range res {
		// offline drivers linger in the GEO set until their TTL-less entry is
		// overwritten; filter them out via the meta hash
		if m, err := r.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			if v, ok := m["online"]; ok && v != "true" {
				continue
			}
		}
		out = append(out, NearbyDriver{DriverID: g.Name, DistanceKm: g.Dist})
	}
	return out, nil
}

func metaKey(id string) string { return "driver:meta:" + id }

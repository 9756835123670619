package ephemeral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

// compare-and-delete: release only while we still hold the token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisStore is the production Store and AvailabilityStore.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	b, err := s.client.Get(ctx, tripKey(tripID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get trip: %w", err)
	}
	var t models.Trip
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode trip %s: %w", tripID, err)
	}
	return &t, nil
}

func (s *RedisStore) PutTrip(ctx context.Context, trip *models.Trip, ttl time.Duration) error {
	b, err := json.Marshal(trip)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, tripKey(trip.ID), b, ttl).Err()
}

func (s *RedisStore) DeleteTrip(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, tripKey(tripID)).Err()
}

func (s *RedisStore) SetPassengerTrip(ctx context.Context, passengerID, tripID string, ttl time.Duration) error {
	return s.client.Set(ctx, passengerKey(passengerID), tripID, ttl).Err()
}

func (s *RedisStore) PassengerTrip(ctx context.Context, passengerID string) (string, error) {
	v, err := s.client.Get(ctx, passengerKey(passengerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (s *RedisStore) DeletePassengerTrip(ctx context.Context, passengerID string) error {
	return s.client.Del(ctx, passengerKey(passengerID)).Err()
}

func (s *RedisStore) SetDriverTrip(ctx context.Context, driverID, tripID string, ttl time.Duration) error {
	return s.client.Set(ctx, driverTripKey(driverID), tripID, ttl).Err()
}

func (s *RedisStore) DeleteDriverTrip(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverTripKey(driverID)).Err()
}

func (s *RedisStore) PutNotifiedDrivers(ctx context.Context, tripID string, driverIDs []string, ttl time.Duration) error {
	if len(driverIDs) == 0 {
		return nil
	}
	key := notifiedKey(tripID)
	members := make([]interface{}, len(driverIDs))
	for i, id := range driverIDs {
		members[i] = id
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) NotifiedDrivers(ctx context.Context, tripID string) ([]string, error) {
	return s.client.SMembers(ctx, notifiedKey(tripID)).Result()
}

func (s *RedisStore) DeleteNotifiedDrivers(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, notifiedKey(tripID)).Err()
}

func (s *RedisStore) SetTimeoutFlag(ctx context.Context, tripID string, ttl time.Duration) error {
	return s.client.Set(ctx, timeoutKey(tripID), "1", ttl).Err()
}

func (s *RedisStore) TimeoutFlagSet(ctx context.Context, tripID string) (bool, error) {
	n, err := s.client.Exists(ctx, timeoutKey(tripID)).Result()
	return n > 0, err
}

func (s *RedisStore) ClearTimeoutFlag(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, timeoutKey(tripID)).Err()
}

func (s *RedisStore) AcquireLock(ctx context.Context, tripID, token string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, lockKey(tripID), token, ttl).Result()
}

func (s *RedisStore) ReleaseLock(ctx context.Context, tripID, token string) error {
	return releaseScript.Run(ctx, s.client, []string{lockKey(tripID)}, token).Err()
}

func (s *RedisStore) SetBusy(ctx context.Context, driverID, tripID string) error {
	return s.client.HSet(ctx, statusKey(driverID), map[string]interface{}{
		"available":    "false",
		"current_trip": tripID,
		"updated":      time.Now().Format(time.RFC3339),
	}).Err()
}

func (s *RedisStore) SetAvailable(ctx context.Context, driverID string) error {
	return s.client.HSet(ctx, statusKey(driverID), map[string]interface{}{
		"available":    "true",
		"current_trip": "",
		"updated":      time.Now().Format(time.RFC3339),
	}).Err()
}

func (s *RedisStore) SetOnline(ctx context.Context, driverID string, online bool) error {
	return s.client.HSet(ctx, statusKey(driverID), "online", strconv.FormatBool(online)).Err()
}

func (s *RedisStore) Availability(ctx context.Context, driverID string) (models.DriverAvailability, error) {
	av := models.DriverAvailability{DriverID: driverID, Available: true}
	m, err := s.client.HGetAll(ctx, statusKey(driverID)).Result()
	if err != nil {
		return av, err
	}
	if v, ok := m["online"]; ok {
		av.Online = v == "true"
	}
	if v, ok := m["available"]; ok {
		av.Available = v == "true"
	}
	av.CurrentTripID = m["current_trip"]
	return av, nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/agodwin12/wegoBackend-sub002/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) InsertTrip(ctx context.Context, t *models.Trip) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO trips(
		id, passenger_id, driver_id, status,
		pickup_lat, pickup_lng, pickup_address,
		dropoff_lat, dropoff_lng, dropoff_address,
		distance_m, duration_s, fare_estimate, fare_final,
		payment_method, payment_hold_id,
		requested_at, matched_at, driver_en_route_at, driver_arrived_at,
		trip_started_at, trip_completed_at, canceled_at, canceled_by, cancel_reason
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`,
		t.ID, t.PassengerID, nullString(t.DriverID), string(t.Status),
		t.Pickup.Lat, t.Pickup.Lng, t.Pickup.Address,
		t.Dropoff.Lat, t.Dropoff.Lng, t.Dropoff.Address,
		t.DistanceM, t.DurationS, t.FareEstimate, t.FareFinal,
		nullString(t.PaymentMethod), nullString(t.PaymentHoldID),
		t.RequestedAt, t.MatchedAt, t.DriverEnRouteAt, t.DriverArrivedAt,
		t.TripStartedAt, t.TripCompletedAt, t.CanceledAt, nullString(t.CanceledBy), nullString(t.CancelReason))
	return err
}

func (p *PostgresStore) UpdateTrip(ctx context.Context, t *models.Trip) error {
	res, err := p.db.ExecContext(ctx, `UPDATE trips SET
		driver_id=$1, status=$2, fare_final=$3,
		matched_at=$4, driver_en_route_at=$5, driver_arrived_at=$6,
		trip_started_at=$7, trip_completed_at=$8,
		canceled_at=$9, canceled_by=$10, cancel_reason=$11,
		updated_at=now()
	WHERE id=$12`,
		nullString(t.DriverID), string(t.Status), t.FareFinal,
		t.MatchedAt, t.DriverEnRouteAt, t.DriverArrivedAt,
		t.TripStartedAt, t.TripCompletedAt,
		t.CanceledAt, nullString(t.CanceledBy), nullString(t.CancelReason), t.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	row := p.db.QueryRowContext(ctx, `SELECT
		id, passenger_id, COALESCE(driver_id,''), status,
		pickup_lat, pickup_lng, pickup_address,
		dropoff_lat, dropoff_lng, dropoff_address,
		distance_m, duration_s, fare_estimate, fare_final,
		COALESCE(payment_method,''), COALESCE(payment_hold_id,''),
		requested_at, matched_at, driver_en_route_at, driver_arrived_at,
		trip_started_at, trip_completed_at, canceled_at,
		COALESCE(canceled_by,''), COALESCE(cancel_reason,'')
	FROM trips WHERE id=$1`, id)

	var t models.Trip
	var status string
	err := row.Scan(&t.ID, &t.PassengerID, &t.DriverID, &status,
		&t.Pickup.Lat, &t.Pickup.Lng, &t.Pickup.Address,
		&t.Dropoff.Lat, &t.Dropoff.Lng, &t.Dropoff.Address,
		&t.DistanceM, &t.DurationS, &t.FareEstimate, &t.FareFinal,
		&t.PaymentMethod, &t.PaymentHoldID,
		&t.RequestedAt, &t.MatchedAt, &t.DriverEnRouteAt, &t.DriverArrivedAt,
		&t.TripStartedAt, &t.TripCompletedAt, &t.CanceledAt,
		&t.CanceledBy, &t.CancelReason)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan trip %s: %w", id, err)
	}
	t.Status = models.TripStatus(status)
	return &t, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, e *models.TripEvent) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO trip_events(trip_id, type, payload, created_at) VALUES ($1,$2,$3,$4)`,
		e.TripID, e.Type, payload, e.Timestamp)
	return err
}

func (p *PostgresStore) Events(ctx context.Context, tripID string) ([]models.TripEvent, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT trip_id, type, payload, created_at FROM trip_events WHERE trip_id=$1 ORDER BY created_at`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TripEvent
	for rows.Next() {
		var e models.TripEvent
		var payload []byte
		if err := rows.Scan(&e.TripID, &e.Type, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

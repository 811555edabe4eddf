package database

import (
	"context"
	"database/sql"
	"fmt"

	"rider-dispatch-system/geohash"
	"rider-dispatch-system/models"
)

const (
	upsertRiderSQL = `INSERT INTO riders (id, name, pickup_address, pickup_latitude, pickup_longitude, dropoff_address, dropoff_latitude, dropoff_longitude)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

	upsertDeliverySQL = `INSERT INTO deliveries (id, pickup_address, pickup_latitude, pickup_longitude, dropoff_address, dropoff_latitude, dropoff_longitude)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING`

	upsertDriverSQL = `INSERT INTO drivers (id, name, address, latitude, longitude, geohash, status, trip_id, seq)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address, latitude = EXCLUDED.latitude,
longitude = EXCLUDED.longitude, geohash = EXCLUDED.geohash, status = EXCLUDED.status, trip_id = EXCLUDED.trip_id,
seq = EXCLUDED.seq`

	upsertTripSQL = `INSERT INTO trips (id, requester_id, requester_kind, driver_id, state,
pickup_address, pickup_latitude, pickup_longitude, dropoff_address, dropoff_latitude, dropoff_longitude,
cancel_reason, created_at, assigned_at, started_at, completed_at, cancelled_at, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
ON CONFLICT (id) DO UPDATE SET driver_id = EXCLUDED.driver_id, state = EXCLUDED.state,
cancel_reason = EXCLUDED.cancel_reason, assigned_at = EXCLUDED.assigned_at, started_at = EXCLUDED.started_at,
completed_at = EXCLUDED.completed_at, cancelled_at = EXCLUDED.cancelled_at, version = EXCLUDED.version
WHERE trips.version < EXCLUDED.version`

	listDriversSQL = `SELECT id, name, address, latitude, longitude, status FROM drivers ORDER BY seq, id`

	listRidersSQL = `SELECT id, name, pickup_address, pickup_latitude, pickup_longitude,
dropoff_address, dropoff_latitude, dropoff_longitude FROM riders ORDER BY id`

	listDeliveriesSQL = `SELECT id, pickup_address, pickup_latitude, pickup_longitude,
dropoff_address, dropoff_latitude, dropoff_longitude FROM deliveries ORDER BY id`
)

// Repository persists dispatch entities to PostgreSQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) SaveRequester(ctx context.Context, req models.Requester) error {
	var err error
	switch v := req.(type) {
	case *models.Rider:
		_, err = r.db.ExecContext(ctx, upsertRiderSQL,
			v.ID, v.Name,
			v.Pickup.Address, v.Pickup.Latitude, v.Pickup.Longitude,
			v.Destination.Address, v.Destination.Latitude, v.Destination.Longitude,
		)
	case *models.Delivery:
		_, err = r.db.ExecContext(ctx, upsertDeliverySQL,
			v.ID,
			v.Pickup.Address, v.Pickup.Latitude, v.Pickup.Longitude,
			v.Dropoff.Address, v.Dropoff.Latitude, v.Dropoff.Longitude,
		)
	default:
		return fmt.Errorf("save requester %T: %w", req, models.ErrInvalidRequest)
	}
	if err != nil {
		return fmt.Errorf("save %s %s: %w", req.Kind(), req.RequesterID(), err)
	}
	return nil
}

func (r *Repository) SaveDriver(ctx context.Context, d models.Driver) error {
	hash := geohash.Encode(d.Location.Latitude, d.Location.Longitude, geohash.CellPrecision)
	_, err := r.db.ExecContext(ctx, upsertDriverSQL,
		d.ID, d.Name, d.Location.Address, d.Location.Latitude, d.Location.Longitude,
		hash, string(d.Status), nullString(d.TripID), int64(d.Seq),
	)
	if err != nil {
		return fmt.Errorf("save driver %s: %w", d.ID, err)
	}
	return nil
}

// SaveTrip upserts t. A stored row with the same or a higher version is left as is,
// so a stale snapshot written late never replaces a newer one.
func (r *Repository) SaveTrip(ctx context.Context, t models.Trip) error {
	_, err := r.db.ExecContext(ctx, upsertTripSQL,
		t.ID, t.RequesterID, string(t.RequesterKind), nullString(t.DriverID), string(t.State),
		t.Pickup.Address, t.Pickup.Latitude, t.Pickup.Longitude,
		t.Dropoff.Address, t.Dropoff.Latitude, t.Dropoff.Longitude,
		t.CancelReason, t.CreatedAt, t.AssignedAt, t.StartedAt, t.CompletedAt, t.CancelledAt,
		t.Version(),
	)
	if err != nil {
		return fmt.Errorf("save trip %s: %w", t.ID, err)
	}
	return nil
}

// ListDrivers loads stored drivers in their original registration order.
func (r *Repository) ListDrivers(ctx context.Context) ([]models.Driver, error) {
	rows, err := r.db.QueryContext(ctx, listDriversSQL)
	if err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	defer rows.Close()

	var drivers []models.Driver
	for rows.Next() {
		var (
			d      models.Driver
			status string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Location.Address, &d.Location.Latitude, &d.Location.Longitude, &status); err != nil {
			return nil, fmt.Errorf("list drivers: scan: %w", err)
		}
		d.Status = models.DriverStatus(status)
		drivers = append(drivers, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list drivers: %w", err)
	}
	return drivers, nil
}

// ListRequesters loads stored riders followed by stored deliveries.
func (r *Repository) ListRequesters(ctx context.Context) ([]models.Requester, error) {
	var requesters []models.Requester

	rows, err := r.db.QueryContext(ctx, listRidersSQL)
	if err != nil {
		return nil, fmt.Errorf("list riders: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		rider := &models.Rider{}
		if err := rows.Scan(&rider.ID, &rider.Name,
			&rider.Pickup.Address, &rider.Pickup.Latitude, &rider.Pickup.Longitude,
			&rider.Destination.Address, &rider.Destination.Latitude, &rider.Destination.Longitude,
		); err != nil {
			return nil, fmt.Errorf("list riders: scan: %w", err)
		}
		requesters = append(requesters, rider)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list riders: %w", err)
	}

	deliveryRows, err := r.db.QueryContext(ctx, listDeliveriesSQL)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer deliveryRows.Close()
	for deliveryRows.Next() {
		delivery := &models.Delivery{}
		if err := deliveryRows.Scan(&delivery.ID,
			&delivery.Pickup.Address, &delivery.Pickup.Latitude, &delivery.Pickup.Longitude,
			&delivery.Dropoff.Address, &delivery.Dropoff.Latitude, &delivery.Dropoff.Longitude,
		); err != nil {
			return nil, fmt.Errorf("list deliveries: scan: %w", err)
		}
		requesters = append(requesters, delivery)
	}
	if err := deliveryRows.Err(); err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return requesters, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

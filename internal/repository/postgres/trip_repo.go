package postgres

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/repository"
)

// TripRepo implements TripRepository using PostgreSQL.
type TripRepo struct{ db *DB }

var _ repository.TripRepository = (*TripRepo)(nil)

// NewTripRepo constructs a trip repository.
func NewTripRepo(db *DB) *TripRepo { return &TripRepo{db: db} }

// Record inserts a trip unless (entry_id, trip_id) already exists.
func (r *TripRepo) Record(ctx context.Context, rec model.TripRecord) (bool, error) {
	const q = `
INSERT INTO trips (entry_id, trip_id, score, kilometers, seconds, avg_kmh, max_kmh,
  started_at, ended_at, driver_name, start_place, end_place, recorded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (entry_id, trip_id) DO NOTHING`
	t := rec.Trip
	tag, err := r.db.Pool.Exec(ctx, q, rec.EntryID, t.ID, t.Score, t.Kilometers, t.Seconds,
		t.AvgKilometersPerHour, t.MaxKilometersPerHour, t.StartedAt, t.EndedAt,
		t.DriverName, t.StartPlace, t.EndPlace, rec.RecordedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// List returns the newest trips of an entry.
func (r *TripRepo) List(ctx context.Context, entryID uuid.UUID, limit int) ([]model.TripRecord, error) {
	if limit <= 0 {
		limit = repository.DefaultTripLimit
	}
	const q = `
SELECT trip_id, score, kilometers, seconds, avg_kmh, max_kmh,
  started_at, ended_at, driver_name, start_place, end_place, recorded_at
FROM trips
WHERE entry_id=$1
ORDER BY started_at DESC
LIMIT $2`
	rows, err := r.db.Pool.Query(ctx, q, entryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.TripRecord{}
	for rows.Next() {
		rec := model.TripRecord{EntryID: entryID}
		t := &rec.Trip
		if err := rows.Scan(&t.ID, &t.Score, &t.Kilometers, &t.Seconds, &t.AvgKilometersPerHour,
			&t.MaxKilometersPerHour, &t.StartedAt, &t.EndedAt, &t.DriverName, &t.StartPlace,
			&t.EndPlace, &rec.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DeleteByEntry removes all trips of an entry.
func (r *TripRepo) DeleteByEntry(ctx context.Context, entryID uuid.UUID) error {
	const q = `DELETE FROM trips WHERE entry_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, entryID)
	return err
}

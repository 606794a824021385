package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bonusdrive/internal/model"
)

// DefaultTripLimit bounds List when a non-positive limit is passed.
const DefaultTripLimit = 50

// TripRepository is the append-only log of trips seen by the coordinator.
type TripRepository interface {
	// Record stores a trip once. It reports false when the trip was already recorded.
	Record(ctx context.Context, rec model.TripRecord) (bool, error)
	// List returns up to limit trips of an entry, newest first.
	List(ctx context.Context, entryID uuid.UUID, limit int) ([]model.TripRecord, error)
	// DeleteByEntry drops the trip log of an entry.
	DeleteByEntry(ctx context.Context, entryID uuid.UUID) error
}

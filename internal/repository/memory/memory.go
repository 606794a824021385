// Package memory provides in-process repository implementations used when no
// database is configured.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/repository"
)

// EntryRepo keeps entries in a map.
type EntryRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]model.Entry
	now     func() time.Time
}

var _ repository.EntryRepository = (*EntryRepo)(nil)

// NewEntryRepo constructs an empty entry store.
func NewEntryRepo() *EntryRepo {
	return &EntryRepo{entries: map[uuid.UUID]model.Entry{}, now: time.Now}
}

func (r *EntryRepo) Create(_ context.Context, e *model.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.ID]; ok {
		return errs.ErrAlreadyExists
	}
	for _, cur := range r.entries {
		if cur.UniqueID == e.UniqueID {
			return errs.ErrAlreadyExists
		}
	}
	now := r.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	r.entries[e.ID] = *e
	return nil
}

func (r *EntryRepo) Get(_ context.Context, id uuid.UUID) (*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &e, nil
}

func (r *EntryRepo) GetByUniqueID(_ context.Context, uniqueID string) (*model.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.UniqueID == uniqueID {
			return &e, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *EntryRepo) List(context.Context) ([]model.Entry, error) {
	r.mu.RLock()
	out := make([]model.Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *EntryRepo) UpdateData(_ context.Context, id uuid.UUID, data model.EntryData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return errs.ErrNotFound
	}
	e.Data = data
	e.UpdatedAt = r.now().UTC()
	r.entries[id] = e
	return nil
}

func (r *EntryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// TripRepo keeps a bounded trip log per entry.
type TripRepo struct {
	mu    sync.RWMutex
	trips map[uuid.UUID][]model.TripRecord
	max   int
}

var _ repository.TripRepository = (*TripRepo)(nil)

// NewTripRepo keeps at most capacity trips per entry; zero means 500.
func NewTripRepo(capacity int) *TripRepo {
	if capacity <= 0 {
		capacity = 500
	}
	return &TripRepo{trips: map[uuid.UUID][]model.TripRecord{}, max: capacity}
}

func (r *TripRepo) Record(_ context.Context, rec model.TripRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.trips[rec.EntryID]
	for _, cur := range list {
		if cur.Trip.ID == rec.Trip.ID {
			return false, nil
		}
	}
	rec.Trip.Path = nil
	list = append(list, rec)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Trip.StartedAt.After(list[j].Trip.StartedAt) })
	if len(list) > r.max {
		list = list[:r.max]
	}
	r.trips[rec.EntryID] = list
	return true, nil
}

func (r *TripRepo) List(_ context.Context, entryID uuid.UUID, limit int) ([]model.TripRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.trips[entryID]
	if limit <= 0 {
		limit = repository.DefaultTripLimit
	}
	if limit > len(list) {
		limit = len(list)
	}
	out := make([]model.TripRecord, limit)
	copy(out, list[:limit])
	return out, nil
}

func (r *TripRepo) DeleteByEntry(_ context.Context, entryID uuid.UUID) error {
	r.mu.Lock()
	delete(r.trips, entryID)
	r.mu.Unlock()
	return nil
}

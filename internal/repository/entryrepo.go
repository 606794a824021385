// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/bonusdrive/internal/model"
)

// EntryRepository stores config entries.
type EntryRepository interface {
	// Create inserts a new entry. A taken unique id yields errs.ErrAlreadyExists.
	Create(ctx context.Context, e *model.Entry) error
	// Get loads an entry by ID.
	Get(ctx context.Context, id uuid.UUID) (*model.Entry, error)
	// GetByUniqueID loads an entry by its unique id.
	GetByUniqueID(ctx context.Context, uniqueID string) (*model.Entry, error)
	// List returns all entries ordered by creation time.
	List(ctx context.Context) ([]model.Entry, error)
	// UpdateData replaces the stored credentials of an entry.
	UpdateData(ctx context.Context, id uuid.UUID, data model.EntryData) error
	// Delete removes an entry.
	Delete(ctx context.Context, id uuid.UUID) error
}

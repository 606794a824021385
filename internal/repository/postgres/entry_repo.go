package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/repository"
)

// Sealer encrypts the vendor password before it reaches the database.
// *crypto.Sealer implements it.
type Sealer interface {
	Seal(entryID, plaintext []byte) ([]byte, error)
	Open(entryID, sealed []byte) ([]byte, error)
}

// EntryRepo implements EntryRepository using PostgreSQL.
type EntryRepo struct {
	db     *DB
	sealer Sealer
}

var _ repository.EntryRepository = (*EntryRepo)(nil)

// NewEntryRepo constructs an entry repository.
func NewEntryRepo(db *DB, sealer Sealer) *EntryRepo { return &EntryRepo{db: db, sealer: sealer} }

const entryColumns = `id, unique_id, title, email, password_enc, base_url, photon_url, created_at, updated_at`

// Create inserts a new entry row.
func (r *EntryRepo) Create(ctx context.Context, e *model.Entry) error {
	sealed, err := r.sealer.Seal(e.ID.Bytes(), []byte(e.Data.Password))
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}
	const q = `
INSERT INTO config_entries (id, unique_id, title, email, password_enc, base_url, photon_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at, updated_at`
	err = r.db.Pool.QueryRow(ctx, q, e.ID, e.UniqueID, e.Title, e.Data.Email, sealed, e.Data.BaseURL, e.Data.PhotonURL).
		Scan(&e.CreatedAt, &e.UpdatedAt)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// Get selects an entry by ID.
func (r *EntryRepo) Get(ctx context.Context, id uuid.UUID) (*model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM config_entries WHERE id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByUniqueID selects an entry by its unique id.
func (r *EntryRepo) GetByUniqueID(ctx context.Context, uniqueID string) (*model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM config_entries WHERE unique_id=$1`
	return r.scanOne(r.db.Pool.QueryRow(ctx, q, uniqueID))
}

// List returns all entries, oldest first.
func (r *EntryRepo) List(ctx context.Context) ([]model.Entry, error) {
	const q = `SELECT ` + entryColumns + ` FROM config_entries ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Entry{}
	for rows.Next() {
		e, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// UpdateData replaces credentials and bumps updated_at.
func (r *EntryRepo) UpdateData(ctx context.Context, id uuid.UUID, data model.EntryData) error {
	sealed, err := r.sealer.Seal(id.Bytes(), []byte(data.Password))
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}
	const q = `
UPDATE config_entries
SET email=$2, password_enc=$3, base_url=$4, photon_url=$5, updated_at=now()
WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, data.Email, sealed, data.BaseURL, data.PhotonURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes an entry row.
func (r *EntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM config_entries WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *EntryRepo) scanOne(row pgx.Row) (*model.Entry, error) {
	e, err := r.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	return e, err
}

func (r *EntryRepo) scan(row pgx.Row) (*model.Entry, error) {
	var (
		e      model.Entry
		sealed []byte
	)
	if err := row.Scan(&e.ID, &e.UniqueID, &e.Title, &e.Data.Email, &sealed,
		&e.Data.BaseURL, &e.Data.PhotonURL, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	pw, err := r.sealer.Open(e.ID.Bytes(), sealed)
	if err != nil {
		return nil, fmt.Errorf("open password of entry %s: %w", e.ID, err)
	}
	e.Data.Password = string(pw)
	return &e, nil
}

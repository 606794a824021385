package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/bonusdrive/internal/crypto"
	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func newSealer(t *testing.T) *crypto.Sealer {
	t.Helper()
	root, err := crypto.RandBytes(crypto.KeyLen)
	require.NoError(t, err)
	return crypto.NewSealerWithKey(root)
}

var entryCols = []string{"id", "unique_id", "title", "email", "password_enc", "base_url", "photon_url", "created_at", "updated_at"}

func TestEntryRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := newSealer(t)
	r := NewEntryRepo(db, s)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	e := &model.Entry{
		ID:       uuid.Must(uuid.NewV4()),
		UniqueID: "kim-example-com",
		Title:    "kim@example.com",
		Data:     model.EntryData{Email: "kim@example.com", Password: "pw", BaseURL: model.DefaultBaseURL},
	}

	mock.ExpectQuery(`INSERT INTO config_entries`).
		WithArgs(e.ID, e.UniqueID, e.Title, e.Data.Email, pgxmock.AnyArg(), e.Data.BaseURL, "").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	require.NoError(t, r.Create(ctx, e))
	require.Equal(t, now, e.CreatedAt)

	mock.ExpectQuery(`INSERT INTO config_entries`).
		WithArgs(e.ID, e.UniqueID, e.Title, e.Data.Email, pgxmock.AnyArg(), e.Data.BaseURL, "").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, e), errs.ErrAlreadyExists)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepo_Get_OpensPassword(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := newSealer(t)
	r := NewEntryRepo(db, s)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()

	sealed, err := s.Seal(id.Bytes(), []byte("secret"))
	require.NoError(t, err)

	mock.ExpectQuery(`FROM config_entries WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(id, "kim", "kim@example.com", "kim@example.com", sealed, model.DefaultBaseURL, "https://photon.example", now, now))
	e, err := r.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "secret", e.Data.Password)
	require.Equal(t, "https://photon.example", e.Data.PhotonURL)

	mock.ExpectQuery(`FROM config_entries WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.Get(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	// sealed for a different entry
	other := uuid.Must(uuid.NewV4())
	mock.ExpectQuery(`FROM config_entries WHERE id=\$1`).
		WithArgs(other).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(other, "x", "x", "x", sealed, "", "", now, now))
	_, err = r.Get(ctx, other)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrNotFound)
}

func TestEntryRepo_GetByUniqueID_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db, newSealer(t))

	mock.ExpectQuery(`FROM config_entries WHERE unique_id=\$1`).
		WithArgs("nobody").
		WillReturnError(pgx.ErrNoRows)
	_, err := r.GetByUniqueID(context.Background(), "nobody")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestEntryRepo_List(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	s := newSealer(t)
	r := NewEntryRepo(db, s)
	now := time.Now().UTC()

	a, b := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	sa, _ := s.Seal(a.Bytes(), []byte("pa"))
	sb, _ := s.Seal(b.Bytes(), []byte("pb"))

	mock.ExpectQuery(`FROM config_entries ORDER BY created_at ASC`).
		WillReturnRows(pgxmock.NewRows(entryCols).
			AddRow(a, "a", "a", "a@x", sa, "u", "", now, now).
			AddRow(b, "b", "b", "b@x", sb, "u", "", now, now))
	list, err := r.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "pa", list[0].Data.Password)
	require.Equal(t, "pb", list[1].Data.Password)
}

func TestEntryRepo_UpdateData_and_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewEntryRepo(db, newSealer(t))
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	data := model.EntryData{Email: "k@x", Password: "new", BaseURL: "u", PhotonURL: "p"}

	mock.ExpectExec(`UPDATE config_entries`).
		WithArgs(id, "k@x", pgxmock.AnyArg(), "u", "p").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdateData(ctx, id, data))

	mock.ExpectExec(`UPDATE config_entries`).
		WithArgs(id, "k@x", pgxmock.AnyArg(), "u", "p").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdateData(ctx, id, data), errs.ErrNotFound)

	mock.ExpectExec(`DELETE FROM config_entries WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, r.Delete(ctx, id))

	mock.ExpectExec(`DELETE FROM config_entries WHERE id=\$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	require.ErrorIs(t, r.Delete(ctx, id), errs.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/api"
	"github.com/and161185/bonusdrive/internal/bonusdrive"
	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/executor"
	"github.com/and161185/bonusdrive/internal/limiter"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/repository"
)

// Form error codes returned by the config flow.
const (
	CodeAuth              = "auth"
	CodeConnection        = "connection"
	CodeUnknown           = "unknown"
	CodeAlreadyConfigured = "already_configured"
)

// FormError is a config flow failure the caller shows next to the form.
type FormError struct {
	Code string
	Err  error
}

func (e *FormError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *FormError) Unwrap() error { return e.Err }

// ValidateFunc checks credentials against the vendor.
type ValidateFunc func(ctx context.Context, data model.EntryData) error

// Loader runs entries. The entry manager implements it.
type Loader interface {
	Setup(ctx context.Context, e *model.Entry) error
	Unload(ctx context.Context, id uuid.UUID) error
	Reload(ctx context.Context, id uuid.UUID) error
}

// CreateInput is what the user submits to add an entry.
type CreateInput struct {
	Email     string
	Password  string
	BaseURL   string
	PhotonURL string
	Source    string // caller address, used for throttling
}

// OptionsInput is the options step. Nil fields are left unchanged.
type OptionsInput struct {
	PhotonURL *string
}

// Flow implements the config and options flows.
type Flow struct {
	entries  repository.EntryRepository
	trips    repository.TripRepository
	lim      limiter.Limiter
	validate ValidateFunc
	loader   Loader
	log      *zap.Logger
}

// NewFlow constructs a Flow. loader may be set later with SetLoader.
func NewFlow(entries repository.EntryRepository, trips repository.TripRepository, lim limiter.Limiter, validate ValidateFunc, log *zap.Logger) *Flow {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flow{entries: entries, trips: trips, lim: lim, validate: validate, log: log}
}

// SetLoader attaches the entry lifecycle.
func (f *Flow) SetLoader(l Loader) { f.loader = l }

// NewCredentialValidator validates by logging in with a fresh client.
func NewCredentialValidator(pool *executor.Pool, timeout time.Duration, log *zap.Logger) ValidateFunc {
	return func(ctx context.Context, data model.EntryData) error {
		vendor := bonusdrive.New(bonusdrive.Config{
			BaseURL:  data.BaseURL,
			Email:    data.Email,
			Password: data.Password,
			Timeout:  timeout,
		}, log)
		return api.New(vendor, pool, log).Authenticate(ctx)
	}
}

// Create validates credentials, stores a new entry and sets it up.
func (f *Flow) Create(ctx context.Context, in CreateInput) (*model.Entry, error) {
	if in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: empty email/password", errs.ErrInvalidInput)
	}
	data := model.EntryData{Email: in.Email, Password: in.Password, BaseURL: in.BaseURL, PhotonURL: in.PhotonURL}
	if data.BaseURL == "" {
		data.BaseURL = model.DefaultBaseURL
	}

	if err := f.checkCredentials(ctx, data, in.Source); err != nil {
		return nil, err
	}

	uniqueID := UniqueID(in.Email)
	if _, err := f.entries.GetByUniqueID(ctx, uniqueID); err == nil {
		return nil, &FormError{Code: CodeAlreadyConfigured, Err: errs.ErrAlreadyExists}
	} else if !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	e := &model.Entry{ID: id, UniqueID: uniqueID, Title: in.Email, Data: data}
	if err := f.entries.Create(ctx, e); err != nil {
		if errors.Is(err, errs.ErrAlreadyExists) {
			return nil, &FormError{Code: CodeAlreadyConfigured, Err: err}
		}
		return nil, err
	}
	f.log.Info("entry created", zap.String("entry_id", id.String()), zap.String("unique_id", uniqueID))

	if f.loader != nil {
		if err := f.loader.Setup(ctx, e); err != nil {
			f.log.Warn("entry setup failed", zap.String("entry_id", id.String()), zap.Error(err))
		}
	}
	return e, nil
}

// UpdateOptions merges the options into the stored data and reloads the entry.
func (f *Flow) UpdateOptions(ctx context.Context, id uuid.UUID, in OptionsInput) (*model.Entry, error) {
	e, err := f.entries.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.PhotonURL != nil {
		e.Data.PhotonURL = *in.PhotonURL
	}
	if err := f.entries.UpdateData(ctx, id, e.Data); err != nil {
		return nil, err
	}
	f.reload(ctx, id)
	return f.entries.Get(ctx, id)
}

// Reauthenticate replaces the password after the vendor rejected the old one.
func (f *Flow) Reauthenticate(ctx context.Context, id uuid.UUID, password, source string) error {
	if password == "" {
		return fmt.Errorf("%w: empty password", errs.ErrInvalidInput)
	}
	e, err := f.entries.Get(ctx, id)
	if err != nil {
		return err
	}
	e.Data.Password = password
	if err := f.checkCredentials(ctx, e.Data, source); err != nil {
		return err
	}
	if err := f.entries.UpdateData(ctx, id, e.Data); err != nil {
		return err
	}
	f.reload(ctx, id)
	return nil
}

// Remove unloads an entry and deletes it with its trip log.
func (f *Flow) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := f.entries.Get(ctx, id); err != nil {
		return err
	}
	if f.loader != nil {
		if err := f.loader.Unload(ctx, id); err != nil {
			f.log.Warn("entry unload failed", zap.String("entry_id", id.String()), zap.Error(err))
		}
	}
	if f.trips != nil {
		if err := f.trips.DeleteByEntry(ctx, id); err != nil {
			return fmt.Errorf("delete trips: %w", err)
		}
	}
	return f.entries.Delete(ctx, id)
}

// UniqueID derives the entry's unique id from the account email:
// "Kim.Driver@example.com" becomes "kim-driver-example-com".
func UniqueID(email string) string {
	return slug.Make(strings.ReplaceAll(email, "@", " "))
}

// Configured reports whether an entry for email already exists.
func (f *Flow) Configured(ctx context.Context, email string) (bool, error) {
	_, err := f.entries.GetByUniqueID(ctx, UniqueID(email))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errs.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Get returns a stored entry.
func (f *Flow) Get(ctx context.Context, id uuid.UUID) (*model.Entry, error) {
	return f.entries.Get(ctx, id)
}

// List returns all stored entries.
func (f *Flow) List(ctx context.Context) ([]model.Entry, error) {
	return f.entries.List(ctx)
}

// Trips returns the trip log of an entry.
func (f *Flow) Trips(ctx context.Context, id uuid.UUID, limit int) ([]model.TripRecord, error) {
	if _, err := f.entries.Get(ctx, id); err != nil {
		return nil, err
	}
	return f.trips.List(ctx, id, limit)
}

// checkCredentials applies throttling and maps validation failures to form codes.
func (f *Flow) checkCredentials(ctx context.Context, data model.EntryData, source string) error {
	src := limiter.HashSource(source)
	allowed, retry, err := f.lim.Allow(ctx, data.Email, src)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: retry in %s", errs.ErrRateLimited, retry.Round(time.Second))
	}

	err = f.validate(ctx, data)
	if err == nil {
		// Success: reset counters (best-effort).
		_ = f.lim.Success(ctx, data.Email, src)
		return nil
	}

	code := CodeUnknown
	switch {
	case errors.Is(err, errs.ErrAuthentication):
		code = CodeAuth
		f.log.Warn("credentials rejected", zap.String("email", data.Email), zap.Error(err))
		if blocked, _, ferr := f.lim.Failure(ctx, data.Email, src); ferr == nil && blocked {
			return errs.ErrRateLimited
		}
	case errors.Is(err, errs.ErrCommunication):
		code = CodeConnection
		f.log.Error("cannot reach vendor", zap.Error(err))
	default:
		f.log.Error("unexpected validation failure", zap.Error(err))
	}
	return &FormError{Code: code, Err: err}
}

func (f *Flow) reload(ctx context.Context, id uuid.UUID) {
	if f.loader == nil {
		return
	}
	if err := f.loader.Reload(ctx, id); err != nil {
		f.log.Warn("entry reload failed", zap.String("entry_id", id.String()), zap.Error(err))
	}
}

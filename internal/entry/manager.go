// Package entry runs config entries: one vendor client, coordinator and sensor
// set per entry, with setup, unload and reload.
package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/api"
	"github.com/and161185/bonusdrive/internal/bonusdrive"
	"github.com/and161185/bonusdrive/internal/coordinator"
	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/executor"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/repository"
	"github.com/and161185/bonusdrive/internal/sensor"
	"github.com/and161185/bonusdrive/internal/service"
)

const listenerTimeout = 10 * time.Second

// StatePublisher pushes rendered sensor states somewhere outside the process.
type StatePublisher interface {
	Publish(ctx context.Context, entryID string, states []sensor.State) error
	Clear(ctx context.Context, entryID string, entityIDs []string) error
}

// HealthReporter tracks per-entry serving status.
type HealthReporter interface {
	SetEntryStatus(entryID string, serving bool)
	ClearEntry(entryID string)
}

// VendorFactory builds the blocking vendor client of an entry.
type VendorFactory func(data model.EntryData, log *zap.Logger) api.Vendor

// Options configures a Manager. Zero values fall back to defaults.
type Options struct {
	Interval      time.Duration
	VendorTimeout time.Duration
	Pool          *executor.Pool
	Trips         repository.TripRepository
	Publisher     StatePublisher
	Health        HealthReporter
	NewVendor     VendorFactory
	Now           func() time.Time
	Log           *zap.Logger
}

// Status describes a running entry.
type Status struct {
	EntryID        uuid.UUID        `json:"entry_id"`
	UniqueID       string           `json:"unique_id"`
	Title          string           `json:"title"`
	State          model.EntryState `json:"state"`
	ReauthRequired bool             `json:"reauth_required"`
	Available      bool             `json:"available"`
	LastError      string           `json:"last_error,omitempty"`
	LastRefresh    *time.Time       `json:"last_refresh,omitempty"`
}

type runtime struct {
	entry   model.Entry
	coord   *coordinator.Coordinator[model.Snapshot]
	sensors []*sensor.Sensor
	unsub   func()
	cancel  context.CancelFunc
	done    chan struct{} // closed when the poll loop returns; nil if never started

	mu     sync.Mutex
	state  model.EntryState
	reauth bool
}

func (rt *runtime) setState(s model.EntryState) {
	rt.mu.Lock()
	rt.state = s
	rt.mu.Unlock()
}

// Manager implements service.Loader.
type Manager struct {
	entries repository.EntryRepository
	opts    Options
	log     *zap.Logger

	mu      sync.RWMutex
	running map[uuid.UUID]*runtime
}

var _ service.Loader = (*Manager)(nil)

// NewManager constructs a Manager over the entry store.
func NewManager(entries repository.EntryRepository, opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Interval <= 0 {
		opts.Interval = coordinator.DefaultInterval
	}
	if opts.Pool == nil {
		opts.Pool = executor.New(executor.DefaultSize)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewVendor == nil {
		timeout := opts.VendorTimeout
		opts.NewVendor = func(data model.EntryData, log *zap.Logger) api.Vendor {
			return bonusdrive.New(bonusdrive.Config{
				BaseURL:   data.BaseURL,
				Email:     data.Email,
				Password:  data.Password,
				PhotonURL: data.PhotonURL,
				Timeout:   timeout,
			}, log)
		}
	}
	return &Manager{
		entries: entries,
		opts:    opts,
		log:     opts.Log,
		running: map[uuid.UUID]*runtime{},
	}
}

// ObjectPrefix derives the entity id prefix of an entry.
func ObjectPrefix(uniqueID string) string {
	if uniqueID == "" {
		return sensor.Domain
	}
	return sensor.Domain + "_" + strings.ReplaceAll(uniqueID, "-", "_")
}

// LoadAll sets up every stored entry. Per-entry failures are logged.
func (m *Manager) LoadAll(ctx context.Context) error {
	list, err := m.entries.List(ctx)
	if err != nil {
		return err
	}
	for i := range list {
		if err := m.Setup(ctx, &list[i]); err != nil {
			m.log.Warn("entry not loaded", zap.String("entry_id", list[i].ID.String()), zap.Error(err))
		}
	}
	return nil
}

// Setup builds the entry runtime and runs the first refresh eagerly.
// An authentication failure leaves the entry in setup_error without polling;
// any other failure leaves it in setup_retry while polling continues.
func (m *Manager) Setup(ctx context.Context, e *model.Entry) error {
	if err := m.Unload(ctx, e.ID); err != nil {
		return err
	}

	log := m.log.With(zap.String("entry_id", e.ID.String()), zap.String("unique_id", e.UniqueID))
	client := api.New(m.opts.NewVendor(e.Data, log), m.opts.Pool, log)
	upd := service.NewUpdater(client, m.opts.Now, log)

	rt := &runtime{entry: *e, state: model.EntryNotLoaded}
	rt.coord = coordinator.New(upd.Update, coordinator.Options{
		Name:     e.UniqueID,
		Interval: m.opts.Interval,
		Log:      log,
		Now:      m.opts.Now,
		OnAuthFailed: func(err error) {
			rt.mu.Lock()
			rt.reauth = true
			if rt.state == model.EntryLoaded || rt.state == model.EntrySetupRetry {
				rt.state = model.EntryReauthRequired
			}
			rt.mu.Unlock()
			log.Warn("credentials rejected, reauthentication required", zap.Error(err))
		},
	})
	rt.sensors = sensor.New(sensor.Config{
		EntryID:          e.ID.String(),
		ObjectPrefix:     ObjectPrefix(e.UniqueID),
		PhotonConfigured: e.Data.PhotonURL != "",
	}, rt.coord)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rt.cancel = cancel
	rt.unsub = rt.coord.Subscribe(func() { m.onUpdate(runCtx, rt, log) })

	m.mu.Lock()
	m.running[e.ID] = rt
	m.mu.Unlock()

	err := rt.coord.FirstRefresh(ctx)
	switch {
	case err == nil:
		rt.setState(model.EntryLoaded)
	case errors.Is(err, errs.ErrAuthFailed):
		rt.mu.Lock()
		rt.state = model.EntrySetupError
		rt.reauth = true
		rt.mu.Unlock()
		log.Error("entry setup failed", zap.Error(err))
		return err
	default:
		rt.setState(model.EntrySetupRetry)
		log.Warn("entry not ready, polling continues", zap.Error(err))
	}

	rt.done = make(chan struct{})
	go func() {
		defer close(rt.done)
		rt.coord.Run(runCtx)
	}()
	log.Info("entry loaded", zap.String("state", string(rt.state)), zap.Duration("interval", rt.coord.Interval()))
	return err
}

// Unload stops an entry. Unloading an entry that is not running is a no-op.
func (m *Manager) Unload(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	rt, ok := m.running[id]
	delete(m.running, id)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	rt.cancel()
	if rt.done != nil {
		select {
		case <-rt.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	rt.unsub()

	if m.opts.Health != nil {
		m.opts.Health.ClearEntry(id.String())
	}
	if m.opts.Publisher != nil {
		ids := make([]string, 0, len(rt.sensors))
		for _, s := range rt.sensors {
			ids = append(ids, s.EntityID())
		}
		if err := m.opts.Publisher.Clear(ctx, id.String(), ids); err != nil {
			m.log.Warn("clear published states", zap.String("entry_id", id.String()), zap.Error(err))
		}
	}
	m.log.Info("entry unloaded", zap.String("entry_id", id.String()))
	return nil
}

// Reload unloads an entry and sets it up again from the store.
func (m *Manager) Reload(ctx context.Context, id uuid.UUID) error {
	if err := m.Unload(ctx, id); err != nil {
		return err
	}
	e, err := m.entries.Get(ctx, id)
	if err != nil {
		return err
	}
	return m.Setup(ctx, e)
}

// Refresh forces an immediate refresh of a running entry.
func (m *Manager) Refresh(ctx context.Context, id uuid.UUID) error {
	rt, err := m.get(id)
	if err != nil {
		return err
	}
	return rt.coord.Refresh(ctx)
}

// Shutdown unloads every entry.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.running))
	for id := range m.running {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.Unload(ctx, id); err != nil {
			m.log.Warn("unload on shutdown", zap.String("entry_id", id.String()), zap.Error(err))
		}
	}
}

// Status reports the lifecycle of one entry.
func (m *Manager) Status(id uuid.UUID) (Status, error) {
	rt, err := m.get(id)
	if err != nil {
		return Status{}, err
	}
	return rt.status(), nil
}

// Statuses reports every running entry ordered by unique id.
func (m *Manager) Statuses() []Status {
	m.mu.RLock()
	out := make([]Status, 0, len(m.running))
	for _, rt := range m.running {
		out = append(out, rt.status())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}

// Sensors returns the sensors of a running entry.
func (m *Manager) Sensors(id uuid.UUID) ([]*sensor.Sensor, error) {
	rt, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return rt.sensors, nil
}

// States renders the sensors of a running entry.
func (m *Manager) States(id uuid.UUID) ([]sensor.State, error) {
	rt, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return sensor.States(rt.sensors), nil
}

func (m *Manager) get(id uuid.UUID) (*runtime, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rt, ok := m.running[id]
	if !ok {
		return nil, fmt.Errorf("entry %s not loaded: %w", id, errs.ErrNotFound)
	}
	return rt, nil
}

func (rt *runtime) status() Status {
	rt.mu.Lock()
	st := Status{
		EntryID:        rt.entry.ID,
		UniqueID:       rt.entry.UniqueID,
		Title:          rt.entry.Title,
		State:          rt.state,
		ReauthRequired: rt.reauth,
	}
	rt.mu.Unlock()

	st.Available = rt.coord.Available()
	if err := rt.coord.LastError(); err != nil {
		st.LastError = err.Error()
	}
	if t := rt.coord.LastRefresh(); !t.IsZero() {
		st.LastRefresh = &t
	}
	return st
}

// onUpdate runs after every refresh of an entry, successful or not.
func (m *Manager) onUpdate(ctx context.Context, rt *runtime, log *zap.Logger) {
	ok := rt.coord.Available()
	id := rt.entry.ID.String()

	if ok {
		rt.mu.Lock()
		if rt.state == model.EntrySetupRetry {
			rt.state = model.EntryLoaded
		}
		rt.mu.Unlock()
	}

	if m.opts.Health != nil {
		m.opts.Health.SetEntryStatus(id, ok)
	}

	ctx, cancel := context.WithTimeout(ctx, listenerTimeout)
	defer cancel()

	if m.opts.Publisher != nil {
		if err := m.opts.Publisher.Publish(ctx, id, sensor.States(rt.sensors)); err != nil {
			log.Warn("publish states", zap.Error(err))
		}
	}

	if !ok || m.opts.Trips == nil {
		return
	}
	snap, has := rt.coord.Data()
	if !has || snap.LastTrip == nil || snap.LastTrip.ID == "" {
		return
	}
	added, err := m.opts.Trips.Record(ctx, model.TripRecord{
		EntryID:    rt.entry.ID,
		Trip:       *snap.LastTrip,
		RecordedAt: snap.FetchedAt,
	})
	if err != nil {
		log.Warn("record trip", zap.String("trip_id", snap.LastTrip.ID), zap.Error(err))
		return
	}
	if added {
		log.Info("new trip recorded", zap.String("trip_id", snap.LastTrip.ID), zap.Float64("score", snap.LastTrip.Score))
	}
}

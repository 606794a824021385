// Package coordinator polls a data source on a fixed interval and publishes
// the latest successful result to subscribers.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/errs"
)

// DefaultInterval is the poll period used when Options.Interval is zero.
const DefaultInterval = 15 * time.Minute

// Provider is the read side of a coordinator that entities are built on.
type Provider[T any] interface {
	// Data returns the last published value and whether one exists.
	Data() (T, bool)
	// Available reports whether the last refresh succeeded.
	Available() bool
	// Subscribe registers fn to run after every refresh and returns a func removing it.
	Subscribe(fn func()) func()
}

// UpdateFunc produces one fresh value.
type UpdateFunc[T any] func(ctx context.Context) (T, error)

// Options configures a Coordinator.
type Options struct {
	Name     string
	Interval time.Duration
	Log      *zap.Logger
	// OnAuthFailed runs after a refresh failed with an authentication error.
	OnAuthFailed func(err error)
	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Coordinator is the single writer of a value of type T.
type Coordinator[T any] struct {
	name         string
	interval     time.Duration
	update       UpdateFunc[T]
	log          *zap.Logger
	onAuthFailed func(error)
	now          func() time.Time

	refreshMu sync.Mutex

	data        atomic.Pointer[T]
	lastSuccess atomic.Bool

	mu          sync.RWMutex
	lastErr     error
	lastRefresh time.Time
	listeners   map[uint64]func()
	nextID      uint64
}

var _ Provider[int] = (*Coordinator[int])(nil)

// New constructs a Coordinator that calls update on every refresh.
func New[T any](update UpdateFunc[T], opts Options) *Coordinator[T] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator[T]{
		name:         opts.Name,
		interval:     opts.Interval,
		update:       update,
		log:          opts.Log.With(zap.String("coordinator", opts.Name)),
		onAuthFailed: opts.OnAuthFailed,
		now:          opts.Now,
		listeners:    make(map[uint64]func()),
	}
}

// Name returns the configured name.
func (c *Coordinator[T]) Name() string { return c.name }

// Interval returns the poll period.
func (c *Coordinator[T]) Interval() time.Duration { return c.interval }

// Data returns the last successfully published value.
func (c *Coordinator[T]) Data() (T, bool) {
	p := c.data.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Available reports whether the last refresh succeeded.
func (c *Coordinator[T]) Available() bool { return c.lastSuccess.Load() }

// LastError returns the mapped error of the last refresh, nil after a success.
func (c *Coordinator[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastRefresh returns when the last refresh finished.
func (c *Coordinator[T]) LastRefresh() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// Subscribe registers fn; it runs after every refresh, successful or not.
func (c *Coordinator[T]) Subscribe(fn func()) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Refresh runs one update. Refreshes never overlap. On failure the previous
// value stays published and the returned error matches errs.ErrAuthFailed or
// errs.ErrUpdateFailed.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := c.now()
	v, err := c.update(ctx)
	if err != nil {
		mapped := mapFailure(err)
		c.finish(mapped)
		c.log.Warn("refresh failed", zap.Error(err), zap.Duration("took", c.now().Sub(start)))
		if errors.Is(mapped, errs.ErrAuthFailed) && c.onAuthFailed != nil {
			c.onAuthFailed(mapped)
		}
		c.notify()
		return mapped
	}

	c.data.Store(&v)
	c.finish(nil)
	c.log.Debug("refresh done", zap.Duration("took", c.now().Sub(start)))
	c.notify()
	return nil
}

// FirstRefresh is the eager refresh done at setup. A failure other than an
// authentication one is reported as errs.ErrNotReady.
func (c *Coordinator[T]) FirstRefresh(ctx context.Context) error {
	err := c.Refresh(ctx)
	if err == nil || errors.Is(err, errs.ErrAuthFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrNotReady, err)
}

// Run refreshes every interval until ctx is done. Failures are logged and the
// next tick polls again.
func (c *Coordinator[T]) Run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			_ = c.Refresh(ctx)
		}
	}
}

func (c *Coordinator[T]) finish(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.lastRefresh = c.now()
	c.mu.Unlock()
	c.lastSuccess.Store(err == nil)
}

func (c *Coordinator[T]) notify() {
	c.mu.RLock()
	fns := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func mapFailure(err error) error {
	if errors.Is(err, errs.ErrAuthentication) {
		return fmt.Errorf("%w: %w", errs.ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: %w", errs.ErrUpdateFailed, err)
}

package limiter

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	fails        int
	updatedAt    time.Time
	blockedUntil time.Time
}

// Memory is an in-process limiter with the same semantics as PG.
type Memory struct {
	mu       sync.Mutex
	counters map[string]*counter
	window   time.Duration
	maxFails int
	blockFor time.Duration
	now      func() time.Time
}

// NewMemory constructs an in-process limiter.
func NewMemory(window time.Duration, maxFails int, blockFor time.Duration) *Memory {
	return &Memory{
		counters: map[string]*counter{},
		window:   window,
		maxFails: maxFails,
		blockFor: blockFor,
		now:      time.Now,
	}
}

func key(email string, sourceHash []byte) string { return email + "\x00" + string(sourceHash) }

// Allow reports whether validation is currently allowed.
func (m *Memory) Allow(_ context.Context, email string, sourceHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.counters[key(email, sourceHash)]
	if !ok {
		return true, 0, nil
	}
	if now := m.now(); c.blockedUntil.After(now) {
		return false, c.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success forgets the counter.
func (m *Memory) Success(_ context.Context, email string, sourceHash []byte) error {
	m.mu.Lock()
	delete(m.counters, key(email, sourceHash))
	m.mu.Unlock()
	return nil
}

// Failure counts a rejected attempt inside the window and blocks at the threshold.
func (m *Memory) Failure(_ context.Context, email string, sourceHash []byte) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	k := key(email, sourceHash)
	c, ok := m.counters[k]
	if !ok || now.Sub(c.updatedAt) > m.window {
		c = &counter{}
		m.counters[k] = c
	}
	c.fails++
	c.updatedAt = now
	if c.fails >= m.maxFails {
		c.blockedUntil = now.Add(m.blockFor)
		return true, m.blockFor, nil
	}
	return false, 0, nil
}

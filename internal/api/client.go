// Package api wraps the blocking BonusDrive client for use by the update
// coordinator: calls run on a bounded executor, authentication happens lazily
// before the first call, and every failure is classified into the errs client
// taxonomy.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/bonusdrive"
	"github.com/and161185/bonusdrive/internal/convert"
	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/executor"
	"github.com/and161185/bonusdrive/internal/model"
)

// Vendor is the blocking client being wrapped. *bonusdrive.Client implements it.
type Vendor interface {
	Authenticate(ctx context.Context) error
	GetScores(ctx context.Context, startDate, endDate string) (map[string]bonusdrive.Scores, error)
	GetTrips(ctx context.Context, amount, offset int) ([]bonusdrive.Trip, error)
	GetBadges(ctx context.Context, badgeType, startDate, endDate string) ([]bonusdrive.Badge, error)
	GetVehicleID(ctx context.Context) (string, error)
	GetTripDetails(ctx context.Context, tripID string) (*bonusdrive.Trip, error)
}

var _ Vendor = (*bonusdrive.Client)(nil)

// SessionState tracks whether Authenticate has succeeded.
type SessionState int32

const (
	Unauthenticated SessionState = iota
	Authenticated
)

func (s SessionState) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// DefaultTripsAmount is the page size used when a non-positive amount is passed.
const DefaultTripsAmount = 10

// authMarkers are the substrings that mark an authentication failure.
var authMarkers = []string{"401", "403", "auth"}

// Client is the async wrapper. It is safe for use by one coordinator plus
// occasional concurrent readers of State.
type Client struct {
	vendor Vendor
	pool   *executor.Pool
	state  atomic.Int32
	log    *zap.Logger
}

// New wraps vendor. Blocking calls run on pool.
func New(vendor Vendor, pool *executor.Pool, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if pool == nil {
		pool = executor.New(1)
	}
	return &Client{vendor: vendor, pool: pool, log: log}
}

// State reports the current session state.
func (c *Client) State() SessionState { return SessionState(c.state.Load()) }

// Reset forgets the session; the next call authenticates again.
func (c *Client) Reset() { c.state.Store(int32(Unauthenticated)) }

// Authenticate logs in and marks the session authenticated.
// Failures are ErrAuthentication when the message mentions 401, 403 or auth,
// and ErrCommunication otherwise.
func (c *Client) Authenticate(ctx context.Context) error {
	err := executor.Do(ctx, c.pool, c.vendor.Authenticate)
	if err != nil {
		return classifyAuthFailure(err)
	}
	c.state.Store(int32(Authenticated))
	c.log.Debug("authenticated")
	return nil
}

func (c *Client) ensureAuthenticated(ctx context.Context) error {
	if c.State() == Authenticated {
		return nil
	}
	return c.Authenticate(ctx)
}

// GetScores returns scores keyed by date. An empty or undecodable body is no data.
func (c *Client) GetScores(ctx context.Context, startDate, endDate string) (map[string]model.Scores, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	res, err := executor.Run(ctx, c.pool, func(ctx context.Context) (map[string]bonusdrive.Scores, error) {
		return c.vendor.GetScores(ctx, startDate, endDate)
	})
	if err != nil {
		if errors.Is(err, bonusdrive.ErrEmptyBody) {
			return map[string]model.Scores{}, nil
		}
		return nil, c.communication("Error fetching scores", err)
	}
	return convert.Scores(res), nil
}

// GetTrips lists trips newest first.
func (c *Client) GetTrips(ctx context.Context, amount, offset int) ([]model.Trip, error) {
	if amount <= 0 {
		amount = DefaultTripsAmount
	}
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	res, err := executor.Run(ctx, c.pool, func(ctx context.Context) ([]bonusdrive.Trip, error) {
		return c.vendor.GetTrips(ctx, amount, offset)
	})
	if err != nil {
		return nil, c.communication("Error fetching trips", err)
	}
	return convert.Trips(res), nil
}

// GetBadges lists badges of badgeType. An empty or undecodable body is no data.
func (c *Client) GetBadges(ctx context.Context, badgeType model.BadgeType, startDate, endDate string) ([]model.Badge, error) {
	if badgeType == "" {
		badgeType = model.BadgeDaily
	}
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	res, err := executor.Run(ctx, c.pool, func(ctx context.Context) ([]bonusdrive.Badge, error) {
		return c.vendor.GetBadges(ctx, string(badgeType), startDate, endDate)
	})
	if err != nil {
		if errors.Is(err, bonusdrive.ErrEmptyBody) {
			return []model.Badge{}, nil
		}
		return nil, c.communication("Error fetching badges", err)
	}
	return convert.Badges(res), nil
}

// GetVehicleID returns the vehicle bound to the account.
func (c *Client) GetVehicleID(ctx context.Context) (string, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return "", err
	}
	id, err := executor.Run(ctx, c.pool, c.vendor.GetVehicleID)
	if err != nil {
		return "", c.communication("Error fetching vehicle ID", err)
	}
	return id, nil
}

// GetTripDetails loads a trip including its decoded path and geocoded places.
func (c *Client) GetTripDetails(ctx context.Context, tripID string) (*model.Trip, error) {
	if err := c.ensureAuthenticated(ctx); err != nil {
		return nil, err
	}
	res, err := executor.Run(ctx, c.pool, func(ctx context.Context) (*bonusdrive.Trip, error) {
		return c.vendor.GetTripDetails(ctx, tripID)
	})
	if err != nil {
		return nil, c.communication("Error fetching trip details", err)
	}
	return convert.Trip(res), nil
}

// communication wraps a downstream failure. A vendor 401 also drops the
// session so that the next call logs in again.
func (c *Client) communication(what string, err error) error {
	var se *bonusdrive.StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		c.Reset()
		c.log.Info("session rejected by vendor, will re-authenticate", zap.String("op", what))
	}
	return errs.Communication(fmt.Sprintf("%s: %v", what, err), err)
}

func classifyAuthFailure(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, m := range authMarkers {
		if strings.Contains(lower, m) {
			return errs.Authentication(msg, err)
		}
	}
	return errs.Communication(msg, err)
}

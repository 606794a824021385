// Package service contains the BonusDrive refresh cycle and the config flow.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/bonusdrive/internal/model"
)

// dateLayout is the vendor's calendar date format.
const dateLayout = "2006-01-02"

// BonusDriveAPI is the part of the API wrapper used by the refresh cycle.
type BonusDriveAPI interface {
	GetTrips(ctx context.Context, amount, offset int) ([]model.Trip, error)
	GetTripDetails(ctx context.Context, tripID string) (*model.Trip, error)
	GetBadges(ctx context.Context, badgeType model.BadgeType, startDate, endDate string) ([]model.Badge, error)
	GetScores(ctx context.Context, startDate, endDate string) (map[string]model.Scores, error)
}

// Updater builds one Snapshot per call. It is the coordinator's update function.
type Updater struct {
	api BonusDriveAPI
	now func() time.Time
	log *zap.Logger
}

// NewUpdater constructs an Updater. now defaults to time.Now.
func NewUpdater(api BonusDriveAPI, now func() time.Time, log *zap.Logger) *Updater {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Updater{api: api, now: now, log: log}
}

// Update runs the steps in order: latest trip, its details, daily badge,
// monthly badge, today's scores. Any failing step aborts the cycle.
func (u *Updater) Update(ctx context.Context) (model.Snapshot, error) {
	trips, err := u.api.GetTrips(ctx, 1, 0)
	if err != nil {
		return model.Snapshot{}, err
	}
	var lastTrip *model.Trip
	if len(trips) > 0 {
		lastTrip, err = u.api.GetTripDetails(ctx, trips[0].ID)
		if err != nil {
			return model.Snapshot{}, err
		}
	}

	now := u.now().UTC()
	today := now.Format(dateLayout)
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(dateLayout)

	daily, err := u.api.GetBadges(ctx, model.BadgeDaily, today, today)
	if err != nil {
		return model.Snapshot{}, err
	}
	monthly, err := u.api.GetBadges(ctx, model.BadgeMonthly, firstOfMonth, today)
	if err != nil {
		return model.Snapshot{}, err
	}
	scores, err := u.api.GetScores(ctx, today, today)
	if err != nil {
		return model.Snapshot{}, err
	}

	snap := model.Snapshot{
		LastTrip:     lastTrip,
		DailyBadge:   first(daily),
		MonthlyBadge: first(monthly),
		FetchedAt:    now,
	}
	if s, ok := scores[today]; ok {
		snap.DailyScores = &s
	}

	u.log.Debug("snapshot assembled",
		zap.Bool("has_trip", snap.LastTrip != nil),
		zap.Bool("has_daily_badge", snap.DailyBadge != nil),
		zap.Bool("has_monthly_badge", snap.MonthlyBadge != nil),
		zap.Bool("has_daily_scores", snap.DailyScores != nil),
	)
	return snap, nil
}

func first(bs []model.Badge) *model.Badge {
	if len(bs) == 0 {
		return nil
	}
	b := bs[0]
	return &b
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/bonusdrive/internal/api"
	"github.com/and161185/bonusdrive/internal/bonusdrive"
	"github.com/and161185/bonusdrive/internal/coordinator"
	"github.com/and161185/bonusdrive/internal/errs"
	"github.com/and161185/bonusdrive/internal/executor"
	"github.com/and161185/bonusdrive/internal/model"
	"github.com/and161185/bonusdrive/internal/sensor"
)

var fixedNow = time.Date(2026, 10, 19, 23, 30, 0, 0, time.FixedZone("CEST", 2*3600))

type badgeCall struct {
	typ        model.BadgeType
	start, end string
}

type fakeAPI struct {
	calls      []string
	trips      []model.Trip
	details    map[string]*model.Trip
	badges     map[model.BadgeType][]model.Badge
	scores     map[string]model.Scores
	failOn     string
	err        error
	badgeCalls []badgeCall
	scoreRange [2]string
}

var _ BonusDriveAPI = (*fakeAPI)(nil)

func (f *fakeAPI) step(name string) error {
	f.calls = append(f.calls, name)
	if f.failOn == name {
		return f.err
	}
	return nil
}

func (f *fakeAPI) GetTrips(_ context.Context, amount, offset int) ([]model.Trip, error) {
	if err := f.step("trips"); err != nil {
		return nil, err
	}
	return f.trips, nil
}
func (f *fakeAPI) GetTripDetails(_ context.Context, id string) (*model.Trip, error) {
	if err := f.step("details:" + id); err != nil {
		return nil, err
	}
	return f.details[id], nil
}
func (f *fakeAPI) GetBadges(_ context.Context, typ model.BadgeType, start, end string) ([]model.Badge, error) {
	f.badgeCalls = append(f.badgeCalls, badgeCall{typ, start, end})
	if err := f.step("badges:" + string(typ)); err != nil {
		return nil, err
	}
	return f.badges[typ], nil
}
func (f *fakeAPI) GetScores(_ context.Context, start, end string) (map[string]model.Scores, error) {
	f.scoreRange = [2]string{start, end}
	if err := f.step("scores"); err != nil {
		return nil, err
	}
	return f.scores, nil
}

func TestUpdate_OrderDatesAndAssembly(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{
		trips:   []model.Trip{{ID: "T1"}, {ID: "T0"}},
		details: map[string]*model.Trip{"T1": {ID: "T1", Score: 87}},
		badges: map[model.BadgeType][]model.Badge{
			model.BadgeMonthly: {{Level: 2}, {Level: 1}},
		},
		scores: map[string]model.Scores{"2026-10-19": {Overall: 90}, "2026-10-18": {Overall: 10}},
	}
	u := NewUpdater(f, func() time.Time { return fixedNow }, zaptest.NewLogger(t))

	snap, err := u.Update(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"trips", "details:T1", "badges:daily", "badges:monthly", "scores"}, f.calls)

	// 23:30 CEST is 21:30 UTC on the same day.
	require.Equal(t, []badgeCall{
		{model.BadgeDaily, "2026-10-19", "2026-10-19"},
		{model.BadgeMonthly, "2026-10-01", "2026-10-19"},
	}, f.badgeCalls)
	require.Equal(t, [2]string{"2026-10-19", "2026-10-19"}, f.scoreRange)

	require.Equal(t, "T1", snap.LastTrip.ID)
	require.Nil(t, snap.DailyBadge)
	require.Equal(t, 2, snap.MonthlyBadge.Level)
	require.Equal(t, 90.0, snap.DailyScores.Overall)
	require.Equal(t, time.UTC, snap.FetchedAt.Location())
}

func TestUpdate_UTCDayBoundary(t *testing.T) {
	t.Parallel()
	f := &fakeAPI{}
	// 00:30 in UTC+2 on Nov 1st is still Oct 31st in UTC.
	now := time.Date(2026, 11, 1, 0, 30, 0, 0, time.FixedZone("X", 2*3600))
	u := NewUpdater(f, func() time.Time { return now }, nil)

	snap, err := u.Update(context.Background())
	require.NoError(t, err)
	require.Nil(t, snap.LastTrip)
	require.Nil(t, snap.DailyScores)
	require.Equal(t, []string{"trips", "badges:daily", "badges:monthly", "scores"}, f.calls)
	require.Equal(t, badgeCall{model.BadgeMonthly, "2026-10-01", "2026-10-31"}, f.badgeCalls[1])
}

func TestUpdate_AbortsOnFirstFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	cases := []struct {
		failOn string
		want   []string
	}{
		{"trips", []string{"trips"}},
		{"details:T1", []string{"trips", "details:T1"}},
		{"badges:daily", []string{"trips", "details:T1", "badges:daily"}},
		{"badges:monthly", []string{"trips", "details:T1", "badges:daily", "badges:monthly"}},
		{"scores", []string{"trips", "details:T1", "badges:daily", "badges:monthly", "scores"}},
	}
	for _, tc := range cases {
		t.Run(tc.failOn, func(t *testing.T) {
			t.Parallel()
			f := &fakeAPI{trips: []model.Trip{{ID: "T1"}}, failOn: tc.failOn, err: boom}
			u := NewUpdater(f, func() time.Time { return fixedNow }, nil)

			_, err := u.Update(context.Background())
			require.ErrorIs(t, err, boom)
			require.Equal(t, tc.want, f.calls)
		})
	}
}

type e2eVendor struct {
	authErr error
	trips   []bonusdrive.Trip
	details map[string]*bonusdrive.Trip
	badges  map[string][]bonusdrive.Badge
}

var _ api.Vendor = (*e2eVendor)(nil)

func (v *e2eVendor) Authenticate(context.Context) error { return v.authErr }
func (v *e2eVendor) GetScores(context.Context, string, string) (map[string]bonusdrive.Scores, error) {
	return nil, bonusdrive.ErrEmptyBody
}
func (v *e2eVendor) GetTrips(context.Context, int, int) ([]bonusdrive.Trip, error) {
	return v.trips, nil
}
func (v *e2eVendor) GetBadges(_ context.Context, typ, _, _ string) ([]bonusdrive.Badge, error) {
	return v.badges[typ], nil
}
func (v *e2eVendor) GetVehicleID(context.Context) (string, error) { return "V1", nil }
func (v *e2eVendor) GetTripDetails(_ context.Context, id string) (*bonusdrive.Trip, error) {
	return v.details[id], nil
}

func newPipeline(t *testing.T, v api.Vendor) *coordinator.Coordinator[model.Snapshot] {
	t.Helper()
	log := zaptest.NewLogger(t)
	client := api.New(v, executor.New(1), log)
	u := NewUpdater(client, func() time.Time { return fixedNow }, log)
	return coordinator.New(u.Update, coordinator.Options{Name: "e2e", Log: log})
}

func TestEndToEnd_Snapshot(t *testing.T) {
	t.Parallel()
	v := &e2eVendor{
		trips:   []bonusdrive.Trip{{TripID: "T1"}},
		details: map[string]*bonusdrive.Trip{"T1": {TripID: "T1", TripScore: 87, Seconds: 3725}},
		badges: map[string][]bonusdrive.Badge{
			"daily":   {},
			"monthly": {{Level: 2, PointsAwarded: 120, State: "IN_PROGRESS"}},
		},
	}
	c := newPipeline(t, v)
	require.NoError(t, c.FirstRefresh(context.Background()))

	snap, ok := c.Data()
	require.True(t, ok)
	require.Equal(t, 87.0, snap.LastTrip.Score)
	require.Equal(t, "1:02:05", sensor.FormatDuration(snap.LastTrip.Seconds))
	require.Nil(t, snap.DailyBadge)
	require.Nil(t, snap.DailyScores)
	require.Equal(t, 2, snap.MonthlyBadge.Level)

	sensors := sensor.New(sensor.Config{EntryID: "e1"}, c)
	for _, s := range sensors {
		switch s.Key() {
		case sensor.KeyMonthlyBadge:
			val, ok := s.Value()
			require.True(t, ok)
			require.Equal(t, "silver", val)
			require.Equal(t, "January 1970", s.Attributes()["month"])
		case sensor.KeyLastTrip:
			val, _ := s.Value()
			require.Equal(t, "87", val)
			require.Equal(t, "1:02:05", s.Attributes()["duration"])
			require.Equal(t, "1970-01-01T00:00:00+00:00", s.Attributes()["start_time"])
		case sensor.KeyDailyBadge:
			_, ok := s.Value()
			require.False(t, ok)
		}
	}
}

func TestEndToEnd_AuthFailureDoesNotPublish(t *testing.T) {
	t.Parallel()
	v := &e2eVendor{authErr: &bonusdrive.StatusError{Method: "POST", Path: "/api/v1/sessions", Code: 401}}
	c := newPipeline(t, v)

	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, errs.ErrAuthFailed)
	require.ErrorIs(t, err, errs.ErrAuthentication)
	_, ok := c.Data()
	require.False(t, ok)
	require.False(t, c.Available())
}

package convert

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/and161185/bonusdrive/internal/bonusdrive"
	"github.com/and161185/bonusdrive/internal/model"
)

func TestTrip_FullMapping(t *testing.T) {
	t.Parallel()

	in := &bonusdrive.Trip{
		TripID:                "T1",
		TripScore:             87,
		Kilometers:            12.345,
		Seconds:               3725,
		AvgKilometersPerHour:  30.5,
		MaxKilometersPerHour:  88.2,
		TripStartTimestampUtc: 1_760_000_000_000,
		TripEndTimestampUtc:   1_760_003_725_000,
		User:                  &bonusdrive.User{PublicDisplayName: "Kim"},
		TripScores: &bonusdrive.TripScores{Scores: &bonusdrive.ScoreBreakdown{
			Speeding: 90, HarshBraking: 80, HarshAcceleration: 70, HarshCornering: 60, Payd: 50,
		}},
		DecodedGeometry:  [][]float64{{48.1, 11.5}, {1}, {48.2, 11.6}},
		StartPointString: "Munich",
		EndPointString:   "Freising",
	}

	want := &model.Trip{
		ID:                   "T1",
		Score:                87,
		Kilometers:           12.345,
		Seconds:              3725,
		AvgKilometersPerHour: 30.5,
		MaxKilometersPerHour: 88.2,
		StartedAt:            time.UnixMilli(1_760_000_000_000).UTC(),
		EndedAt:              time.UnixMilli(1_760_003_725_000).UTC(),
		DriverName:           "Kim",
		Scores:               &model.TripScores{Speeding: 90, HarshBraking: 80, HarshAcceleration: 70, HarshCornering: 60, Payd: 50},
		Path:                 []model.Coordinate{{Lat: 48.1, Lon: 11.5}, {Lat: 48.2, Lon: 11.6}},
		StartPlace:           "Munich",
		EndPlace:             "Freising",
	}

	require.Empty(t, cmp.Diff(want, Trip(in)))
}

func TestTrip_NilAndSparse(t *testing.T) {
	t.Parallel()

	require.Nil(t, Trip(nil))

	got := Trip(&bonusdrive.Trip{TripID: "T2"})
	require.Equal(t, "T2", got.ID)
	require.Empty(t, got.DriverName)
	require.Nil(t, got.Scores)
	require.Nil(t, got.Path)
	require.Equal(t, time.Unix(0, 0).UTC(), got.StartedAt)
	require.Equal(t, time.Unix(0, 0).UTC(), got.EndedAt)
	require.False(t, got.StartedAt.IsZero())
}

func TestFromMillis(t *testing.T) {
	t.Parallel()
	require.Equal(t, time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC), FromMillis(0))
	require.Equal(t, time.Date(2025, 10, 9, 8, 53, 20, 0, time.UTC), FromMillis(1_760_000_000_000))
	require.Equal(t, time.UTC, FromMillis(1).Location())
}

func TestBadges_And_Scores(t *testing.T) {
	t.Parallel()

	bs := Badges([]bonusdrive.Badge{{Level: 2, PointsAwarded: 10, State: "achieved", Date: 1_760_000_000_000}})
	require.Len(t, bs, 1)
	require.Equal(t, 2, bs[0].Level)
	require.Equal(t, time.UnixMilli(1_760_000_000_000).UTC(), bs[0].Date)

	sc := Scores(map[string]bonusdrive.Scores{"2026-10-19": {Overall: 88, Mileage: 12.5}})
	require.Equal(t, model.Scores{Overall: 88, Mileage: 12.5}, sc["2026-10-19"])

	require.Empty(t, Trips(nil))
}

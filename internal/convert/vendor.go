// Package convert maps vendor client payloads onto domain types.
package convert

import (
	"time"

	"github.com/and161185/bonusdrive/internal/bonusdrive"
	"github.com/and161185/bonusdrive/internal/model"
)

// minCoordLen is the number of values needed for a lat/lon pair.
const minCoordLen = 2

// FromMillis converts epoch milliseconds to UTC time. A missing (zero)
// timestamp is the Unix epoch, never the zero time.Time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Trip maps a vendor trip. A nil trip maps to nil.
func Trip(t *bonusdrive.Trip) *model.Trip {
	if t == nil {
		return nil
	}
	out := &model.Trip{
		ID:                   t.TripID,
		Score:                t.TripScore,
		Kilometers:           t.Kilometers,
		Seconds:              t.Seconds,
		AvgKilometersPerHour: t.AvgKilometersPerHour,
		MaxKilometersPerHour: t.MaxKilometersPerHour,
		StartedAt:            FromMillis(t.TripStartTimestampUtc),
		EndedAt:              FromMillis(t.TripEndTimestampUtc),
		StartPlace:           t.StartPointString,
		EndPlace:             t.EndPointString,
	}
	if t.User != nil {
		out.DriverName = t.User.PublicDisplayName
	}
	if t.TripScores != nil && t.TripScores.Scores != nil {
		s := t.TripScores.Scores
		out.Scores = &model.TripScores{
			Speeding:          s.Speeding,
			HarshBraking:      s.HarshBraking,
			HarshAcceleration: s.HarshAcceleration,
			HarshCornering:    s.HarshCornering,
			Payd:              s.Payd,
		}
	}
	if len(t.DecodedGeometry) > 0 {
		out.Path = make([]model.Coordinate, 0, len(t.DecodedGeometry))
		for _, p := range t.DecodedGeometry {
			if len(p) < minCoordLen {
				continue
			}
			out.Path = append(out.Path, model.Coordinate{Lat: p[0], Lon: p[1]})
		}
	}
	return out
}

// Trips maps a list of vendor trips.
func Trips(ts []bonusdrive.Trip) []model.Trip {
	out := make([]model.Trip, 0, len(ts))
	for i := range ts {
		out = append(out, *Trip(&ts[i]))
	}
	return out
}

// Badge maps a vendor badge.
func Badge(b bonusdrive.Badge) model.Badge {
	return model.Badge{
		Level:         b.Level,
		PointsAwarded: b.PointsAwarded,
		State:         b.State,
		Date:          FromMillis(b.Date),
	}
}

// Badges maps a list of vendor badges.
func Badges(bs []bonusdrive.Badge) []model.Badge {
	out := make([]model.Badge, 0, len(bs))
	for _, b := range bs {
		out = append(out, Badge(b))
	}
	return out
}

// Scores maps a date-keyed score map.
func Scores(in map[string]bonusdrive.Scores) map[string]model.Scores {
	out := make(map[string]model.Scores, len(in))
	for day, s := range in {
		out[day] = model.Scores{
			Speeding:          s.Speeding,
			HarshBraking:      s.HarshBraking,
			HarshAcceleration: s.HarshAcceleration,
			HarshCornering:    s.HarshCornering,
			Payd:              s.Payd,
			Mileage:           s.Mileage,
			Overall:           s.Overall,
		}
	}
	return out
}

// Package sensor projects coordinator snapshots into read-only sensor entities.
package sensor

import (
	"strconv"

	"github.com/and161185/bonusdrive/internal/coordinator"
	"github.com/and161185/bonusdrive/internal/model"
)

// Identity of the integration as shown on every entity.
const (
	Domain      = "bonusdrive"
	Attribution = "Data provided by Allianz BonusDrive"
)

// Entity keys.
const (
	KeyLastTrip     = "last_trip"
	KeyDailyBadge   = "daily_badge"
	KeyMonthlyBadge = "monthly_badge"
)

// State values used when there is no native value.
const (
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

const stateClassMeasurement = "measurement"

// minPathPoints is the number of path points needed for start/end coordinates.
const minPathPoints = 2

// DeviceInfo groups the entities of one entry.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// Config identifies the entry a sensor belongs to.
type Config struct {
	EntryID      string
	ObjectPrefix string // entity_id prefix, e.g. "bonusdrive_kim"
	// PhotonConfigured enables the start/end location attributes.
	PhotonConfigured bool
}

type description struct {
	key        string
	icon       string
	stateClass string
	value      func(model.Snapshot) (string, bool)
	attributes func(model.Snapshot, Config) map[string]any
}

var descriptions = []description{
	{key: KeyLastTrip, icon: "mdi:car-connected", stateClass: stateClassMeasurement, value: lastTripValue, attributes: lastTripAttributes},
	{key: KeyDailyBadge, icon: "mdi:medal", stateClass: stateClassMeasurement, value: dailyBadgeValue, attributes: dailyBadgeAttributes},
	{key: KeyMonthlyBadge, icon: "mdi:trophy", value: monthlyBadgeValue, attributes: monthlyBadgeAttributes},
}

// Sensor is one entity over a snapshot provider. It never writes the snapshot.
type Sensor struct {
	desc     description
	cfg      Config
	provider coordinator.Provider[model.Snapshot]
}

// New builds the three sensors of an entry.
func New(cfg Config, p coordinator.Provider[model.Snapshot]) []*Sensor {
	if cfg.ObjectPrefix == "" {
		cfg.ObjectPrefix = Domain
	}
	out := make([]*Sensor, 0, len(descriptions))
	for _, d := range descriptions {
		out = append(out, &Sensor{desc: d, cfg: cfg, provider: p})
	}
	return out
}

// Key returns the entity key, e.g. "last_trip".
func (s *Sensor) Key() string { return s.desc.key }

// UniqueID is "<entry_id>_<key>".
func (s *Sensor) UniqueID() string { return s.cfg.EntryID + "_" + s.desc.key }

// EntityID is "sensor.<prefix>_<key>".
func (s *Sensor) EntityID() string { return "sensor." + s.cfg.ObjectPrefix + "_" + s.desc.key }

// Icon returns the mdi icon name.
func (s *Sensor) Icon() string { return s.desc.icon }

// Available follows the provider's last refresh outcome.
func (s *Sensor) Available() bool { return s.provider.Available() }

// Value returns the native state value, false when there is none.
func (s *Sensor) Value() (string, bool) {
	snap, ok := s.provider.Data()
	if !ok {
		return "", false
	}
	return s.desc.value(snap)
}

// Attributes returns the extra state attributes, nil when there are none.
func (s *Sensor) Attributes() map[string]any {
	snap, ok := s.provider.Data()
	if !ok {
		return nil
	}
	return s.desc.attributes(snap, s.cfg)
}

// Device returns the device the entity belongs to.
func (s *Sensor) Device() DeviceInfo {
	return DeviceInfo{
		Identifiers:  []string{Domain + ":" + s.cfg.EntryID},
		Name:         "BonusDrive",
		Manufacturer: "Allianz",
		Model:        "BonusDrive",
	}
}

func lastTripValue(snap model.Snapshot) (string, bool) {
	if snap.LastTrip == nil {
		return "", false
	}
	return strconv.Itoa(int(snap.LastTrip.Score)), true
}

func lastTripAttributes(snap model.Snapshot, cfg Config) map[string]any {
	trip := snap.LastTrip
	if trip == nil {
		return nil
	}

	var driver any
	if trip.DriverName != "" {
		driver = trip.DriverName
	}
	attrs := map[string]any{
		"distance_km":   round(trip.Kilometers, 2),
		"duration":      FormatDuration(trip.Seconds),
		"driven_by":     driver,
		"avg_speed_kmh": round(trip.AvgKilometersPerHour, 1),
		"max_speed_kmh": round(trip.MaxKilometersPerHour, 1),
		"start_time":    isoTime(trip.StartedAt),
		"end_time":      isoTime(trip.EndedAt),
	}

	if len(trip.Path) >= minPathPoints {
		start, end := trip.Path[0], trip.Path[len(trip.Path)-1]
		attrs["start_latitude"] = FormatLatitude(start.Lat)
		attrs["start_longitude"] = FormatLongitude(start.Lon)
		attrs["end_latitude"] = FormatLatitude(end.Lat)
		attrs["end_longitude"] = FormatLongitude(end.Lon)
	}

	if cfg.PhotonConfigured {
		if trip.StartPlace != "" {
			attrs["start_location"] = trip.StartPlace
		}
		if trip.EndPlace != "" {
			attrs["end_location"] = trip.EndPlace
		}
	}

	if sc := trip.Scores; sc != nil {
		attrs["speeding_score"] = round(sc.Speeding, 1)
		attrs["harsh_braking_score"] = round(sc.HarshBraking, 1)
		attrs["harsh_acceleration_score"] = round(sc.HarshAcceleration, 1)
		attrs["harsh_cornering_score"] = round(sc.HarshCornering, 1)
		attrs["payd_score"] = round(sc.Payd, 1)
	}
	return attrs
}

func dailyBadgeValue(snap model.Snapshot) (string, bool) {
	if snap.DailyScores == nil {
		return "", false
	}
	return formatScore(snap.DailyScores.Overall), true
}

func dailyBadgeAttributes(snap model.Snapshot, _ Config) map[string]any {
	attrs := map[string]any{}
	if sc := snap.DailyScores; sc != nil {
		attrs["speeding_score"] = round(sc.Speeding, 1)
		attrs["harsh_braking_score"] = round(sc.HarshBraking, 1)
		attrs["harsh_acceleration_score"] = round(sc.HarshAcceleration, 1)
		attrs["harsh_cornering_score"] = round(sc.HarshCornering, 1)
		attrs["payd_score"] = round(sc.Payd, 1)
		attrs["mileage"] = round(sc.Mileage, 1)
	}
	if b := snap.DailyBadge; b != nil {
		attrs["level"] = b.Level
		attrs["medal"] = Medal(b.Level)
		attrs["points_awarded"] = b.PointsAwarded
		attrs["badge_state"] = b.State
		attrs["date"] = b.Date.UTC().Format("2006-01-02")
	}
	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

func monthlyBadgeValue(snap model.Snapshot) (string, bool) {
	if snap.MonthlyBadge == nil {
		return "", false
	}
	return Medal(snap.MonthlyBadge.Level), true
}

func monthlyBadgeAttributes(snap model.Snapshot, _ Config) map[string]any {
	b := snap.MonthlyBadge
	if b == nil {
		return nil
	}
	return map[string]any{
		"level":          b.Level,
		"points_awarded": b.PointsAwarded,
		"badge_state":    b.State,
		"month":          b.Date.UTC().Format("January 2006"),
	}
}

// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// DefaultBaseURL is the vendor endpoint used when an entry does not override it.
const DefaultBaseURL = "https://bonusdrive.drivesync.com"

// Coordinate is a single decoded path point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// TripScores holds the per-category breakdown of a single trip.
type TripScores struct {
	Speeding          float64
	HarshBraking      float64
	HarshAcceleration float64
	HarshCornering    float64
	Payd              float64
}

// Trip is an immutable record produced by the vendor API.
type Trip struct {
	ID                   string
	Score                float64
	Kilometers           float64
	Seconds              int64
	AvgKilometersPerHour float64
	MaxKilometersPerHour float64
	StartedAt            time.Time
	EndedAt              time.Time
	DriverName           string       // empty if the vendor omits the driver
	Scores               *TripScores  // nil if not scored yet
	Path                 []Coordinate // nil unless trip details were fetched
	StartPlace           string       // reverse-geocoded, empty without Photon
	EndPlace             string
}

// Badge is a periodic (daily/monthly) achievement record.
type Badge struct {
	Level         int
	PointsAwarded int
	State         string
	Date          time.Time
}

// BadgeType selects the badge period.
type BadgeType string

const (
	BadgeDaily   BadgeType = "daily"
	BadgeMonthly BadgeType = "monthly"
)

// Scores is a per-day score breakdown.
type Scores struct {
	Speeding          float64
	HarshBraking      float64
	HarshAcceleration float64
	HarshCornering    float64
	Payd              float64
	Mileage           float64
	Overall           float64
}

// Snapshot is the consolidated result of one poll cycle. Nil fields mean "absent".
type Snapshot struct {
	LastTrip     *Trip
	DailyBadge   *Badge
	MonthlyBadge *Badge
	DailyScores  *Scores
	FetchedAt    time.Time
}

// EntryData holds the credentials of a config entry.
type EntryData struct {
	Email     string
	Password  string
	BaseURL   string
	PhotonURL string // optional geocoding service
}

// Entry is a stored config entry.
type Entry struct {
	ID        uuid.UUID // PK
	UniqueID  string    // slug(email), unique
	Title     string
	Data      EntryData
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EntryState mirrors the lifecycle of a loaded entry.
type EntryState string

const (
	EntryNotLoaded      EntryState = "not_loaded"
	EntryLoaded         EntryState = "loaded"
	EntrySetupRetry     EntryState = "setup_retry"
	EntrySetupError     EntryState = "setup_error"
	EntryReauthRequired EntryState = "reauth_required"
)

// TripRecord is a trip persisted in the trip log.
type TripRecord struct {
	EntryID    uuid.UUID
	Trip       Trip
	RecordedAt time.Time
}

package bonusdrive

// Trip is the vendor trip payload. DecodedGeometry and the point strings are
// filled by GetTripDetails, never by the server.
type Trip struct {
	TripID                string      `json:"tripId"`
	TripScore             float64     `json:"tripScore"`
	Kilometers            float64     `json:"kilometers"`
	Seconds               int64       `json:"seconds"`
	AvgKilometersPerHour  float64     `json:"avgKilometersPerHour"`
	MaxKilometersPerHour  float64     `json:"maxKilometersPerHour"`
	TripStartTimestampUtc int64       `json:"tripStartTimestampUtc"`
	TripEndTimestampUtc   int64       `json:"tripEndTimestampUtc"`
	User                  *User       `json:"user,omitempty"`
	TripScores            *TripScores `json:"tripScores,omitempty"`
	Geometry              string      `json:"geometry,omitempty"`

	DecodedGeometry  [][]float64 `json:"-"`
	StartPointString string      `json:"-"`
	EndPointString   string      `json:"-"`
}

// User is the driver attached to a trip.
type User struct {
	PublicDisplayName string `json:"publicDisplayName"`
}

// TripScores wraps the per-trip score breakdown.
type TripScores struct {
	Scores *ScoreBreakdown `json:"scores,omitempty"`
}

// ScoreBreakdown is the per-category score of a trip.
type ScoreBreakdown struct {
	Speeding          float64 `json:"speeding"`
	HarshBraking      float64 `json:"harsh_braking"`
	HarshAcceleration float64 `json:"harsh_acceleration"`
	HarshCornering    float64 `json:"harsh_cornering"`
	Payd              float64 `json:"payd"`
}

// Scores is a per-day breakdown as returned by the scores endpoint.
type Scores struct {
	Speeding          float64 `json:"speeding"`
	HarshBraking      float64 `json:"harsh_braking"`
	HarshAcceleration float64 `json:"harsh_acceleration"`
	HarshCornering    float64 `json:"harsh_cornering"`
	Payd              float64 `json:"payd"`
	Mileage           float64 `json:"mileage"`
	Overall           float64 `json:"overall"`
}

// Badge is a daily or monthly badge. Date is epoch milliseconds.
type Badge struct {
	Level         int    `json:"level"`
	PointsAwarded int    `json:"pointsAwarded"`
	State         string `json:"state"`
	Date          int64  `json:"date"`
}

type ticketResponse struct {
	Ticket string `json:"ticket"`
}

type vehicleResponse struct {
	VehicleID string `json:"vehicleId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

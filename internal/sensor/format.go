package sensor

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DefaultMedal is the medal of any level missing from the table, including 4.
const DefaultMedal = "none"

var medals = map[int]string{
	1: "gold",
	2: "silver",
	3: "bronze",
	5: "red",
}

// Medal maps a badge level to its medal tier name.
func Medal(level int) string {
	if m, ok := medals[level]; ok {
		return m
	}
	return DefaultMedal
}

// FormatDuration renders total seconds as H:MM:SS with unbounded hours.
// Negative input is treated as zero.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// FormatLatitude renders lat as "N 48.100000" or "S 33.868800".
func FormatLatitude(lat float64) string {
	return cardinal(lat, "N", "S")
}

// FormatLongitude renders lon as "E 11.500000" or "W 0.127600".
func FormatLongitude(lon float64) string {
	return cardinal(lon, "E", "W")
}

func cardinal(v float64, pos, neg string) string {
	dir := pos
	if v < 0 {
		dir = neg
	}
	return fmt.Sprintf("%s %.6f", dir, math.Abs(v))
}

// round rounds v to n decimal places.
func round(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}

// formatScore renders a float score the way the sensor state shows it:
// integral values keep one decimal ("88.0"), others print in shortest form.
func formatScore(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// isoTime renders t in UTC as ISO-8601 with an explicit +00:00 offset.
func isoTime(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond() != 0 {
		return t.Format("2006-01-02T15:04:05.000000-07:00")
	}
	return t.Format("2006-01-02T15:04:05-07:00")
}

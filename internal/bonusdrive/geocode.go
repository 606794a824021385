package bonusdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type photonResponse struct {
	Features []struct {
		Properties photonProperties `json:"properties"`
	} `json:"features"`
}

type photonProperties struct {
	Name        string `json:"name"`
	Street      string `json:"street"`
	HouseNumber string `json:"housenumber"`
	Postcode    string `json:"postcode"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// coordPrecision matches the five decimals an encoded polyline carries.
const coordPrecision = 5

// reverseGeocode resolves a [lat, lon] point to a place string via Photon.
// Failures are logged and yield "".
func (c *Client) reverseGeocode(ctx context.Context, point []float64) string {
	if len(point) < 2 {
		return ""
	}
	place, err := c.lookupPlace(ctx, point[0], point[1])
	if err != nil {
		c.log.Warn("reverse geocode",
			zap.Float64("lat", point[0]),
			zap.Float64("lon", point[1]),
			zap.Error(err),
		)
		return ""
	}
	return place
}

func (c *Client) lookupPlace(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', coordPrecision, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', coordPrecision, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.photonURL+reversePath+"?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("photon: HTTP %d", resp.StatusCode)
	}

	var pr photonResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("photon: %w", err)
	}
	if len(pr.Features) == 0 {
		return "", nil
	}
	return formatPlace(pr.Features[0].Properties), nil
}

// formatPlace renders "name, street housenumber, postcode city" skipping blanks.
func formatPlace(p photonProperties) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if street := strings.TrimSpace(p.Street + " " + p.HouseNumber); street != "" && street != p.Name {
		parts = append(parts, street)
	}
	if locality := strings.TrimSpace(p.Postcode + " " + p.City); locality != "" {
		parts = append(parts, locality)
	}
	return strings.Join(parts, ", ")
}

// Package bonusdrive is a blocking HTTP client for the Allianz BonusDrive API.
//
// Every method performs network I/O on the calling goroutine. Callers that must
// not block (the update coordinator) go through internal/api, which offloads
// the calls to a bounded executor and classifies failures.
package bonusdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-polyline"
	"go.uber.org/zap"
)

// ErrEmptyBody is returned when a response body is empty or not valid JSON.
var ErrEmptyBody = errors.New("empty or undecodable response body")

// ErrNotAuthenticated is returned by data calls issued before Authenticate.
var ErrNotAuthenticated = errors.New("not authenticated: call Authenticate first")

// StatusError reports a non-2xx vendor response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.Path, e.Code, http.StatusText(e.Code))
}

const (
	sessionsPath = "/api/v1/sessions"
	tripsPath    = "/api/v1/trips"
	scoresPath   = "/api/v1/scores"
	badgesPath   = "/api/v1/badges"
	vehiclePath  = "/api/v1/vehicle"
	reversePath  = "/reverse"

	defaultTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	BaseURL   string
	Email     string
	Password  string
	PhotonURL string // optional; enables reverse geocoding of trip endpoints
	Ticket    string // optional pre-issued ticket
	Timeout   time.Duration
}

// Client talks to the BonusDrive REST API.
type Client struct {
	http      *http.Client
	baseURL   string
	email     string
	password  string
	photonURL string
	ticket    string
	log       *zap.Logger
}

// New constructs a Client. A nil logger disables logging.
func New(cfg Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		email:     cfg.Email,
		password:  cfg.Password,
		photonURL: strings.TrimRight(cfg.PhotonURL, "/"),
		ticket:    cfg.Ticket,
		log:       log,
	}
}

// Ticket returns the ticket obtained by the last successful Authenticate.
func (c *Client) Ticket() string { return c.ticket }

// Authenticate exchanges email and password for a ticket.
func (c *Client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{Email: c.email, Password: c.password})
	if err != nil {
		return err
	}
	var tr ticketResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+sessionsPath, bytes.NewReader(body), false, &tr); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if tr.Ticket == "" {
		return errors.New("login: response carried no ticket")
	}
	c.ticket = tr.Ticket
	return nil
}

// GetTrips lists trips, newest first.
func (c *Client) GetTrips(ctx context.Context, amount, offset int) ([]Trip, error) {
	q := url.Values{}
	q.Set("amount", strconv.Itoa(amount))
	q.Set("offset", strconv.Itoa(offset))

	var trips []Trip
	if err := c.get(ctx, tripsPath, q, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// GetTripDetails loads a single trip, decodes its geometry and, when a Photon
// URL is configured, reverse geocodes the first and last path point.
func (c *Client) GetTripDetails(ctx context.Context, tripID string) (*Trip, error) {
	var t Trip
	if err := c.get(ctx, tripsPath+"/"+url.PathEscape(tripID), nil, &t); err != nil {
		return nil, err
	}

	if t.Geometry != "" {
		coords, _, err := polyline.DecodeCoords([]byte(t.Geometry))
		if err != nil {
			c.log.Warn("decode trip geometry", zap.String("trip", tripID), zap.Error(err))
		} else {
			t.DecodedGeometry = coords
		}
	}

	if c.photonURL != "" && len(t.DecodedGeometry) >= 2 {
		first := t.DecodedGeometry[0]
		last := t.DecodedGeometry[len(t.DecodedGeometry)-1]
		t.StartPointString = c.reverseGeocode(ctx, first)
		t.EndPointString = c.reverseGeocode(ctx, last)
	}
	return &t, nil
}

// GetScores returns scores keyed by date (YYYY-MM-DD). Empty bounds are omitted.
func (c *Client) GetScores(ctx context.Context, startDate, endDate string) (map[string]Scores, error) {
	q := url.Values{}
	if startDate != "" {
		q.Set("startDate", startDate)
	}
	if endDate != "" {
		q.Set("endDate", endDate)
	}

	var scores map[string]Scores
	if err := c.get(ctx, scoresPath, q, &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// GetBadges lists badges of the given type ("daily" or "monthly"), newest first.
func (c *Client) GetBadges(ctx context.Context, badgeType, startDate, endDate string) ([]Badge, error) {
	q := url.Values{}
	q.Set("type", badgeType)
	if startDate != "" {
		q.Set("startDate", startDate)
	}
	if endDate != "" {
		q.Set("endDate", endDate)
	}

	var badges []Badge
	if err := c.get(ctx, badgesPath, q, &badges); err != nil {
		return nil, err
	}
	return badges, nil
}

// GetVehicleID returns the id of the vehicle bound to the account.
func (c *Client) GetVehicleID(ctx context.Context) (string, error) {
	var vr vehicleResponse
	if err := c.get(ctx, vehiclePath, nil, &vr); err != nil {
		return "", err
	}
	return vr.VehicleID, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, true, out)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, authed bool, out any) error {
	if authed && c.ticket == "" {
		return ErrNotAuthenticated
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.ticket)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, Path: req.URL.Path, Code: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyBody
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrEmptyBody, err)
	}
	return nil
}

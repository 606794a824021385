package bonusdrive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
	"go.uber.org/zap/zaptest"
)

type fakeVendor struct {
	t        *testing.T
	ticket   string
	lastPath string
	lastQ    string
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newFakeVendor(t *testing.T) (*fakeVendor, *httptest.Server) {
	t.Helper()
	fv := &fakeVendor{t: t, ticket: "tgt-1", routes: map[string]func(http.ResponseWriter, *http.Request){}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fv.lastPath = r.URL.Path
		fv.lastQ = r.URL.RawQuery
		if r.URL.Path == sessionsPath {
			var lr loginRequest
			_ = json.NewDecoder(r.Body).Decode(&lr)
			if lr.Email != "a@b.c" || lr.Password != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(ticketResponse{Ticket: fv.ticket})
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+fv.ticket {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		h, ok := fv.routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return fv, srv
}

func newTestClient(t *testing.T, baseURL, photonURL string) *Client {
	t.Helper()
	return New(Config{BaseURL: baseURL, Email: "a@b.c", Password: "pw", PhotonURL: photonURL}, zaptest.NewLogger(t))
}

func TestAuthenticate_OK_And_BadCredentials(t *testing.T) {
	t.Parallel()
	_, srv := newFakeVendor(t)

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.Authenticate(context.Background()))
	require.Equal(t, "tgt-1", c.Ticket())

	bad := New(Config{BaseURL: srv.URL, Email: "a@b.c", Password: "wrong"}, nil)
	err := bad.Authenticate(context.Background())
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusUnauthorized, se.Code)
	require.Contains(t, err.Error(), "401")
}

func TestDataCalls_RequireTicket(t *testing.T) {
	t.Parallel()
	_, srv := newFakeVendor(t)
	c := newTestClient(t, srv.URL, "")

	_, err := c.GetTrips(context.Background(), 1, 0)
	require.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestGetTrips_SendsPagingAndDecodes(t *testing.T) {
	t.Parallel()
	fv, srv := newFakeVendor(t)
	fv.routes[tripsPath] = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"tripId":"T1","tripScore":87,"seconds":3725,"user":{"publicDisplayName":"Kim"}}]`))
	}

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.Authenticate(context.Background()))

	trips, err := c.GetTrips(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, trips, 1)
	require.Equal(t, "T1", trips[0].TripID)
	require.Equal(t, float64(87), trips[0].TripScore)
	require.Equal(t, "Kim", trips[0].User.PublicDisplayName)
	require.Contains(t, fv.lastQ, "amount=1")
	require.Contains(t, fv.lastQ, "offset=5")
}

func TestGetTripDetails_DecodesGeometryAndGeocodes(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		queries []string
	)
	photon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != reversePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		mu.Lock()
		queries = append(queries, r.URL.Query().Get("lat")+","+r.URL.Query().Get("lon"))
		mu.Unlock()
		city := "Munich"
		if strings.HasPrefix(r.URL.Query().Get("lat"), "48.2") {
			city = "Freising"
		}
		_, _ = w.Write([]byte(`{"features":[{"properties":{"street":"Hauptstr","housenumber":"1","postcode":"80331","city":"` + city + `"}}]}`))
	}))
	t.Cleanup(photon.Close)

	geometry := string(polyline.EncodeCoords([][]float64{{48.1, 11.5}, {48.15, 11.55}, {48.2, 11.6}}))
	fv, srv := newFakeVendor(t)
	fv.routes[tripsPath+"/T1"] = func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Trip{TripID: "T1", TripScore: 87, Geometry: geometry})
	}

	c := newTestClient(t, srv.URL, photon.URL)
	require.NoError(t, c.Authenticate(context.Background()))

	trip, err := c.GetTripDetails(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, trip.DecodedGeometry, 3)
	require.InDelta(t, 48.1, trip.DecodedGeometry[0][0], 1e-5)
	require.InDelta(t, 11.6, trip.DecodedGeometry[2][1], 1e-5)
	require.Equal(t, "Hauptstr 1, 80331 Munich", trip.StartPointString)
	require.Equal(t, "Hauptstr 1, 80331 Freising", trip.EndPointString)

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"48.10000,11.50000", "48.20000,11.60000"}, queries)
}

func TestGetTripDetails_GeocodeFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	photon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(photon.Close)

	geometry := string(polyline.EncodeCoords([][]float64{{48.1, 11.5}, {48.2, 11.6}}))
	fv, srv := newFakeVendor(t)
	fv.routes[tripsPath+"/T1"] = func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Trip{TripID: "T1", Geometry: geometry})
	}

	c := newTestClient(t, srv.URL, photon.URL)
	require.NoError(t, c.Authenticate(context.Background()))

	trip, err := c.GetTripDetails(context.Background(), "T1")
	require.NoError(t, err)
	require.Len(t, trip.DecodedGeometry, 2)
	require.Empty(t, trip.StartPointString)
	require.Empty(t, trip.EndPointString)
}

func TestGetScores_EmptyBody(t *testing.T) {
	t.Parallel()
	fv, srv := newFakeVendor(t)
	fv.routes[scoresPath] = func(w http.ResponseWriter, r *http.Request) {}

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.GetScores(context.Background(), "2026-10-01", "")
	require.ErrorIs(t, err, ErrEmptyBody)
	require.Contains(t, fv.lastQ, "startDate=2026-10-01")
	require.NotContains(t, fv.lastQ, "endDate")
}

func TestGetScores_Decodes(t *testing.T) {
	t.Parallel()
	fv, srv := newFakeVendor(t)
	fv.routes[scoresPath] = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"2026-10-19":{"speeding":91.5,"overall":88,"mileage":42.25}}`))
	}

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.Authenticate(context.Background()))

	scores, err := c.GetScores(context.Background(), "2026-10-19", "2026-10-19")
	require.NoError(t, err)
	require.Equal(t, 88.0, scores["2026-10-19"].Overall)
	require.Equal(t, 42.25, scores["2026-10-19"].Mileage)
}

func TestGetBadges_GarbageBodyIsEmptyBody(t *testing.T) {
	t.Parallel()
	fv, srv := newFakeVendor(t)
	fv.routes[badgesPath] = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.GetBadges(context.Background(), "daily", "2026-10-19", "2026-10-19")
	require.ErrorIs(t, err, ErrEmptyBody)
	require.Contains(t, fv.lastQ, "type=daily")
}

func TestGetVehicleID_ServerError(t *testing.T) {
	t.Parallel()
	fv, srv := newFakeVendor(t)
	fv.routes[vehiclePath] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	c := newTestClient(t, srv.URL, "")
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.GetVehicleID(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusInternalServerError, se.Code)
	require.Equal(t, vehiclePath, se.Path)
}

func Test_formatPlace(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Marienplatz, 80331 München",
		formatPlace(photonProperties{Name: "Marienplatz", Street: "Marienplatz", Postcode: "80331", City: "München"}))
	require.Equal(t, "Berlin", formatPlace(photonProperties{City: "Berlin"}))
	require.Equal(t, "", formatPlace(photonProperties{}))
}

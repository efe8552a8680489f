package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/travelindex/internal/airport"
	"github.com/neexbeast/travelindex/internal/geo"
	"github.com/neexbeast/travelindex/internal/scoring"
	"github.com/neexbeast/travelindex/internal/weather"
)

const testToken = "test-token"

type mockGeo struct {
	ResolveFunc func(ctx context.Context, city, country string) (*geo.Result, error)
}

func (m *mockGeo) Resolve(ctx context.Context, city, country string) (*geo.Result, error) {
	return m.ResolveFunc(ctx, city, country)
}

type mockAirports struct {
	ResolveFunc func(ctx context.Context, req airport.Request) (*airport.CandidateSet, error)
}

func (m *mockAirports) Resolve(ctx context.Context, req airport.Request) (*airport.CandidateSet, error) {
	return m.ResolveFunc(ctx, req)
}

type mockPrices struct {
	FetchAllFunc func(ctx context.Context, origin string, destinations []string) (map[string]float64, error)
}

func (m *mockPrices) FetchAll(ctx context.Context, origin string, destinations []string) (map[string]float64, error) {
	return m.FetchAllFunc(ctx, origin, destinations)
}

type mockRanker struct {
	RankFunc func(ctx context.Context, destinations []scoring.Destination, origin string, alternatives []string) (*scoring.Result, error)
}

func (m *mockRanker) Rank(ctx context.Context, destinations []scoring.Destination, origin string, alternatives []string) (*scoring.Result, error) {
	return m.RankFunc(ctx, destinations, origin, alternatives)
}

type mockStore struct {
	ListDestinationsFunc func(ctx context.Context) ([]scoring.Destination, error)
}

func (m *mockStore) ListDestinations(ctx context.Context) ([]scoring.Destination, error) {
	return m.ListDestinationsFunc(ctx)
}

type mockIngestor struct {
	RunFunc func(ctx context.Context) (*weather.RunReport, error)
}

func (m *mockIngestor) Run(ctx context.Context) (*weather.RunReport, error) {
	return m.RunFunc(ctx)
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

type testDeps struct {
	geo      *mockGeo
	airports *mockAirports
	prices   *mockPrices
	ranker   *mockRanker
	store    *mockStore
	ingestor *mockIngestor
	db       *mockPinger
	redis    *mockPinger
}

func newTestServer(t *testing.T, deps testDeps) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	handlers := NewHandlers(deps.geo, deps.airports, deps.prices,
		deps.ranker, deps.store, deps.ingestor, log)
	if deps.db == nil {
		deps.db = &mockPinger{}
	}
	if deps.redis == nil {
		deps.redis = &mockPinger{}
	}

	server := httptest.NewServer(NewRouter(handlers, testToken, deps.db, deps.redis, log))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any, token string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAuth_MissingToken(t *testing.T) {
	server := newTestServer(t, testDeps{})

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/airports/resolve",
		map[string]string{"city": "Madrid", "country": "Spain"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuth_WrongToken(t *testing.T) {
	server := newTestServer(t, testDeps{})

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/airports/resolve",
		map[string]string{"city": "Madrid", "country": "Spain"}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestResolveAirport_Success(t *testing.T) {
	deps := testDeps{
		geo: &mockGeo{
			ResolveFunc: func(ctx context.Context, city, country string) (*geo.Result, error) {
				assert.Equal(t, "Madrid", city)
				return &geo.Result{
					Coordinates: geo.Coordinates{Latitude: 40.4168, Longitude: -3.7038},
					CountryCode: "ES",
				}, nil
			},
		},
		airports: &mockAirports{
			ResolveFunc: func(ctx context.Context, req airport.Request) (*airport.CandidateSet, error) {
				assert.Equal(t, "ES", req.ExpectedCountryCode)
				return &airport.CandidateSet{
					Primary: airport.Airport{
						IATACode: "MAD", Name: "Madrid Barajas",
						Coordinates: geo.Coordinates{Latitude: 40.4936, Longitude: -3.5668},
					},
					Alternatives: []airport.Airport{
						{IATACode: "VLC", Name: "Valencia", DistanceKm: 302.1},
					},
				}, nil
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/airports/resolve",
		map[string]string{"city": "Madrid", "country": "Spain"}, testToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body resolveResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "MAD", body.AirportCode)
	assert.Equal(t, "Madrid Barajas", body.AirportName)
	// Top-level coordinates are the city's; the airport's ride separately.
	assert.InDelta(t, 40.4168, body.Latitude, 1e-9)
	assert.InDelta(t, 40.4936, body.AirportLatitude, 1e-9)
	require.Len(t, body.Alternatives, 1)
	assert.Equal(t, "VLC", body.Alternatives[0].AirportCode)
}

func TestResolveAirport_MissingFields(t *testing.T) {
	server := newTestServer(t, testDeps{})

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/airports/resolve",
		map[string]string{"city": "Madrid"}, testToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResolveAirport_CityNotFound(t *testing.T) {
	deps := testDeps{
		geo: &mockGeo{
			ResolveFunc: func(ctx context.Context, city, country string) (*geo.Result, error) {
				return nil, geo.ErrNotFound
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/airports/resolve",
		map[string]string{"city": "Nowheresville", "country": "Atlantis"}, testToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResolveAirport_Unresolvable(t *testing.T) {
	deps := testDeps{
		geo: &mockGeo{
			ResolveFunc: func(ctx context.Context, city, country string) (*geo.Result, error) {
				return &geo.Result{Coordinates: geo.Coordinates{Latitude: 1, Longitude: 1}}, nil
			},
		},
		airports: &mockAirports{
			ResolveFunc: func(ctx context.Context, req airport.Request) (*airport.CandidateSet, error) {
				return nil, airport.ErrUnresolvable
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/airports/resolve",
		map[string]string{"city": "Remoteville", "country": "Spain"}, testToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFlightPrices_NullsForUnpriced(t *testing.T) {
	deps := testDeps{
		prices: &mockPrices{
			FetchAllFunc: func(ctx context.Context, origin string, destinations []string) (map[string]float64, error) {
				assert.Equal(t, "MAD", origin)
				return map[string]float64{"BCN": 89.50}, nil
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flights/prices",
		map[string]any{"departure_airport": "mad", "destinations": []string{"BCN", "XXX"}}, testToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body pricesResponse
	decodeBody(t, resp, &body)
	assert.Equal(t, "MAD", body.DepartureAirport)
	require.Contains(t, body.FlightPrices, "BCN")
	require.Contains(t, body.FlightPrices, "XXX")
	require.NotNil(t, body.FlightPrices["BCN"])
	assert.Equal(t, 89.50, *body.FlightPrices["BCN"])
	assert.Nil(t, body.FlightPrices["XXX"])
}

func TestFlightPrices_MissingFields(t *testing.T) {
	server := newTestServer(t, testDeps{})

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flights/prices",
		map[string]any{"departure_airport": "MAD"}, testToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFlightPrices_UpstreamFailure(t *testing.T) {
	deps := testDeps{
		prices: &mockPrices{
			FetchAllFunc: func(ctx context.Context, origin string, destinations []string) (map[string]float64, error) {
				return nil, errors.New("auth failed")
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/flights/prices",
		map[string]any{"departure_airport": "MAD", "destinations": []string{"BCN"}}, testToken)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestRecommendations_Success(t *testing.T) {
	deps := testDeps{
		store: &mockStore{
			ListDestinationsFunc: func(ctx context.Context) ([]scoring.Destination, error) {
				return []scoring.Destination{{CityID: "barcelona", City: "Barcelona", IATACode: "BCN"}}, nil
			},
		},
		ranker: &mockRanker{
			RankFunc: func(ctx context.Context, destinations []scoring.Destination, origin string, alternatives []string) (*scoring.Result, error) {
				assert.Equal(t, "MAD", origin)
				assert.Equal(t, []string{"VLC"}, alternatives)
				return &scoring.Result{
					DepartureAirport: "MAD",
					Recommendations: []scoring.ScoredDestination{
						{CityID: "barcelona", City: "Barcelona", IATACode: "BCN",
							Scores: scoring.Scores{Total: 0.854}},
					},
					Weights: scoring.Weights{Weather: 0.30, QoL: 0.30, Flight: 0.40},
				}, nil
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/recommendations",
		map[string]any{
			"departure_airport": "MAD",
			"alternatives":      []map[string]string{{"airport_code": "VLC"}},
		}, testToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body scoring.Result
	decodeBody(t, resp, &body)
	assert.Equal(t, "MAD", body.DepartureAirport)
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, "Barcelona", body.Recommendations[0].City)
	assert.Equal(t, 0.854, body.Recommendations[0].Scores.Total)
}

func TestRecommendations_MissingOrigin(t *testing.T) {
	server := newTestServer(t, testDeps{})

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/recommendations",
		map[string]any{}, testToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecommendations_EmptyDestinationSet(t *testing.T) {
	deps := testDeps{
		store: &mockStore{
			ListDestinationsFunc: func(ctx context.Context) ([]scoring.Destination, error) {
				return nil, nil
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/recommendations",
		map[string]any{"departure_airport": "MAD"}, testToken)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestRefreshWeather_Success(t *testing.T) {
	deps := testDeps{
		ingestor: &mockIngestor{
			RunFunc: func(ctx context.Context) (*weather.RunReport, error) {
				return &weather.RunReport{
					RunID: "run-1",
					Results: []weather.CityResult{
						{City: "Barcelona", Status: "success"},
						{City: "Prague", Status: "failed", Error: "upstream timeout"},
					},
				}, nil
			},
		},
	}
	server := newTestServer(t, deps)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/weather/refresh", nil, testToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body weather.RunReport
	decodeBody(t, resp, &body)
	assert.Equal(t, "run-1", body.RunID)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "failed", body.Results[1].Status)
}

func TestHealth_OK(t *testing.T) {
	server := newTestServer(t, testDeps{})

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealth_DegradedOnDBFailure(t *testing.T) {
	server := newTestServer(t, testDeps{db: &mockPinger{err: errors.New("dial failed")}})

	resp, err := http.Get(server.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "error", body["db"])
	assert.Equal(t, "ok", body["redis"])
}

package weather

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/travelindex/internal/geo"
	"github.com/neexbeast/travelindex/internal/scoring"
)

type mockStore struct {
	ListDestinationsFunc func(ctx context.Context) ([]scoring.Destination, error)
	UpsertWeatherFunc    func(ctx context.Context, cityID string, w scoring.Weather) error

	mu      sync.Mutex
	upserts []string
}

func (m *mockStore) ListDestinations(ctx context.Context) ([]scoring.Destination, error) {
	return m.ListDestinationsFunc(ctx)
}

func (m *mockStore) UpsertWeather(ctx context.Context, cityID string, w scoring.Weather) error {
	m.mu.Lock()
	m.upserts = append(m.upserts, cityID)
	m.mu.Unlock()
	if m.UpsertWeatherFunc != nil {
		return m.UpsertWeatherFunc(ctx, cityID, w)
	}
	return nil
}

type mockForecast struct {
	FetchFunc func(ctx context.Context, lat, lon float64) (*scoring.Weather, error)
}

func (m *mockForecast) Fetch(ctx context.Context, lat, lon float64) (*scoring.Weather, error) {
	return m.FetchFunc(ctx, lat, lon)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ingestDestinations() []scoring.Destination {
	return []scoring.Destination{
		{CityID: "barcelona", City: "Barcelona",
			Coordinates: geo.Coordinates{Latitude: 41.3874, Longitude: 2.1686}},
		{CityID: "lisbon", City: "Lisbon",
			Coordinates: geo.Coordinates{Latitude: 38.7223, Longitude: -9.1393}},
		{CityID: "prague", City: "Prague",
			Coordinates: geo.Coordinates{Latitude: 50.0755, Longitude: 14.4378}},
	}
}

func TestRun_AllSucceed(t *testing.T) {
	store := &mockStore{
		ListDestinationsFunc: func(ctx context.Context) ([]scoring.Destination, error) {
			return ingestDestinations(), nil
		},
	}
	forecast := &mockForecast{
		FetchFunc: func(ctx context.Context, lat, lon float64) (*scoring.Weather, error) {
			return &scoring.Weather{AvgTemperature: 18, ForecastPeriod: "3 days"}, nil
		},
	}

	ing := NewIngestor(store, forecast, discardLogger())
	report, err := ing.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, uuid.Validate(report.RunID))
	require.Len(t, report.Results, 3)
	// Results arrive in destination order regardless of fetch interleaving.
	assert.Equal(t, "Barcelona", report.Results[0].City)
	assert.Equal(t, "Lisbon", report.Results[1].City)
	assert.Equal(t, "Prague", report.Results[2].City)
	for _, r := range report.Results {
		assert.Equal(t, "success", r.Status)
		assert.Empty(t, r.Error)
	}
	assert.ElementsMatch(t, []string{"barcelona", "lisbon", "prague"}, store.upserts)
}

func TestRun_PerCityFailureRecorded(t *testing.T) {
	store := &mockStore{
		ListDestinationsFunc: func(ctx context.Context) ([]scoring.Destination, error) {
			return ingestDestinations(), nil
		},
	}
	forecast := &mockForecast{
		FetchFunc: func(ctx context.Context, lat, lon float64) (*scoring.Weather, error) {
			if lat > 50 {
				return nil, errors.New("upstream timeout")
			}
			return &scoring.Weather{AvgTemperature: 18}, nil
		},
	}

	ing := NewIngestor(store, forecast, discardLogger())
	report, err := ing.Run(context.Background())
	require.NoError(t, err)

	byCity := make(map[string]CityResult)
	for _, r := range report.Results {
		byCity[r.City] = r
	}
	assert.Equal(t, "success", byCity["Barcelona"].Status)
	assert.Equal(t, "failed", byCity["Prague"].Status)
	assert.Contains(t, byCity["Prague"].Error, "upstream timeout")
	assert.NotContains(t, store.upserts, "prague")
}

func TestRun_UpsertFailureRecorded(t *testing.T) {
	store := &mockStore{
		ListDestinationsFunc: func(ctx context.Context) ([]scoring.Destination, error) {
			return ingestDestinations()[:1], nil
		},
		UpsertWeatherFunc: func(ctx context.Context, cityID string, w scoring.Weather) error {
			return errors.New("db write failed")
		},
	}
	forecast := &mockForecast{
		FetchFunc: func(ctx context.Context, lat, lon float64) (*scoring.Weather, error) {
			return &scoring.Weather{AvgTemperature: 18}, nil
		},
	}

	ing := NewIngestor(store, forecast, discardLogger())
	report, err := ing.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Equal(t, "failed", report.Results[0].Status)
	assert.Contains(t, report.Results[0].Error, "db write failed")
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	listErr := errors.New("db unavailable")
	store := &mockStore{
		ListDestinationsFunc: func(ctx context.Context) ([]scoring.Destination, error) {
			return nil, listErr
		},
	}
	forecast := &mockForecast{
		FetchFunc: func(ctx context.Context, lat, lon float64) (*scoring.Weather, error) {
			t.Fatal("forecast must not be called")
			return nil, nil
		},
	}

	ing := NewIngestor(store, forecast, discardLogger())
	_, err := ing.Run(context.Background())
	require.ErrorIs(t, err, listErr)
}

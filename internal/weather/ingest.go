package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/travelindex/internal/scoring"
)

// maxConcurrentFetches bounds the forecast fan-out during an ingest run.
const maxConcurrentFetches = 4

// forecastClient is satisfied by Client.
type forecastClient interface {
	Fetch(ctx context.Context, lat, lon float64) (*scoring.Weather, error)
}

// destinationStore is the storage surface the ingestor needs.
type destinationStore interface {
	ListDestinations(ctx context.Context) ([]scoring.Destination, error)
	UpsertWeather(ctx context.Context, cityID string, w scoring.Weather) error
}

// Ingestor refreshes the per-destination weather records that scoring reads.
type Ingestor struct {
	store    destinationStore
	forecast forecastClient
	log      *slog.Logger
}

// NewIngestor constructs an Ingestor.
func NewIngestor(store destinationStore, forecast forecastClient, log *slog.Logger) *Ingestor {
	return &Ingestor{store: store, forecast: forecast, log: log}
}

// CityResult reports the outcome of one destination within a run.
type CityResult struct {
	City   string `json:"city"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// RunReport summarizes one ingest run.
type RunReport struct {
	RunID   string       `json:"run_id"`
	Results []CityResult `json:"results"`
}

// Run fetches a fresh forecast for every stored destination and writes the
// summaries back. Per-city failures are recorded, not fatal.
func (i *Ingestor) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()

	destinations, err := i.store.ListDestinations(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing destinations for weather ingest: %w", err)
	}

	i.log.Info("weather ingest started", "run_id", runID, "destinations", len(destinations))

	results := make([]CityResult, len(destinations))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for idx, dest := range destinations {
		idx, dest := idx, dest
		g.Go(func() error {
			r := i.ingestOne(gCtx, dest)
			mu.Lock()
			results[idx] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	i.log.Info("weather ingest finished", "run_id", runID)

	return &RunReport{RunID: runID, Results: results}, nil
}

func (i *Ingestor) ingestOne(ctx context.Context, dest scoring.Destination) CityResult {
	summary, err := i.forecast.Fetch(ctx, dest.Coordinates.Latitude, dest.Coordinates.Longitude)
	if err != nil {
		i.log.Warn("forecast fetch failed", "city", dest.City, "err", err)
		return CityResult{City: dest.City, Status: "failed", Error: err.Error()}
	}

	if err := i.store.UpsertWeather(ctx, dest.CityID, *summary); err != nil {
		i.log.Warn("weather upsert failed", "city", dest.City, "err", err)
		return CityResult{City: dest.City, Status: "failed", Error: err.Error()}
	}

	return CityResult{City: dest.City, Status: "success"}
}

package api

import (
	"context"

	"github.com/neexbeast/travelindex/internal/airport"
	"github.com/neexbeast/travelindex/internal/geo"
	"github.com/neexbeast/travelindex/internal/scoring"
	"github.com/neexbeast/travelindex/internal/weather"
)

// GeoResolver geocodes a free-text city/country pair.
type GeoResolver interface {
	Resolve(ctx context.Context, city, country string) (*geo.Result, error)
}

// AirportResolver turns a geocoded city into a departure airport candidate set.
type AirportResolver interface {
	Resolve(ctx context.Context, req airport.Request) (*airport.CandidateSet, error)
}

// PriceFetcher prices round trips from an origin to a destination set.
// Unpriced destinations are absent from the map.
type PriceFetcher interface {
	FetchAll(ctx context.Context, origin string, destinations []string) (map[string]float64, error)
}

// Ranker scores and ranks destinations, handling the alternative-airport
// pricing fallback internally.
type Ranker interface {
	Rank(ctx context.Context, destinations []scoring.Destination, origin string, alternatives []string) (*scoring.Result, error)
}

// DestinationStore lists the candidate destinations needed by ranking.
type DestinationStore interface {
	ListDestinations(ctx context.Context) ([]scoring.Destination, error)
}

// WeatherIngestor refreshes the stored per-destination weather records.
type WeatherIngestor interface {
	Run(ctx context.Context) (*weather.RunReport, error)
}

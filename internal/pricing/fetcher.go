package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// maxConcurrentFetches bounds the remote fan-out so end-to-end latency stays
// roughly constant in the number of destinations without hammering the API.
const maxConcurrentFetches = 10

// PriceCache is the cache consulted before and written after remote queries.
type PriceCache interface {
	Get(ctx context.Context, origin, destination string) (float64, bool, error)
	Put(ctx context.Context, origin, destination string, price float64) error
}

// flightClient is the subset of the Amadeus client the fetcher needs.
type flightClient interface {
	Authenticate(ctx context.Context) (string, error)
	CheapestRoundTrip(ctx context.Context, token, origin, destination string) (float64, error)
}

// Fetcher prices round trips from one origin to a set of destinations,
// consulting the cache first and fanning out remote queries with bounded
// parallelism.
type Fetcher struct {
	cache   PriceCache
	flights flightClient
	log     *slog.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(cache PriceCache, flights flightClient, log *slog.Logger) *Fetcher {
	return &Fetcher{cache: cache, flights: flights, log: log}
}

// FetchAll returns a price per destination code. Destinations that could not
// be priced (timeout, no offers, malformed response) are simply absent from
// the map; a single bad destination never aborts its siblings. The only
// call-level failure is the token exchange, which happens exactly once and
// is shared by every concurrent sub-query.
func (f *Fetcher) FetchAll(ctx context.Context, origin string, destinations []string) (map[string]float64, error) {
	origin = strings.ToUpper(strings.TrimSpace(origin))

	token, err := f.flights.Authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating flight search from %s: %w", origin, err)
	}

	prices := make(map[string]float64, len(destinations))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	for _, dest := range destinations {
		code := strings.ToUpper(strings.TrimSpace(dest))
		if code == "" {
			continue
		}

		g.Go(func() error {
			price, ok := f.fetchOne(gCtx, token, origin, code)
			if !ok {
				return nil
			}
			mu.Lock()
			prices[code] = price
			mu.Unlock()
			return nil
		})
	}

	// Workers only ever return nil; Wait is for completion, not errors.
	_ = g.Wait()

	return prices, nil
}

// fetchOne prices a single destination: cache hit wins, a miss goes remote
// and writes through on success.
func (f *Fetcher) fetchOne(ctx context.Context, token, origin, code string) (float64, bool) {
	cached, hit, err := f.cache.Get(ctx, origin, code)
	if err != nil {
		f.log.Warn("price cache get failed", "origin", origin, "destination", code, "err", err)
	}
	if hit {
		return cached, true
	}

	price, err := f.flights.CheapestRoundTrip(ctx, token, origin, code)
	if err != nil {
		f.log.Warn("flight price unavailable", "origin", origin, "destination", code, "err", err)
		return 0, false
	}

	if err := f.cache.Put(ctx, origin, code, price); err != nil {
		f.log.Warn("price cache put failed", "origin", origin, "destination", code, "err", err)
	}

	return price, true
}

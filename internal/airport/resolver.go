package airport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neexbeast/travelindex/internal/amadeus"
	"github.com/neexbeast/travelindex/internal/geo"
)

// acceptableDistanceKm is the hard cutoff for the remote tier's top result.
// The remote API occasionally returns stale or too-distant matches; anything
// past this falls through to the local dataset.
const acceptableDistanceKm = 200

// maxAlternatives caps the alternative airports attached to a candidate set.
const maxAlternatives = 3

// alternativesPoolSize is how many dataset candidates are considered before
// the primary is filtered out.
const alternativesPoolSize = 5

// ErrUnresolvable is returned when no tier can produce a usable airport.
var ErrUnresolvable = errors.New("airport: unresolvable")

// locationsClient is the subset of the Amadeus client used for resolution.
type locationsClient interface {
	Authenticate(ctx context.Context) (string, error)
	NearbyAirports(ctx context.Context, token string, lat, lon float64) ([]amadeus.Location, error)
}

// llmResolver is the optional capability behind the last resolution tier.
type llmResolver interface {
	ResolveAirport(ctx context.Context, city, country string) (Airport, error)
}

// Request carries the query point and the country the city is expected to be
// in. City and Country are the original free-text inputs; they only feed the
// optional LLM tier.
type Request struct {
	Coordinates         geo.Coordinates
	ExpectedCountryCode string
	City                string
	Country             string
}

// Resolver turns coordinates into a primary airport plus ranked alternatives
// using a tiered fallback strategy: remote reference API, then the local
// dataset, then (when configured) a language model.
type Resolver struct {
	remote  locationsClient
	dataset *Dataset
	llm     llmResolver
	log     *slog.Logger
}

// NewResolver constructs a Resolver. llm may be nil; the tier is skipped then.
func NewResolver(remote locationsClient, dataset *Dataset, llm llmResolver, log *slog.Logger) *Resolver {
	return &Resolver{remote: remote, dataset: dataset, llm: llm, log: log}
}

// Resolve picks a primary departure airport for the query point.
//
// Tier 1 queries the remote reference API; its top result is accepted only
// when it is within 200 km and, if an expected country is known, in that
// country. Remote failures are non-fatal. Tier 2 is the weighted
// nearest-neighbor search over the local dataset. Tier 3, when configured,
// asks a language model. Alternatives always come from the local dataset,
// regardless of which tier supplied the primary.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*CandidateSet, error) {
	primary, ok := r.resolveRemote(ctx, req)
	if !ok {
		primary, ok = r.dataset.Nearest(req.Coordinates, req.ExpectedCountryCode)
		if ok {
			r.log.Info("airport resolved from local dataset",
				"iata", primary.IATACode, "distance_km", primary.DistanceKm)
		}
	}
	if !ok && r.llm != nil {
		var err error
		primary, err = r.llm.ResolveAirport(ctx, req.City, req.Country)
		if err != nil {
			r.log.Warn("llm airport resolution failed", "city", req.City, "err", err)
			return nil, fmt.Errorf("resolving airport near (%f, %f): %w",
				req.Coordinates.Latitude, req.Coordinates.Longitude, ErrUnresolvable)
		}
		primary.DistanceKm = geo.Distance(req.Coordinates, primary.Coordinates)
		ok = true
		r.log.Info("airport resolved via llm", "iata", primary.IATACode)
	}
	if !ok {
		return nil, fmt.Errorf("resolving airport near (%f, %f): %w",
			req.Coordinates.Latitude, req.Coordinates.Longitude, ErrUnresolvable)
	}

	return &CandidateSet{
		Primary:      primary,
		Alternatives: r.alternatives(req, primary),
	}, nil
}

// resolveRemote runs tier 1. Any failure, including an unacceptable top
// result, just reports false: the remote API is authoritative when it works
// but not trusted enough to be fatal.
func (r *Resolver) resolveRemote(ctx context.Context, req Request) (Airport, bool) {
	token, err := r.remote.Authenticate(ctx)
	if err != nil {
		r.log.Warn("airport reference auth failed", "err", err)
		return Airport{}, false
	}

	locations, err := r.remote.NearbyAirports(ctx, token, req.Coordinates.Latitude, req.Coordinates.Longitude)
	if err != nil {
		r.log.Warn("airport reference query failed", "err", err)
		return Airport{}, false
	}
	if len(locations) == 0 {
		r.log.Warn("airport reference query returned no airports")
		return Airport{}, false
	}

	top := locations[0]
	if top.DistanceKm > acceptableDistanceKm {
		r.log.Warn("remote airport too far, falling back",
			"iata", top.IATACode, "distance_km", top.DistanceKm)
		return Airport{}, false
	}
	if req.ExpectedCountryCode != "" && !strings.EqualFold(top.CountryCode, req.ExpectedCountryCode) {
		r.log.Warn("remote airport in wrong country, falling back",
			"iata", top.IATACode, "country", top.CountryCode, "expected", req.ExpectedCountryCode)
		return Airport{}, false
	}

	return Airport{
		IATACode:    top.IATACode,
		Name:        top.Name,
		Coordinates: geo.Coordinates{Latitude: top.Latitude, Longitude: top.Longitude},
		CityName:    top.CityName,
		CountryCode: top.CountryCode,
		DistanceKm:  top.DistanceKm,
	}, true
}

// alternatives builds the ranked alternative list from the local dataset:
// best five by weighted distance, minus the primary, first three kept.
func (r *Resolver) alternatives(req Request, primary Airport) []Airport {
	pool := r.dataset.TopN(req.Coordinates, req.ExpectedCountryCode, alternativesPoolSize)

	alternatives := make([]Airport, 0, maxAlternatives)
	for _, a := range pool {
		if a.IATACode == primary.IATACode {
			continue
		}
		alternatives = append(alternatives, a)
		if len(alternatives) == maxAlternatives {
			break
		}
	}
	return alternatives
}

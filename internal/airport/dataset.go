package airport

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/neexbeast/travelindex/internal/geo"
)

// maxRadiusKm is the search radius for the local dataset; anything farther
// is never a usable departure airport.
const maxRadiusKm = 500

// countryMismatchPenalty doubles the effective distance of airports outside
// the expected country so a same-country airport wins ties.
const countryMismatchPenalty = 2

// Dataset is the local airport reference dataset, loaded once at startup and
// read-only afterwards. It is injected into the Resolver, never a global.
type Dataset struct {
	airports []datasetEntry
}

type datasetEntry struct {
	IATA    string  `json:"iata"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// Load reads the dataset from a JSON file.
func Load(path string) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading airport dataset %s: %w", path, err)
	}

	var entries []datasetEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parsing airport dataset %s: %w", path, err)
	}

	return &Dataset{airports: entries}, nil
}

// NewDataset constructs a Dataset from in-memory airports (for tests).
func NewDataset(airports []Airport) *Dataset {
	entries := make([]datasetEntry, 0, len(airports))
	for _, a := range airports {
		entries = append(entries, datasetEntry{
			IATA:    a.IATACode,
			Name:    a.Name,
			Lat:     a.Coordinates.Latitude,
			Lon:     a.Coordinates.Longitude,
			City:    a.CityName,
			Country: a.CountryCode,
		})
	}
	return &Dataset{airports: entries}
}

// Len returns the number of airports in the dataset.
func (d *Dataset) Len() int { return len(d.airports) }

type rankedAirport struct {
	Airport
	weightedDistance float64
}

// rank returns all airports within maxRadiusKm of the query point, sorted
// ascending by weighted distance. When expectedCountry is non-empty, airports
// in a different country carry a 2x distance penalty in the ordering; the
// reported DistanceKm stays the true distance.
func (d *Dataset) rank(from geo.Coordinates, expectedCountry string) []rankedAirport {
	var candidates []rankedAirport

	for _, a := range d.airports {
		coords := geo.Coordinates{Latitude: a.Lat, Longitude: a.Lon}
		distance := geo.Distance(from, coords)
		if distance > maxRadiusKm {
			continue
		}

		weighted := distance
		if expectedCountry != "" && !strings.EqualFold(a.Country, expectedCountry) {
			weighted = distance * countryMismatchPenalty
		}

		candidates = append(candidates, rankedAirport{
			Airport: Airport{
				IATACode:    a.IATA,
				Name:        a.Name,
				Coordinates: coords,
				CityName:    a.City,
				CountryCode: a.Country,
				DistanceKm:  distance,
			},
			weightedDistance: weighted,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weightedDistance < candidates[j].weightedDistance
	})

	return candidates
}

// Nearest returns the best airport within radius of the query point, or
// false when the dataset has nothing usable.
func (d *Dataset) Nearest(from geo.Coordinates, expectedCountry string) (Airport, bool) {
	ranked := d.rank(from, expectedCountry)
	if len(ranked) == 0 {
		return Airport{}, false
	}
	return ranked[0].Airport, true
}

// TopN returns up to n airports within radius, best first by weighted distance.
func (d *Dataset) TopN(from geo.Coordinates, expectedCountry string, n int) []Airport {
	ranked := d.rank(from, expectedCountry)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	airports := make([]Airport, 0, len(ranked))
	for _, r := range ranked {
		airports = append(airports, r.Airport)
	}
	return airports
}

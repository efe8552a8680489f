package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	nominatimDefaultURL = "https://nominatim.openstreetmap.org/search"
	nominatimUserAgent  = "travelindex/1.0"
	geocodeTimeout      = 10 * time.Second
)

// ErrNotFound is returned when the geocoder has no result for a city.
// There is no fallback geocoder, so callers treat this as terminal.
var ErrNotFound = errors.New("geo: city not found")

// Result is a geocoded city: its coordinates and the country code the
// geocoder believes it is in (ISO-2 uppercase, may be empty).
type Result struct {
	Coordinates Coordinates
	CountryCode string
}

// Resolver geocodes free-text city/country pairs via Nominatim.
type Resolver struct {
	baseURL string
	client  *http.Client
}

// NewResolver constructs a Resolver against the public Nominatim endpoint.
func NewResolver() *Resolver {
	return &Resolver{
		baseURL: nominatimDefaultURL,
		client:  &http.Client{Timeout: geocodeTimeout},
	}
}

// NewResolverWithURL constructs a Resolver pointing at a custom endpoint (for tests).
func NewResolverWithURL(baseURL string) *Resolver {
	return &Resolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: geocodeTimeout},
	}
}

type nominatimEntry struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Address struct {
		CountryCode string `json:"country_code"`
	} `json:"address"`
	CountryCode string `json:"country_code"`
}

// Resolve geocodes "{city}, {country}" with a single best-match query.
// Zero results, a transport error, or an unparsable coordinate all resolve
// to ErrNotFound: a single geocode failure aborts the pipeline.
func (r *Resolver) Resolve(ctx context.Context, city, country string) (*Result, error) {
	city = strings.TrimSpace(city)
	country = strings.TrimSpace(country)

	q := url.Values{}
	q.Set("q", city+", "+country)
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating geocode request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocoding %s, %s: %w: %w", city, country, ErrNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoding %s, %s: status %d: %w", city, country, resp.StatusCode, ErrNotFound)
	}

	var entries []nominatimEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding geocode response for %s, %s: %w: %w", city, country, ErrNotFound, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("no geocoding results for %s, %s: %w", city, country, ErrNotFound)
	}

	entry := entries[0]
	lat, err := strconv.ParseFloat(entry.Lat, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing latitude %q: %w: %w", entry.Lat, ErrNotFound, err)
	}
	lon, err := strconv.ParseFloat(entry.Lon, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing longitude %q: %w: %w", entry.Lon, ErrNotFound, err)
	}

	// The structured address block is preferred; some results only carry
	// the code at the top level.
	code := strings.ToUpper(entry.Address.CountryCode)
	if code == "" {
		code = strings.ToUpper(entry.CountryCode)
	}

	return &Result{
		Coordinates: Coordinates{Latitude: lat, Longitude: lon},
		CountryCode: code,
	}, nil
}

// Package amadeus is a client for the Amadeus self-service APIs: the
// client-credentials token exchange, the nearest-relevant-airport lookup,
// and the round-trip flight-offers search. The airport resolver and the
// price fetcher share one Client; each top-level operation performs a
// single token exchange and reuses the token across its sub-queries.
package amadeus

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
)

const (
	defaultBaseURL = "https://test.api.amadeus.com"
	authPath       = "/v1/security/oauth2/token"
	airportsPath   = "/v1/reference-data/locations/airports"
	offersPath     = "/v2/shopping/flight-offers"

	clientTimeout = 30 * time.Second

	// Round-trip search window: outbound in 7 days, return in 14.
	outboundOffsetDays = 7
	returnOffsetDays   = 14

	maxOffers      = 5
	searchRadiusKm = 500
	currencyCode   = "EUR"
)

// ErrNoOffers is returned when a flight-offers search yields no priced offers.
var ErrNoOffers = errors.New("amadeus: no flight offers")

// Client talks to the Amadeus API.
type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	client       *http.Client
	now          func() time.Time
}

// NewClient constructs a Client against the Amadeus test environment.
func NewClient(clientID, clientSecret string) *Client {
	return NewClientWithURL(defaultBaseURL, clientID, clientSecret)
}

// NewClientWithURL constructs a Client against a custom base URL (for tests).
func NewClientWithURL(baseURL, clientID, clientSecret string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      baseURL,
		client:       &http.Client{Timeout: clientTimeout},
		now:          time.Now,
	}
}

// Authenticate performs a client-credentials token exchange and returns the
// access token. Tokens carry an expiry but are never refreshed mid-request:
// callers exchange once per top-level operation.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+authPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting access token: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed (%d): %s", resp.StatusCode, body)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if result.AccessToken == "" {
		return "", errors.New("token response missing access_token")
	}

	return result.AccessToken, nil
}

// Location is an airport returned by the nearest-relevant lookup.
// DistanceKm is relative to the query point.
type Location struct {
	IATACode    string
	Name        string
	Latitude    float64
	Longitude   float64
	CityName    string
	CountryCode string
	DistanceKm  float64
}

type airportsResponse struct {
	Data []struct {
		IATACode string `json:"iataCode"`
		Name     string `json:"name"`
		GeoCode  struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"geoCode"`
		Address struct {
			CityName    string `json:"cityName"`
			CountryCode string `json:"countryCode"`
		} `json:"address"`
		Distance struct {
			Value float64 `json:"value"`
		} `json:"distance"`
	} `json:"data"`
}

// NearbyAirports queries airports within 500 km of the given point, sorted
// by distance, up to 5 results.
func (c *Client) NearbyAirports(ctx context.Context, token string, lat, lon float64) ([]Location, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(searchRadiusKm))
	q.Set("page[limit]", strconv.Itoa(maxOffers))
	q.Set("sort", "distance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+airportsPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating airport request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying nearby airports at (%f, %f): %w", lat, lon, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("airport query returned status %d", resp.StatusCode)
	}

	var raw airportsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding airport response: %w", err)
	}

	locations := make([]Location, 0, len(raw.Data))
	for _, a := range raw.Data {
		locations = append(locations, Location{
			IATACode:    a.IATACode,
			Name:        a.Name,
			Latitude:    a.GeoCode.Latitude,
			Longitude:   a.GeoCode.Longitude,
			CityName:    a.Address.CityName,
			CountryCode: a.Address.CountryCode,
			DistanceKm:  a.Distance.Value,
		})
	}

	return locations, nil
}

type offersRequest struct {
	CurrencyCode       string              `json:"currencyCode"`
	OriginDestinations []originDestination `json:"originDestinations"`
	Travelers          []traveler          `json:"travelers"`
	Sources            []string            `json:"sources"`
	SearchCriteria     searchCriteria      `json:"searchCriteria"`
}

type originDestination struct {
	ID                      string    `json:"id"`
	OriginLocationCode      string    `json:"originLocationCode"`
	DestinationLocationCode string    `json:"destinationLocationCode"`
	DepartureDateTimeRange  dateRange `json:"departureDateTimeRange"`
}

type dateRange struct {
	Date string `json:"date"`
}

type traveler struct {
	ID           string `json:"id"`
	TravelerType string `json:"travelerType"`
}

type searchCriteria struct {
	MaxFlightOffers int `json:"maxFlightOffers"`
}

type offersResponse struct {
	Data []struct {
		Price struct {
			Total string `json:"total"`
		} `json:"price"`
	} `json:"data"`
}

// CheapestRoundTrip searches round-trip offers origin→destination→origin for
// a single adult, outbound in 7 days and return in 14, and returns the
// minimum total price across the offers. Zero usable offers → ErrNoOffers.
func (c *Client) CheapestRoundTrip(ctx context.Context, token, origin, destination string) (float64, error) {
	today := c.now().UTC()
	outbound := today.AddDate(0, 0, outboundOffsetDays).Format("2006-01-02")
	inbound := today.AddDate(0, 0, returnOffsetDays).Format("2006-01-02")

	payload := offersRequest{
		CurrencyCode: currencyCode,
		OriginDestinations: []originDestination{
			{
				ID:                      "1",
				OriginLocationCode:      origin,
				DestinationLocationCode: destination,
				DepartureDateTimeRange:  dateRange{Date: outbound},
			},
			{
				ID:                      "2",
				OriginLocationCode:      destination,
				DestinationLocationCode: origin,
				DepartureDateTimeRange:  dateRange{Date: inbound},
			},
		},
		Travelers:      []traveler{{ID: "1", TravelerType: "ADULT"}},
		Sources:        []string{"GDS"},
		SearchCriteria: searchCriteria{MaxFlightOffers: maxOffers},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshaling offers request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+offersPath, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating offers request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-HTTP-Method-Override", "GET")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("searching flights %s-%s: %w", origin, destination, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("flight search %s-%s returned status %d", origin, destination, resp.StatusCode)
	}

	var raw offersResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("decoding offers response for %s-%s: %w", origin, destination, err)
	}

	cheapest := 0.0
	found := false
	for _, offer := range raw.Data {
		price, err := strconv.ParseFloat(offer.Price.Total, 64)
		if err != nil {
			continue
		}
		if !found || price < cheapest {
			cheapest = price
			found = true
		}
	}

	if !found {
		return 0, fmt.Errorf("searching flights %s-%s: %w", origin, destination, ErrNoOffers)
	}

	return cheapest, nil
}

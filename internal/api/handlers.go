package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/neexbeast/travelindex/internal/airport"
	"github.com/neexbeast/travelindex/internal/geo"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	geocoder GeoResolver
	airports AirportResolver
	prices   PriceFetcher
	ranker   Ranker
	store    DestinationStore
	ingestor WeatherIngestor
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(geocoder GeoResolver, airports AirportResolver, prices PriceFetcher,
	ranker Ranker, store DestinationStore, ingestor WeatherIngestor, log *slog.Logger) *Handlers {
	return &Handlers{
		geocoder: geocoder,
		airports: airports,
		prices:   prices,
		ranker:   ranker,
		store:    store,
		ingestor: ingestor,
		log:      log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---- POST /api/v1/airports/resolve ----

type resolveRequest struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

type alternativeAirport struct {
	AirportCode string  `json:"airport_code"`
	AirportName string  `json:"airport_name"`
	DistanceKm  float64 `json:"distance_km"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type resolveResponse struct {
	AirportCode      string               `json:"airport_code"`
	AirportName      string               `json:"airport_name"`
	City             string               `json:"city"`
	Country          string               `json:"country"`
	Latitude         float64              `json:"latitude"`
	Longitude        float64              `json:"longitude"`
	AirportLatitude  float64              `json:"airport_latitude"`
	AirportLongitude float64              `json:"airport_longitude"`
	Alternatives     []alternativeAirport `json:"alternatives,omitempty"`
}

// ResolveAirport handles POST /api/v1/airports/resolve.
// Geocodes the city, resolves a departure airport through the tiered
// fallback chain, and returns primary plus alternatives. The latitude and
// longitude in the response are the city's, not the airport's.
func (h *Handlers) ResolveAirport(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	city := strings.TrimSpace(req.City)
	country := strings.TrimSpace(req.Country)
	if city == "" || country == "" {
		writeError(w, http.StatusBadRequest, "missing city or country")
		return
	}

	located, err := h.geocoder.Resolve(r.Context(), city, country)
	if err != nil {
		if errors.Is(err, geo.ErrNotFound) {
			writeError(w, http.StatusNotFound, "could not geocode "+city+", "+country)
			return
		}
		h.log.Error("geocode failed", "city", city, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	candidates, err := h.airports.Resolve(r.Context(), airport.Request{
		Coordinates:         located.Coordinates,
		ExpectedCountryCode: located.CountryCode,
		City:                city,
		Country:             country,
	})
	if err != nil {
		if errors.Is(err, airport.ErrUnresolvable) {
			writeError(w, http.StatusNotFound, "could not resolve a departure airport for "+city)
			return
		}
		h.log.Error("airport resolution failed", "city", city, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := resolveResponse{
		AirportCode:      candidates.Primary.IATACode,
		AirportName:      candidates.Primary.Name,
		City:             city,
		Country:          country,
		Latitude:         located.Coordinates.Latitude,
		Longitude:        located.Coordinates.Longitude,
		AirportLatitude:  candidates.Primary.Coordinates.Latitude,
		AirportLongitude: candidates.Primary.Coordinates.Longitude,
	}
	for _, alt := range candidates.Alternatives {
		resp.Alternatives = append(resp.Alternatives, alternativeAirport{
			AirportCode: alt.IATACode,
			AirportName: alt.Name,
			DistanceKm:  alt.DistanceKm,
			Latitude:    alt.Coordinates.Latitude,
			Longitude:   alt.Coordinates.Longitude,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// ---- POST /api/v1/flights/prices ----

type pricesRequest struct {
	DepartureAirport string   `json:"departure_airport"`
	Destinations     []string `json:"destinations"`
}

type pricesResponse struct {
	DepartureAirport string              `json:"departure_airport"`
	FlightPrices     map[string]*float64 `json:"flight_prices"`
}

// FlightPrices handles POST /api/v1/flights/prices.
// Prices every requested destination; destinations that could not be priced
// come back as null rather than being dropped or failing the call.
func (h *Handlers) FlightPrices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := strings.ToUpper(strings.TrimSpace(req.DepartureAirport))
	if origin == "" || len(req.Destinations) == 0 {
		writeError(w, http.StatusBadRequest, "missing departure_airport or destinations")
		return
	}

	prices, err := h.prices.FetchAll(r.Context(), origin, req.Destinations)
	if err != nil {
		h.log.Error("price fetch failed", "origin", origin, "err", err)
		writeError(w, http.StatusBadGateway, "flight pricing unavailable")
		return
	}

	resp := pricesResponse{
		DepartureAirport: origin,
		FlightPrices:     make(map[string]*float64, len(req.Destinations)),
	}
	for _, dest := range req.Destinations {
		code := strings.ToUpper(strings.TrimSpace(dest))
		if code == "" {
			continue
		}
		if price, ok := prices[code]; ok {
			resp.FlightPrices[code] = &price
		} else {
			resp.FlightPrices[code] = nil
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ---- POST /api/v1/recommendations ----

type recommendationsRequest struct {
	DepartureAirport string `json:"departure_airport"`
	Alternatives     []struct {
		AirportCode string `json:"airport_code"`
	} `json:"alternatives"`
}

// Recommendations handles POST /api/v1/recommendations.
// Loads the destination reference set and ranks it; the ranker may switch to
// an alternative departure airport, which the response reflects.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := strings.ToUpper(strings.TrimSpace(req.DepartureAirport))
	if origin == "" {
		writeError(w, http.StatusBadRequest, "missing departure_airport")
		return
	}

	alternatives := make([]string, 0, len(req.Alternatives))
	for _, alt := range req.Alternatives {
		if code := strings.TrimSpace(alt.AirportCode); code != "" {
			alternatives = append(alternatives, code)
		}
	}

	destinations, err := h.store.ListDestinations(r.Context())
	if err != nil {
		h.log.Error("listing destinations failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to retrieve destinations")
		return
	}
	if len(destinations) == 0 {
		writeError(w, http.StatusInternalServerError, "no destinations available")
		return
	}

	result, err := h.ranker.Rank(r.Context(), destinations, origin, alternatives)
	if err != nil {
		h.log.Error("ranking failed", "origin", origin, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ---- POST /api/v1/weather/refresh ----

// RefreshWeather handles POST /api/v1/weather/refresh.
// Triggers a full ingest run; per-city outcomes are reported in the body.
func (h *Handlers) RefreshWeather(w http.ResponseWriter, r *http.Request) {
	report, err := h.ingestor.Run(r.Context())
	if err != nil {
		h.log.Error("weather ingest failed", "err", err)
		writeError(w, http.StatusInternalServerError, "weather ingest failed")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// ---- GET /api/v1/health ----

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}

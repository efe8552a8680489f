package scoring

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// topN is how many recommendations a ranking returns.
const topN = 3

// PriceFetcher prices a destination set from one origin. Unpriced
// destinations are absent from the map.
type PriceFetcher interface {
	FetchAll(ctx context.Context, origin string, destinations []string) (map[string]float64, error)
}

// Engine ranks destinations by the weighted blend of weather, quality-of-life
// and flight-price scores, driving the price fetcher itself so it can retry
// alternative airports when the primary yields nothing.
type Engine struct {
	fetcher PriceFetcher
	log     *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(fetcher PriceFetcher, log *slog.Logger) *Engine {
	return &Engine{fetcher: fetcher, log: log}
}

// Rank prices the destination set from origin and returns the top three by
// total score, ties broken by input order.
//
// When the primary origin yields no priced destination at all, the
// alternatives are tried in the order supplied and the first that prices at
// least one destination becomes the effective origin, reported in the
// result. With every airport exhausted, ranking still proceeds on default
// flight scores; pricing failure never fails the request.
func (e *Engine) Rank(ctx context.Context, destinations []Destination, origin string, alternatives []string) (*Result, error) {
	origin = strings.ToUpper(strings.TrimSpace(origin))

	codes := make([]string, 0, len(destinations))
	for _, d := range destinations {
		if d.IATACode != "" {
			codes = append(codes, d.IATACode)
		}
	}

	prices := e.fetchPrices(ctx, origin, codes)

	if len(prices) == 0 && len(alternatives) > 0 {
		e.log.Warn("no flight prices from primary airport, trying alternatives",
			"origin", origin, "alternatives", len(alternatives))

		for _, alt := range alternatives {
			code := strings.ToUpper(strings.TrimSpace(alt))
			if code == "" {
				continue
			}
			altPrices := e.fetchPrices(ctx, code, codes)
			if len(altPrices) > 0 {
				e.log.Info("switched to alternative departure airport",
					"origin", code, "priced", len(altPrices))
				origin = code
				prices = altPrices
				break
			}
		}
	}
	if len(prices) == 0 {
		e.log.Warn("no flight prices from any airport, ranking on default flight scores")
	}

	scored := make([]ScoredDestination, 0, len(destinations))
	for _, d := range destinations {
		scored = append(scored, scoreDestination(d, prices))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Scores.Total > scored[j].Scores.Total
	})
	if len(scored) > topN {
		scored = scored[:topN]
	}

	return &Result{
		DepartureAirport: origin,
		Recommendations:  scored,
		Weights:          Weights{Weather: weatherWeight, QoL: qolWeight, Flight: flightWeight},
	}, nil
}

// fetchPrices absorbs fetcher errors into an empty price map; the caller
// degrades to default flight scores instead of failing.
func (e *Engine) fetchPrices(ctx context.Context, origin string, codes []string) map[string]float64 {
	prices, err := e.fetcher.FetchAll(ctx, origin, codes)
	if err != nil {
		e.log.Warn("price fetch failed", "origin", origin, "err", err)
		return nil
	}
	return prices
}

func scoreDestination(d Destination, prices map[string]float64) ScoredDestination {
	var price *float64
	if p, ok := prices[d.IATACode]; ok {
		price = &p
	}

	weather := WeatherScore(d.Weather)
	qol := QoLScore(d.QualityOfLife)
	flight := FlightScore(price)
	total := TotalScore(weather, qol, flight)

	var avgTemp *float64
	if d.Weather != nil {
		t := d.Weather.AvgTemperature
		avgTemp = &t
	}

	return ScoredDestination{
		CityID:    d.CityID,
		City:      d.City,
		Country:   d.Country,
		IATACode:  d.IATACode,
		Latitude:  d.Coordinates.Latitude,
		Longitude: d.Coordinates.Longitude,
		Scores: Scores{
			Weather: round3(weather),
			QoL:     round3(qol),
			Flight:  round3(flight),
			Total:   round3(total),
		},
		Details: Details{
			AvgTemperature: avgTemp,
			FlightPrice:    price,
			QualityOfLife:  d.QualityOfLife,
		},
	}
}

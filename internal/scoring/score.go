package scoring

import "math"

// Total-score weights. Fixed, sum to 1.0.
const (
	weatherWeight = 0.30
	qolWeight     = 0.30
	flightWeight  = 0.40
)

// Quality-of-life sub-metric weights. Sum to 1.0.
const (
	beerWeight     = 0.10
	michelinWeight = 0.20
	foodWeight     = 0.25
	walkWeight     = 0.15
	transitWeight  = 0.15
	safetyWeight   = 0.15
)

// Neutral defaults substituted for missing data. Missing data is never
// fatal, it just scores as average.
const (
	defaultWeatherScore = 0.5
	defaultQoLScore     = 0.5
	defaultFlightScore  = 0.3

	defaultBeerPrice   = 6.5
	defaultMichelin    = 20
	defaultTenPoint    = 7.0
	idealTemperatureC  = 20.0
	temperatureSpreadC = 30.0
)

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// WeatherScore scores a forecast by closeness of the average temperature to
// 20°C, losing linearly over a 30°C spread. Nil weather scores neutral.
func WeatherScore(w *Weather) float64 {
	if w == nil {
		return defaultWeatherScore
	}
	return clamp01(1 - math.Abs(w.AvgTemperature-idealTemperatureC)/temperatureSpreadC)
}

// QoLScore is the weighted blend of the six normalized quality-of-life
// metrics. A missing struct scores neutral; a missing individual metric uses
// its own documented default.
func QoLScore(q *QualityOfLife) float64 {
	if q == nil {
		return defaultQoLScore
	}

	beer := clamp01(1 - (valueOr(q.BeerPriceEUR, defaultBeerPrice)-3)/7)
	michelin := clamp01(valueOr(q.MichelinRestaurants, defaultMichelin) / 150)
	food := clamp01(valueOr(q.FoodQualityScore, defaultTenPoint) / 10)
	walk := clamp01(valueOr(q.WalkabilityScore, defaultTenPoint) / 10)
	transit := clamp01(valueOr(q.PublicTransportScore, defaultTenPoint) / 10)
	safety := clamp01(valueOr(q.SafetyScore, defaultTenPoint) / 10)

	return beer*beerWeight +
		michelin*michelinWeight +
		food*foodWeight +
		walk*walkWeight +
		transit*transitWeight +
		safety*safetyWeight
}

// FlightScore maps a round-trip price onto [0, 1], best at 50 EUR and worst
// past 1000. A missing or non-positive price scores a poor-but-nonzero
// default rather than disqualifying the destination.
func FlightScore(price *float64) float64 {
	if price == nil || *price <= 0 {
		return defaultFlightScore
	}
	return clamp01(1 - (*price-50)/950)
}

// TotalScore is the fixed convex combination of the three components.
func TotalScore(weather, qol, flight float64) float64 {
	return weather*weatherWeight + qol*qolWeight + flight*flightWeight
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

// round3 trims a score for reporting.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

package scoring

import "github.com/neexbeast/travelindex/internal/geo"

// Weather is the externally-ingested forecast summary for a destination.
type Weather struct {
	AvgTemperature float64 `json:"avg_temperature"`
	MinTemperature float64 `json:"min_temperature"`
	MaxTemperature float64 `json:"max_temperature"`
	Description    string  `json:"description"`
	AvgHumidity    float64 `json:"avg_humidity"`
	AvgWindSpeed   float64 `json:"avg_wind_speed"`
	ForecastPeriod string  `json:"forecast_period,omitempty"`
}

// QualityOfLife holds the six quality-of-life reference metrics. Fields are
// pointers so each absent metric falls back to its own neutral default
// rather than a zero.
type QualityOfLife struct {
	BeerPriceEUR         *float64 `json:"beer_price_eur,omitempty"`
	MichelinRestaurants  *float64 `json:"michelin_restaurants,omitempty"`
	FoodQualityScore     *float64 `json:"food_quality_score,omitempty"`
	WalkabilityScore     *float64 `json:"walkability_score,omitempty"`
	PublicTransportScore *float64 `json:"public_transport_score,omitempty"`
	SafetyScore          *float64 `json:"safety_score,omitempty"`
}

// Destination is one candidate travel destination from the reference store.
// Weather and QualityOfLife may be nil; scoring substitutes neutral defaults.
type Destination struct {
	CityID        string          `json:"city_id"`
	City          string          `json:"city"`
	Country       string          `json:"country"`
	IATACode      string          `json:"iata_code"`
	Coordinates   geo.Coordinates `json:"coordinates"`
	Weather       *Weather        `json:"weather,omitempty"`
	QualityOfLife *QualityOfLife  `json:"quality_of_life,omitempty"`
}

// Scores is the per-destination score breakdown, each component in [0, 1].
type Scores struct {
	Weather float64 `json:"weather_score"`
	QoL     float64 `json:"qol_score"`
	Flight  float64 `json:"flight_score"`
	Total   float64 `json:"total_score"`
}

// Details carries the raw inputs behind a scored destination.
type Details struct {
	AvgTemperature *float64       `json:"avg_temperature"`
	FlightPrice    *float64       `json:"flight_price"`
	QualityOfLife  *QualityOfLife `json:"quality_of_life"`
}

// ScoredDestination is a destination with its computed scores, recomputed
// per request and never persisted.
type ScoredDestination struct {
	CityID    string  `json:"city_id"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	IATACode  string  `json:"iata_code"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Scores    Scores  `json:"scores"`
	Details   Details `json:"details"`
}

// Weights reports the fixed total-score weights alongside a ranking.
type Weights struct {
	Weather float64 `json:"weather"`
	QoL     float64 `json:"qol"`
	Flight  float64 `json:"flight"`
}

// Result is a ranked recommendation response. DepartureAirport may differ
// from the requested origin when the alternative-airport fallback kicked in.
type Result struct {
	DepartureAirport string              `json:"departure_airport"`
	Recommendations  []ScoredDestination `json:"recommendations"`
	Weights          Weights             `json:"weights"`
}

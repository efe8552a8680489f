package airport

import "github.com/neexbeast/travelindex/internal/geo"

// Airport is a candidate departure airport. DistanceKm is measured from the
// query point of the resolution that produced it, not an intrinsic property.
type Airport struct {
	IATACode    string          `json:"airport_code"`
	Name        string          `json:"airport_name"`
	Coordinates geo.Coordinates `json:"coordinates"`
	CityName    string          `json:"city_name,omitempty"`
	CountryCode string          `json:"country_code,omitempty"`
	DistanceKm  float64         `json:"distance_km"`
}

// CandidateSet is the outcome of a resolution: the primary pick plus up to
// three alternatives, nearest first, never including the primary itself.
type CandidateSet struct {
	Primary      Airport
	Alternatives []Airport
}

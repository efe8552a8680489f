package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neexbeast/travelindex/internal/scoring"
)

// Querier abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides database access to the destination reference store.
// Destinations are read-only for the scoring pipeline; only the weather
// ingestion job writes to them.
type Repository struct {
	q Querier
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{q: pool}
}

// NewRepositoryWithQuerier constructs a Repository with a custom Querier (for tests).
func NewRepositoryWithQuerier(q Querier) *Repository {
	return &Repository{q: q}
}

// destinationData is the JSONB payload attached to a destination row.
type destinationData struct {
	Weather       *scoring.Weather       `json:"weather,omitempty"`
	QualityOfLife *scoring.QualityOfLife `json:"quality_of_life,omitempty"`
}

// ListDestinations returns every candidate destination with whatever weather
// and quality-of-life data it currently carries.
func (r *Repository) ListDestinations(ctx context.Context) ([]scoring.Destination, error) {
	const q = `
		SELECT city_id, city, country, iata_code, latitude, longitude, data
		FROM destinations
		ORDER BY id
	`

	rows, err := r.q.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying destinations: %w", err)
	}
	defer rows.Close()

	var destinations []scoring.Destination
	for rows.Next() {
		var d scoring.Destination
		var dataJSON []byte

		if err := rows.Scan(
			&d.CityID,
			&d.City,
			&d.Country,
			&d.IATACode,
			&d.Coordinates.Latitude,
			&d.Coordinates.Longitude,
			&dataJSON,
		); err != nil {
			return nil, fmt.Errorf("scanning destination row: %w", err)
		}

		var data destinationData
		if err := json.Unmarshal(dataJSON, &data); err != nil {
			return nil, fmt.Errorf("unmarshaling destination data for %s: %w", d.CityID, err)
		}
		d.Weather = data.Weather
		d.QualityOfLife = data.QualityOfLife

		destinations = append(destinations, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating destination rows: %w", err)
	}

	return destinations, nil
}

// UpsertWeather replaces the weather block of a destination's JSONB data.
func (r *Repository) UpsertWeather(ctx context.Context, cityID string, w scoring.Weather) error {
	weatherJSON, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("marshaling weather for %s: %w", cityID, err)
	}

	const q = `
		UPDATE destinations
		SET data       = jsonb_set(COALESCE(data, '{}'::jsonb), '{weather}', $2::jsonb, true),
		    updated_at = NOW()
		WHERE city_id = $1
	`

	tag, err := r.q.Exec(ctx, q, cityID, weatherJSON)
	if err != nil {
		return fmt.Errorf("upserting weather for %s: %w", cityID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("upserting weather: unknown city_id %s", cityID)
	}

	return nil
}

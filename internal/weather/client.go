package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/neexbeast/travelindex/internal/scoring"
)

const (
	owmForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	httpTimeout    = 10 * time.Second

	// The forecast API returns 3-hour steps; 24 entries cover 72 hours.
	threeDayEntries = 24
	// Description is the most common one over the first 24 hours.
	firstDayEntries = 8
)

// Client fetches the 5-day/3-hour forecast from OpenWeatherMap.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{apiKey: apiKey, baseURL: owmForecastURL, client: &http.Client{Timeout: httpTimeout}}
}

// NewClientWithURL constructs a Client pointing at a custom base URL (for tests).
func NewClientWithURL(baseURL, apiKey string) *Client {
	return &Client{apiKey: apiKey, baseURL: baseURL, client: &http.Client{Timeout: httpTimeout}}
}

type forecastResponse struct {
	List []forecastEntry `json:"list"`
}

type forecastEntry struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Fetch retrieves the forecast for a point and reduces it to a 3-day summary.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) (*scoring.Weather, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating forecast request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching forecast for (%f, %f): %w", lat, lon, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast for (%f, %f) returned status %d", lat, lon, resp.StatusCode)
	}

	var raw forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding forecast response: %w", err)
	}

	summary := summarize(raw.List)
	if summary == nil {
		return nil, fmt.Errorf("forecast for (%f, %f) contained no entries", lat, lon)
	}

	return summary, nil
}

// summarize reduces the 3-hourly forecast to averages over the next 3 days.
func summarize(entries []forecastEntry) *scoring.Weather {
	if len(entries) > threeDayEntries {
		entries = entries[:threeDayEntries]
	}
	if len(entries) == 0 {
		return nil
	}

	var tempSum, humiditySum, windSum float64
	minTemp := entries[0].Main.Temp
	maxTemp := entries[0].Main.Temp

	for _, e := range entries {
		tempSum += e.Main.Temp
		humiditySum += e.Main.Humidity
		windSum += e.Wind.Speed
		minTemp = math.Min(minTemp, e.Main.Temp)
		maxTemp = math.Max(maxTemp, e.Main.Temp)
	}

	n := float64(len(entries))
	return &scoring.Weather{
		AvgTemperature: round1(tempSum / n),
		MinTemperature: round1(minTemp),
		MaxTemperature: round1(maxTemp),
		Description:    commonDescription(entries),
		AvgHumidity:    round1(humiditySum / n),
		AvgWindSpeed:   round1(windSum / n),
		ForecastPeriod: "3 days",
	}
}

// commonDescription picks the most frequent condition over the first day.
func commonDescription(entries []forecastEntry) string {
	if len(entries) > firstDayEntries {
		entries = entries[:firstDayEntries]
	}

	counts := make(map[string]int)
	best := ""
	for _, e := range entries {
		if len(e.Weather) == 0 {
			continue
		}
		d := e.Weather[0].Description
		counts[d]++
		if best == "" || counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

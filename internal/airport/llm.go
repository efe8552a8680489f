package airport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/neexbeast/travelindex/internal/geo"
)

// ErrBadLLMAnswer is returned when the model's answer is not the strict JSON
// shape we asked for, or fails schema validation.
var ErrBadLLMAnswer = errors.New("airport: llm answer failed validation")

var iataPattern = regexp.MustCompile(`^[A-Z]{3}$`)

const llmTimeout = 30 * time.Second

// LLMResolver is the optional last resolution tier: it asks a hosted language
// model for the nearest major airport and accepts only a schema-valid answer.
type LLMResolver struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewLLMResolver constructs an LLMResolver for the given inference endpoint.
func NewLLMResolver(endpoint, apiKey string) *LLMResolver {
	return &LLMResolver{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: llmTimeout},
	}
}

type llmRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters llmParameters `json:"parameters"`
}

type llmParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
}

type llmAnswer struct {
	AirportCode string  `json:"airport_code"`
	AirportName string  `json:"airport_name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

const llmPrompt = `You are a travel assistant. Given a city and country, identify the nearest major international airport.

City: %s
Country: %s

Return ONLY a JSON object with this exact format (no additional text):
{"airport_code": "XXX", "airport_name": "Airport Name", "latitude": 00.0000, "longitude": 00.0000}

Requirements:
- Use the IATA 3-letter airport code
- Airport MUST be in the SAME country as the city
- Provide accurate coordinates for the airport
- Return ONLY valid JSON, no explanations`

// ResolveAirport asks the model for the nearest airport to a city. The answer
// must parse as the exact JSON object requested and pass schema validation
// (IATA shape, coordinate ranges); anything else is ErrBadLLMAnswer.
func (r *LLMResolver) ResolveAirport(ctx context.Context, city, country string) (Airport, error) {
	body, err := json.Marshal(llmRequest{
		Inputs: fmt.Sprintf(llmPrompt, city, country),
		Parameters: llmParameters{
			MaxNewTokens:   150,
			Temperature:    0.1,
			ReturnFullText: false,
		},
	})
	if err != nil {
		return Airport{}, fmt.Errorf("marshaling llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Airport{}, fmt.Errorf("creating llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Airport{}, fmt.Errorf("llm request for %s, %s: %w", city, country, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Airport{}, fmt.Errorf("llm returned status %d: %s", resp.StatusCode, respBody)
	}

	text, err := extractGeneratedText(respBody)
	if err != nil {
		return Airport{}, err
	}

	return parseAnswer(text)
}

// extractGeneratedText pulls the generated text out of either response shape
// the inference API uses (a list of generations or a single object).
func extractGeneratedText(body []byte) (string, error) {
	var asList []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &asList); err == nil && len(asList) > 0 {
		return asList[0].GeneratedText, nil
	}

	var asObject struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(body, &asObject); err == nil && asObject.GeneratedText != "" {
		return asObject.GeneratedText, nil
	}

	return "", fmt.Errorf("unexpected llm response shape: %w", ErrBadLLMAnswer)
}

// parseAnswer decodes the model output as one strict JSON object and
// validates it. Unknown fields are rejected so free-form prose around the
// object never slips through as a partial match.
func parseAnswer(text string) (Airport, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var answer llmAnswer
	if err := dec.Decode(&answer); err != nil {
		return Airport{}, fmt.Errorf("decoding llm answer: %w: %w", ErrBadLLMAnswer, err)
	}

	coords := geo.Coordinates{Latitude: answer.Latitude, Longitude: answer.Longitude}
	switch {
	case !iataPattern.MatchString(answer.AirportCode):
		return Airport{}, fmt.Errorf("llm answer iata %q: %w", answer.AirportCode, ErrBadLLMAnswer)
	case answer.AirportName == "":
		return Airport{}, fmt.Errorf("llm answer missing airport name: %w", ErrBadLLMAnswer)
	case !coords.Valid():
		return Airport{}, fmt.Errorf("llm answer coordinates out of range: %w", ErrBadLLMAnswer)
	}

	return Airport{
		IATACode:    answer.AirportCode,
		Name:        answer.AirportName,
		Coordinates: coords,
	}, nil
}

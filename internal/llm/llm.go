// Package llm adapts the provider clients in pkg/ to one Generator interface
// so discovery and enrichment can swap providers by configuration.
package llm

import (
	"context"
	"encoding/json"
)

// Provider names accepted in configuration.
const (
	ProviderGemini     = "gemini"
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
)

// Location biases grounded search toward a place. Coordinates count only
// when HasLatLng is set; a zero pair is a real point.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	HasLatLng bool    `json:"-"`
	Country   string  `json:"country,omitempty"`
}

// LatLng returns a Location with coordinates set.
func LatLng(lat, lng float64) *Location {
	return &Location{Latitude: lat, Longitude: lng, HasLatLng: true}
}

// UnmarshalJSON sets HasLatLng only when both coordinates are present.
func (l *Location) UnmarshalJSON(data []byte) error {
	var raw struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Country   string   `json:"country"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Location{Country: raw.Country}
	if raw.Latitude != nil && raw.Longitude != nil {
		l.Latitude, l.Longitude, l.HasLatLng = *raw.Latitude, *raw.Longitude, true
	}
	return nil
}

// Request is a provider-neutral generation request.
type Request struct {
	System string
	Prompt string
	// Grounded asks for search-grounded output (Maps for Gemini, web search
	// for Perplexity). Providers without grounding ignore it.
	Grounded bool
	Location *Location
	// Schema constrains the response to JSON where the provider supports it.
	Schema *Schema
	// Label names the subject of the call in logs, e.g. a company name.
	Label string
}

// Response is the generated text plus grounding sources, if any.
type Response struct {
	Text     string
	Provider string
	Model    string
	Sources  []string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

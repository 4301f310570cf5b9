package llm

import (
	"context"

	"github.com/sells-group/prospect-cli/pkg/gemini"
)

// GeminiGenerator generates with Gemini. Grounded requests use Maps
// grounding; a schema switches the call to JSON mode.
type GeminiGenerator struct {
	client gemini.Client
	model  string
}

// NewGeminiGenerator wraps a Gemini client for a fixed model.
func NewGeminiGenerator(client gemini.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

// Name returns the provider name.
func (g *GeminiGenerator) Name() string { return ProviderGemini }

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	greq := gemini.Request{
		Model:  g.model,
		System: req.System,
		Prompt: req.Prompt,
	}
	if req.Grounded {
		greq.Grounding = gemini.GroundingMaps
		if req.Location != nil && req.Location.HasLatLng {
			greq.Location = &gemini.LatLng{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
		}
	} else {
		// Gemini rejects tools combined with a response schema, so JSON
		// mode applies only to ungrounded calls.
		greq.Schema = req.Schema.toGenai()
	}

	resp, err := g.client.Generate(ctx, greq)
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:     resp.Text,
		Provider: ProviderGemini,
		Model:    resp.Model,
		Sources:  resp.Sources,
	}, nil
}

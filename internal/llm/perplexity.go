package llm

import (
	"context"

	"github.com/sells-group/prospect-cli/pkg/perplexity"
)

// PerplexityGenerator generates with Perplexity's search-backed chat models.
type PerplexityGenerator struct {
	client perplexity.Client
	model  string
}

// NewPerplexityGenerator wraps a Perplexity client.
func NewPerplexityGenerator(client perplexity.Client, model string) *PerplexityGenerator {
	return &PerplexityGenerator{client: client, model: model}
}

// Name returns the provider name.
func (g *PerplexityGenerator) Name() string { return ProviderPerplexity }

// Generate implements Generator.
func (g *PerplexityGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	var msgs []perplexity.Message
	if req.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: req.Prompt})

	preq := perplexity.ChatCompletionRequest{
		Model:    g.model,
		Messages: msgs,
	}
	if req.Schema != nil {
		preq.ResponseFormat = &perplexity.ResponseFormat{
			Type:       "json_schema",
			JSONSchema: &perplexity.JSONSchema{Schema: req.Schema.JSON()},
		}
	}
	if req.Grounded {
		wso := &perplexity.WebSearchOptions{SearchContextSize: "high"}
		if req.Location != nil {
			wso.UserLocation = &perplexity.UserLocation{Country: req.Location.Country}
			if req.Location.HasLatLng {
				wso.UserLocation.Latitude = req.Location.Latitude
				wso.UserLocation.Longitude = req.Location.Longitude
			}
		}
		preq.WebSearchOptions = wso
	}

	resp, err := g.client.ChatCompletion(ctx, preq)
	if err != nil {
		return nil, err
	}
	return &Response{
		Text:     resp.Text(),
		Provider: ProviderPerplexity,
		Model:    g.model,
		Sources:  resp.Citations,
	}, nil
}

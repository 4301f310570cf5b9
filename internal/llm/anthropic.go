package llm

import (
	"context"

	"github.com/sells-group/prospect-cli/pkg/anthropic"
)

// AnthropicGenerator generates with Claude. It has no grounding, and the
// schema is left to the prompt.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator wraps an Anthropic client.
func NewAnthropicGenerator(client anthropic.Client, model string, maxTokens int64) *AnthropicGenerator {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicGenerator{client: client, model: model, maxTokens: maxTokens}
}

// Name returns the provider name.
func (g *AnthropicGenerator) Name() string { return ProviderAnthropic }

// Generate implements Generator.
func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(req.System),
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return nil, err
	}
	resp.Usage.LogCost(g.model, req.Label)

	return &Response{
		Text:     resp.Text(),
		Provider: ProviderAnthropic,
		Model:    resp.Model,
	}, nil
}

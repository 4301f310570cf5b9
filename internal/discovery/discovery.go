// Package discovery finds candidate businesses for a search through a
// grounded generator and parses them into DiscoveryCandidates.
package discovery

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/llm"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Label names discovery failures in logs and classified errors.
const Label = "Lead Discovery"

// Bounds on the number of leads one request may ask for.
const (
	MinLeads     = 1
	MaxLeads     = 50
	DefaultLeads = 5
)

// DefaultMaxRetries is the attempt budget for the expensive grounded call.
const DefaultMaxRetries = 2

// Request describes what to discover.
type Request struct {
	SearchQuery   string        `json:"searchQuery"`
	City          string        `json:"city"`
	Country       string        `json:"country"`
	NumberOfLeads int           `json:"numberOfLeads"`
	Location      *llm.Location `json:"location,omitempty"`
}

// Validate checks the request and returns a *resilience.ValidationError
// listing every invalid field.
func (r Request) Validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(r.SearchQuery) == "" {
		fields["searchQuery"] = "search query is required"
	}
	if strings.TrimSpace(r.City) == "" {
		fields["city"] = "city is required"
	}
	if strings.TrimSpace(r.Country) == "" {
		fields["country"] = "country is required"
	}
	if r.NumberOfLeads < MinLeads || r.NumberOfLeads > MaxLeads {
		fields["numberOfLeads"] = "number of leads must be between 1 and 50"
	}
	if len(fields) > 0 {
		return &resilience.ValidationError{Message: "invalid discovery request", Fields: fields}
	}
	return nil
}

// Client discovers candidates.
type Client struct {
	gen   llm.Generator
	retry resilience.RetryConfig
}

// New creates a discovery client. maxRetries <= 0 uses DefaultMaxRetries.
func New(gen llm.Generator, retry resilience.RetryConfig, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Client{
		gen:   gen,
		retry: retry.WithMaxRetries(maxRetries).WithLabel(Label),
	}
}

// Discover returns at most req.NumberOfLeads candidates, each with a
// non-empty company name. Every failure is returned classified.
func (c *Client) Discover(ctx context.Context, req Request) ([]model.DiscoveryCandidate, error) {
	if err := req.Validate(); err != nil {
		return nil, resilience.Classify(err, Label)
	}

	greq := llm.Request{
		System:   systemPrompt,
		Prompt:   BuildPrompt(req),
		Grounded: true,
		Location: req.Location,
		Schema:   llm.ArrayOf(candidateSchema),
		Label:    req.SearchQuery,
	}
	if greq.Location == nil {
		// Country only; Maps grounding gets no coordinates.
		greq.Location = &llm.Location{Country: req.Country}
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*llm.Response, error) {
		return c.gen.Generate(ctx, greq)
	})
	if err != nil {
		return nil, resilience.Classify(err, Label)
	}

	candidates, err := Parse(resp.Text)
	if err != nil {
		return nil, resilience.Classify(err, Label)
	}

	out := Normalize(candidates, req.NumberOfLeads)
	zap.L().Info("discovered candidates",
		zap.String("query", req.SearchQuery),
		zap.String("city", req.City),
		zap.String("country", req.Country),
		zap.String("provider", resp.Provider),
		zap.Int("requested", req.NumberOfLeads),
		zap.Int("returned", len(candidates)),
		zap.Int("kept", len(out)),
	)
	return out, nil
}

// Parse decodes the provider text into candidates. Text that needs the
// bracket-scan fallback is accepted with a warning; text that cannot be
// parsed at all is a *resilience.ValidationError.
func Parse(text string) ([]model.DiscoveryCandidate, error) {
	var candidates []model.DiscoveryCandidate
	mode, err := llm.DecodeArray(text, &candidates)
	if err != nil {
		return nil, &resilience.ValidationError{
			Message: "discovery response is not a JSON array of businesses",
			Fields:  map[string]string{"response": llm.Truncate(text, 200)},
			Err:     err,
		}
	}
	if mode == llm.ParseBracketScan {
		zap.L().Warn("discovery response parsed with bracket scan",
			zap.String("response_head", llm.Truncate(text, 120)),
		)
	}
	return candidates, nil
}

// Normalize trims fields, drops entries without a company name and keeps at
// most limit candidates.
func Normalize(candidates []model.DiscoveryCandidate, limit int) []model.DiscoveryCandidate {
	if limit < 0 {
		limit = 0
	}
	out := make([]model.DiscoveryCandidate, 0, min(len(candidates), limit))
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		c.CompanyName = strings.TrimSpace(c.CompanyName)
		if c.CompanyName == "" {
			continue
		}
		c.Website = strings.TrimSpace(c.Website)
		out = append(out, c)
	}
	return out
}

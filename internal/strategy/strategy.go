// Package strategy generates search categories for a topic and ICP
// outreach strategies for a product profile.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/llm"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Labels name failures in logs and classified errors.
const (
	CategoryLabel = "Category Generation"
	StrategyLabel = "ICP Strategy Generation"
)

// Counts requested from the generator.
const (
	NumCategories = 12
	NumStrategies = 3
)

// Generator produces categories and strategies with a structured-output
// generator.
type Generator struct {
	gen   llm.Generator
	retry resilience.RetryConfig
}

// New creates a Generator.
func New(gen llm.Generator, retry resilience.RetryConfig) *Generator {
	return &Generator{gen: gen, retry: retry}
}

// Categories returns search terms for businesses related to topic.
func (g *Generator) Categories(ctx context.Context, topic string) ([]string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, &resilience.ValidationError{
			Message: "topic is required",
			Fields:  map[string]string{"topic": "required"},
		}
	}

	prompt := fmt.Sprintf(`Generate a list of %d relevant business categories for lead generation related to the event or topic: %q. These should be good search terms. For example, for "wedding", you could suggest "photographers", "caterers", "florists", "DJs", etc.`,
		NumCategories, topic)

	var raw []string
	if err := g.generate(ctx, CategoryLabel, llm.Request{
		Prompt: prompt,
		Schema: llm.ArrayOf(llm.String("")),
		Label:  topic,
	}, &raw); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out, nil
}

var strategySchema = llm.ArrayOf(llm.Object(map[string]*llm.Schema{
	"personaName":   llm.String("buyer persona or market segment"),
	"searchQuery":   llm.String("Google Maps search query that finds this persona"),
	"rationale":     llm.String("why this segment fits"),
	"outreachAngle": llm.String("how the value proposition meets their pain points"),
}, "personaName", "searchQuery", "rationale", "outreachAngle"))

// Strategies returns buyer personas with search queries for profile.
func (g *Generator) Strategies(ctx context.Context, profile model.ICPProfile) ([]model.ICPStrategy, error) {
	if errs := model.ValidateProfile(profile); len(errs) > 0 {
		return nil, &resilience.ValidationError{Message: "invalid profile", Fields: errs}
	}

	var raw []model.ICPStrategy
	if err := g.generate(ctx, StrategyLabel, llm.Request{
		Prompt: BuildStrategyPrompt(profile),
		Schema: strategySchema,
		Label:  profile.ProductName,
	}, &raw); err != nil {
		return nil, err
	}

	out := make([]model.ICPStrategy, 0, len(raw))
	for _, s := range raw {
		s.PersonaName = strings.TrimSpace(s.PersonaName)
		s.SearchQuery = strings.TrimSpace(s.SearchQuery)
		if s.PersonaName == "" || s.SearchQuery == "" {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// BuildStrategyPrompt renders the strategy instruction for profile.
func BuildStrategyPrompt(p model.ICPProfile) string {
	return fmt.Sprintf(`You are a B2B Sales Strategy Expert.

I am selling: %s
Description: %s
My Value Proposition: %s
My Broad Target: %s
Location Context: %s

Your task:
1. Analyze this offering.
2. Identify %d distinct "Buyer Personas" or "Market Segments" that would be the best fit.
3. For each persona, create a specific Google Maps/Search Query to find them.
4. Define a unique "Outreach Angle" that connects my value prop to their likely pain points.

Return a JSON array of %d strategies.`,
		p.ProductName, p.ProductDescription, p.ValueProposition, p.TargetAudience, p.Location,
		NumStrategies, NumStrategies)
}

func (g *Generator) generate(ctx context.Context, label string, req llm.Request, v any) error {
	cfg := g.retry.WithLabel(label)
	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*llm.Response, error) {
		return g.gen.Generate(ctx, req)
	})
	if err != nil {
		return resilience.Classify(err, label)
	}

	mode, err := llm.DecodeArray(resp.Text, v)
	if err != nil {
		return &resilience.ValidationError{
			Message: label + " returned an unreadable response",
			Fields:  map[string]string{"response": llm.Truncate(resp.Text, 200)},
			Err:     err,
		}
	}
	if mode == llm.ParseBracketScan {
		zap.L().Warn("strategy: response parsed with bracket scan", zap.String("context", label))
	}
	return nil
}

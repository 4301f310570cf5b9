// Package enrich turns discovered candidates into enriched leads: it
// retrieves website content, extracts contact fields with a generator and
// fans the work out over a bounded pool.
package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/llm"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Label names extraction failures in logs and classified errors.
const Label = "Lead Enrichment"

// Defaults applied when an extraction omits a field.
const (
	DefaultQualityScore = 50
	DefaultConfidence   = 0.5
)

// DefaultIcebreaker is used when the extraction has no icebreaker.
func DefaultIcebreaker(companyName string) string {
	return "Hi—I'm a big fan of " + companyName + " and wanted to connect."
}

// FieldExtractor extracts enrichment fields for one candidate.
type FieldExtractor interface {
	Extract(ctx context.Context, c model.DiscoveryCandidate, content string, o *Outreach) (model.EnrichedFields, error)
}

// Extractor asks a generator for one JSON object of contact fields.
type Extractor struct {
	gen   llm.Generator
	retry resilience.RetryConfig
}

// NewExtractor creates an Extractor.
func NewExtractor(gen llm.Generator, retry resilience.RetryConfig) *Extractor {
	return &Extractor{gen: gen, retry: retry.WithLabel(Label)}
}

// extraction mirrors the JSON object requested from the generator. Scores
// are pointers so an omitted field can be told apart from zero.
type extraction struct {
	Phone               string   `json:"phone"`
	Email               string   `json:"email"`
	LinkedIn            string   `json:"linkedIn"`
	Facebook            string   `json:"facebook"`
	Instagram           string   `json:"instagram"`
	ContactName         string   `json:"contactName"`
	ContactTitle        string   `json:"contactTitle"`
	QualityScore        *float64 `json:"qualityScore"`
	ConfidenceOverall   *float64 `json:"confidenceOverall"`
	SocialContext       string   `json:"socialContext"`
	Icebreaker          string   `json:"icebreaker"`
	EnrichedDescription string   `json:"enrichedDescription"`
}

// Extract implements FieldExtractor. Generation failures are returned
// classified; an unparsable response is a *resilience.ValidationError.
func (e *Extractor) Extract(ctx context.Context, c model.DiscoveryCandidate, content string, o *Outreach) (model.EnrichedFields, error) {
	req := llm.Request{
		System: systemPrompt,
		Prompt: BuildPrompt(c, content, o),
		Schema: extractionSchema,
		Label:  c.CompanyName,
	}

	resp, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*llm.Response, error) {
		return e.gen.Generate(ctx, req)
	})
	if err != nil {
		return model.EnrichedFields{}, resilience.Classify(err, Label)
	}

	return ParseFields(resp.Text, c.CompanyName)
}

// ParseFields decodes an extraction response and fills defaults for
// omitted fields. Scores are clamped to their ranges.
func ParseFields(text, companyName string) (model.EnrichedFields, error) {
	var x extraction
	mode, err := llm.DecodeObject(text, &x)
	if err != nil {
		return model.EnrichedFields{}, &resilience.ValidationError{
			Message: "enrichment response is not a JSON object",
			Fields:  map[string]string{"response": llm.Truncate(text, 200)},
			Err:     err,
		}
	}
	if mode == llm.ParseBracketScan {
		zap.L().Warn("enrichment response parsed with bracket scan", zap.String("company", companyName))
	}

	f := model.EnrichedFields{
		Contact: model.Contact{
			Email:             strings.TrimSpace(x.Email),
			LinkedIn:          strings.TrimSpace(x.LinkedIn),
			Facebook:          strings.TrimSpace(x.Facebook),
			Instagram:         strings.TrimSpace(x.Instagram),
			ContactName:       strings.TrimSpace(x.ContactName),
			ContactTitle:      strings.TrimSpace(x.ContactTitle),
			QualityScore:      DefaultQualityScore,
			ConfidenceOverall: DefaultConfidence,
			SocialContext:     strings.TrimSpace(x.SocialContext),
			Icebreaker:        strings.TrimSpace(x.Icebreaker),
		},
		Phone:               strings.TrimSpace(x.Phone),
		EnrichedDescription: strings.TrimSpace(x.EnrichedDescription),
	}
	if x.QualityScore != nil {
		f.QualityScore = int(*x.QualityScore + 0.5)
	}
	if x.ConfidenceOverall != nil {
		f.ConfidenceOverall = *x.ConfidenceOverall
	}
	if f.Icebreaker == "" {
		f.Icebreaker = DefaultIcebreaker(companyName)
	}
	f.Clamp()
	return f, nil
}

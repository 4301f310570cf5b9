package enrich

import "github.com/sells-group/prospect-cli/internal/model"

// OutcomeStatus tags an Outcome.
type OutcomeStatus string

const (
	StatusEnriched OutcomeStatus = "enriched"
	StatusDegraded OutcomeStatus = "degraded"
)

// Fallback scores and note given to a candidate whose enrichment failed.
const (
	FallbackQualityScore = 20
	FallbackConfidence   = 0.3
	FallbackNote         = "Enrichment failed"
)

// Outcome is the result of enriching one candidate: either Enriched with
// the extracted fields, or Degraded with the fallback fields and a reason.
type Outcome struct {
	Status OutcomeStatus        `json:"status"`
	Fields model.EnrichedFields `json:"fields"`
	Reason string               `json:"reason,omitempty"`
}

// Enriched wraps a clean extraction.
func Enriched(f model.EnrichedFields) Outcome {
	return Outcome{Status: StatusEnriched, Fields: f}
}

// Degraded wraps fallback fields with the reason enrichment failed.
func Degraded(f model.EnrichedFields, reason string) Outcome {
	return Outcome{Status: StatusDegraded, Fields: f, Reason: reason}
}

// IsDegraded reports whether the outcome used fallback fields.
func (o Outcome) IsDegraded() bool { return o.Status == StatusDegraded }

// FallbackFields returns the field set used when enrichment fails: empty
// contact details with low scores.
func FallbackFields() model.EnrichedFields {
	return model.EnrichedFields{
		Contact: model.Contact{
			QualityScore:      FallbackQualityScore,
			ConfidenceOverall: FallbackConfidence,
			SocialContext:     FallbackNote,
		},
	}
}

// Summary counts outcomes by status.
type Summary struct {
	Total    int `json:"total"`
	Enriched int `json:"enriched"`
	Degraded int `json:"degraded"`
}

// Summarize tallies outcomes.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.IsDegraded() {
			s.Degraded++
		} else {
			s.Enriched++
		}
	}
	return s
}

package model

import (
	"strings"
	"time"
)

// PipelineStage is a lead's position in the sales pipeline.
type PipelineStage string

const (
	StageNew       PipelineStage = "New"
	StageContacted PipelineStage = "Contacted"
	StageQualified PipelineStage = "Qualified"
	StageProposal  PipelineStage = "Proposal"
	StageWon       PipelineStage = "Won"
	StageLost      PipelineStage = "Lost"
)

// Stages lists every pipeline stage in board order.
var Stages = []PipelineStage{StageNew, StageContacted, StageQualified, StageProposal, StageWon, StageLost}

// ParseStage returns the stage named s (case-insensitive).
func ParseStage(s string) (PipelineStage, bool) {
	for _, st := range Stages {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// DefaultStatus is the free-text status given to freshly discovered leads.
const DefaultStatus = "New"

// Score bounds applied on every merge.
const (
	MinQualityScore = 0
	MaxQualityScore = 100
	MinConfidence   = 0.0
	MaxConfidence   = 1.0
)

// DiscoveryCandidate is one business returned by the discovery provider.
// Field names on the wire follow the provider's JSON contract.
type DiscoveryCandidate struct {
	CompanyName    string  `json:"companyName"`
	Website        string  `json:"website,omitempty"`
	Phone          string  `json:"phone"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	Country        string  `json:"country"`
	Description    string  `json:"description"`
	GoogleMapsLink string  `json:"googleMapsLink"`
	Coordinates    string  `json:"coordinates"` // "lat,lng"
	Rating         float64 `json:"rating"`
	ReviewCount    int     `json:"reviewCount"`
	BusinessHours  string  `json:"businessHours"`
	Category       string  `json:"category"`
}

// Contact holds the enrichment fields a Lead carries verbatim.
type Contact struct {
	Email             string  `json:"email"`
	LinkedIn          string  `json:"linkedIn"`
	Facebook          string  `json:"facebook"`
	Instagram         string  `json:"instagram"`
	ContactName       string  `json:"contactName"`
	ContactTitle      string  `json:"contactTitle"`
	QualityScore      int     `json:"qualityScore"`
	ConfidenceOverall float64 `json:"confidenceOverall"`
	SocialContext     string  `json:"socialContext"`
	Icebreaker        string  `json:"icebreaker"`
}

// Clamp bounds the score fields to their valid ranges.
func (c *Contact) Clamp() {
	if c.QualityScore < MinQualityScore {
		c.QualityScore = MinQualityScore
	}
	if c.QualityScore > MaxQualityScore {
		c.QualityScore = MaxQualityScore
	}
	if c.ConfidenceOverall < MinConfidence {
		c.ConfidenceOverall = MinConfidence
	}
	if c.ConfidenceOverall > MaxConfidence {
		c.ConfidenceOverall = MaxConfidence
	}
}

// EnrichedFields is what enrichment produces for one candidate. Phone and
// EnrichedDescription only override the candidate's values when non-empty.
type EnrichedFields struct {
	Contact
	Phone               string `json:"phone"`
	EnrichedDescription string `json:"enrichedDescription,omitempty"`
}

// Merge applies f to the lead: contact fields are replaced, phone and
// description only when enrichment supplied a value. Scores are clamped.
func (l *Lead) Merge(f EnrichedFields) {
	l.Contact = f.Contact
	l.Contact.Clamp()
	if strings.TrimSpace(f.Phone) != "" {
		l.Phone = f.Phone
	}
	if strings.TrimSpace(f.EnrichedDescription) != "" {
		l.Description = f.EnrichedDescription
	}
}

// Comment is a note attached to a lead in the CRM board.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Lead is a discovered business tracked through the sales pipeline.
type Lead struct {
	DiscoveryCandidate
	Contact

	ID            string        `json:"id"`
	ProjectID     string        `json:"projectId"`
	GeneratedDate time.Time     `json:"generatedDate"`
	SearchCity    string        `json:"searchCity"`
	SearchCountry string        `json:"searchCountry"`
	LeadNumber    int           `json:"leadNumber"`
	Status        string        `json:"status"`
	Contacted     bool          `json:"contacted"`
	Notes         string        `json:"notes"`
	Stage         PipelineStage `json:"stage,omitempty"`
	DealValue     float64       `json:"dealValue,omitempty"`
	Owner         string        `json:"owner,omitempty"`
	Comments      []Comment     `json:"comments,omitempty"`
}

// HasWebsite reports whether the lead has a website to retrieve content from.
func (l *Lead) HasWebsite() bool {
	return strings.TrimSpace(l.Website) != ""
}

package model

import "time"

// Project groups leads and strategies, like a folder.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProjectSummary is a project with its aggregate counts.
type ProjectSummary struct {
	Project
	LeadCount     int        `json:"leadCount"`
	StrategyCount int        `json:"strategyCount"`
	LastActivity  *time.Time `json:"lastActivity,omitempty"`
}

// ICPProfile describes the product being sold and its target customer.
type ICPProfile struct {
	ProductName        string `json:"productName" yaml:"product_name"`
	ProductDescription string `json:"productDescription" yaml:"product_description"`
	TargetAudience     string `json:"targetAudience" yaml:"target_audience"`
	ValueProposition   string `json:"valueProposition" yaml:"value_proposition"`
	Location           string `json:"location" yaml:"location"`
}

// ICPStrategy is one generated outreach persona.
type ICPStrategy struct {
	PersonaName   string `json:"personaName" yaml:"persona_name"`
	SearchQuery   string `json:"searchQuery" yaml:"search_query"`
	Rationale     string `json:"rationale" yaml:"rationale"`
	OutreachAngle string `json:"outreachAngle" yaml:"outreach_angle"`
}

// SavedStrategy is an ICPStrategy persisted under a project together with
// the profile it was generated from.
type SavedStrategy struct {
	ICPStrategy
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	CreatedAt time.Time  `json:"createdAt"`
	Profile   ICPProfile `json:"profile"`
}

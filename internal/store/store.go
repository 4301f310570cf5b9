// Package store persists projects, leads and saved strategies. SQLite is
// the default backend; Postgres is used when store.driver is "postgres".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/model"
)

// ErrNotFound is matched (errors.Is) by lookups and updates of a missing row.
var ErrNotFound = errors.New("not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	ProjectID string              `json:"project_id,omitempty"`
	Stage     model.PipelineStage `json:"stage,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Offset    int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Projects
	CreateProject(ctx context.Context, name, description string) (*model.Project, error)
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context) ([]model.ProjectSummary, error)
	UpdateProject(ctx context.Context, p model.Project) error
	DeleteProject(ctx context.Context, id string) error

	// Leads
	// NextLeadNumber is a preview; numbers are assigned when leads are
	// written.
	NextLeadNumber(ctx context.Context, projectID string) (int, error)
	// CreateLeads and SaveLeads number leads that are not stored yet inside
	// the write transaction and write the numbers back into leads.
	CreateLeads(ctx context.Context, leads []model.Lead) error
	SaveLeads(ctx context.Context, leads []model.Lead) (int64, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	UpdateLead(ctx context.Context, l model.Lead) error
	UpdateLeadStage(ctx context.Context, id string, stage model.PipelineStage) error
	AddComment(ctx context.Context, leadID, text, author string) (*model.Comment, error)
	DeleteLead(ctx context.Context, id string) error
	DeleteLeadsByProject(ctx context.Context, projectID string) (int, error)
	CountLeads(ctx context.Context, projectID string) (int, error)

	// Strategies
	SaveStrategy(ctx context.Context, s model.SavedStrategy) (*model.SavedStrategy, error)
	GetStrategy(ctx context.Context, id string) (*model.SavedStrategy, error)
	ListStrategies(ctx context.Context, projectID string) ([]model.SavedStrategy, error)
	DeleteStrategy(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// leadColumns is the column order shared by inserts, copies and scans.
var leadColumns = []string{
	"id", "project_id", "lead_number", "generated_date", "search_city", "search_country",
	"company_name", "website", "phone", "address", "city", "country", "description",
	"google_maps_link", "coordinates", "rating", "review_count", "business_hours", "category",
	"email", "linkedin", "facebook", "instagram", "contact_name", "contact_title",
	"quality_score", "confidence_overall", "social_context", "icebreaker",
	"status", "contacted", "notes", "stage", "deal_value", "owner", "comments",
}

// leadImmutable are the columns SaveLeads never overwrites on conflict.
var leadImmutable = map[string]bool{
	"id": true, "project_id": true, "lead_number": true, "generated_date": true,
}

func leadUpdateColumns() []string {
	var cols []string
	for _, c := range leadColumns {
		if !leadImmutable[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// leadValues returns l's column values in leadColumns order.
func leadValues(l model.Lead) ([]any, error) {
	comments, err := marshalComments(l.Comments)
	if err != nil {
		return nil, err
	}
	stage := l.Stage
	if stage == "" {
		stage = model.StageNew
	}
	return []any{
		l.ID, l.ProjectID, l.LeadNumber, l.GeneratedDate.UTC(), l.SearchCity, l.SearchCountry,
		l.CompanyName, l.Website, l.Phone, l.Address, l.City, l.Country, l.Description,
		l.GoogleMapsLink, l.Coordinates, l.Rating, l.ReviewCount, l.BusinessHours, l.Category,
		l.Email, l.LinkedIn, l.Facebook, l.Instagram, l.ContactName, l.ContactTitle,
		l.QualityScore, l.ConfidenceOverall, l.SocialContext, l.Icebreaker,
		l.Status, l.Contacted, l.Notes, string(stage), l.DealValue, l.Owner, comments,
	}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

// scanLead reads one row selected with leadColumns.
func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var stage, comments string
	err := row.Scan(
		&l.ID, &l.ProjectID, &l.LeadNumber, &l.GeneratedDate, &l.SearchCity, &l.SearchCountry,
		&l.CompanyName, &l.Website, &l.Phone, &l.Address, &l.City, &l.Country, &l.Description,
		&l.GoogleMapsLink, &l.Coordinates, &l.Rating, &l.ReviewCount, &l.BusinessHours, &l.Category,
		&l.Email, &l.LinkedIn, &l.Facebook, &l.Instagram, &l.ContactName, &l.ContactTitle,
		&l.QualityScore, &l.ConfidenceOverall, &l.SocialContext, &l.Icebreaker,
		&l.Status, &l.Contacted, &l.Notes, &stage, &l.DealValue, &l.Owner, &comments,
	)
	if err != nil {
		return nil, err
	}
	l.Stage = model.PipelineStage(stage)
	if l.Comments, err = unmarshalComments(comments); err != nil {
		return nil, err
	}
	return &l, nil
}

// numberNewLeads sets LeadNumber on every lead whose id is not in stored,
// in slice order, continuing each project from first(projectID). Projects
// are visited in sorted order so concurrent writers lock them in the same
// order.
func numberNewLeads(leads []model.Lead, stored []string, first func(projectID string) (int, error)) error {
	have := make(map[string]bool, len(stored))
	for _, id := range stored {
		have[id] = true
	}
	var projects []string
	for _, l := range leads {
		if !have[l.ID] && !slices.Contains(projects, l.ProjectID) {
			projects = append(projects, l.ProjectID)
		}
	}
	slices.Sort(projects)

	next := make(map[string]int, len(projects))
	for _, p := range projects {
		n, err := first(p)
		if err != nil {
			return err
		}
		next[p] = n
	}
	for i := range leads {
		if have[leads[i].ID] {
			continue
		}
		leads[i].LeadNumber = next[leads[i].ProjectID]
		next[leads[i].ProjectID]++
	}
	return nil
}

func marshalComments(c []model.Comment) (string, error) {
	if len(c) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal comments")
	}
	return string(b), nil
}

func unmarshalComments(s string) ([]model.Comment, error) {
	if s == "" || s == "[]" || s == "null" {
		return nil, nil
	}
	var c []model.Comment
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal comments")
	}
	return c, nil
}

func marshalProfile(p model.ICPProfile) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal profile")
	}
	return string(b), nil
}

func newComment(id, text, author string, now time.Time) model.Comment {
	if author == "" {
		author = "me"
	}
	return model.Comment{ID: id, Text: text, Author: author, CreatedAt: now.UTC()}
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 500
	}
	return n
}

// scanStrategy reads one strategy row. The raw driver error is returned so
// callers can test for their backend's no-rows error.
func scanStrategy(row scannable) (*model.SavedStrategy, error) {
	var st model.SavedStrategy
	var profile string
	err := row.Scan(&st.ID, &st.ProjectID, &st.PersonaName, &st.SearchQuery, &st.Rationale, &st.OutreachAngle, &profile, &st.CreatedAt)
	if err != nil {
		return nil, err
	}
	if profile != "" {
		if err := json.Unmarshal([]byte(profile), &st.Profile); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal profile")
		}
	}
	return &st, nil
}

package pipeline

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/llm"
)

// Campaign is a saved generate run: what to search for, how to pitch it
// and where the leads go.
type Campaign struct {
	Project  string          `yaml:"project"`
	Strategy string          `yaml:"strategy"`
	Search   CampaignSearch  `yaml:"search"`
	Outreach enrich.Outreach `yaml:"outreach"`
	Export   CampaignExport  `yaml:"export"`
}

// CampaignSearch is the discovery part of a campaign.
type CampaignSearch struct {
	Query     string   `yaml:"query"`
	City      string   `yaml:"city"`
	Country   string   `yaml:"country"`
	Count     int      `yaml:"count"`
	Latitude  *float64 `yaml:"latitude,omitempty"`
	Longitude *float64 `yaml:"longitude,omitempty"`
}

// CampaignExport names an optional export step.
type CampaignExport struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path"`
}

// Request converts the search block to a discovery request. Coordinates
// are only used when both are set.
func (c CampaignSearch) Request() discovery.Request {
	req := discovery.Request{
		SearchQuery:   strings.TrimSpace(c.Query),
		City:          strings.TrimSpace(c.City),
		Country:       strings.TrimSpace(c.Country),
		NumberOfLeads: c.Count,
	}
	if c.Latitude != nil && c.Longitude != nil {
		req.Location = llm.LatLng(*c.Latitude, *c.Longitude)
	}
	return req
}

// LoadCampaign reads a campaign from a YAML file. The top-level key is
// "campaign".
func LoadCampaign(path string) (*Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read campaign %s", path)
	}
	return ParseCampaign(data)
}

// ParseCampaign decodes campaign YAML.
func ParseCampaign(data []byte) (*Campaign, error) {
	var wrapper struct {
		Campaign Campaign `yaml:"campaign"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse campaign")
	}

	c := &wrapper.Campaign
	if c.Search.Count == 0 {
		c.Search.Count = discovery.DefaultLeads
	}
	return c, nil
}

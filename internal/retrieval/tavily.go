package retrieval

import (
	"context"

	"github.com/sells-group/prospect-cli/pkg/tavily"
)

// TavilySource searches the company's domain for contact pages.
type TavilySource struct {
	client     tavily.Client
	depth      string
	maxResults int
}

// NewTavilySource creates the primary source. Zero values fall back to an
// advanced search with two results.
func NewTavilySource(client tavily.Client, depth string, maxResults int) *TavilySource {
	if depth == "" {
		depth = tavily.DepthAdvanced
	}
	if maxResults <= 0 {
		maxResults = 2
	}
	return &TavilySource{client: client, depth: depth, maxResults: maxResults}
}

// Name implements Source.
func (s *TavilySource) Name() string { return "tavily" }

// Fetch implements Source.
func (s *TavilySource) Fetch(ctx context.Context, t Target) (string, error) {
	req := tavily.SearchRequest{
		Query:       ContactQuery(t.CompanyName),
		SearchDepth: s.depth,
		MaxResults:  s.maxResults,
	}
	if t.Host != "" {
		req.IncludeDomains = []string{t.Host}
	}

	resp, err := s.client.Search(ctx, req)
	if err != nil {
		return "", err
	}

	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, Result{URL: r.URL, Content: r.Content})
	}
	return Format(results), nil
}

// ContactQuery is the search query used to find a company's contact pages.
func ContactQuery(companyName string) string {
	return companyName + " contact email about us team"
}

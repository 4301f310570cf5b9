package retrieval

import (
	"context"
	"strings"

	"github.com/sells-group/prospect-cli/pkg/jina"
)

// JinaSource searches with Jina, scoped to the company's domain. Without a
// host it reads the website directly.
type JinaSource struct {
	client jina.Client
	count  int
}

// NewJinaSource creates a Jina fallback source.
func NewJinaSource(client jina.Client, count int) *JinaSource {
	if count <= 0 {
		count = 2
	}
	return &JinaSource{client: client, count: count}
}

// Name implements Source.
func (s *JinaSource) Name() string { return "jina" }

// Fetch implements Source.
func (s *JinaSource) Fetch(ctx context.Context, t Target) (string, error) {
	if t.Host == "" {
		resp, err := s.client.Read(ctx, t.Website)
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(resp.Data.Content) == "" {
			return "", nil
		}
		return Format([]Result{{URL: firstNonEmpty(resp.Data.URL, t.Website), Content: resp.Data.Content}}), nil
	}

	resp, err := s.client.Search(ctx, ContactQuery(t.CompanyName),
		jina.WithSiteFilter(t.Host),
		jina.WithCount(s.count),
	)
	if err != nil {
		return "", err
	}

	var results []Result
	for _, r := range resp.Data {
		if len(results) == s.count {
			break
		}
		content := firstNonEmpty(r.Content, r.Description)
		if content == "" {
			continue
		}
		results = append(results, Result{URL: r.URL, Content: content})
	}
	return Format(results), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

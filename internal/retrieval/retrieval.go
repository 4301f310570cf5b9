// Package retrieval gathers text about a company from its website for the
// extraction step. Tavily is the primary source; Jina search and a direct
// homepage fetch are optional fallbacks.
package retrieval

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/resilience"
)

// Label names retrieval failures in logs and classified errors.
const Label = "Content Retrieval"

// Client returns website content for a company. An empty website yields ""
// without any network call.
type Client interface {
	Retrieve(ctx context.Context, companyName, website string) (string, error)
}

// Target is the company a source should look up.
type Target struct {
	CompanyName string
	Website     string
	// Host scopes searches to the company's domain. Empty when the website
	// is not an absolute URL.
	Host string
}

// Source is one way of fetching content.
type Source interface {
	Name() string
	Fetch(ctx context.Context, t Target) (string, error)
}

// Retriever tries each source in order, each under its own retry policy.
// A source that returns empty content or fails hands over to the next one.
type Retriever struct {
	sources []Source
	retry   resilience.RetryConfig
}

// New creates a Retriever with a primary source and optional fallbacks.
func New(retry resilience.RetryConfig, primary Source, fallbacks ...Source) *Retriever {
	return &Retriever{
		sources: append([]Source{primary}, fallbacks...),
		retry:   retry,
	}
}

// Retrieve implements Client. When every source fails the last error is
// returned classified.
func (r *Retriever) Retrieve(ctx context.Context, companyName, website string) (string, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return "", nil
	}
	t := Target{CompanyName: companyName, Website: website, Host: Host(website)}

	var lastErr error
	succeeded := false
	for _, src := range r.sources {
		cfg := r.retry.WithLabel(Label + ": " + src.Name())
		content, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
			return src.Fetch(ctx, t)
		})
		if err != nil {
			lastErr = err
			zap.L().Warn("retrieval source failed",
				zap.String("source", src.Name()),
				zap.String("company", companyName),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		succeeded = true
		if content != "" {
			zap.L().Debug("retrieved content",
				zap.String("source", src.Name()),
				zap.String("company", companyName),
				zap.Int("chars", len(content)),
			)
			return content, nil
		}
	}

	if succeeded || lastErr == nil {
		return "", nil
	}
	return "", resilience.Classify(lastErr, Label)
}

// Host returns the hostname of an absolute URL, or "" when the URL cannot
// be parsed or has no host.
func Host(website string) string {
	u, err := url.Parse(strings.TrimSpace(website))
	if err != nil || u.Scheme == "" {
		return ""
	}
	return u.Hostname()
}

// Result is one retrieved page.
type Result struct {
	URL     string
	Content string
}

// Format renders results as "Source: <url>\nContent: <text>" blocks
// separated by "\n\n---\n\n".
func Format(results []Result) string {
	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, "Source: "+r.URL+"\nContent: "+r.Content)
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

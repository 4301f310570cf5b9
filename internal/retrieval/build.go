package retrieval

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/pkg/jina"
	"github.com/sells-group/prospect-cli/pkg/tavily"
)

// FromConfig builds a Retriever with Tavily as primary and the fallbacks
// listed in retrieval.fallbacks, in order.
func FromConfig(cfg *config.Config, retry resilience.RetryConfig) (*Retriever, error) {
	var topts []tavily.Option
	if cfg.Tavily.BaseURL != "" {
		topts = append(topts, tavily.WithBaseURL(cfg.Tavily.BaseURL))
	}
	primary := NewTavilySource(tavily.NewClient(cfg.Tavily.Key, topts...), cfg.Tavily.SearchDepth, cfg.Tavily.MaxResults)

	var fallbacks []Source
	for _, name := range cfg.Retrieval.Fallbacks {
		switch name {
		case "jina":
			var jopts []jina.Option
			if cfg.Jina.BaseURL != "" {
				jopts = append(jopts, jina.WithBaseURL(cfg.Jina.BaseURL))
			}
			if cfg.Jina.SearchBaseURL != "" {
				jopts = append(jopts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
			}
			fallbacks = append(fallbacks, NewJinaSource(jina.NewClient(cfg.Jina.Key, jopts...), cfg.Tavily.MaxResults))
		case "local":
			timeout := time.Duration(cfg.Retrieval.TimeoutSecs) * time.Second
			fallbacks = append(fallbacks, NewLocalSource(timeout, cfg.Retrieval.UserAgent))
		default:
			return nil, eris.Errorf("retrieval: unknown fallback %q", name)
		}
	}

	return New(retry, primary, fallbacks...), nil
}

package llm

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/gemini"
	"github.com/sells-group/prospect-cli/pkg/perplexity"
)

// Registry holds the generators for each pipeline role. Rebuild swaps all
// of them at once after a credential change; callers that already fetched a
// generator keep using the old one until they fetch again.
type Registry struct {
	mu         sync.RWMutex
	discovery  Generator
	extraction Generator
	structured Generator
}

// NewRegistry builds generators from configuration.
func NewRegistry(ctx context.Context, cfg *config.Config) (*Registry, error) {
	r := &Registry{}
	if err := r.Rebuild(ctx, cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// NewStaticRegistry wraps fixed generators, mainly for tests.
func NewStaticRegistry(discovery, extraction, structured Generator) *Registry {
	return &Registry{discovery: discovery, extraction: extraction, structured: structured}
}

// Rebuild recreates every generator from cfg. On error the previous
// generators stay in place.
func (r *Registry) Rebuild(ctx context.Context, cfg *config.Config) error {
	var geminiOpts []gemini.Option
	if cfg.Gemini.BaseURL != "" {
		geminiOpts = append(geminiOpts, gemini.WithBaseURL(cfg.Gemini.BaseURL))
	}
	gc, err := gemini.NewClient(ctx, cfg.Gemini.Key, geminiOpts...)
	if err != nil {
		return eris.Wrap(err, "llm: build gemini client")
	}

	var discovery Generator
	switch cfg.Discovery.Provider {
	case ProviderPerplexity:
		popts := []perplexity.Option{perplexity.WithModel(cfg.Perplexity.Model)}
		if cfg.Perplexity.BaseURL != "" {
			popts = append(popts, perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		}
		pc := perplexity.NewClient(cfg.Perplexity.Key, popts...)
		discovery = NewPerplexityGenerator(pc, cfg.Perplexity.Model)
	case "", ProviderGemini:
		discovery = NewGeminiGenerator(gc, cfg.Gemini.DiscoveryModel)
	default:
		return eris.Errorf("llm: unknown discovery provider %q", cfg.Discovery.Provider)
	}

	var extraction Generator
	switch cfg.Enrich.Provider {
	case ProviderAnthropic:
		ac := anthropic.NewClient(cfg.Anthropic.Key)
		extraction = NewAnthropicGenerator(ac, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	case "", ProviderGemini:
		extraction = NewGeminiGenerator(gc, cfg.Gemini.ExtractionModel)
	default:
		return eris.Errorf("llm: unknown enrich provider %q", cfg.Enrich.Provider)
	}

	structured := NewGeminiGenerator(gc, cfg.Gemini.ExtractionModel)

	r.mu.Lock()
	r.discovery = discovery
	r.extraction = extraction
	r.structured = structured
	r.mu.Unlock()

	zap.L().Info("llm providers ready",
		zap.String("discovery", discovery.Name()),
		zap.String("extraction", extraction.Name()),
	)
	return nil
}

// Discovery returns the grounded generator used to find candidates.
func (r *Registry) Discovery() Generator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.discovery
}

// Extraction returns the generator used to extract contact data.
func (r *Registry) Extraction() Generator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extraction
}

// Structured returns the generator used for strategies and categories.
func (r *Registry) Structured() Generator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.structured
}

// Late returns a Generator that resolves fn on every call, so a Rebuild
// reaches long-lived consumers without re-wiring them.
func Late(fn func() Generator) Generator { return lateGenerator{fn: fn} }

type lateGenerator struct{ fn func() Generator }

func (g lateGenerator) Name() string { return g.fn().Name() }

func (g lateGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	return g.fn().Generate(ctx, req)
}

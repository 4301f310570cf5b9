package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/llm"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/retrieval"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/strategy"
)

// pipelineEnv holds the store, provider registry and pipeline components
// needed by the discover/generate/strategy/serve commands.
type pipelineEnv struct {
	Store     store.Store
	Registry  *llm.Registry
	Retry     resilience.RetryConfig
	Discovery *discovery.Client
	Enricher  *enrich.Orchestrator
	Strategy  *strategy.Generator
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// NewSession creates a session whose leads belong to projectID and continue
// its lead numbering.
func (pe *pipelineEnv) NewSession(projectID string) *pipeline.Session {
	return pipeline.NewSession(pe.Discovery, pe.Enricher, pipeline.Options{
		ProjectID:      projectID,
		NextLeadNumber: pe.Store.NextLeadNumber,
	})
}

// initStore validates store settings and opens a migrated store. Callers
// should defer Close.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func retryConfig() resilience.RetryConfig {
	return resilience.FromConfig(cfg.Retry.MaxRetries, cfg.Retry.InitialDelayMs, cfg.Retry.MaxDelayMs, cfg.Retry.Multiplier)
}

// initPipeline sets up the store, provider clients and pipeline components.
// mode is passed to config.Validate. Callers should defer env.Close().
func initPipeline(ctx context.Context, mode string) (*pipelineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	reg, err := llm.NewRegistry(ctx, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	retry := retryConfig()
	retriever, err := retrieval.FromConfig(cfg, retry)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	extractor := enrich.NewExtractor(llm.Late(reg.Extraction), retry)
	orch := enrich.NewOrchestrator(retriever, extractor, enrich.Options{
		MaxConcurrency:     cfg.Enrich.MaxConcurrency,
		RateLimitRPS:       cfg.Enrich.RateLimitRPS,
		SkipWithoutWebsite: cfg.Enrich.SkipWithoutWebsite,
	})

	zap.L().Debug("pipeline ready",
		zap.String("store", cfg.Store.Driver),
		zap.Int("max_concurrency", cfg.Enrich.MaxConcurrency),
		zap.Strings("retrieval_fallbacks", cfg.Retrieval.Fallbacks),
	)

	return &pipelineEnv{
		Store:     st,
		Registry:  reg,
		Retry:     retry,
		Discovery: discovery.New(llm.Late(reg.Discovery), retry, cfg.Discovery.MaxRetries),
		Enricher:  orch,
		Strategy:  strategy.New(llm.Late(reg.Structured), retry),
	}, nil
}

package enrich

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/retrieval"
)

// DefaultMaxConcurrency bounds in-flight enrichment tasks when unset.
const DefaultMaxConcurrency = 5

// Options configures an Orchestrator.
type Options struct {
	MaxConcurrency int
	// RateLimitRPS paces provider calls across all tasks. Zero disables it.
	RateLimitRPS float64
	// SkipWithoutWebsite degrades candidates without a website instead of
	// asking the extractor to work from the listing alone.
	SkipWithoutWebsite bool
}

// Orchestrator enriches a batch of leads with bounded concurrency. One
// failed lead never fails the batch; it is degraded to fallback fields.
type Orchestrator struct {
	retriever retrieval.Client
	extractor FieldExtractor
	limiter   *AdaptiveLimiter
	opts      Options
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(r retrieval.Client, x FieldExtractor, opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Orchestrator{
		retriever: r,
		extractor: x,
		limiter:   NewAdaptiveLimiter(opts.RateLimitRPS, opts.MaxConcurrency),
		opts:      opts,
	}
}

// Enrich returns one lead and one outcome per input, in input order. The
// input slice is not modified. A cancelled context discards all results
// and returns the context error.
func (o *Orchestrator) Enrich(ctx context.Context, leads []model.Lead, outreach *Outreach) ([]model.Lead, []Outcome, error) {
	start := time.Now()
	outcomes := make([]Outcome, len(leads))
	var degraded atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.MaxConcurrency)

	for i := range leads {
		c := leads[i].DiscoveryCandidate
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			out := o.enrichOne(gctx, c, outreach)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if out.IsDegraded() {
				degraded.Add(1)
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	result := make([]model.Lead, len(leads))
	for i := range leads {
		result[i] = leads[i]
		result[i].Merge(outcomes[i].Fields)
	}

	zap.L().Info("enrichment complete",
		zap.Int("leads", len(leads)),
		zap.Int32("degraded", degraded.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, outcomes, nil
}

func (o *Orchestrator) enrichOne(ctx context.Context, c model.DiscoveryCandidate, outreach *Outreach) Outcome {
	log := zap.L().With(zap.String("company", c.CompanyName))

	website := c.Website
	if website == "" && o.opts.SkipWithoutWebsite {
		log.Debug("enrich: no website, using fallback fields")
		return Degraded(FallbackFields(), "no website")
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return Degraded(FallbackFields(), err.Error())
	}

	content, err := o.retriever.Retrieve(ctx, c.CompanyName, website)
	if err != nil {
		var netErr *resilience.NetworkError
		if errors.As(err, &netErr) {
			log.Warn("enrich: retrieval network failure", zap.Error(err))
			return Degraded(FallbackFields(), err.Error())
		}
		o.observe(err)
		log.Warn("enrich: retrieval failed, extracting without content", zap.Error(err))
		content = ""
	}

	fields, err := o.extractor.Extract(ctx, c, content, outreach)
	if err != nil {
		o.observe(err)
		log.Warn("enrich: extraction failed", zap.Error(err))
		return Degraded(FallbackFields(), err.Error())
	}
	o.limiter.OnSuccess()
	return Enriched(fields)
}

func (o *Orchestrator) observe(err error) {
	if resilience.StatusOf(err) == http.StatusTooManyRequests {
		o.limiter.OnRateLimit()
	}
}

package enrich

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/prospect-cli/internal/llm"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

type mockGenerator struct{ mock.Mock }

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	args := m.Called(ctx, req)
	if r := args.Get(0); r != nil {
		return r.(*llm.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRetriever struct{ mock.Mock }

func (m *mockRetriever) Retrieve(ctx context.Context, companyName, website string) (string, error) {
	args := m.Called(ctx, companyName, website)
	return args.String(0), args.Error(1)
}

type mockExtractor struct{ mock.Mock }

func (m *mockExtractor) Extract(ctx context.Context, c model.DiscoveryCandidate, content string, o *Outreach) (model.EnrichedFields, error) {
	args := m.Called(ctx, c, content, o)
	return args.Get(0).(model.EnrichedFields), args.Error(1)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func lead(name, website string) model.Lead {
	return model.Lead{
		DiscoveryCandidate: model.DiscoveryCandidate{
			CompanyName: name,
			Website:     website,
			Phone:       "555-0100",
			Description: "A bakery.",
		},
		ID:     name + "-id",
		Status: model.DefaultStatus,
	}
}

const acmeJSON = `{
	"phone": "555-0199",
	"email": "hi@acme.example",
	"linkedIn": "https://linkedin.com/company/acme",
	"contactName": "Ada Baker",
	"contactTitle": "Owner",
	"qualityScore": 82,
	"confidenceOverall": 0.9,
	"socialContext": "contact page",
	"icebreaker": "Loved your sourdough.",
	"enrichedDescription": "Acme bakes sourdough for Austin cafes."
}`

func TestParseFields(t *testing.T) {
	f, err := ParseFields(acmeJSON, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "hi@acme.example", f.Email)
	assert.Equal(t, "Ada Baker", f.ContactName)
	assert.Equal(t, 82, f.QualityScore)
	assert.InDelta(t, 0.9, f.ConfidenceOverall, 0.0001)
	assert.Equal(t, "555-0199", f.Phone)
	assert.Equal(t, "Acme bakes sourdough for Austin cafes.", f.EnrichedDescription)
}

func TestParseFields_Defaults(t *testing.T) {
	f, err := ParseFields(`{"email":"x@y.example"}`, "Acme")
	require.NoError(t, err)
	assert.Equal(t, DefaultQualityScore, f.QualityScore)
	assert.InDelta(t, DefaultConfidence, f.ConfidenceOverall, 0.0001)
	assert.Equal(t, "Hi—I'm a big fan of Acme and wanted to connect.", f.Icebreaker)
}

func TestParseFields_ExplicitZeroAndClamp(t *testing.T) {
	f, err := ParseFields(`{"qualityScore":0,"confidenceOverall":0}`, "Acme")
	require.NoError(t, err)
	assert.Equal(t, 0, f.QualityScore)
	assert.InDelta(t, 0.0, f.ConfidenceOverall, 0.0001)

	f, err = ParseFields(`{"qualityScore":140,"confidenceOverall":3}`, "Acme")
	require.NoError(t, err)
	assert.Equal(t, 100, f.QualityScore)
	assert.InDelta(t, 1.0, f.ConfidenceOverall, 0.0001)
}

func TestParseFields_BracketScanWarns(t *testing.T) {
	logs := observeLogs(t)
	f, err := ParseFields("Here is the data: "+acmeJSON+" Hope it helps.", "Acme")
	require.NoError(t, err)
	assert.Equal(t, "hi@acme.example", f.Email)
	assert.Equal(t, 1, logs.FilterMessage("enrichment response parsed with bracket scan").Len())
}

func TestParseFields_Invalid(t *testing.T) {
	_, err := ParseFields("no json here", "Acme")
	var ve *resilience.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Fields, "response")
}

func TestBuildPrompt_IcebreakerRuleWithoutOutreach(t *testing.T) {
	p := BuildPrompt(lead("Acme", "https://acme.example").DiscoveryCandidate, "", nil)
	assert.Contains(t, p, "Name: Acme")
	assert.Contains(t, p, "No website content available.")
	assert.Contains(t, p, "ICEBREAKER RULE")
	assert.Contains(t, p, "{paraphrasedApproach}")
	assert.NotContains(t, p, "CONTEXT FOR ICEBREAKER")
}

func TestBuildPrompt_OutreachContext(t *testing.T) {
	o := &Outreach{ProductName: "OvenPro", ValueProposition: "Bake faster", OutreachAngle: "Energy costs"}
	p := BuildPrompt(lead("Acme", "https://acme.example").DiscoveryCandidate, "We bake bread.", o)
	assert.Contains(t, p, "CONTEXT FOR ICEBREAKER")
	assert.Contains(t, p, "Product: OvenPro")
	assert.Contains(t, p, "Value Prop: Bake faster")
	assert.Contains(t, p, "Outreach Angle: Energy costs")
	assert.NotContains(t, p, "Target Persona")
	assert.NotContains(t, p, "ICEBREAKER RULE")
	assert.Contains(t, p, "We bake bread.")
}

func TestBuildPrompt_TruncatesContent(t *testing.T) {
	content := strings.Repeat("é", MaxContentChars+500)
	p := BuildPrompt(model.DiscoveryCandidate{CompanyName: "Acme"}, content, nil)
	assert.Contains(t, p, strings.Repeat("é", MaxContentChars))
	assert.NotContains(t, p, strings.Repeat("é", MaxContentChars+1))
}

func TestOutreach(t *testing.T) {
	var nilOutreach *Outreach
	assert.True(t, nilOutreach.IsEmpty())
	assert.Equal(t, "", nilOutreach.Context())
	assert.True(t, (&Outreach{ProductName: "  "}).IsEmpty())

	o := OutreachFromStrategy(model.SavedStrategy{
		ICPStrategy: model.ICPStrategy{PersonaName: "Busy Owner", OutreachAngle: "Save time"},
		Profile:     model.ICPProfile{ProductName: "OvenPro", ValueProposition: "Bake faster"},
	})
	assert.Equal(t, "Product: OvenPro\nValue Prop: Bake faster\nTarget Persona: Busy Owner\nOutreach Angle: Save time", o.Context())
}

func TestExtractor_Extract(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(r llm.Request) bool {
		return !r.Grounded && r.Schema != nil && r.Schema.Type == "object" && r.Label == "Acme" &&
			strings.Contains(r.Prompt, "We bake bread.")
	})).Return(&llm.Response{Text: acmeJSON}, nil).Once()

	f, err := NewExtractor(gen, fastRetry()).Extract(context.Background(),
		lead("Acme", "https://acme.example").DiscoveryCandidate, "We bake bread.", nil)
	require.NoError(t, err)
	assert.Equal(t, "Ada Baker", f.ContactName)
	gen.AssertExpectations(t)
}

func TestExtractor_ClassifiesProviderError(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(nil, &resilience.StatusError{Provider: "gemini", StatusCode: http.StatusUnauthorized, Body: "bad key"}).Once()

	_, err := NewExtractor(gen, fastRetry()).Extract(context.Background(), model.DiscoveryCandidate{CompanyName: "Acme"}, "", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resilience.StatusOf(err))
	gen.AssertExpectations(t)
}

func TestOrchestrator_NetworkFailureDegrades(t *testing.T) {
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, "Acme", "https://acme.example").
		Return("", &resilience.NetworkError{Message: "connection refused"}).Once()
	x := &mockExtractor{}

	leads, outcomes, err := NewOrchestrator(r, x, Options{}).Enrich(context.Background(),
		[]model.Lead{lead("Acme", "https://acme.example")}, nil)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.True(t, outcomes[0].IsDegraded())
	assert.Equal(t, FallbackQualityScore, leads[0].QualityScore)
	assert.InDelta(t, FallbackConfidence, leads[0].ConfidenceOverall, 0.0001)
	assert.Equal(t, FallbackNote, leads[0].SocialContext)
	assert.Equal(t, "555-0100", leads[0].Phone)
	assert.Equal(t, "A bakery.", leads[0].Description)
	x.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_RetrievalAPIErrorStillExtracts(t *testing.T) {
	logs := observeLogs(t)
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, "Acme", "https://acme.example").
		Return("", &resilience.APIError{Message: "bad request", StatusCode: http.StatusBadRequest}).Once()
	x := &mockExtractor{}
	f, _ := ParseFields(acmeJSON, "Acme")
	x.On("Extract", mock.Anything, mock.Anything, "", (*Outreach)(nil)).Return(f, nil).Once()

	leads, outcomes, err := NewOrchestrator(r, x, Options{}).Enrich(context.Background(),
		[]model.Lead{lead("Acme", "https://acme.example")}, nil)
	require.NoError(t, err)
	assert.False(t, outcomes[0].IsDegraded())
	assert.Equal(t, "hi@acme.example", leads[0].Email)
	assert.Equal(t, 1, logs.FilterMessage("enrich: retrieval failed, extracting without content").Len())
	x.AssertExpectations(t)
}

func TestOrchestrator_NoWebsite(t *testing.T) {
	r := &mockRetriever{}
	x := &mockExtractor{}

	leads, outcomes, err := NewOrchestrator(r, x, Options{SkipWithoutWebsite: true}).Enrich(context.Background(),
		[]model.Lead{lead("Acme", "")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "no website", outcomes[0].Reason)
	assert.Less(t, leads[0].ConfidenceOverall, 0.5)
	r.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything, mock.Anything)
	x.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_NoWebsiteWithoutSkipExtracts(t *testing.T) {
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, "Acme", "").Return("", nil).Once()
	x := &mockExtractor{}
	x.On("Extract", mock.Anything, mock.Anything, "", (*Outreach)(nil)).
		Return(model.EnrichedFields{Contact: model.Contact{QualityScore: 30, ConfidenceOverall: 0.2}}, nil).Once()

	_, outcomes, err := NewOrchestrator(r, x, Options{}).Enrich(context.Background(), []model.Lead{lead("Acme", "")}, nil)
	require.NoError(t, err)
	assert.False(t, outcomes[0].IsDegraded())
	x.AssertExpectations(t)
}

func TestOrchestrator_PreservesOrderAndMerges(t *testing.T) {
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return("content", nil)
	x := &mockExtractor{}
	x.On("Extract", mock.Anything, mock.Anything, "content", mock.Anything).
		Run(func(args mock.Arguments) {
			// A finishes last.
			c := args.Get(1).(model.DiscoveryCandidate)
			if c.CompanyName == "A" {
				time.Sleep(20 * time.Millisecond)
			}
		}).
		Return(model.EnrichedFields{Contact: model.Contact{Email: "x@y.example", QualityScore: 70, ConfidenceOverall: 0.8}}, nil)

	in := []model.Lead{lead("A", "https://a.example"), lead("B", "https://b.example"), lead("C", "https://c.example")}
	out, outcomes, err := NewOrchestrator(r, x, Options{MaxConcurrency: 3}).Enrich(context.Background(), in, nil)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Len(t, outcomes, 3)
	for i, l := range out {
		assert.Equal(t, in[i].CompanyName, l.CompanyName)
		assert.Equal(t, in[i].ID, l.ID)
		assert.Equal(t, "x@y.example", l.Email)
		assert.Equal(t, "555-0100", l.Phone)
	}
	assert.Empty(t, in[0].Email)
	assert.Equal(t, Summary{Total: 3, Enriched: 3}, Summarize(outcomes))
}

type countingExtractor struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
}

func (c *countingExtractor) Extract(ctx context.Context, _ model.DiscoveryCandidate, _ string, _ *Outreach) (model.EnrichedFields, error) {
	n := c.inFlight.Add(1)
	c.mu.Lock()
	if n > c.peak.Load() {
		c.peak.Store(n)
	}
	c.mu.Unlock()
	time.Sleep(10 * time.Millisecond)
	c.inFlight.Add(-1)
	return model.EnrichedFields{Contact: model.Contact{QualityScore: 60, ConfidenceOverall: 0.6}}, nil
}

func TestOrchestrator_ConcurrencyBound(t *testing.T) {
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	x := &countingExtractor{}

	in := make([]model.Lead, 12)
	for i := range in {
		in[i] = lead("L", "https://l.example")
	}
	out, _, err := NewOrchestrator(r, x, Options{MaxConcurrency: 2}).Enrich(context.Background(), in, nil)
	require.NoError(t, err)
	assert.Len(t, out, 12)
	assert.LessOrEqual(t, x.peak.Load(), int32(2))
}

func TestOrchestrator_ExtractionErrorDegradesOnlyThatLead(t *testing.T) {
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return("content", nil)
	x := &mockExtractor{}
	x.On("Extract", mock.Anything, mock.MatchedBy(func(c model.DiscoveryCandidate) bool { return c.CompanyName == "Bad" }), mock.Anything, mock.Anything).
		Return(model.EnrichedFields{}, errors.New("boom"))
	x.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.EnrichedFields{Contact: model.Contact{QualityScore: 90, ConfidenceOverall: 0.9}}, nil)

	out, outcomes, err := NewOrchestrator(r, x, Options{}).Enrich(context.Background(),
		[]model.Lead{lead("Good", "https://g.example"), lead("Bad", "https://b.example")}, nil)
	require.NoError(t, err)
	assert.False(t, outcomes[0].IsDegraded())
	assert.True(t, outcomes[1].IsDegraded())
	assert.Equal(t, "boom", outcomes[1].Reason)
	assert.Equal(t, 90, out[0].QualityScore)
	assert.Equal(t, FallbackQualityScore, out[1].QualityScore)
}

func TestOrchestrator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, outcomes, err := NewOrchestrator(&mockRetriever{}, &mockExtractor{}, Options{}).
		Enrich(ctx, []model.Lead{lead("A", "https://a.example")}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
	assert.Nil(t, outcomes)
}

func TestOrchestrator_Empty(t *testing.T) {
	out, outcomes, err := NewOrchestrator(&mockRetriever{}, &mockExtractor{}, Options{}).Enrich(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, outcomes)
}

func TestAdaptiveLimiter(t *testing.T) {
	assert.Nil(t, NewAdaptiveLimiter(0, 1))
	var nilLimiter *AdaptiveLimiter
	require.NoError(t, nilLimiter.Wait(context.Background()))
	nilLimiter.OnSuccess()
	nilLimiter.OnRateLimit()

	l := NewAdaptiveLimiter(10, 1)
	l.OnSuccess()
	assert.InDelta(t, 12, float64(l.Limit()), 0.001)
	for range 10 {
		l.OnSuccess()
	}
	assert.InDelta(t, 20, float64(l.Limit()), 0.001)
	for range 10 {
		l.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(l.Limit()), 0.001)
}

func TestOrchestrator_RateLimitSlowsDown(t *testing.T) {
	r := &mockRetriever{}
	r.On("Retrieve", mock.Anything, mock.Anything, mock.Anything).Return("", nil)
	x := &mockExtractor{}
	x.On("Extract", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.EnrichedFields{}, &resilience.APIError{Message: "rate limited", StatusCode: http.StatusTooManyRequests})

	o := NewOrchestrator(r, x, Options{RateLimitRPS: 100})
	_, outcomes, err := o.Enrich(context.Background(), []model.Lead{lead("A", "https://a.example")}, nil)
	require.NoError(t, err)
	assert.True(t, outcomes[0].IsDegraded())
	assert.InDelta(t, 50, float64(o.limiter.Limit()), 0.001)
}

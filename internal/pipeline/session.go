// Package pipeline sequences discovery and enrichment for one search. A
// Session moves idle → discovering → discovered → enriching → enriched,
// with error reachable from either busy phase and Reset returning to idle
// from anywhere.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/model"
)

// Discoverer finds candidates for a request.
type Discoverer interface {
	Discover(ctx context.Context, req discovery.Request) ([]model.DiscoveryCandidate, error)
}

// Enricher enriches a batch of leads, one output per input in order.
type Enricher interface {
	Enrich(ctx context.Context, leads []model.Lead, o *enrich.Outreach) ([]model.Lead, []enrich.Outcome, error)
}

// LeadNumberFunc returns the first lead number to assign in a project.
type LeadNumberFunc func(ctx context.Context, projectID string) (int, error)

// Options configures a Session.
type Options struct {
	// ProjectID is stamped on every lead the session produces.
	ProjectID string
	// NextLeadNumber gives the provisional first lead number. Nil starts
	// at 1.
	NextLeadNumber LeadNumberFunc
	Now            func() time.Time
}

// Session runs one discovery and enrichment sequence. It is safe for
// concurrent use; Submit and Enrich block until their step finishes.
type Session struct {
	id         string
	discoverer Discoverer
	enricher   Enricher
	opts       Options

	mu         sync.Mutex
	phase      Phase
	request    discovery.Request
	candidates []model.DiscoveryCandidate
	pending    []model.Lead
	leads      []model.Lead
	outcomes   []enrich.Outcome
	err        error
	generation uint64
	cancel     context.CancelFunc
	updatedAt  time.Time
}

// NewSession creates an idle Session.
func NewSession(d Discoverer, e Enricher, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		id:         uuid.New().String(),
		discoverer: d,
		enricher:   e,
		opts:       opts,
		phase:      PhaseIdle,
		updatedAt:  opts.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// ProjectID returns the project leads are created under.
func (s *Session) ProjectID() string { return s.opts.ProjectID }

// begin moves the session into a busy phase and returns a context that
// Reset cancels together with the generation it belongs to.
func (s *Session) begin(ctx context.Context, op Op, busy Phase) (context.Context, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canStart(op, s.phase) {
		return nil, 0, &TransitionError{From: s.phase, Op: op}
	}
	s.generation++
	s.phase = busy
	s.err = nil
	s.touch()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	zap.L().Debug("pipeline: phase change", zap.String("session", s.id), zap.String("phase", string(busy)))
	return ctx, s.generation, nil
}

// finish commits the result of generation gen. It reports false when the
// session was reset in the meantime.
func (s *Session) finish(gen uint64, commit func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	commit()
	s.touch()
	zap.L().Debug("pipeline: phase change", zap.String("session", s.id), zap.String("phase", string(s.phase)))
	return true
}

func (s *Session) touch() { s.updatedAt = s.opts.Now() }

// Submit runs discovery for req. It is valid from idle and error. Zero
// candidates is a successful outcome. On success the candidates become
// blank Leads of the session's project, which Enrich takes as input.
func (s *Session) Submit(ctx context.Context, req discovery.Request) ([]model.DiscoveryCandidate, error) {
	run, err := s.startSubmit(ctx, req)
	if err != nil {
		return nil, err
	}
	return run()
}

// SubmitAsync moves the session to discovering before it returns, so a
// caller that loses a race gets the TransitionError, and runs discovery in
// the background. done, if non-nil, receives the outcome.
func (s *Session) SubmitAsync(ctx context.Context, req discovery.Request, done func([]model.DiscoveryCandidate, error)) error {
	run, err := s.startSubmit(ctx, req)
	if err != nil {
		return err
	}
	go func() {
		candidates, err := run()
		if done != nil {
			done(candidates, err)
		}
	}()
	return nil
}

func (s *Session) startSubmit(ctx context.Context, req discovery.Request) (func() ([]model.DiscoveryCandidate, error), error) {
	ctx, gen, err := s.begin(ctx, OpSubmit, PhaseDiscovering)
	if err != nil {
		return nil, err
	}
	return func() ([]model.DiscoveryCandidate, error) {
		candidates, blank, err := s.discover(ctx, req)

		ok := s.finish(gen, func() {
			s.request = req
			s.leads = nil
			s.outcomes = nil
			if err != nil {
				s.phase = PhaseError
				s.err = err
				s.candidates = nil
				s.pending = nil
				return
			}
			s.phase = PhaseDiscovered
			s.candidates = candidates
			s.pending = blank
		})
		if !ok {
			return nil, ErrSuperseded
		}
		if err != nil {
			return nil, err
		}
		return clone(candidates), nil
	}, nil
}

func (s *Session) discover(ctx context.Context, req discovery.Request) ([]model.DiscoveryCandidate, []model.Lead, error) {
	candidates, err := s.discoverer.Discover(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	// Store writes assign the final numbers; these are provisional.
	start := 1
	if s.opts.NextLeadNumber != nil && len(candidates) > 0 {
		n, err := s.opts.NextLeadNumber(ctx, s.opts.ProjectID)
		if err != nil {
			return nil, nil, eris.Wrap(err, "pipeline: next lead number")
		}
		start = n
	}
	blank := model.NewLeadsFromCandidates(candidates, s.opts.ProjectID, req.City, req.Country, start, s.opts.Now())
	return candidates, blank, nil
}

// Enrich enriches the discovered leads with the given outreach context,
// which may be nil. It is valid only from discovered.
func (s *Session) Enrich(ctx context.Context, outreach *enrich.Outreach) ([]model.Lead, error) {
	run, err := s.startEnrich(ctx, outreach)
	if err != nil {
		return nil, err
	}
	return run()
}

// EnrichAsync is the background form of Enrich. The discovered → enriching
// transition happens before it returns.
func (s *Session) EnrichAsync(ctx context.Context, outreach *enrich.Outreach, done func([]model.Lead, error)) error {
	run, err := s.startEnrich(ctx, outreach)
	if err != nil {
		return err
	}
	go func() {
		leads, err := run()
		if done != nil {
			done(leads, err)
		}
	}()
	return nil
}

func (s *Session) startEnrich(ctx context.Context, outreach *enrich.Outreach) (func() ([]model.Lead, error), error) {
	ctx, gen, err := s.begin(ctx, OpEnrich, PhaseEnriching)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	pending := clone(s.pending)
	s.mu.Unlock()

	return func() ([]model.Lead, error) {
		leads, outcomes, err := s.enrich(ctx, pending, outreach)

		ok := s.finish(gen, func() {
			if err != nil {
				s.phase = PhaseError
				s.err = err
				return
			}
			s.phase = PhaseEnriched
			s.leads = leads
			s.outcomes = outcomes
		})
		if !ok {
			return nil, ErrSuperseded
		}
		if err != nil {
			return nil, err
		}
		return clone(leads), nil
	}, nil
}

func (s *Session) enrich(ctx context.Context, blank []model.Lead, outreach *enrich.Outreach) ([]model.Lead, []enrich.Outcome, error) {
	leads, outcomes, err := s.enricher.Enrich(ctx, blank, outreach)
	if err != nil {
		return nil, nil, err
	}

	sum := enrich.Summarize(outcomes)
	zap.L().Info("pipeline: enrichment finished",
		zap.String("session", s.id),
		zap.Int("leads", sum.Total),
		zap.Int("degraded", sum.Degraded),
	)
	return leads, outcomes, nil
}

// ApplyLeadNumbers copies the lead numbers of stored onto the session's
// leads with the same id.
func (s *Session) ApplyLeadNumbers(stored []model.Lead) {
	numbers := make(map[string]int, len(stored))
	for _, l := range stored {
		numbers[l.ID] = l.LeadNumber
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leads {
		if n, ok := numbers[s.leads[i].ID]; ok {
			s.leads[i].LeadNumber = n
		}
	}
}

// Reset cancels any in-flight step and returns the session to idle with
// all results cleared. Results of the cancelled step are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.phase = PhaseIdle
	s.request = discovery.Request{}
	s.candidates = nil
	s.pending = nil
	s.leads = nil
	s.outcomes = nil
	s.err = nil
	s.touch()
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Candidates returns a copy of the discovered candidates.
func (s *Session) Candidates() []model.DiscoveryCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.candidates)
}

// Leads returns a copy of the enriched leads.
func (s *Session) Leads() []model.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.leads)
}

// Err returns the error that moved the session to PhaseError, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	ID         string                     `json:"id"`
	ProjectID  string                     `json:"projectId,omitempty"`
	Phase      Phase                      `json:"phase"`
	Request    discovery.Request          `json:"request"`
	Candidates []model.DiscoveryCandidate `json:"candidates"`
	Leads      []model.Lead               `json:"leads"`
	Summary    enrich.Summary             `json:"summary"`
	Error      string                     `json:"error,omitempty"`
	UpdatedAt  time.Time                  `json:"updatedAt"`
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		ProjectID:  s.opts.ProjectID,
		Phase:      s.phase,
		Request:    s.request,
		Candidates: clone(s.candidates),
		Leads:      clone(s.leads),
		Summary:    enrich.Summarize(s.outcomes),
		UpdatedAt:  s.updatedAt,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

func clone[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

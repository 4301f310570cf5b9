package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/store"
)

type fakeDiscoverer struct {
	candidates []model.DiscoveryCandidate
	err        error
}

func (f *fakeDiscoverer) Discover(_ context.Context, _ discovery.Request) ([]model.DiscoveryCandidate, error) {
	return f.candidates, f.err
}

type fakeEnricher struct {
	gotOutreach chan *enrich.Outreach
	gate        chan struct{}
}

func (f *fakeEnricher) Enrich(_ context.Context, leads []model.Lead, o *enrich.Outreach) ([]model.Lead, []enrich.Outcome, error) {
	if f.gotOutreach != nil {
		f.gotOutreach <- o
	}
	if f.gate != nil {
		<-f.gate
	}
	out := make([]model.Lead, len(leads))
	outcomes := make([]enrich.Outcome, len(leads))
	for i, l := range leads {
		fields := model.EnrichedFields{Contact: model.Contact{ContactName: "Owner of " + l.CompanyName, QualityScore: 70, ConfidenceOverall: 0.8}}
		l.Merge(fields)
		out[i] = l
		outcomes[i] = enrich.Enriched(fields)
	}
	return out, outcomes, nil
}

type harness struct {
	srv   *httptest.Server
	store store.Store
	mgr   *pipeline.Manager
	enr   *fakeEnricher
}

func newHarness(t *testing.T, withStore bool) *harness {
	t.Helper()

	h := &harness{enr: &fakeEnricher{}}
	disc := &fakeDiscoverer{candidates: []model.DiscoveryCandidate{
		{CompanyName: "Acme Bakery", Website: "https://acme.example"},
		{CompanyName: "Beta Bagels"},
	}}

	var next pipeline.LeadNumberFunc
	if withStore {
		st, err := store.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		h.store = st
		next = st.NextLeadNumber
	}

	h.mgr = pipeline.NewManager(func(projectID string) *pipeline.Session {
		return pipeline.NewSession(disc, h.enr, pipeline.Options{ProjectID: projectID, NextLeadNumber: next})
	}, time.Hour)

	h.srv = httptest.NewServer(New(h.mgr, h.store, Options{}).Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (h *harness) waitPhase(t *testing.T, id string, want pipeline.Phase) pipeline.Snapshot {
	t.Helper()
	var snap pipeline.Snapshot
	require.Eventually(t, func() bool {
		s, ok := h.mgr.Get(id)
		if !ok {
			return false
		}
		snap = s.Snapshot()
		return snap.Phase == want
	}, 2*time.Second, 5*time.Millisecond)
	return snap
}

var validSearch = map[string]any{
	"searchQuery":   "bakeries",
	"city":          "Austin",
	"country":       "US",
	"numberOfLeads": 5,
}

func TestHealth(t *testing.T) {
	h := newHarness(t, false)
	resp := h.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestSessionLifecycle(t *testing.T) {
	h := newHarness(t, true)

	project, err := h.store.CreateProject(context.Background(), "Austin bakeries", "")
	require.NoError(t, err)

	req := map[string]any{"projectId": project.ID}
	for k, v := range validSearch {
		req[k] = v
	}
	resp := h.do(t, http.MethodPost, "/sessions", req)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	created := decode[pipeline.Snapshot](t, resp)
	require.NotEmpty(t, created.ID)

	snap := h.waitPhase(t, created.ID, pipeline.PhaseDiscovered)
	assert.Len(t, snap.Candidates, 2)

	resp = h.do(t, http.MethodGet, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/sessions/"+created.ID+"/enrich", map[string]any{"productName": "Ovens"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	snap = h.waitPhase(t, created.ID, pipeline.PhaseEnriched)
	require.Len(t, snap.Leads, 2)
	assert.Equal(t, "Owner of Acme Bakery", snap.Leads[0].ContactName)
	assert.Equal(t, 2, snap.Summary.Enriched)

	var leads []model.Lead
	require.Eventually(t, func() bool {
		resp := h.do(t, http.MethodGet, "/projects/"+project.ID+"/leads", nil)
		leads = decode[[]model.Lead](t, resp)
		return len(leads) == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, project.ID, leads[0].ProjectID)

	resp = h.do(t, http.MethodPost, "/sessions/"+created.ID+"/enrich", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/sessions/"+created.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pipeline.PhaseIdle, decode[pipeline.Snapshot](t, resp).Phase)

	resp = h.do(t, http.MethodDelete, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSession_Validation(t *testing.T) {
	h := newHarness(t, false)

	resp := h.do(t, http.MethodPost, "/sessions", map[string]any{"searchQuery": "", "numberOfLeads": 0})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[errorBody](t, resp)
	assert.Contains(t, body.Fields, "searchQuery")
	assert.Contains(t, body.Fields, "city")
	assert.Contains(t, body.Fields, "numberOfLeads")
	assert.Equal(t, 0, h.mgr.Len())

	resp = h.do(t, http.MethodPost, "/sessions", map[string]any{"unknown": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSession_UnknownProject(t *testing.T) {
	h := newHarness(t, true)
	req := map[string]any{"projectId": "missing"}
	for k, v := range validSearch {
		req[k] = v
	}
	resp := h.do(t, http.MethodPost, "/sessions", req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrich_BeforeDiscovery(t *testing.T) {
	h := newHarness(t, false)
	sess := h.mgr.Create("")

	resp := h.do(t, http.MethodPost, "/sessions/"+sess.ID()+"/enrich", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/sessions/nope/enrich", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrich_WithSavedStrategy(t *testing.T) {
	h := newHarness(t, true)
	h.enr.gotOutreach = make(chan *enrich.Outreach, 1)

	saved, err := h.store.SaveStrategy(context.Background(), model.SavedStrategy{
		ICPStrategy: model.ICPStrategy{PersonaName: "Owner-operator", SearchQuery: "bakeries", OutreachAngle: "save time"},
		Profile:     model.ICPProfile{ProductName: "OvenPro", ValueProposition: "faster bakes"},
	})
	require.NoError(t, err)

	resp := h.do(t, http.MethodPost, "/sessions", validSearch)
	created := decode[pipeline.Snapshot](t, resp)
	h.waitPhase(t, created.ID, pipeline.PhaseDiscovered)

	resp = h.do(t, http.MethodPost, "/sessions/"+created.ID+"/enrich", map[string]any{"strategyId": saved.ID})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case o := <-h.enr.gotOutreach:
		require.NotNil(t, o)
		assert.Equal(t, "OvenPro", o.ProductName)
		assert.Equal(t, "Owner-operator", o.PersonaName)
	case <-time.After(2 * time.Second):
		t.Fatal("enrichment did not start")
	}

	resp = h.do(t, http.MethodPost, "/sessions", validSearch)
	other := decode[pipeline.Snapshot](t, resp)
	h.waitPhase(t, other.ID, pipeline.PhaseDiscovered)
	resp = h.do(t, http.MethodPost, "/sessions/"+other.ID+"/enrich", map[string]any{"strategyId": "missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnrich_SecondRequestWhileRunningConflicts(t *testing.T) {
	h := newHarness(t, false)
	h.enr.gate = make(chan struct{})

	resp := h.do(t, http.MethodPost, "/sessions", validSearch)
	created := decode[pipeline.Snapshot](t, resp)
	h.waitPhase(t, created.ID, pipeline.PhaseDiscovered)

	resp = h.do(t, http.MethodPost, "/sessions/"+created.ID+"/enrich", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, pipeline.PhaseEnriching, decode[pipeline.Snapshot](t, resp).Phase)

	resp = h.do(t, http.MethodPost, "/sessions/"+created.ID+"/enrich", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(h.enr.gate)
	h.waitPhase(t, created.ID, pipeline.PhaseEnriched)
}

func TestSessionsOnSameProject_DistinctLeadNumbers(t *testing.T) {
	h := newHarness(t, true)
	project, err := h.store.CreateProject(context.Background(), "Austin bakeries", "")
	require.NoError(t, err)

	req := map[string]any{"projectId": project.ID}
	for k, v := range validSearch {
		req[k] = v
	}
	var ids []string
	for range 2 {
		resp := h.do(t, http.MethodPost, "/sessions", req)
		created := decode[pipeline.Snapshot](t, resp)
		h.waitPhase(t, created.ID, pipeline.PhaseDiscovered)
		ids = append(ids, created.ID)
	}
	for _, id := range ids {
		resp := h.do(t, http.MethodPost, "/sessions/"+id+"/enrich", nil)
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}

	var leads []model.Lead
	require.Eventually(t, func() bool {
		resp := h.do(t, http.MethodGet, "/projects/"+project.ID+"/leads", nil)
		leads = decode[[]model.Lead](t, resp)
		return len(leads) == 4
	}, 2*time.Second, 10*time.Millisecond)
	for i, l := range leads {
		assert.Equal(t, i+1, l.LeadNumber)
	}

	seen := map[int]bool{}
	require.Eventually(t, func() bool {
		clear(seen)
		for _, id := range ids {
			sess, _ := h.mgr.Get(id)
			for _, l := range sess.Leads() {
				seen[l.LeadNumber] = true
			}
		}
		return len(seen) == 4
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProjectRoutes_NoStore(t *testing.T) {
	h := newHarness(t, false)
	for _, path := range []string{"/projects", "/projects/p1/leads"} {
		resp := h.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestLeadRoutes(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()

	project, err := h.store.CreateProject(ctx, "Board", "")
	require.NoError(t, err)
	leads := model.NewLeadsFromCandidates([]model.DiscoveryCandidate{{CompanyName: "Acme"}}, project.ID, "Austin", "US", 1, time.Now())
	require.NoError(t, h.store.CreateLeads(ctx, leads))
	id := leads[0].ID

	resp := h.do(t, http.MethodPatch, "/leads/"+id+"/stage", map[string]any{"stage": "qualified"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = h.do(t, http.MethodPatch, "/leads/"+id+"/stage", map[string]any{"stage": "maybe"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodPatch, "/leads/missing/stage", map[string]any{"stage": "Won"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/leads/"+id+"/comments", map[string]any{"text": "  called <script>x</script>back "})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	c := decode[model.Comment](t, resp)
	assert.Equal(t, "called back", c.Text)
	assert.Equal(t, "me", c.Author)

	resp = h.do(t, http.MethodPost, "/leads/"+id+"/comments", map[string]any{"text": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/projects/"+project.ID+"/leads?stage=Qualified", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[[]model.Lead](t, resp)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Comments, 1)

	resp = h.do(t, http.MethodGet, "/projects/"+project.ID+"/leads?stage=Won", nil)
	assert.Empty(t, decode[[]model.Lead](t, resp))

	resp = h.do(t, http.MethodGet, "/projects/"+project.ID+"/leads?stage=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = h.do(t, http.MethodGet, "/projects/"+project.ID+"/leads?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/projects", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summaries := decode[[]model.ProjectSummary](t, resp)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].LeadCount)
}

func TestCORS(t *testing.T) {
	h := newHarness(t, false)
	req, err := http.NewRequest(http.MethodOptions, h.srv.URL+"/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/discovery"
	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/resilience"
	"github.com/sells-group/prospect-cli/internal/store"
)

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

type createSessionRequest struct {
	ProjectID string `json:"projectId"`
	discovery.Request
}

// createSession validates the request, starts discovery in the background
// and answers 202 with the new session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	req.SearchQuery = model.Sanitize(req.SearchQuery)
	req.City = model.Sanitize(req.City)
	req.Country = model.Sanitize(req.Country)
	if err := req.Request.Validate(); err != nil {
		writeErr(w, err)
		return
	}

	if req.ProjectID != "" && s.store != nil {
		if _, err := s.store.GetProject(r.Context(), req.ProjectID); err != nil {
			writeErr(w, err)
			return
		}
	}

	sess := s.sessions.Create(req.ProjectID)
	err := sess.SubmitAsync(s.opts.BaseContext, req.Request, func(candidates []model.DiscoveryCandidate, err error) {
		if err != nil {
			zap.L().Warn("api: discovery failed", zap.String("session", sess.ID()), zap.Error(err))
			return
		}
		zap.L().Info("api: discovery complete",
			zap.String("session", sess.ID()),
			zap.Int("candidates", len(candidates)),
		)
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*pipeline.Session, bool) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session "+id+" not found")
	}
	return sess, ok
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

type enrichRequest struct {
	StrategyID string `json:"strategyId"`
	enrich.Outreach
}

// enrichSession starts enrichment of the session's candidates. Outreach
// context comes from a saved strategy or from the body itself.
func (s *Server) enrichSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req enrichRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	outreach := &req.Outreach
	if req.StrategyID != "" {
		if s.store == nil {
			writeError(w, http.StatusServiceUnavailable, "no store configured")
			return
		}
		saved, err := s.store.GetStrategy(r.Context(), req.StrategyID)
		if err != nil {
			writeErr(w, err)
			return
		}
		outreach = enrich.OutreachFromStrategy(*saved)
	}
	if outreach.IsEmpty() {
		outreach = nil
	}

	ctx := s.opts.BaseContext
	err := sess.EnrichAsync(ctx, outreach, func(leads []model.Lead, err error) {
		if err != nil {
			zap.L().Warn("api: enrichment failed", zap.String("session", sess.ID()), zap.Error(err))
			return
		}
		s.persist(ctx, sess, leads)
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

func (s *Server) persist(ctx context.Context, sess *pipeline.Session, leads []model.Lead) {
	if s.store == nil || sess.ProjectID() == "" || len(leads) == 0 {
		return
	}
	n, err := s.store.SaveLeads(ctx, leads)
	if err != nil {
		zap.L().Error("api: save leads", zap.String("session", sess.ID()), zap.Error(err))
		return
	}
	sess.ApplyLeadNumbers(leads)
	zap.L().Info("api: leads saved",
		zap.String("session", sess.ID()),
		zap.String("project", sess.ProjectID()),
		zap.Int64("rows", n),
	)
}

func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "no store configured")
		return false
	}
	return true
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	projects, err := s.store.ListProjects(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if projects == nil {
		projects = []model.ProjectSummary{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) listProjectLeads(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}

	q := r.URL.Query()
	filter := store.LeadFilter{ProjectID: chi.URLParam(r, "id")}
	if v := q.Get("stage"); v != "" {
		stage, ok := model.ParseStage(v)
		if !ok {
			writeErr(w, &resilience.ValidationError{
				Message: "invalid filter",
				Fields:  map[string]string{"stage": "unknown stage " + strconv.Quote(v)},
			})
			return
		}
		filter.Stage = stage
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeErr(w, &resilience.ValidationError{
					Message: "invalid filter",
					Fields:  map[string]string{name: "must be a non-negative integer"},
				})
				return
			}
			*dst = n
		}
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (s *Server) updateLeadStage(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var body struct {
		Stage string `json:"stage"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	stage, ok := model.ParseStage(body.Stage)
	if !ok {
		writeErr(w, &resilience.ValidationError{
			Message: "invalid stage",
			Fields:  map[string]string{"stage": "must be one of New, Contacted, Qualified, Proposal, Won, Lost"},
		})
		return
	}
	if err := s.store.UpdateLeadStage(r.Context(), chi.URLParam(r, "id"), stage); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) addComment(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var body struct {
		Text   string `json:"text"`
		Author string `json:"author"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeErr(w, err)
		return
	}
	text := model.Sanitize(body.Text)
	if strings.TrimSpace(text) == "" {
		writeErr(w, &resilience.ValidationError{
			Message: "invalid comment",
			Fields:  map[string]string{"text": "comment text is required"},
		})
		return
	}
	c, err := s.store.AddComment(r.Context(), chi.URLParam(r, "id"), text, model.Sanitize(body.Author))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Package api serves pipeline sessions and the lead board over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/store"
)

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// BaseContext is the parent of every background discovery and
	// enrichment run. Defaults to context.Background.
	BaseContext context.Context
}

// Server routes HTTP requests to sessions and the store. The store is
// optional; without one, enriched leads are not persisted and the project
// routes answer 503.
type Server struct {
	sessions *pipeline.Manager
	store    store.Store
	opts     Options
}

// New creates a Server.
func New(sessions *pipeline.Manager, st store.Store, opts Options) *Server {
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{sessions: sessions, store: st, opts: opts}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/enrich", s.enrichSession)
			r.Post("/reset", s.resetSession)
		})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.listProjects)
		r.Get("/{id}/leads", s.listProjectLeads)
	})

	r.Route("/leads/{id}", func(r chi.Router) {
		r.Patch("/stage", s.updateLeadStage)
		r.Post("/comments", s.addComment)
	})

	return r
}

// PruneEvery evicts idle sessions every interval until ctx is done.
func (s *Server) PruneEvery(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.sessions.Prune(); n > 0 {
				zap.L().Info("api: pruned idle sessions", zap.Int("count", n))
			}
		}
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

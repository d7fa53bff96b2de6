package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/discover/internal/auth"
	"github.com/lazypower/discover/internal/engine"
	"github.com/lazypower/discover/internal/logger"
)

// Server is the discover HTTP API server.
type Server struct {
	engine  *engine.Engine
	authn   auth.Authenticator
	log     *logger.Logger
	router  chi.Router
	version string
	started time.Time

	recalculateOnFeed bool
}

// Option configures a Server.
type Option func(*Server)

// WithRecalculateOnFeed runs the caller's decay pass before serving the feed.
func WithRecalculateOnFeed(on bool) Option {
	return func(s *Server) { s.recalculateOnFeed = on }
}

// New creates a new Server over the given engine and authenticator.
func New(eng *engine.Engine, authn auth.Authenticator, log *logger.Logger, version string, opts ...Option) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		engine:  eng,
		authn:   authn,
		log:     log.With("component", "server"),
		version: version,
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.requestID)
	r.Use(s.accessLog)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/discover", func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/feedback", s.handleFeedback)
			r.Post("/recalculate", s.handleRecalculate)
			r.Get("/feed", s.handleFeed)
			r.Get("/favorites", s.handleFavorites)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.engine.DB.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

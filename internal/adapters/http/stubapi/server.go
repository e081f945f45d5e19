// Package stubapi is an in-memory implementation of the red-teaming backend
// HTTP API, used for local development and end-to-end tests of the client.
//
// Every route of the real API is served with the same JSON shapes. Tokens
// are HS256 JWTs. Mutating routes require a bearer token and admin routes
// require the admin role.
package stubapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/okian/flames/pkg/logger"
	"github.com/okian/flames/pkg/metrics"
)

const defaultSecret = "flames-dev-secret"

// Server serves the stub API.
type Server struct {
	store      *Store
	signer     *Signer
	logger     logger.Logger
	secret     string
	tokenTTL   time.Duration
	bcryptCost int
}

// NewServer creates a Server with an empty store.
func NewServer(opts ...Option) *Server {
	s := &Server{
		store:      NewStore(),
		logger:     logger.Nop(),
		secret:     defaultSecret,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.signer = NewSigner(s.secret, s.tokenTTL)
	return s
}

// Store exposes the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.signer.WithAuth)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/openapi.yaml", handleOpenAPI)
	r.Get("/api-docs", handleDocs)

	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)

	r.Get("/exercises", s.handleListExercises)
	r.Get("/model-mappings", s.handleListMappings)

	r.Group(func(pr chi.Router) {
		pr.Use(RequireAuth)
		pr.Post("/api/generate", s.handleGenerate)
		pr.Get("/interactions", s.handleListInteractions)
		pr.Post("/flags", s.handleCreateFlag)
		pr.Post("/teams", s.handleCreateTeam)
		pr.Post("/teams/join", s.handleJoinTeam)
	})

	r.Group(func(ar chi.Router) {
		ar.Use(RequireAdmin)
		ar.Post("/exercises", s.handleCreateExercise)
		ar.Delete("/exercises/{id}", s.handleDeleteExercise)
		ar.Post("/model-mappings", s.handleCreateMapping)
		ar.Delete("/model-mappings/{id}", s.handleDeleteMapping)
		ar.Get("/flags", s.handleListFlags)
		ar.Post("/flags/{id}/resolve", s.handleResolveFlag)
		ar.Get("/admin/analytics", s.handleAnalytics)
		ar.Get("/export/json", s.handleExportJSON)
		ar.Get("/export/csv", s.handleExportCSV)
	})

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/ir-disclosure-crawler/internal/metrics"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/publisher"
	"github.com/JakeFAU/ir-disclosure-crawler/internal/storage"
)

const rootMessage = "IR disclosure document API is running. See /create and /read."

// Config tunes the HTTP layer.
type Config struct {
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the document repository.
type Server struct {
	router    chi.Router
	repo      storage.Repository
	publisher publisher.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewServer constructs a Server with middleware and routes. pub may be nil.
func NewServer(repo storage.Repository, pub publisher.Publisher, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	metrics.Init()

	s := &Server{
		repo:      repo,
		publisher: pub,
		logger:    logger,
		now:       time.Now,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(otelhttp.NewMiddleware("irdocs-api"))
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/", s.root)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/create", s.createDocument)
	r.Get("/read", s.readDocuments)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": rootMessage})
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, map[string]string{"detail": detail})
}

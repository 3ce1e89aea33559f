// Package server provides the HTTP API for Fukabori.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/fukabori/internal/config"
	"github.com/hyperjump/fukabori/internal/keyword"
	"github.com/hyperjump/fukabori/internal/pipeline"
	"github.com/hyperjump/fukabori/internal/storage"
)

// Server is the HTTP server for the Fukabori API.
type Server struct {
	pipeline *pipeline.Pipeline
	matcher  *keyword.Matcher
	history  *storage.History
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. matcher and
// history may be nil; the corresponding endpoints report 501.
func NewServer(
	p *pipeline.Pipeline,
	matcher *keyword.Matcher,
	history *storage.History,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		pipeline: p,
		matcher:  matcher,
		history:  history,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/match", s.handleMatch)
	r.Post("/api/v1/documents", s.handleIngest)
	r.Get("/api/v1/history", s.handleHistory)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/snapshot", s.handleSnapshot)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Package server provides the HTTP server and routing for Rotor.
// The API is a thin read-only projection of evaluation results plus a
// trigger endpoint; serialization retains both adjusted and nominal return
// values so downstream consumers can always show both.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/rotor/internal/modules/history"
	"github.com/aristath/rotor/internal/modules/portfolio"
	"github.com/aristath/rotor/internal/modules/rotation"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/aristath/rotor/internal/modules/universe"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	Port            int
	DevMode         bool
	RotationService *rotation.Service
	DecisionRepo    *rotation.DecisionRepository
	HoldingRepo     *portfolio.HoldingRepository
	InstrumentRepo  *universe.InstrumentRepository
	SettingsRepo    *settings.Repository
	Ingester        *history.Ingester
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server with all routes registered
func New(cfg Config) *Server {
	log := cfg.Log.With().Str("component", "server").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := newHandlers(cfg, log)

	r.Route("/api", func(r chi.Router) {
		r.Post("/evaluate", h.triggerEvaluation)
		r.Get("/rankings", h.getRankings)
		r.Get("/correlations", h.getCorrelations)
		r.Get("/qualifications", h.getQualifications)
		r.Get("/decisions", h.getDecisions)
		r.Get("/cycle", h.getCycle)
		r.Get("/holdings", h.getHoldings)
		r.Get("/instruments", h.getInstruments)
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.putSettings)
		r.Post("/history/bars", h.ingestBars)
		r.Post("/history/distributions", h.ingestDistributions)
		r.Get("/system/health", h.getSystemHealth)
	})

	return &Server{
		router: r,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		log: log,
	}
}

// Start begins serving HTTP requests (blocking)
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Package httpapi exposes the deposit orchestrator over HTTP: deposit
// submission, movement and investment reads, and a websocket stream of
// movement status transitions.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"stablevault/internal/deposit"
	"stablevault/internal/observability"
	"stablevault/internal/storage"
)

// Config holds server configuration.
type Config struct {
	Addr         string
	Log          zerolog.Logger
	Orchestrator *deposit.Orchestrator
	Investments  storage.InvestmentStore
	Movements    storage.MovementStore
}

// Server is the HTTP server.
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	orchestrator *deposit.Orchestrator
	investments  storage.InvestmentStore
	movements    storage.MovementStore
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "httpapi").Logger(),
		orchestrator: cfg.Orchestrator,
		investments:  cfg.Investments,
		movements:    cfg.Movements,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", observability.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/deposits", s.handleDeposit)
		r.Route("/movements/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMovement)
			r.Get("/stream", s.handleStreamMovement)
		})
		r.Get("/profiles/{id}/investments", s.handleGetInvestments)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

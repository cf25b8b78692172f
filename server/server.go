// Package server provides HTTP server management and lifecycle handling
// for the perfusion API. It includes server setup, middleware
// configuration, route management, and graceful shutdown capabilities.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perfusionpro/perfusion-api/config"
	"github.com/perfusionpro/perfusion-api/handlers"
	"github.com/perfusionpro/perfusion-api/logging"
	"github.com/perfusionpro/perfusion-api/metrics"
)

// Server represents the HTTP server
type Server struct {
	server  *http.Server
	router  chi.Router
	handler *handlers.HTTPHandler
	config  *config.Config
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, handler *handlers.HTTPHandler) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router:  router,
		handler: handler,
		config:  cfg,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Router exposes the configured router so tests can drive it with
// httptest without binding a port.
func (s *Server) Router() chi.Router {
	return s.router
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(logging.Middleware(logging.Default.Logger))
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Passcode"},
		MaxAge:         300,
	}))
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(RateLimitHandler)
	s.router.Use(metrics.Metrics)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler
	adminOnly := AdminOnlyMiddleware(s.config.AdminPasscode)

	// Case routes
	s.router.Route("/cases", func(r chi.Router) {
		r.Get("/", h.ListCases)
		r.Post("/", h.CreateCase)
		r.Get("/page/{pageNumber}", h.ListCasesPaged)

		r.Route("/{caseId}", func(r chi.Router) {
			r.Get("/", h.GetCase)
			r.Patch("/", h.UpdateCase)
			r.With(adminOnly).Delete("/", h.DeleteCase)

			r.Get("/medications", h.ListCaseMedications)
			r.Post("/medications", h.RecordMedication)
			r.Get("/export/csv", h.ExportMedicationsCSV)
		})
	})

	// Medication routes
	s.router.Route("/medications/{medicationId}", func(r chi.Router) {
		r.Get("/", h.GetMedication)
		r.Patch("/", h.UpdateMedication)
		r.With(adminOnly).Delete("/", h.DeleteMedication)

		r.Post("/start", h.StartMedication)
		r.Post("/stop", h.StopMedication)
		r.Post("/hold", h.HoldMedication)
		r.Post("/resume", h.ResumeMedication)
	})

	// Hospital directory routes
	s.router.Route("/hospitals", func(r chi.Router) {
		r.Get("/", h.ServeHospitals)
		r.Get("/search", h.SearchHospitals)
		r.Get("/grouped", h.GroupedHospitals)
		r.Get("/status", h.DirectoryStatus)
		r.Get("/{providerNumber}", h.FindHospital)
	})

	// Operational routes
	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the server
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == "dev" {
		s.startProfilingServer()
	}

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		fmt.Println("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			fmt.Println("Profiling server failed: ", err)
		}
	}()
}

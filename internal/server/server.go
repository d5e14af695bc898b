// Package server wires the HTTP router, middleware, and all dependencies.
//
// This is the composition root: New assembles store → sandbox → render →
// service → handler, and Start runs the listener with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/patelnilay251/backend-data-forge/internal/config"
	"github.com/patelnilay251/backend-data-forge/internal/handler"
	"github.com/patelnilay251/backend-data-forge/internal/middleware"
	"github.com/patelnilay251/backend-data-forge/internal/render"
	"github.com/patelnilay251/backend-data-forge/internal/sandbox"
	"github.com/patelnilay251/backend-data-forge/internal/service"
	"github.com/patelnilay251/backend-data-forge/internal/session"
	"github.com/patelnilay251/backend-data-forge/internal/store"
)

// Server represents the HTTP server and its dependencies.
type Server struct {
	router      *chi.Mux
	cfg         *config.Config
	logger      *slog.Logger
	coordinator *session.Coordinator
}

// New assembles the full dependency chain and registers all routes.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.New(cfg.Store.ScratchDir, logger)
	if err != nil {
		return nil, fmt.Errorf("creating dataset store: %w", err)
	}

	sb := sandbox.New(logger)
	rp := render.New(sb, logger)

	svc := service.NewDataService(st, sb, rp, service.Config{
		DefaultTimeout: cfg.DefaultTimeout(),
		MaxTimeout:     cfg.MaxTimeout(),
		MaxCodeBytes:   cfg.Sandbox.MaxCodeBytes,
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
	}, logger)

	coordinator := session.New(st, cfg.SessionTTL(), logger)

	s := &Server{
		router:      chi.NewRouter(),
		cfg:         cfg,
		logger:      logger,
		coordinator: coordinator,
	}
	s.setupRoutes(svc, coordinator)
	return s, nil
}

func (s *Server) setupRoutes(svc *service.DataService, coordinator *session.Coordinator) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", session.HeaderName},
		ExposedHeaders: []string{session.HeaderName},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)

	dataHandler := handler.NewDataHandler(svc, coordinator, s.cfg.Store.MaxUploadBytes, s.logger)
	s.router.Post("/upload", dataHandler.HandleUpload)
	s.router.Post("/execute", dataHandler.HandleExecute)
	s.router.Post("/visualize", dataHandler.HandleVisualize)
	s.router.Get("/dataset", dataHandler.HandleDescribe)
	s.router.Delete("/dataset", dataHandler.HandleEvict)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","environment":%q}`, s.cfg.Server.Environment)
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
// The session janitor runs for the lifetime of the listener.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  60 * time.Second, // uploads can be slow on bad links
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go s.coordinator.Start(janitorCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Server.Port),
			slog.String("environment", s.cfg.Server.Environment),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

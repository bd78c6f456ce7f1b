// Package httpapi exposes the worker's external HTTP surface: hook ingestion
// from the coding assistant, and read/administrative endpoints for
// observations, timelines, projects, stats, logs, and settings.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/memory-service/memoryd/internal/config"
	"github.com/memory-service/memoryd/internal/sessionmgr"
	"github.com/memory-service/memoryd/internal/store"
	"github.com/memory-service/memoryd/internal/supervisor"
	"github.com/memory-service/memoryd/internal/vector"
	"github.com/memory-service/memoryd/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:         37777,
		EnableCORS:   true,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the worker's HTTP API.
type Server struct {
	cfg     Config
	router  *chi.Mux
	httpSrv *http.Server

	st    *store.Store
	vec   vector.Backend
	mgr   *sessionmgr.Manager
	sup   *supervisor.Supervisor
	paths *config.Paths

	settingsMu sync.RWMutex
	settings   *types.Settings
}

// New builds a Server wired to the worker's store, vector backend, session
// manager, and subprocess supervisor.
func New(cfg Config, st *store.Store, vec vector.Backend, mgr *sessionmgr.Manager, sup *supervisor.Supervisor, paths *config.Paths, settings *types.Settings) *Server {
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		st:       st,
		vec:      vec,
		mgr:      mgr,
		sup:      sup,
		paths:    paths,
		settings: settings,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Router exposes the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// Start begins serving and blocks until the listener stops.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

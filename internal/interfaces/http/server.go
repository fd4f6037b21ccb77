package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/investrun/internal/compare"
	"github.com/sawpanic/investrun/internal/metrics"
	"github.com/sawpanic/investrun/internal/montecarlo"
	"github.com/sawpanic/investrun/internal/net/circuit"
	"github.com/sawpanic/investrun/internal/net/ratelimit"
	"github.com/sawpanic/investrun/internal/persistence"
)

// Service is what the API needs from the application layer
type Service interface {
	Compare(ctx context.Context, symbol string, req compare.Request) (*compare.Row, error)
	MonteCarlo(ctx context.Context, symbol string, cfg montecarlo.Config, onSample func(montecarlo.Sample)) (*montecarlo.Result, error)
	ListRuns(ctx context.Context, symbol string, limit int) ([]persistence.Run, error)
	Run(ctx context.Context, id uuid.UUID) (*persistence.Run, []persistence.Sample, error)
}

// Server is the investrun HTTP API
type Server struct {
	router  *mux.Router
	server  *http.Server
	config  ServerConfig
	deps    Deps
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	Version        string
	MaxIterations  int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "127.0.0.1", // local-only by default
		Port:           8090,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 2 * time.Minute,
		MaxIterations:  100000,
	}
}

// Deps are the collaborators the handlers use. Only Service is required.
type Deps struct {
	Service  Service
	Metrics  *metrics.Registry
	Breakers *circuit.Manager
	Database func(ctx context.Context) persistence.HealthCheck
	// RateLimits reports the provider's per-host token buckets
	RateLimits func() map[string]ratelimit.HostStats
}

// NewServer creates a new HTTP server instance
func NewServer(config ServerConfig, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("http server requires a service")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultServerConfig().MaxIterations
	}

	s := &Server{
		router:  mux.NewRouter(),
		config:  config,
		deps:    deps,
		started: time.Now(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.corsMiddleware)

	// websocket upgrades must not be wrapped by timeout or content type
	s.router.HandleFunc("/ws/montecarlo/{symbol}", s.streamMonteCarlo).Methods("GET")
	s.router.Handle("/metrics", s.deps.Metrics.Handler()).Methods("GET")

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.health).Methods("GET")
	api.HandleFunc("/compare/{symbol}", s.compare).Methods("GET")
	api.HandleFunc("/montecarlo/{symbol}", s.monteCarlo).Methods("POST")
	api.HandleFunc("/runs", s.runs).Methods("GET")
	api.HandleFunc("/runs/{id}", s.run).Methods("GET")

	s.router.NotFoundHandler = s.jsonContentTypeMiddleware(http.HandlerFunc(s.notFound))
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Address())
	if err != nil {
		return fmt.Errorf("port %d is busy or unavailable: %w", s.config.Port, err)
	}

	log.Info().Str("addr", s.Address()).Msg("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// routeName returns the mux path template for metrics labels
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

func isLocalOrigin(origin string) bool {
	return strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1")
}

package participant

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mnohosten/transferd/pkg/auth"
	"github.com/mnohosten/transferd/pkg/httpapi"
)

// Server is the participant's HTTP surface: the three 2PC verbs, the
// admin-gated account bootstrap endpoint, and the read-only account/health/
// metrics endpoints.
type Server struct {
	config    *Config
	store     *Store
	router    *chi.Mux
	httpSrv   *http.Server
	authMgr   *auth.Manager
	startTime time.Time
}

// NewServer wires a Server around an existing account Store.
func NewServer(config *Config, store *Store) (*Server, error) {
	authMgr, err := auth.NewManager(config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("participant: %w", err)
	}

	s := &Server{
		config:    config,
		store:     store,
		router:    chi.NewRouter(),
		authMgr:   authMgr,
		startTime: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if s.config.EnableCORS {
		s.router.Use(httpapi.CORS(s.config.AllowedOrigins))
	}
	s.router.Use(httpapi.MaxRequestSize(s.config.MaxRequestSize))
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	s.router.Get("/_health", s.handleHealth)
	s.router.Get("/_metrics", s.handleMetrics)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authMgr.Middleware(auth.PermissionAdmin))
		r.Post("/accounts", s.handleCreateAccount)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.authMgr.Middleware(auth.PermissionTransfer))
		r.Get("/accounts/{id}", s.handleGetAccount)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.authMgr.Middleware(auth.PermissionTwoPC))
		r.Post("/2pc/prepare", s.handlePrepare)
		r.Post("/2pc/commit", s.handleCommit)
		r.Post("/2pc/abort", s.handleAbort)
	})
}

// Router exposes the underlying handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until it receives a shutdown
// signal or the listener fails.
func (s *Server) Start() error {
	log.Printf("participant: listening on %s", s.httpSrv.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("participant: received signal %v, shutting down", sig)
		return s.Shutdown()
	}
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

package coordinator

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
	"github.com/mnohosten/transferd/pkg/graphql"
	"github.com/mnohosten/transferd/pkg/httpapi"
	"github.com/mnohosten/transferd/pkg/txlog"
)

// Server is the coordinator's HTTP surface: the client-facing transfer
// endpoints, the read-only GraphQL query surface, the live-feed websocket,
// and health/metrics.
type Server struct {
	config  *Config
	coord   *Coordinator
	log     *txlog.Store
	router  *chi.Mux
	httpSrv *http.Server
	authMgr *auth.Manager
	feedHub *feedHub
	gql     *graphql.Handler
}

// NewServer wires a Server around an existing Coordinator.
func NewServer(config *Config, coord *Coordinator, log *txlog.Store) (*Server, error) {
	authMgr, err := auth.NewManager(config.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	gql, err := graphql.NewHandler(log)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}

	s := &Server{
		config:  config,
		coord:   coord,
		log:     log,
		router:  chi.NewRouter(),
		authMgr: authMgr,
		feedHub: newFeedHub(),
		gql:     gql,
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
		r.Use(s.authMgr.Middleware(auth.PermissionTransfer))
		r.Post("/transfers", s.handleTransfer)
		r.Get("/transfers/status/{tx_id}", s.handleStatus)
		r.Get("/transfers/history/{account_id}", s.handleHistory)
		r.Post("/graphql", s.handleGraphQL)
		r.Get("/transfers/feed", s.handleFeed)
	})
}

// Router exposes the underlying handler, primarily for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until it receives a shutdown
// signal or the listener fails.
func (s *Server) Start() error {
	log.Printf("coordinator: listening on %s", s.httpSrv.Addr)

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
		log.Printf("coordinator: received signal %v, shutting down", sig)
		return s.Shutdown()
	}
}

// Shutdown gracefully drains in-flight requests and stops the feed hub.
func (s *Server) Shutdown() error {
	s.feedHub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

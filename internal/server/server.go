package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/plasmalab/simtrack/internal/errors"
	"github.com/plasmalab/simtrack/internal/observability"
	"github.com/plasmalab/simtrack/internal/server/handlers"
	"github.com/plasmalab/simtrack/internal/server/middleware"
	"github.com/plasmalab/simtrack/pkg/registry"
	"github.com/plasmalab/simtrack/pkg/runstore"
)

// Server is the read-only HTTP surface over a run registry. It never mutates
// registry rows except through per-request reconciliation passes.
type Server struct {
	host   string
	port   int
	router chi.Router
	srv    *http.Server
}

// New wires the router: health, version, and the runs surface.
func New(host string, port int, reg *registry.Registry, conn *runstore.Connector, version string) *Server {
	health := handlers.NewHealthManager(version)
	health.RegisterChecker("store", handlers.CheckerFunc(func(ctx context.Context) error {
		return conn.Ping(ctx)
	}))

	runs := handlers.NewRunsHandler(reg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", health.HealthHandler)
	r.Get("/version", handlers.VersionHandler(version, "", ""))
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", runs.List)
		r.Get("/runs/{id}", runs.Get)
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, http.StatusNotFound, apperrors.CodeNotFound,
			fmt.Sprintf("no route for %s", req.URL.Path),
			middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteHTTPError(w, http.StatusMethodNotAllowed,
			apperrors.CodeMethodNotAllowed,
			fmt.Sprintf("%s not allowed on %s", req.Method, req.URL.Path),
			middleware.GetRequestID(req.Context()))
	})

	return &Server{host: host, port: port, router: r}
}

// Handler exposes the routed handler for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.CLILogger.Info("http server listening", zap.String("addr", addr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return <-errCh
}

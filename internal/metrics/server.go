package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"firestige.xyz/asio/internal/log"
)

// Server is the HTTP server exposing the Prometheus registry.
type Server struct {
	addr   string
	path   string
	lg     log.Logger
	server *http.Server
}

// NewServer creates a metrics server. path defaults to /metrics.
func NewServer(addr, path string, lg log.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{addr: addr, path: path, lg: lg}
}

// Start serves in the background until Stop. A failing metrics endpoint
// is logged, it never takes the service down.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.lg.Infof("metrics server on %s%s", s.addr, s.path)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.lg.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// Stop gracefully stops the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown: %w", err)
	}

	s.lg.Info("metrics server stopped")
	return nil
}

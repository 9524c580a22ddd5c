// Package httpserver hosts the container admin surface: health, status,
// capability listing, and Prometheus metrics.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/ion-foundation/capability-container/internal/logging"
)

// Server wraps the admin HTTP server lifecycle.
type Server struct {
	srv *http.Server
	log *logging.Logger
}

// New creates a server listening on addr with the given handler.
func New(addr string, log *logging.Logger, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		log: log.WithComponent("admin"),
	}
}

// Start serves until Shutdown. Blocks; run it in a goroutine.
func (s *Server) Start() error {
	s.log.Infof("admin API listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

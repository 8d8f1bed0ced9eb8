// Package httpapi implements spec.md §4.1's ingestion API: upload, status,
// download, and cancel endpoints over the job queue, grounded on the
// teacher's jobapi package generalized from a unix-socket job-local API to
// a public HTTP surface with an optional bearer token.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vibecoding/demo2apk/internal/config"
	"github.com/vibecoding/demo2apk/internal/queue"
	"github.com/vibecoding/demo2apk/internal/ratelimit"
	"github.com/vibecoding/demo2apk/internal/storage"
	"github.com/vibecoding/demo2apk/logger"
)

// Server is the HTTP API process's single long-lived object: it writes
// jobs into the queue and reads status from it, but never runs a build
// itself, per spec.md §2.
type Server struct {
	Config      *config.Config
	Queue       queue.Queue
	Roots       storage.Roots
	RateLimiter *ratelimit.Limiter
	Log         logger.Logger

	httpSvr *http.Server
}

// NewServer wires a Server ready to Start.
func NewServer(cfg *config.Config, q queue.Queue, roots storage.Roots, log logger.Logger) *Server {
	return &Server{
		Config:      cfg,
		Queue:       q,
		Roots:       roots,
		RateLimiter: ratelimit.New(q, cfg.RateLimitWindow),
		Log:         log,
	}
}

// Start begins serving on Config.Host:Config.Port in a goroutine.
func (s *Server) Start() error {
	s.httpSvr = &http.Server{
		Addr:    s.Config.Host + ":" + s.Config.Port,
		Handler: s.router(),
	}
	go func() {
		if err := s.httpSvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Error("API server stopped unexpectedly: %v", err)
		}
	}()
	s.Log.Info("API server listening on %s", s.httpSvr.Addr)
	return nil
}

// Stop gracefully shuts the server down within a 10s grace period,
// grounded on jobapi.Server.Stop's same shutdown-context shape.
func (s *Server) Stop() error {
	if s.httpSvr == nil {
		return errors.New("server not started")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSvr.Shutdown(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.Log.Warn("API server shutdown timed out, forcing close")
		}
		return fmt.Errorf("shutting down API server: %w", err)
	}
	s.Log.Info("API server shut down")
	return nil
}

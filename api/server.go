// Package api provides the HTTP surface of the briefly service.
//
// Endpoints:
//   - POST /chat               - streaming chat over SSE
//   - POST /update-news        - start a knowledge base refresh
//   - GET  /update-news/status - refresh job status
//   - POST /tts                - speech synthesis
//   - GET  /health             - liveness probe
//   - GET  /ready              - readiness probe
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (request ID, logging, recovery, tracing)
//   - chat.go: streaming chat endpoint
//   - refresh.go: refresh trigger and status endpoints
//   - tts.go: speech synthesis endpoint
//   - health.go: health check endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/prompt"
	"github.com/briefly-ai/briefly/internal/retrieve"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:5000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout is the timeout for reading request headers.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// IdleTimeout is the maximum time to wait for the next request on
	// keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// ServerConfig wires the API server's collaborators.
type ServerConfig struct {
	Retriever Retriever                 // required
	Builder   *prompt.Builder           // required
	Generator Generator                 // required
	Refresher Refresher                 // required
	Speech    Speech                    // optional: nil disables /tts
	Snapshots retrieve.SnapshotProvider // required, for readiness reporting
	Logger    log.Logger
}

// Server is the HTTP server for the briefly REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if cfg.Builder == nil {
		return nil, errors.New("prompt builder is required")
	}
	if cfg.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if cfg.Refresher == nil {
		return nil, errors.New("refresher is required")
	}
	if cfg.Snapshots == nil {
		return nil, errors.New("snapshot provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	NewChatHandler(cfg.Retriever, cfg.Builder, cfg.Generator, logger).RegisterRoutes(mux)
	NewRefreshHandler(cfg.Refresher, logger).RegisterRoutes(mux)
	NewHealthHandler(cfg.Snapshots, logger).RegisterRoutes(mux)
	if cfg.Speech != nil {
		NewTTSHandler(cfg.Speech, logger).RegisterRoutes(mux)
	}

	return &Server{mux: mux, logger: logger}, nil
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → request ID → logging → tracing → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		requestIDMiddleware,
		loggingMiddleware(s.logger),
		tracingMiddleware,
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
//
// WriteTimeout is deliberately left unset: /chat holds its response open
// for the lifetime of the generation stream.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

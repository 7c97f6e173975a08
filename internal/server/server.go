// ABOUTME: HTTP transport for the prospector: webhook, interaction, and operator endpoints
// ABOUTME: Owns the listener lifecycle with graceful shutdown on context cancellation

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/leadmachine/prospector/internal/auth"
	"github.com/leadmachine/prospector/internal/signal"
	"github.com/leadmachine/prospector/internal/store"
	"github.com/leadmachine/prospector/internal/workflow"
)

// Pipeline is the slice of the workflow core the transport needs.
type Pipeline interface {
	HandleSignal(ctx context.Context, payload signal.Payload) (*workflow.Result, error)
	HandleInteraction(ctx context.Context, in workflow.Interaction) error
}

// PendingLister is the slice of the store the operator API needs.
type PendingLister interface {
	ListPending(ctx context.Context) ([]*store.ApprovalRequest, error)
}

// Server serves the three HTTP surfaces: the signal webhook, the interaction
// callback, and the operator API. Signature verification runs before any
// interaction state is read; the operator API requires a bearer token when a
// token verifier is configured.
type Server struct {
	addr       string
	pipeline   Pipeline
	pending    PendingLister
	signatures *auth.SignatureVerifier
	tokens     auth.TokenVerifier
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server. tokens may be nil, which leaves the operator API
// open; a warning is logged in that case.
func New(addr string, pipeline Pipeline, pending PendingLister, signatures *auth.SignatureVerifier, tokens auth.TokenVerifier) *Server {
	s := &Server{
		addr:       addr,
		pipeline:   pipeline,
		pending:    pending,
		signatures: signatures,
		tokens:     tokens,
		logger:     slog.Default().With("component", "server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/webhook/reporadar", s.handleSignal)
	mux.HandleFunc("/slack/interactions", s.handleInteraction)

	if tokens != nil {
		mux.Handle("/api/pending", auth.RequireToken(tokens)(http.HandlerFunc(s.handlePending)))
	} else {
		mux.HandleFunc("/api/pending", s.handlePending)
		s.logger.Warn("operator API auth disabled - no jwt_secret configured")
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run starts the server and blocks until the context is canceled or the
// server fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case err := <-errCh:
		s.logger.Error("server error", "error", err)
		return err
	}

	// Fresh context for shutdown since the original is already canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// Package api exposes DocFlow over HTTP: input routing, conversation
// sessions, agent selection, workflow phase checks and auto-session control.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/BTreeMap/DocFlow/internal/agents"
	"github.com/BTreeMap/DocFlow/internal/autosession"
	"github.com/BTreeMap/DocFlow/internal/conversation"
	"github.com/BTreeMap/DocFlow/internal/router"
	"github.com/BTreeMap/DocFlow/internal/workflow"
)

// DefaultAddr is used when no address option is given.
const DefaultAddr = "127.0.0.1:8080"

// Deps are the components the server routes requests to. AutoSession may be nil.
type Deps struct {
	Router       *router.SessionRouter
	Engine       *conversation.Engine
	Orchestrator *workflow.Orchestrator
	Agents       *agents.Directory
	AutoSession  *autosession.Manager
}

// Server serves the DocFlow HTTP API.
type Server struct {
	router       *router.SessionRouter
	engine       *conversation.Engine
	orchestrator *workflow.Orchestrator
	agents       *agents.Directory
	autoSession  *autosession.Manager

	addr   string
	logger *slog.Logger
	clock  func() time.Time

	mu         sync.Mutex
	httpServer *http.Server
	startedAt  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithLogger sets the server's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewServer creates a server over deps. Router, Engine, Orchestrator and Agents are required.
func NewServer(deps Deps, opts ...Option) (*Server, error) {
	if deps.Router == nil || deps.Engine == nil || deps.Orchestrator == nil || deps.Agents == nil {
		return nil, errors.New("api: router, engine, orchestrator and agents are required")
	}
	s := &Server{
		router:       deps.Router,
		engine:       deps.Engine,
		orchestrator: deps.Orchestrator,
		agents:       deps.Agents,
		autoSession:  deps.AutoSession,
		addr:         DefaultAddr,
		logger:       slog.Default(),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "api")
	return s, nil
}

// Handler returns the API's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)

	mux.HandleFunc("POST /messages", s.messageHandler)

	mux.HandleFunc("GET /agents", s.listAgentsHandler)
	mux.HandleFunc("PUT /agents/current", s.selectAgentHandler)
	mux.HandleFunc("DELETE /agents/current", s.clearAgentHandler)

	mux.HandleFunc("POST /sessions", s.startSessionHandler)
	mux.HandleFunc("GET /sessions", s.listSessionsHandler)
	mux.HandleFunc("GET /sessions/{id}", s.getSessionHandler)
	mux.HandleFunc("DELETE /sessions/{id}", s.endSessionHandler)
	mux.HandleFunc("GET /sessions/{id}/history", s.sessionHistoryHandler)
	mux.HandleFunc("GET /sessions/{id}/progress", s.sessionProgressHandler)
	mux.HandleFunc("POST /sessions/{id}/pause", s.pauseSessionHandler)
	mux.HandleFunc("POST /sessions/{id}/resume", s.resumeSessionHandler)

	mux.HandleFunc("GET /workflow/phases", s.phasesHandler)
	mux.HandleFunc("POST /workflow/evaluate", s.evaluateHandler)
	mux.HandleFunc("POST /workflow/validate", s.validateHandler)
	mux.HandleFunc("POST /workflow/transition", s.transitionHandler)
	mux.HandleFunc("GET /workflow/history", s.transitionHistoryHandler)

	mux.HandleFunc("GET /autosession", s.autoSessionStateHandler)
	mux.HandleFunc("POST /autosession", s.enableAutoSessionHandler)
	mux.HandleFunc("DELETE /autosession", s.disableAutoSessionHandler)
	return mux
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.startedAt = s.clock()
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", "addr", listener.Addr().String())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// Package api provides HTTP handlers and the main API server logic for Wayfarer.
//
// It exposes RESTful endpoints for session lifecycle, onboarding milestone
// events, and the current screen decision. The API integrates with the
// session, identity, atlas, and store modules.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/wayfarer-app/wayfarer/internal/session"
)

// Constants for API server configuration
const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server hosts the HTTP surface over the session manager.
type Server struct {
	manager *session.Manager
	addr    string
	httpSrv *http.Server
}

// NewServer creates an API server for the given session manager.
func NewServer(manager *session.Manager, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{manager: manager, addr: cfg.Addr}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions", s.createSessionHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}", s.terminateSessionHandler).Methods(http.MethodDelete)
	r.HandleFunc("/v1/sessions/{id}/screen", s.screenHandler).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions/{id}/onboarding/nickname", s.nicknameHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/onboarding/voice", s.voiceHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/home", s.goHomeHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/location", s.locationHandler).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/transition", s.transitionHandler).Methods(http.MethodGet)

	s.httpSrv = &http.Server{Addr: cfg.Addr, Handler: r}
	return s
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run() error {
	slog.Info("Wayfarer API listening", "addr", s.addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("API server failed", "error", err)
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, DefaultShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

/*
 * Copyright 2025 SMSDesk Pty Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api exposes the messaging reads, the websocket endpoint and the
// operational endpoints over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smsdesk/pulse/pkg/core"
	"github.com/smsdesk/pulse/pkg/core/auth"
	"github.com/smsdesk/pulse/pkg/db"
	"github.com/smsdesk/pulse/pkg/logger"
	"github.com/smsdesk/pulse/pkg/models"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	ListenAddr string `json:"listen_addr"`

	// CORSOrigins lists the browser origins allowed to call the API; empty
	// means same-origin only.
	CORSOrigins []string `json:"cors_origins,omitempty"`

	// RateLimit is the sustained per-client request rate; Burst the bucket
	// size. Zero disables limiting.
	RateLimit float64 `json:"rate_limit,omitempty"`
	Burst     int     `json:"burst,omitempty"`

	ReadTimeout  models.Duration `json:"read_timeout,omitempty"`
	WriteTimeout models.Duration `json:"write_timeout,omitempty"`
}

// Server is the HTTP front of the realtime core.
type Server struct {
	config     *Config
	router     *mux.Router
	httpServer *http.Server
	hub        *core.Hub
	db         db.Service
	auth       auth.Service
	limiter    *clientLimiter
	metrics    *httpMetrics
	logger     logger.Logger
}

// ServerOption applies optional collaborators to the server.
type ServerOption func(*Server)

// WithAuth wires bearer token verification; without it the API is open.
func WithAuth(svc auth.Service) ServerOption {
	return func(s *Server) {
		s.auth = svc
	}
}

// WithDB wires the persistence service behind the messaging reads.
func WithDB(svc db.Service) ServerOption {
	return func(s *Server) {
		s.db = svc
	}
}

// WithHub wires the realtime hub behind the websocket endpoint.
func WithHub(h *core.Hub) ServerOption {
	return func(s *Server) {
		s.hub = h
	}
}

func NewServer(config *Config, log logger.Logger, options ...ServerOption) *Server {
	s := &Server{
		config:  config,
		router:  mux.NewRouter(),
		metrics: newHTTPMetrics(),
		logger:  log,
	}

	for _, o := range options {
		o(s)
	}

	if config.RateLimit > 0 {
		s.limiter = newClientLimiter(config.RateLimit, config.Burst)
	}

	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.instrumentMiddleware)

	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics",
		promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(s.rateLimitMiddleware)
	protected.Use(s.authMiddleware)

	protected.HandleFunc("/messaging/messages", s.handleSentMessages).Methods(http.MethodGet)
	protected.HandleFunc("/inbox", s.handleInbox).Methods(http.MethodGet)
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	readTimeout := s.config.ReadTimeout.Value(defaultReadTimeout)
	writeTimeout := s.config.WriteTimeout.Value(defaultWriteTimeout)

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting HTTP server")

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Stop implements the lifecycle service contract.
func (s *Server) Stop(ctx context.Context) error {
	return s.Shutdown(ctx)
}

// Shutdown drains in-flight requests and closes every websocket session.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hub != nil {
		s.hub.Close()
	}

	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

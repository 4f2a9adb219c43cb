// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes an orchestrator over HTTP.
//
// POST /chat always answers 200 with {"answer": "..."}. Degraded answers are
// flagged only through the X-Sabia-Degraded and X-Sabia-Error-Code headers,
// so clients that read the body alone keep working.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jllopis/sabia/pkg/capability"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/synth/prompts"
	"github.com/jllopis/sabia/pkg/telemetry"
)

// Response headers of the structured error channel.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderDegraded  = "X-Sabia-Degraded"
	HeaderErrorCode = "X-Sabia-Error-Code"
)

// StatusSource reports capability registrations.
type StatusSource interface {
	Status() []capability.Status
}

// Server is the HTTP front of the service.
type Server struct {
	engine   *gin.Engine
	orch     core.Orchestrator
	health   core.HealthCheckProvider
	statuses StatusSource
	pack     *prompts.Pack
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	policy   string
}

// Option configures a Server.
type Option func(*Server)

// WithHealth sets the provider behind /ready.
func WithHealth(h core.HealthCheckProvider) Option {
	return func(s *Server) { s.health = h }
}

// WithStatuses sets the capability status source behind /ready.
func WithStatuses(src StatusSource) Option {
	return func(s *Server) { s.statuses = src }
}

// WithPack sets the prompt pack for server-side messages.
func WithPack(p *prompts.Pack) Option {
	return func(s *Server) {
		if p != nil {
			s.pack = p
		}
	}
}

// WithRequestTimeout bounds every /chat request. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithPolicy names the orchestrator policy in logs.
func WithPolicy(name string) Option {
	return func(s *Server) { s.policy = name }
}

// New builds the gin engine and routes.
func New(orch core.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:    orch,
		pack:    prompts.Default(),
		timeout: 60 * time.Second,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	g.Use(gin.Recovery())
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Accept", "Authorization", HeaderRequestID)
	corsCfg.ExposeHeaders = []string{HeaderRequestID, HeaderDegraded, HeaderErrorCode}
	g.Use(cors.New(corsCfg))
	g.Use(requestID(), tracing(), accessLog(s.logger))

	g.GET("/", s.root)
	g.GET("/health", s.healthz)
	g.GET("/ready", s.ready)
	g.POST("/chat", s.chat)

	s.engine = g
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", addr), slog.String("policy", s.policy))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package app wires every Sabia component from configuration.
// It is the composition root: providers, capabilities, the orchestrator and
// the front ends are created and connected here.
package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jllopis/sabia/pkg/capability"
	"github.com/jllopis/sabia/pkg/capability/calculator"
	"github.com/jllopis/sabia/pkg/capability/clock"
	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/knowledge"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/pkg/mcp"
	"github.com/jllopis/sabia/pkg/orchestrator"
	"github.com/jllopis/sabia/pkg/search"
	"github.com/jllopis/sabia/pkg/server"
	"github.com/jllopis/sabia/pkg/synth"
	"github.com/jllopis/sabia/pkg/synth/prompts"
	"github.com/jllopis/sabia/pkg/telemetry"
)

// ServiceName identifies the service in telemetry and MCP.
const ServiceName = "sabia"

// Version is set at build time.
var Version = "dev"

// App holds the wired components.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	provider llm.Provider
	pack     *prompts.Pack
	registry *capability.Registry
	health   *core.DefaultHealthCheckProvider
	orch     core.Orchestrator
	policy   string

	telemetryOut io.Writer
	closers      []io.Closer
	shutdown     telemetry.ShutdownFunc
}

// Option customizes New.
type Option func(*App)

// WithLogger replaces the logger configured from cfg.Log.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithProvider replaces the provider configured from cfg.LLM.
func WithProvider(p llm.Provider) Option {
	return func(a *App) { a.provider = p }
}

// WithTelemetryOutput redirects the stdout exporter, for front ends that own
// stdout.
func WithTelemetryOutput(w io.Writer) Option {
	return func(a *App) { a.telemetryOut = w }
}

// New validates cfg and builds the application for cfg.Server.Mode.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = NewLogger(cfg)
	}

	shutdown, err := telemetry.Init(ServiceName, Version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		Output:       a.telemetryOut,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.shutdown = shutdown

	if a.metrics, err = telemetry.NewMetrics(); err != nil {
		a.logger.Warn("metrics disabled", slog.String("error", err.Error()))
	}

	if a.pack, err = prompts.Load(cfg.Prompts.Locale, cfg.Prompts.Path); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	if a.provider == nil {
		p, closer, err := NewProvider(ctx, cfg)
		if err != nil {
			a.Close(ctx)
			return nil, fmt.Errorf("create llm provider: %w", err)
		}
		a.provider = p
		a.addCloser(closer)
	}
	a.logger.Info("text generation provider ready",
		slog.String("provider", cfg.LLM.Provider),
		slog.String("model", cfg.LLM.Model),
	)

	a.health = core.NewDefaultHealthCheckProvider(10 * time.Second)
	a.health.RegisterChecker("llm", providerHealth(cfg))

	a.registry = capability.New(capability.WithLogger(a.logger), capability.WithMetrics(a.metrics))
	a.registerCapabilities(ctx)
	a.registry.RegisterHealth(a.health)

	a.orch, a.policy = a.buildOrchestrator()
	a.logger.Info("orchestrator ready",
		slog.String("mode", cfg.Server.Mode),
		slog.String("policy", a.policy),
		slog.Any("capabilities", a.registry.Names()),
	)
	return a, nil
}

// NewLogger configures the process logger from cfg.Log. Records go to
// stderr so stdout stays free for answers and the MCP stdio transport.
func NewLogger(cfg *config.Config) *slog.Logger {
	return telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// registerCapabilities registers what the mode consults. Pipeline modes
// register their single capability; the agent mode registers everything.
func (a *App) registerCapabilities(ctx context.Context) {
	cfg := a.cfg
	mode := cfg.Server.Mode

	if mode == config.ModeSearch || mode == config.ModeAgent {
		a.registry.Register(ctx, search.Name, search.Factory(cfg.Search, a.logger))
	}
	if mode == config.ModeKnowledge || mode == config.ModeAgent {
		a.registry.Register(ctx, knowledge.Name, a.knowledgeFactory())
	}
	if mode != config.ModeAgent {
		return
	}
	if cfg.Clock.Enabled {
		a.registry.Register(ctx, clock.Name, clock.Factory(cfg.Clock.Timezone))
	}
	if cfg.Calculator.Enabled {
		a.registry.Add(calculator.New())
	}
	for _, srv := range cfg.MCP.Servers {
		a.registerRemote(ctx, srv)
	}
}

func (a *App) knowledgeFactory() capability.Factory {
	return func(ctx context.Context) (core.Capability, error) {
		if !a.cfg.Knowledge.Enabled {
			return nil, fmt.Errorf("knowledge disabled")
		}
		store, storeCloser, err := NewVectorStore(a.cfg.Knowledge)
		if err != nil {
			return nil, err
		}
		a.addCloser(storeCloser)
		if hc, ok := store.(core.HealthChecker); ok {
			a.health.RegisterChecker("knowledge_store", hc)
		}
		embedder, closers, err := NewEmbedder(ctx, a.cfg)
		for _, c := range closers {
			a.addCloser(c)
		}
		if err != nil {
			return nil, err
		}
		return knowledge.Factory(a.cfg.Knowledge, store, embedder, a.logger)(ctx)
	}
}

// registerRemote adds the tools of one remote MCP server. An unreachable
// server is recorded as an unavailable capability.
func (a *App) registerRemote(ctx context.Context, srv config.MCPServerConfig) {
	client, err := mcp.Dial(ctx, srv.Command, srv.Args, srv.URL, mcp.WithTimeout(srv.Timeout))
	if err == nil {
		var caps []*mcp.RemoteCapability
		caps, err = mcp.Discover(ctx, srv.Name, client)
		if err == nil {
			a.addCloser(client)
			for _, c := range caps {
				a.registry.Add(c)
			}
			return
		}
		_ = client.Close()
	}
	a.registry.Register(ctx, "mcp:"+srv.Name, func(context.Context) (core.Capability, error) {
		return nil, err
	})
}

func (a *App) buildOrchestrator() (core.Orchestrator, string) {
	cfg := a.cfg
	emitter := core.LogEventEmitter{Logger: a.logger}

	if cfg.Server.Mode == config.ModeAgent {
		return orchestrator.NewReasoner(a.provider, a.registry,
			orchestrator.WithMaxIterations(cfg.Agent.MaxIterations),
			orchestrator.WithReasonerModel(cfg.LLM.Model),
			orchestrator.WithReasonerTemperature(cfg.Agent.Temperature),
			orchestrator.WithReasonerPack(a.pack),
			orchestrator.WithReasonerLogger(a.logger),
			orchestrator.WithReasonerMetrics(a.metrics),
			orchestrator.WithReasonerEmitter(emitter),
		), orchestrator.PolicyReasoner
	}

	s := synth.New(a.provider,
		synth.WithModel(cfg.LLM.Model),
		synth.WithTemperature(cfg.LLM.Temperature),
		synth.WithPack(a.pack),
		synth.WithTokenCounter(synth.NewTokenCounter()),
		synth.WithMaxContextTokens(cfg.LLM.MaxContextTokens),
		synth.WithLogger(a.logger),
	)
	opts := []orchestrator.PipelineOption{
		orchestrator.WithPipelineLogger(a.logger),
		orchestrator.WithPipelineMetrics(a.metrics),
		orchestrator.WithPipelineEmitter(emitter),
	}
	switch cfg.Server.Mode {
	case config.ModeSearch:
		opts = append(opts, orchestrator.WithCapability(a.registry, search.Name), orchestrator.RequireCapability())
	case config.ModeKnowledge:
		opts = append(opts, orchestrator.WithCapability(a.registry, knowledge.Name))
	}
	return orchestrator.NewPipeline(s, opts...), orchestrator.PolicyPipeline
}

// Orchestrator returns the configured orchestrator.
func (a *App) Orchestrator() core.Orchestrator { return a.orch }

// Registry returns the capability registry.
func (a *App) Registry() *capability.Registry { return a.registry }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Ask answers one question with a fresh request id.
func (a *App) Ask(ctx context.Context, question string) core.Answer {
	ctx, _ = core.EnsureRequestID(ctx)
	return a.orch.Answer(ctx, core.Question{Text: question})
}

// Server builds the HTTP front end.
func (a *App) Server() *server.Server {
	return server.New(a.orch,
		server.WithHealth(a.health),
		server.WithStatuses(a.registry),
		server.WithPack(a.pack),
		server.WithRequestTimeout(a.cfg.Server.RequestTimeout),
		server.WithLogger(a.logger),
		server.WithMetrics(a.metrics),
		server.WithPolicy(a.policy),
	)
}

// Serve runs the HTTP server on cfg.Server.Addr until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	return a.Server().ListenAndServe(ctx, a.cfg.Server.Addr)
}

// MCPServer builds the MCP front end: every available capability plus ask.
func (a *App) MCPServer() *mcp.Server {
	srv := mcp.NewServer(ServiceName, Version, a.logger)
	for _, c := range a.registry.List() {
		srv.AddCapability(c)
	}
	srv.AddOrchestrator(a.orch)
	return srv
}

// Close releases every resource opened by New.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		a.shutdown = nil
	}
	return stderrors.Join(errs...)
}

func (a *App) addCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// Index builds the knowledge collection from cfg.Knowledge.CorpusPath.
func Index(ctx context.Context, cfg *config.Config, logger *slog.Logger) (knowledge.Stats, error) {
	store, storeCloser, err := NewVectorStore(cfg.Knowledge)
	if err != nil {
		return knowledge.Stats{}, err
	}
	if storeCloser != nil {
		defer storeCloser.Close()
	}
	embedder, closers, err := NewEmbedder(ctx, cfg)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return knowledge.Stats{}, err
	}
	_, stats, err := knowledge.BuildFromFile(ctx, cfg.Knowledge, store, embedder, logger)
	return stats, err
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability holds the registry of named capabilities the
// orchestrators may consult.
//
// Capabilities are registered once at startup. A factory that fails leaves a
// record of the failure behind and the capability is omitted; startup never
// aborts. After construction the registry is only read.
package capability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/telemetry"
)

// Factory builds a capability. A returned error marks it unavailable.
type Factory func(ctx context.Context) (core.Capability, error)

// Status describes one registration attempt.
type Status struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
}

type entry struct {
	name   string
	cap    core.Capability
	reason string
}

func (e *entry) available() bool { return e.cap != nil }

// Registry is an ordered, name-keyed set of capabilities.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[string]*entry
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics records invocation counts and latency.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		byName: make(map[string]*entry),
		logger: slog.Default(),
		tracer: otel.Tracer(telemetry.TracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register runs factory and records the outcome under name. It reports
// whether the capability is available. Duplicate names are rejected and the
// first registration wins.
func (r *Registry) Register(ctx context.Context, name string, factory Factory) bool {
	if r.exists(name) {
		r.logger.WarnContext(ctx, "duplicate capability ignored", slog.String("capability", name))
		return false
	}

	c, err := build(ctx, factory)
	e := &entry{name: name}
	if err != nil {
		e.reason = err.Error()
		r.logger.WarnContext(ctx, "capability unavailable, omitting",
			slog.String("capability", name),
			slog.String("error", err.Error()),
		)
	} else {
		e.cap = c
		r.logger.InfoContext(ctx, "capability registered", slog.String("capability", name))
	}
	return r.insert(ctx, e)
}

// build runs factory, turning a panic into an error.
func build(ctx context.Context, factory Factory) (c core.Capability, err error) {
	if factory == nil {
		return nil, fmt.Errorf("no factory")
	}
	defer func() {
		if p := recover(); p != nil {
			c, err = nil, fmt.Errorf("factory panicked: %v", p)
		}
	}()
	c, err = factory(ctx)
	if err == nil && c == nil {
		err = fmt.Errorf("factory returned no capability")
	}
	return c, err
}

// Add registers an already built capability under its own name.
func (r *Registry) Add(c core.Capability) bool {
	if c == nil {
		return false
	}
	return r.Register(context.Background(), c.Name(), func(context.Context) (core.Capability, error) {
		return c, nil
	})
}

func (r *Registry) exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

func (r *Registry) insert(ctx context.Context, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[e.name]; ok {
		r.logger.WarnContext(ctx, "duplicate capability ignored", slog.String("capability", e.name))
		return false
	}
	r.entries = append(r.entries, e)
	r.byName[e.name] = e
	return e.available()
}

// List returns the available capabilities in registration order.
func (r *Registry) List() []core.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Capability, 0, len(r.entries))
	for _, e := range r.entries {
		if e.available() {
			out = append(out, e.cap)
		}
	}
	return out
}

// Names returns the names of the available capabilities in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if e.available() {
			out = append(out, e.name)
		}
	}
	return out
}

// Lookup returns the available capability registered under name.
// Unknown and unavailable names yield a NOT_FOUND error.
func (r *Registry) Lookup(name string) (core.Capability, error) {
	r.mu.RLock()
	e, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok || !e.available() {
		err := errors.New(errors.CodeNotFound, fmt.Sprintf("capability %q not found", name), nil).
			WithContext("capability", name).
			WithRecoverable(true)
		if ok {
			err = err.WithContext("reason", e.reason)
		}
		return nil, err
	}
	return e.cap, nil
}

// Available reports whether name is registered and available.
func (r *Registry) Available(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Invoke looks up name and runs it with input. Failures are returned as
// TOOL_FAILURE errors wrapping the capability's own error.
func (r *Registry) Invoke(ctx context.Context, name, input string) (core.ContextFragment, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return core.ContextFragment{}, err
	}

	ctx, span := r.tracer.Start(ctx, "sabia.capability.invoke")
	defer span.End()

	start := time.Now()
	out, err := c.Invoke(ctx, input)
	durationMs := float64(time.Since(start).Microseconds()) / 1000

	span.SetAttributes(telemetry.CapabilityAttributes(name, durationMs, err == nil)...)
	r.metrics.RecordCapability(ctx, name, durationMs, err == nil)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.metrics.RecordError(ctx, err, "capability")
		return core.ContextFragment{Source: name}, errors.New(errors.CodeToolFailure, fmt.Sprintf("capability %q failed", name), err).
			WithContext("capability", name).
			WithAttribute(telemetry.AttrCapabilityName, name).
			WithRecoverable(true)
	}
	return core.ContextFragment{Source: name, Content: out}, nil
}

// Status returns every registration attempt in order.
func (r *Registry) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		s := Status{Name: e.name, Available: e.available(), Reason: e.reason}
		if e.available() {
			s.Description = e.cap.Description()
		}
		out = append(out, s)
	}
	return out
}

// Describe renders the available capabilities as "name: description" lines.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, e := range r.entries {
		if !e.available() {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", e.name, e.cap.Description())
	}
	return strings.TrimRight(b.String(), "\n")
}

// RegisterHealth exposes each registration as a health checker. Omitted
// capabilities are unhealthy. Available ones are healthy unless they check
// themselves, as web_search does through its circuit breaker.
func (r *Registry) RegisterHealth(p core.HealthCheckProvider) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		var checker core.HealthChecker
		switch hc, ok := e.cap.(core.HealthChecker); {
		case !e.available():
			checker = core.NewSimpleHealthChecker(core.HealthUnhealthy, e.reason)
		case ok:
			checker = hc
		default:
			checker = core.NewSimpleHealthChecker(core.HealthHealthy, "available")
		}
		p.RegisterChecker("capability:"+e.name, checker)
	}
}

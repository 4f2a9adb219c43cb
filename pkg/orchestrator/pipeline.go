// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/synth"
	"github.com/jllopis/sabia/pkg/synth/prompts"
	"github.com/jllopis/sabia/pkg/telemetry"
)

// Pipeline consults at most one fixed capability, unconditionally, and
// synthesizes the answer from its output.
type Pipeline struct {
	synth      *synth.Synthesizer
	caps       Capabilities
	capability string
	require    bool
	logger     *slog.Logger
	metrics    *telemetry.Metrics
	emitter    core.EventEmitter
	tracer     trace.Tracer
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCapability fixes the capability consulted for every question.
func WithCapability(caps Capabilities, name string) PipelineOption {
	return func(p *Pipeline) {
		p.caps = caps
		p.capability = name
	}
}

// RequireCapability makes an unavailable capability answer with the fixed
// apology instead of falling back to a model-only answer.
func RequireCapability() PipelineOption {
	return func(p *Pipeline) { p.require = true }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithPipelineMetrics sets the metrics recorder.
func WithPipelineMetrics(m *telemetry.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithPipelineEmitter sets the event emitter.
func WithPipelineEmitter(e core.EventEmitter) PipelineOption {
	return func(p *Pipeline) {
		if e != nil {
			p.emitter = e
		}
	}
}

// NewPipeline creates a pipeline. Without WithCapability it answers from the
// model alone.
func NewPipeline(s *synth.Synthesizer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		synth:   s,
		logger:  slog.Default(),
		emitter: core.NoopEventEmitter{},
		tracer:  otel.Tracer(telemetry.TracerName),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer implements core.Orchestrator.
func (p *Pipeline) Answer(ctx context.Context, q core.Question) core.Answer {
	ctx, span := p.tracer.Start(ctx, "sabia.pipeline.answer")
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrPolicy, PolicyPipeline))
	reqID, _ := core.RequestID(ctx)
	span.SetAttributes(telemetry.QuestionAttributes(reqID, q.Text, 0)...)

	ans := p.answer(ctx, q)

	span.SetAttributes(attribute.Bool(telemetry.AttrDegraded, ans.Error))
	if ans.Cause != nil {
		span.SetAttributes(attribute.String(telemetry.AttrErrorCode, ans.Cause.Code))
		p.emitter.Emit(ctx, core.NewEvent(ctx, core.EventDegraded, 0, map[string]any{
			"code": ans.Cause.Code,
		}))
	}
	p.metrics.RecordAnswer(ctx, PolicyPipeline, ans.Error)
	return ans
}

func (p *Pipeline) answer(ctx context.Context, q core.Question) core.Answer {
	pack := p.synth.Pack()
	if q.Empty() {
		return core.Degraded(pack.Messages.InvalidQuestion, string(errors.CodeInvalidInput), "empty question")
	}

	if p.capability == "" || p.caps == nil {
		return p.synth.Synthesize(ctx, q, nil)
	}

	if _, err := p.caps.Lookup(p.capability); err != nil {
		if p.require {
			p.logger.WarnContext(ctx, "required capability unavailable",
				slog.String("capability", p.capability),
			)
			return core.Degraded(pack.Messages.SearchNotConfigured, string(errors.CodeCapabilityUnavailable), err.Error())
		}
		p.logger.WarnContext(ctx, "capability unavailable, answering from the model alone",
			slog.String("capability", p.capability),
		)
		ans := p.synth.Synthesize(ctx, q, nil)
		if !ans.Error {
			ans.Error = true
			ans.Cause = &core.Cause{Code: string(errors.CodeCapabilityUnavailable), Message: err.Error()}
		}
		return ans
	}

	frag, err := p.caps.Invoke(ctx, p.capability, q.Text)
	if err != nil {
		se := errors.AsSabiaError(err)
		p.metrics.RecordError(ctx, err, "pipeline")
		p.logger.WarnContext(ctx, "capability failed",
			slog.String("capability", p.capability),
			slog.String("code", string(errors.RootCode(err))),
			slog.String("error", err.Error()),
		)
		text := prompts.Render(pack.Messages.SearchError, "detail", se.Detail())
		return core.Degraded(text, string(errors.RootCode(err)), err.Error())
	}

	return p.synth.Synthesize(ctx, q, []core.ContextFragment{frag})
}

var _ core.Orchestrator = (*Pipeline)(nil)

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package synth turns a question and its retrieved context into one answer
// with a single model call.
package synth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/pkg/synth/prompts"
	"github.com/jllopis/sabia/pkg/telemetry"
)

// Creativity presets.
const (
	TemperaturePrecise        = 0.0
	TemperatureConversational = 0.7
)

const truncationMark = " [...]"

// Synthesizer builds the answer prompt and calls the model once.
type Synthesizer struct {
	provider         llm.Provider
	model            string
	temperature      float64
	pack             *prompts.Pack
	counter          TokenCounter
	maxContextTokens int
	logger           *slog.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the model name passed to the provider.
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithTemperature sets creativity; it is clamped to [0,1].
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = llm.ClampTemperature(t) }
}

// WithPack sets the prompt pack.
func WithPack(p *prompts.Pack) Option {
	return func(s *Synthesizer) {
		if p != nil {
			s.pack = p
		}
	}
}

// WithTokenCounter sets the counter used to bound the context.
func WithTokenCounter(c TokenCounter) Option {
	return func(s *Synthesizer) {
		if c != nil {
			s.counter = c
		}
	}
}

// WithMaxContextTokens bounds the context block. Zero disables the bound.
func WithMaxContextTokens(n int) Option {
	return func(s *Synthesizer) { s.maxContextTokens = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Synthesizer with conversational creativity and the default
// pt-BR pack.
func New(provider llm.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider:    provider,
		temperature: TemperatureConversational,
		pack:        prompts.Default(),
		counter:     WordCounter{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pack returns the prompt pack in use.
func (s *Synthesizer) Pack() *prompts.Pack { return s.pack }

// Synthesize produces the answer. It never retries; a model failure yields a
// degraded answer embedding the failure detail.
func (s *Synthesizer) Synthesize(ctx context.Context, q core.Question, fragments []core.ContextFragment) core.Answer {
	ctx, span := otel.Tracer(telemetry.TracerName).Start(ctx, "sabia.synthesize")
	defer span.End()
	span.SetAttributes(
		attribute.Int(telemetry.AttrFragments, len(fragments)),
		attribute.Float64(telemetry.AttrLLMTemperature, s.temperature),
	)

	prompt := s.Prompt(q, fragments)
	start := time.Now()
	text, err := llm.Complete(ctx, s.provider, s.model, prompt, s.temperature)
	if err != nil {
		se := llm.ClassifyError(err, "llm", errors.CodeLLMError)
		span.RecordError(se)
		span.SetStatus(codes.Error, se.Message)
		s.logger.WarnContext(ctx, "model call failed",
			slog.String("code", string(se.Code)),
			slog.String("error", err.Error()),
		)
		msg := prompts.Render(s.pack.Messages.ModelError, "detail", se.Detail())
		return core.Degraded(msg, string(se.Code), se.Error())
	}

	s.logger.DebugContext(ctx, "answer synthesized",
		slog.Int("fragments", len(fragments)),
		slog.Duration("duration", time.Since(start)),
	)
	return core.Answer{Text: strings.TrimSpace(text)}
}

// Prompt renders the full prompt. Each fragment goes in its own delimited
// block, in order, after the context has been bounded.
func (s *Synthesizer) Prompt(q core.Question, fragments []core.ContextFragment) string {
	var b strings.Builder
	fragments = s.bound(fragments)

	if len(fragments) == 0 {
		b.WriteString(strings.TrimSpace(s.pack.PlainDirective))
		if b.Len() == 0 {
			b.WriteString(strings.TrimSpace(s.pack.Directive))
		}
		b.WriteString("\n")
	} else {
		b.WriteString(strings.TrimSpace(s.pack.Directive))
		b.WriteString("\n")
		b.WriteString(s.pack.ContextHeader)
		b.WriteString("\n")
		for _, f := range fragments {
			b.WriteString(prompts.Render(s.pack.FragmentOpen, "source", f.Source))
			b.WriteString("\n")
			b.WriteString(strings.TrimSpace(f.Content))
			b.WriteString("\n")
			b.WriteString(prompts.Render(s.pack.FragmentClose, "source", f.Source))
			b.WriteString("\n")
		}
	}

	b.WriteString(s.pack.QuestionHeader)
	b.WriteString(q.Text)
	b.WriteString("\n")
	b.WriteString(s.pack.AnswerHeader)
	return b.String()
}

// bound keeps fragments in order until MaxContextTokens is spent; the
// fragment crossing the limit is cut on a word boundary and later ones are
// dropped.
func (s *Synthesizer) bound(fragments []core.ContextFragment) []core.ContextFragment {
	if s.maxContextTokens <= 0 {
		return fragments
	}
	remaining := s.maxContextTokens
	out := make([]core.ContextFragment, 0, len(fragments))
	for _, f := range fragments {
		if remaining <= 0 {
			s.logger.Debug("context fragment dropped", slog.String("source", f.Source))
			continue
		}
		n := s.counter.Count(f.Content)
		if n <= remaining {
			out = append(out, f)
			remaining -= n
			continue
		}
		cut, _ := Truncate(s.counter, f.Content, remaining)
		if cut != "" {
			out = append(out, core.ContextFragment{Source: f.Source, Content: cut + truncationMark})
		}
		remaining = 0
	}
	return out
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/pkg/synth"
	"github.com/jllopis/sabia/pkg/synth/prompts"
	"github.com/jllopis/sabia/pkg/telemetry"
)

// State is a reasoning loop state.
type State string

const (
	StateAwaitingThought     State = "AWAITING_THOUGHT"
	StateAction              State = "ACTION"
	StateAwaitingObservation State = "AWAITING_OBSERVATION"
	StateFinalAnswer         State = "FINAL_ANSWER"
	StateDone                State = "DONE"
	StateMaxIterations       State = "MAX_ITERATIONS_EXCEEDED"
)

// DefaultMaxIterations bounds the loop when no limit is configured.
const DefaultMaxIterations = 5

// Reasoner runs a bounded Thought/Action/Observation loop over the whole
// capability registry.
type Reasoner struct {
	provider      llm.Provider
	caps          Capabilities
	model         string
	temperature   float64
	maxIterations int
	pack          *prompts.Pack
	logger        *slog.Logger
	metrics       *telemetry.Metrics
	emitter       core.EventEmitter
	tracer        trace.Tracer
}

// ReasonerOption configures a Reasoner.
type ReasonerOption func(*Reasoner)

// WithMaxIterations bounds the number of model turns.
func WithMaxIterations(n int) ReasonerOption {
	return func(r *Reasoner) {
		if n > 0 {
			r.maxIterations = n
		}
	}
}

// WithReasonerModel sets the model name.
func WithReasonerModel(model string) ReasonerOption {
	return func(r *Reasoner) { r.model = model }
}

// WithReasonerTemperature sets creativity, clamped to [0,1].
func WithReasonerTemperature(t float64) ReasonerOption {
	return func(r *Reasoner) { r.temperature = llm.ClampTemperature(t) }
}

// WithReasonerPack sets the prompt pack.
func WithReasonerPack(p *prompts.Pack) ReasonerOption {
	return func(r *Reasoner) {
		if p != nil {
			r.pack = p
		}
	}
}

// WithReasonerLogger sets the logger.
func WithReasonerLogger(l *slog.Logger) ReasonerOption {
	return func(r *Reasoner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReasonerMetrics sets the metrics recorder.
func WithReasonerMetrics(m *telemetry.Metrics) ReasonerOption {
	return func(r *Reasoner) { r.metrics = m }
}

// WithReasonerEmitter sets the event emitter.
func WithReasonerEmitter(e core.EventEmitter) ReasonerOption {
	return func(r *Reasoner) {
		if e != nil {
			r.emitter = e
		}
	}
}

// NewReasoner creates a reasoner with precise creativity.
func NewReasoner(provider llm.Provider, caps Capabilities, opts ...ReasonerOption) *Reasoner {
	r := &Reasoner{
		provider:      provider,
		caps:          caps,
		temperature:   synth.TemperaturePrecise,
		maxIterations: DefaultMaxIterations,
		pack:          prompts.Default(),
		logger:        slog.Default(),
		emitter:       core.NoopEventEmitter{},
		tracer:        otel.Tracer(telemetry.TracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run is the state of one Answer call.
type run struct {
	scratchpad strings.Builder
	trace      []core.TraceStep
	iterations int
}

func (rn *run) record(iteration int, state State, step Step, observation string) {
	rn.trace = append(rn.trace, core.TraceStep{
		Iteration:   iteration,
		State:       string(state),
		Thought:     step.Thought,
		Action:      step.Action,
		ActionInput: step.ActionInput,
		Observation: observation,
	})
}

// Answer implements core.Orchestrator.
func (r *Reasoner) Answer(ctx context.Context, q core.Question) core.Answer {
	ctx, span := r.tracer.Start(ctx, "sabia.reasoner.answer")
	defer span.End()
	reqID, _ := core.RequestID(ctx)
	span.SetAttributes(attribute.String(telemetry.AttrPolicy, PolicyReasoner))
	span.SetAttributes(telemetry.QuestionAttributes(reqID, q.Text, 0)...)

	rn := &run{}
	ans := r.loop(ctx, q, rn)
	ans.Trace = rn.trace

	span.SetAttributes(telemetry.ReasonerTurnAttributes(rn.iterations, r.maxIterations, lastState(rn.trace))...)
	span.SetAttributes(attribute.Bool(telemetry.AttrDegraded, ans.Error))
	if ans.Cause != nil {
		span.SetAttributes(attribute.String(telemetry.AttrErrorCode, ans.Cause.Code))
		r.emitter.Emit(ctx, core.NewEvent(ctx, core.EventDegraded, rn.iterations, map[string]any{
			"code": ans.Cause.Code,
		}))
	}
	r.metrics.RecordIterations(ctx, rn.iterations)
	r.metrics.RecordAnswer(ctx, PolicyReasoner, ans.Error)
	return ans
}

func (r *Reasoner) loop(ctx context.Context, q core.Question, rn *run) core.Answer {
	if q.Empty() {
		return core.Degraded(r.pack.Messages.InvalidQuestion, string(errors.CodeInvalidInput), "empty question")
	}

	names := r.caps.Names()
	described := r.caps.Describe()
	if described == "" {
		described = r.pack.NoCapabilities
	}

	for i := 1; i <= r.maxIterations; i++ {
		if ctx.Err() != nil {
			return r.exhausted(ctx, rn, i, "deadline reached")
		}
		rn.iterations = i
		rn.record(i, StateAwaitingThought, Step{}, "")

		prompt := prompts.Render(r.pack.React,
			"capabilities", described,
			"names", strings.Join(names, ", "),
			"question", q.Text,
			"scratchpad", rn.scratchpad.String(),
		)
		output, err := llm.Complete(ctx, r.provider, r.model, prompt, r.temperature, StopSequence)
		if err != nil {
			if stderrors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return r.exhausted(ctx, rn, i, "deadline reached")
			}
			se := llm.ClassifyError(err, "llm", errors.CodeLLMError)
			r.metrics.RecordError(ctx, se, "reasoner")
			r.logger.WarnContext(ctx, "model call failed",
				slog.Int("iteration", i),
				slog.String("code", string(se.Code)),
				slog.String("error", err.Error()),
			)
			text := prompts.Render(r.pack.Messages.ModelError, "detail", se.Detail())
			return core.Degraded(text, string(se.Code), se.Error())
		}

		step, perr := ParseStep(output)
		if perr != nil {
			detail := errors.AsSabiaError(perr).Message
			obs := prompts.Render(r.pack.Messages.ParseError, "detail", detail)
			r.logger.DebugContext(ctx, "unparsable model reply", slog.Int("iteration", i), slog.String("error", detail))
			r.observe(ctx, rn, i, strings.TrimSpace(output), Step{}, obs)
			continue
		}

		if step.Thought != "" {
			r.emitter.Emit(ctx, core.NewEvent(ctx, core.EventThought, i, map[string]any{"thought": step.Thought}))
		}

		if step.Final {
			rn.record(i, StateFinalAnswer, step, "")
			rn.record(i, StateDone, Step{}, "")
			r.emitter.Emit(ctx, core.NewEvent(ctx, core.EventFinalAnswer, i, map[string]any{"answer": step.FinalAnswer}))
			return core.Answer{Text: step.FinalAnswer}
		}

		rn.record(i, StateAction, step, "")
		r.emitter.Emit(ctx, core.NewEvent(ctx, core.EventAction, i, map[string]any{
			"action": step.Action,
			"input":  step.ActionInput,
		}))
		obs := r.act(ctx, step, names)
		r.observe(ctx, rn, i, formatTurn(step), step, obs)
	}

	return r.exhausted(ctx, rn, r.maxIterations, "iteration limit reached")
}

// act invokes the named capability and returns the observation text.
func (r *Reasoner) act(ctx context.Context, step Step, names []string) string {
	if _, err := r.caps.Lookup(step.Action); err != nil {
		return prompts.Render(r.pack.Messages.UnknownCapability,
			"name", step.Action,
			"names", strings.Join(names, ", "),
		)
	}
	frag, err := r.caps.Invoke(ctx, step.Action, step.ActionInput)
	if err != nil {
		r.metrics.RecordError(ctx, err, "reasoner")
		return prompts.Render(r.pack.Messages.CapabilityError,
			"name", step.Action,
			"detail", errors.AsSabiaError(err).Detail(),
		)
	}
	return frag.Content
}

func (r *Reasoner) observe(ctx context.Context, rn *run, i int, turn string, step Step, obs string) {
	rn.record(i, StateAwaitingObservation, step, obs)
	r.emitter.Emit(ctx, core.NewEvent(ctx, core.EventObservation, i, map[string]any{"observation": obs}))
	rn.scratchpad.WriteString(turn)
	rn.scratchpad.WriteString("\nObservation: ")
	rn.scratchpad.WriteString(obs)
	rn.scratchpad.WriteString("\n")
}

func (r *Reasoner) exhausted(ctx context.Context, rn *run, i int, reason string) core.Answer {
	rn.record(i, StateMaxIterations, Step{}, "")
	r.logger.WarnContext(ctx, "reasoner gave up",
		slog.Int("iterations", rn.iterations),
		slog.Int("max_iterations", r.maxIterations),
		slog.String("reason", reason),
	)
	return core.Degraded(r.pack.Messages.NoAnswer, string(errors.CodeMaxIterations),
		fmt.Sprintf("%s after %d iterations", reason, rn.iterations))
}

func formatTurn(step Step) string {
	var b strings.Builder
	if step.Thought != "" {
		fmt.Fprintf(&b, "Thought: %s\n", step.Thought)
	}
	fmt.Fprintf(&b, "Action: %s\nAction Input: %s", step.Action, step.ActionInput)
	return b.String()
}

func lastState(trace []core.TraceStep) string {
	if len(trace) == 0 {
		return ""
	}
	return trace[len(trace)-1].State
}

var _ core.Orchestrator = (*Reasoner)(nil)

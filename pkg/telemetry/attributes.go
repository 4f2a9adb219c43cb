// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Sabia telemetry.
const (
	// Request attributes
	AttrRequestID = "sabia.request.id"
	AttrQuestion  = "sabia.question"

	// Orchestrator attributes
	AttrPolicy    = "sabia.orchestrator.policy"
	AttrDegraded  = "sabia.answer.degraded"
	AttrErrorCode = "sabia.error.code"
	AttrComponent = "sabia.component"

	// Reasoner attributes
	AttrIteration     = "sabia.reasoner.iteration"
	AttrMaxIterations = "sabia.reasoner.max_iterations"
	AttrState         = "sabia.reasoner.state"

	// Capability attributes
	AttrCapabilityName       = "sabia.capability.name"
	AttrCapabilitySuccess    = "sabia.capability.success"
	AttrCapabilityDurationMs = "sabia.capability.duration_ms"

	// Synthesizer attributes
	AttrFragments     = "sabia.synth.fragments"
	AttrContextTokens = "sabia.synth.context_tokens"

	// LLM attributes (standard gen_ai conventions)
	AttrLLMModel       = "gen_ai.request.model"
	AttrLLMTemperature = "gen_ai.request.temperature"
)

// CapabilityAttributes returns attributes for a capability invocation span.
func CapabilityAttributes(name string, durationMs float64, success bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCapabilityName, name),
		attribute.Float64(AttrCapabilityDurationMs, durationMs),
		attribute.Bool(AttrCapabilitySuccess, success),
	}
}

// ReasonerTurnAttributes returns attributes for a single reasoning turn.
func ReasonerTurnAttributes(iteration, maxIter int, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrIteration, iteration),
		attribute.Int(AttrMaxIterations, maxIter),
	}
	if state != "" {
		attrs = append(attrs, attribute.String(AttrState, state))
	}
	return attrs
}

// QuestionAttributes returns attributes describing an incoming question.
// The question text is truncated to maxLen runes.
func QuestionAttributes(requestID, question string, maxLen int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrQuestion, truncate(question, maxLen)),
	}
	if requestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, requestID))
	}
	return attrs
}

func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 200
	}
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

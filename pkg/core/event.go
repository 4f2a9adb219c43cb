// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"log/slog"
	"time"
)

// EventType identifies a semantic event emitted while answering a question.
type EventType string

const (
	EventThought     EventType = "reasoner.thought"
	EventAction      EventType = "reasoner.action"
	EventObservation EventType = "reasoner.observation"
	EventFinalAnswer EventType = "reasoner.final_answer"
	EventDegraded    EventType = "answer.degraded"
)

// Event captures a semantic streaming/logging event.
type Event struct {
	Type      EventType
	RequestID string
	Iteration int
	Timestamp time.Time
	Payload   map[string]any
}

// EventEmitter receives semantic events.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// NoopEventEmitter is a default no-op implementation.
type NoopEventEmitter struct{}

// Emit implements EventEmitter.
func (NoopEventEmitter) Emit(_ context.Context, _ Event) {}

// LogEventEmitter writes events as debug records.
type LogEventEmitter struct {
	Logger *slog.Logger
}

// Emit implements EventEmitter.
func (e LogEventEmitter) Emit(ctx context.Context, event Event) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{"request_id", event.RequestID, "iteration", event.Iteration}
	for k, v := range event.Payload {
		attrs = append(attrs, k, v)
	}
	logger.DebugContext(ctx, string(event.Type), attrs...)
}

// NewEvent builds a default event with timestamp. The request id is taken
// from ctx when present.
func NewEvent(ctx context.Context, eventType EventType, iteration int, payload map[string]any) Event {
	id, _ := RequestID(ctx)
	return Event{
		Type:      eventType,
		RequestID: id,
		Iteration: iteration,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/jllopis/sabia/pkg/core"
	serrors "github.com/jllopis/sabia/pkg/errors"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none", Config{Exporter: "none"}, false},
		{"stdout", Config{Exporter: "stdout"}, false},
		{"otlp without endpoint", Config{Exporter: "otlp"}, true},
		{"unknown", Config{Exporter: "zipkin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Init("sabia-test", "v0.0.1", tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Init() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if err := shutdown(context.Background()); err != nil {
				t.Errorf("Shutdown failed: %v", err)
			}
		})
	}
}

func TestConfigureSlogInjectsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSlogHandler(&buf, "debug", "json"))

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "hello")
	span.End()

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if entry["trace_id"] != span.SpanContext().TraceID().String() {
		t.Errorf("expected trace_id in log entry, got %v", entry)
	}
	if entry["span_id"] == nil {
		t.Errorf("expected span_id in log entry")
	}
}

func TestConfigureSlogInjectsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newSlogHandler(&buf, "info", "text"))

	ctx := core.WithRequestID(context.Background(), "req-42")
	logger.InfoContext(ctx, "answered")
	logger.DebugContext(ctx, "hidden")
	logger.InfoContext(ctx, "explicit", slog.String(LogKeyRequestID, "other"))

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") {
		t.Errorf("expected request id in %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record logged at info level")
	}
	if strings.Count(out, "request_id=") != 2 {
		t.Errorf("explicit request id must not be duplicated: %q", out)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestQuestionAttributesTruncation(t *testing.T) {
	attrs := QuestionAttributes("req-1", strings.Repeat("á", 300), 10)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if got := attrs[0].Value.AsString(); got != strings.Repeat("á", 10)+"..." {
		t.Errorf("unexpected truncation %q", got)
	}
}

func TestReasonerTurnAttributes(t *testing.T) {
	attrs := ReasonerTurnAttributes(2, 5, "")
	if len(attrs) != 2 {
		t.Errorf("expected state to be omitted when empty")
	}
}

func TestMetricsRecord(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	ctx := context.Background()
	m.RecordCapability(ctx, "web_search", 12.5, true)
	m.RecordIterations(ctx, 3)
	m.RecordAnswer(ctx, "reasoner", false)
	m.RecordError(ctx, serrors.New(serrors.CodeRateLimit, "quota", nil), "search")
	m.RecordError(ctx, errors.New("plain"), "llm")
	m.RecordError(ctx, nil, "llm")

	var nilMetrics *Metrics
	nilMetrics.RecordCapability(ctx, "x", 1, false)
	nilMetrics.RecordAnswer(ctx, "pipeline", true)
}

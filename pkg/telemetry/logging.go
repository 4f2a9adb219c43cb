// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/sabia/pkg/core"
)

// Keys added to every record logged with a request context.
const (
	LogKeyRequestID = "request_id"
	LogKeyTraceID   = "trace_id"
	LogKeySpanID    = "span_id"
)

// ConfigureSlog installs and returns the process logger. format is "json" or
// "text"; level is one of debug, info, warn, error. Records logged with a
// request context carry its request id and span.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	logger := slog.New(newSlogHandler(output, level, format))
	slog.SetDefault(logger)
	return logger
}

func newSlogHandler(output io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return contextHandler{slog.NewJSONHandler(output, opts)}
	}
	return contextHandler{slog.NewTextHandler(output, opts)}
}

// contextHandler copies request correlation from the context into records.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		for _, attr := range correlation(ctx) {
			if !hasAttr(record, attr.Key) {
				record.AddAttrs(attr)
			}
		}
	}
	return h.Handler.Handle(ctx, record)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

func correlation(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if id, ok := core.RequestID(ctx); ok {
		attrs = append(attrs, slog.String(LogKeyRequestID, id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String(LogKeyTraceID, sc.TraceID().String()),
			slog.String(LogKeySpanID, sc.SpanID().String()),
		)
	}
	return attrs
}

func parseLogLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func hasAttr(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		found = attr.Key == key
		return !found
	})
	return found
}

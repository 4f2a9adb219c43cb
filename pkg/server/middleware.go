// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/telemetry"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(HeaderRequestID); id != "" {
			ctx = core.WithRequestID(ctx, id)
		}
		ctx, id := core.EnsureRequestID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func tracing() gin.HandlerFunc {
	tracer := otel.Tracer(telemetry.TracerName)
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := tracer.Start(c.Request.Context(), fmt.Sprintf("HTTP %s %s", c.Request.Method, route))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		id, _ := core.RequestID(ctx)
		span.SetAttributes(
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", c.Writer.Status()),
			attribute.String(telemetry.AttrRequestID, id),
		)
		if c.Writer.Status() >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		id, _ := core.RequestID(c.Request.Context())
		logger.InfoContext(c.Request.Context(), "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", id),
			slog.String("degraded", c.Writer.Header().Get(HeaderDegraded)),
		)
	}
}

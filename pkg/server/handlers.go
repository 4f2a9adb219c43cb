// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jllopis/sabia/pkg/capability"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/resilience"
)

type chatRequest struct {
	Question *string `json:"question"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type readyResponse struct {
	Status       core.HealthStatus   `json:"status"`
	Components   []core.HealthResult `json:"components,omitempty"`
	Capabilities []capability.Status `json:"capabilities"`
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": s.pack.Messages.Banner})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ready(c *gin.Context) {
	resp := readyResponse{Status: core.HealthHealthy, Capabilities: []capability.Status{}}
	if s.health != nil {
		resp.Components, resp.Status = s.health.CheckAll(c.Request.Context())
	}
	if s.statuses != nil {
		resp.Capabilities = s.statuses.Status()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Question == nil {
		s.logger.InfoContext(ctx, "invalid chat request", slog.Any("error", err))
		s.reply(c, core.Degraded(s.pack.Messages.InvalidQuestion, string(errors.CodeInvalidInput), "malformed request body"))
		return
	}

	ans, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: s.timeout},
		func(ctx context.Context) (core.Answer, error) {
			return s.orch.Answer(ctx, core.Question{Text: *req.Question}), nil
		})
	if err != nil {
		se := errors.AsSabiaError(err)
		s.metrics.RecordError(ctx, se, "server")
		s.logger.WarnContext(ctx, "chat request timed out", slog.String("code", string(se.Code)))
		ans = core.Degraded(s.pack.Messages.NoAnswer, string(se.Code), se.Error())
	}
	s.reply(c, ans)
}

func (s *Server) reply(c *gin.Context, ans core.Answer) {
	if ans.Error {
		c.Header(HeaderDegraded, "true")
		if ans.Cause != nil {
			c.Header(HeaderErrorCode, ans.Cause.Code)
			s.logger.InfoContext(c.Request.Context(), "degraded answer",
				slog.String("code", ans.Cause.Code),
				slog.String("cause", ans.Cause.Message),
			)
		}
	}
	c.JSON(http.StatusOK, chatResponse{Answer: ans.Text})
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
)

// AskTool is the MCP tool that answers a question with the orchestrator.
const AskTool = "ask"

// Server serves capabilities and the orchestrator as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates an MCP server.
func NewServer(name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		logger:    logger,
	}
}

// AddCapability registers c as a tool taking a single "input" string.
func (s *Server) AddCapability(c core.Capability) {
	tool := mcp.NewTool(c.Name(),
		mcp.WithDescription(c.Description()),
		mcp.WithString("input", mcp.Required(), mcp.Description("free-form capability input")),
	)
	s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := c.Invoke(ctx, stringArg(req, "input"))
		if err != nil {
			se := errors.AsSabiaError(err)
			s.logger.WarnContext(ctx, "mcp capability failed",
				slog.String("capability", c.Name()),
				slog.String("code", string(se.Code)),
			)
			return errorResult(se.Detail()), nil
		}
		return textResult(out), nil
	})
}

// AddOrchestrator registers the ask tool. Degraded answers are still
// returned as text; they are flagged as tool errors.
func (s *Server) AddOrchestrator(orch core.Orchestrator) {
	tool := mcp.NewTool(AskTool,
		mcp.WithDescription("Answer a question, consulting the available capabilities."),
		mcp.WithString("question", mcp.Required(), mcp.Description("the question to answer")),
	)
	s.mcpServer.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ans := orch.Answer(ctx, core.Question{Text: stringArg(req, "question")})
		if ans.Error {
			return errorResult(ans.Text), nil
		}
		return textResult(ans.Text), nil
	})
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin and stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func stringArg(req mcp.CallToolRequest, key string) string {
	args, _ := req.Params.Arguments.(map[string]any)
	v, _ := args[key].(string)
	return v
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	r := textResult(text)
	r.IsError = true
	return r
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
)

// ToolCaller executes MCP tools.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// RemoteCapability exposes one remote MCP tool as a capability.
type RemoteCapability struct {
	name   string
	tool   mcp.Tool
	caller ToolCaller
}

var _ core.Capability = (*RemoteCapability)(nil)

// NewRemoteCapability adapts tool. A non-empty prefix namespaces the
// capability name as prefix.tool.
func NewRemoteCapability(prefix string, tool mcp.Tool, caller ToolCaller) (*RemoteCapability, error) {
	if tool.Name == "" {
		return nil, errors.New(errors.CodeInvalidInput, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, errors.New(errors.CodeInvalidInput, "tool caller is required", nil)
	}
	name := tool.Name
	if prefix != "" {
		name = prefix + "." + tool.Name
	}
	return &RemoteCapability{name: name, tool: tool, caller: caller}, nil
}

// Discover lists the tools of a server and adapts each of them.
func Discover(ctx context.Context, prefix string, c *Client) ([]*RemoteCapability, error) {
	tools, err := c.ListTools(ctx)
	if err != nil {
		return nil, llm.ClassifyError(err, "mcp", errors.CodeProviderUnavailable)
	}
	out := make([]*RemoteCapability, 0, len(tools))
	for _, tool := range tools {
		rc, err := NewRemoteCapability(prefix, tool, c)
		if err != nil {
			continue
		}
		out = append(out, rc)
	}
	return out, nil
}

// Name implements core.Capability.
func (r *RemoteCapability) Name() string { return r.name }

// Description implements core.Capability.
func (r *RemoteCapability) Description() string {
	if r.tool.Description != "" {
		return r.tool.Description
	}
	return "remote tool " + r.tool.Name
}

// Invoke maps the free-form input onto the tool arguments and returns the
// text content of the result.
func (r *RemoteCapability) Invoke(ctx context.Context, input string) (string, error) {
	args := toolArgs(r.tool, input)
	for _, key := range r.tool.InputSchema.Required {
		if _, ok := args[key]; !ok {
			return "", errors.New(errors.CodeInvalidInput, fmt.Sprintf("missing required field %q", key), nil).
				WithContext("tool", r.tool.Name)
		}
	}

	result, err := r.caller.CallTool(ctx, r.tool.Name, args)
	if err != nil {
		return "", llm.ClassifyError(err, "mcp", errors.CodeToolFailure)
	}
	if result == nil {
		return "", errors.New(errors.CodeToolFailure, "empty mcp result", nil)
	}
	text := resultText(result)
	if result.IsError {
		return "", errors.New(errors.CodeToolFailure, text, nil).WithContext("tool", r.tool.Name)
	}
	if text == "" && result.StructuredContent != nil {
		encoded, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return "", errors.New(errors.CodeToolFailure, "encode structured result", err)
		}
		text = string(encoded)
	}
	return text, nil
}

// toolArgs accepts a JSON object or plain text. Plain text goes to the single
// required field when there is exactly one, otherwise to "input".
func toolArgs(tool mcp.Tool, input string) map[string]any {
	trimmed := strings.TrimSpace(input)
	if strings.HasPrefix(trimmed, "{") {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	if trimmed == "" {
		return map[string]any{}
	}
	key := "input"
	if required := tool.InputSchema.Required; len(required) == 1 {
		key = required[0]
	}
	return map[string]any{key: trimmed}
}

func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, item := range result.Content {
		switch c := item.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

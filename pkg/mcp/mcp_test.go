// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/sabia/pkg/capability/calculator"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
)

type stubCaller struct {
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	err      error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func text(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: s}}}
}

func TestRemoteCapabilityArgs(t *testing.T) {
	tests := []struct {
		name     string
		required []string
		input    string
		want     map[string]any
	}{
		{"single required field", []string{"url"}, " https://example.com ", map[string]any{"url": "https://example.com"}},
		{"json object", []string{"a", "b"}, `{"a":1,"b":2}`, map[string]any{"a": float64(1), "b": float64(2)}},
		{"plain text default key", nil, "hello", map[string]any{"input": "hello"}},
		{"empty", nil, "  ", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{result: text("ok")}
			tool := mcp.Tool{Name: "t", InputSchema: mcp.ToolInputSchema{Type: "object", Required: tt.required}}
			rc, err := NewRemoteCapability("", tool, caller)
			if err != nil {
				t.Fatal(err)
			}
			out, err := rc.Invoke(context.Background(), tt.input)
			if err != nil || out != "ok" {
				t.Fatalf("Invoke = %q, %v", out, err)
			}
			if len(caller.lastArgs) != len(tt.want) {
				t.Fatalf("args = %v, want %v", caller.lastArgs, tt.want)
			}
			for k, v := range tt.want {
				if caller.lastArgs[k] != v {
					t.Errorf("arg %s = %v, want %v", k, caller.lastArgs[k], v)
				}
			}
		})
	}
}

func TestRemoteCapabilityFailures(t *testing.T) {
	tool := mcp.Tool{Name: "fetch", InputSchema: mcp.ToolInputSchema{Type: "object", Required: []string{"url", "depth"}}}

	rc, _ := NewRemoteCapability("web", tool, &stubCaller{result: text("ok")})
	if rc.Name() != "web.fetch" {
		t.Errorf("Name() = %q", rc.Name())
	}
	if _, err := rc.Invoke(context.Background(), "x"); !errors.Is(err, errors.CodeInvalidInput) {
		t.Errorf("missing fields: got %v", err)
	}

	failing := text("upstream broke")
	failing.IsError = true
	rc, _ = NewRemoteCapability("", mcp.Tool{Name: "t"}, &stubCaller{result: failing})
	_, err := rc.Invoke(context.Background(), "x")
	if !errors.Is(err, errors.CodeToolFailure) || !strings.Contains(err.Error(), "upstream broke") {
		t.Errorf("error result: got %v", err)
	}

	rc, _ = NewRemoteCapability("", mcp.Tool{Name: "t"}, &stubCaller{result: &mcp.CallToolResult{StructuredContent: map[string]any{"ok": true}}})
	if out, _ := rc.Invoke(context.Background(), ""); out != `{"ok":true}` {
		t.Errorf("structured result = %q", out)
	}

	if _, err := NewRemoteCapability("", mcp.Tool{}, &stubCaller{}); err == nil {
		t.Error("expected error for nameless tool")
	}
}

func TestServerRoundTrip(t *testing.T) {
	srv := NewServer("sabia-test", "0.0.1", nil)
	srv.AddCapability(calculator.New())
	srv.AddOrchestrator(orchestratorFunc(func(_ context.Context, q core.Question) core.Answer {
		if q.Text == "" {
			return core.Degraded("pergunta vazia", string(errors.CodeInvalidInput), "empty")
		}
		return core.Answer{Text: "resposta: " + q.Text}
	}))

	httpServer := mcpserver.NewTestStreamableHTTPServer(srv.MCPServer())
	defer httpServer.Close()

	ctx := context.Background()
	client, err := Dial(ctx, "", nil, httpServer.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	caps, err := Discover(ctx, "", client)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	byName := map[string]*RemoteCapability{}
	for _, c := range caps {
		byName[c.Name()] = c
	}
	if len(byName) != 2 || byName[AskTool] == nil || byName[calculator.Name] == nil {
		t.Fatalf("unexpected tools %v", byName)
	}

	if out, err := byName[calculator.Name].Invoke(ctx, "2 + 3 * 4"); err != nil || out != "14" {
		t.Errorf("calculator = %q, %v", out, err)
	}
	if out, err := byName[AskTool].Invoke(ctx, "oi"); err != nil || out != "resposta: oi" {
		t.Errorf("ask = %q, %v", out, err)
	}
	if _, err := byName[calculator.Name].Invoke(ctx, "2 +"); !errors.Is(err, errors.CodeToolFailure) {
		t.Errorf("expected tool failure, got %v", err)
	}
}

type orchestratorFunc func(ctx context.Context, q core.Question) core.Answer

func (f orchestratorFunc) Answer(ctx context.Context, q core.Question) core.Answer { return f(ctx, q) }

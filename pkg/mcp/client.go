// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp connects Sabia to the Model Context Protocol in both
// directions: remote MCP tools become capabilities, and the local registry
// plus the orchestrator are served as MCP tools.
package mcp

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/resilience"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultRetries  = 2
	defaultBackoff  = 200 * time.Millisecond
	defaultCacheTTL = 30 * time.Second
	clientName      = "sabia"
)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and initial backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.retry.MaxAttempts = retries + 1
		}
		if backoff > 0 {
			c.retry.InitialDelay = backoff
		}
	}
}

// WithToolCacheTTL sets the tool discovery cache TTL. Zero disables caching.
func WithToolCacheTTL(ttl time.Duration) ClientOption {
	return func(c *Client) {
		if ttl >= 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client wraps an mcp-go client with timeouts, retries and a tool list cache.
type Client struct {
	mcpClient client.MCPClient
	timeout   time.Duration
	retry     resilience.RetryConfig
	cacheTTL  time.Duration

	mu          sync.Mutex
	toolsCache  []mcp.Tool
	cacheExpiry time.Time
}

// NewClient wraps an initialized MCP client.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	retry := resilience.DefaultRetryConfig().
		WithMaxAttempts(defaultRetries + 1).
		WithInitialDelay(defaultBackoff).
		WithIsRecoverable(func(err error) bool {
			return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
		})

	out := &Client{
		mcpClient: c,
		timeout:   defaultTimeout,
		retry:     retry,
		cacheTTL:  defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Dial connects to a server over stdio when command is set, otherwise over
// streamable HTTP at url.
func Dial(ctx context.Context, command string, args []string, url string, opts ...ClientOption) (*Client, error) {
	var (
		c   *client.Client
		err error
	)
	switch {
	case command != "":
		c, err = client.NewStdioMCPClient(command, nil, args...)
	case url != "":
		c, err = client.NewStreamableHttpClient(url)
	default:
		return nil, errors.New(errors.CodeInvalidInput, "mcp server needs a command or a url", nil)
	}
	if err != nil {
		return nil, errors.New(errors.CodeNetwork, "mcp transport", err)
	}
	if err := c.Start(ctx); err != nil {
		return nil, errors.New(errors.CodeNetwork, "mcp start", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: "0.1.0"}
	if _, err := c.Initialize(initCtx, req); err != nil {
		_ = c.Close()
		return nil, errors.New(errors.CodeProviderUnavailable, "mcp initialize", err)
	}
	return NewClient(c, opts...), nil
}

// ListTools retrieves the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if cached := c.cachedTools(); cached != nil {
		return cached, nil
	}
	resp, err := resilience.Retry(ctx, c.retry, func(ctx context.Context) (*mcp.ListToolsResult, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	c.storeTools(resp.Tools)
	return resp.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	return resilience.Retry(ctx, c.retry, func(ctx context.Context) (*mcp.CallToolResult, error) {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return c.mcpClient.CallTool(ctx, req)
	})
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func (c *Client) cachedTools() []mcp.Tool {
	if c.cacheTTL == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.toolsCache) == 0 || time.Now().After(c.cacheExpiry) {
		return nil
	}
	out := make([]mcp.Tool, len(c.toolsCache))
	copy(out, c.toolsCache)
	return out
}

func (c *Client) storeTools(tools []mcp.Tool) {
	if c.cacheTTL == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolsCache = append([]mcp.Tool(nil), tools...)
	c.cacheExpiry = time.Now().Add(c.cacheTTL)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

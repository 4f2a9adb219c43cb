// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/synth/prompts"
)

const chatPrompt = "> "

// chatClient posts questions to a running server's /chat endpoint.
type chatClient struct {
	url  string
	http *http.Client
	pack *prompts.Pack
}

func newChatClient(addr string, pack *prompts.Pack, timeout time.Duration) *chatClient {
	return &chatClient{
		url:  chatURL(addr),
		http: &http.Client{Timeout: timeout},
		pack: pack,
	}
}

// chatURL turns a listen address into the /chat URL: ":8000" becomes
// http://localhost:8000/chat.
func chatURL(addr string) string {
	base := strings.TrimSuffix(addr, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		if strings.HasPrefix(base, ":") {
			base = "localhost" + base
		}
		base = "http://" + base
	}
	return base + "/chat"
}

// Ask returns the answer text, or the localized failure message and the
// underlying error when the server could not be reached.
func (c *chatClient) Ask(ctx context.Context, question string) (string, error) {
	body, _ := json.Marshal(map[string]string{"question": question})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return c.connectionError(err), err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return c.connectionError(err), WrapConnectionError(err, c.url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %s", resp.Status)
		return c.connectionError(err), err
	}
	var payload struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || strings.TrimSpace(payload.Answer) == "" {
		return c.pack.Messages.InvalidResponse, nil
	}
	return payload.Answer, nil
}

func (c *chatClient) connectionError(err error) string {
	return prompts.Render(c.pack.Messages.ConnectionError, "detail", err.Error())
}

// Loop reads one question per line until EOF, "sair" or "exit".
func (c *chatClient) Loop(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, c.pack.Messages.Banner)
	for {
		fmt.Fprint(out, chatPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "sair", "exit", "quit":
			return nil
		}

		fmt.Fprintln(out, c.pack.Messages.Thinking)
		answer, _ := c.Ask(ctx, question)
		fmt.Fprintln(out, answer)
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func runChat(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	pack, err := prompts.Load(cfg.Prompts.Locale, cfg.Prompts.Path)
	if err != nil {
		return err
	}
	timeout := cfg.Server.RequestTimeout
	if timeout > 0 {
		timeout += 5 * time.Second
	}
	return newChatClient(cfg.Server.Addr, pack, timeout).Loop(ctx, in, out)
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package llm defines the text-generation provider boundary used by the
// synthesizer and the reasoning loop, plus test doubles and an Ollama client.
package llm

import "context"

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single unit of communication.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest encapsulates the input for the LLM.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	// Stop lists sequences at which generation must halt. The reasoning loop
	// stops before the model invents its own observation.
	Stop []string `json:"stop,omitempty"`
}

// ChatResponse encapsulates the output from the LLM.
type ChatResponse struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for interacting with LLM backends.
type Provider interface {
	// Chat sends a chat request to the LLM and returns the response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Complete sends a single prompt with the given creativity and returns the
// generated text. It is the whole contract the answer pipeline needs from a
// provider.
func Complete(ctx context.Context, p Provider, model, prompt string, temperature float64, stop ...string) (string, error) {
	resp, err := p.Chat(ctx, ChatRequest{
		Model:       model,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		Temperature: ClampTemperature(temperature),
		Stop:        stop,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}

// ClampTemperature keeps the creativity scalar inside [0,1].
func ClampTemperature(t float64) float64 {
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

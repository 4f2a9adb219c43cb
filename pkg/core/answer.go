// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package core

import "strings"

// Question is raw user input. It is opaque and untrusted.
type Question struct {
	Text string `json:"question"`
}

// Empty reports whether the question carries no text at all.
func (q Question) Empty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// ContextFragment is the output of one capability invocation.
type ContextFragment struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// Cause is the structured description of why an answer is degraded.
type Cause struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TraceStep records one turn of the reasoning loop.
type TraceStep struct {
	Iteration   int    `json:"iteration"`
	State       string `json:"state"`
	Thought     string `json:"thought,omitempty"`
	Action      string `json:"action,omitempty"`
	ActionInput string `json:"action_input,omitempty"`
	Observation string `json:"observation,omitempty"`
}

// Answer is the final output delivered to the caller. Error marks a degraded
// answer whose Text explains the failure; it is still delivered as text.
// Only Text is serialized: the HTTP layer reports Cause out of band.
type Answer struct {
	Text  string      `json:"answer"`
	Error bool        `json:"-"`
	Cause *Cause      `json:"-"`
	Trace []TraceStep `json:"-"`
}

// Degraded builds an error answer carrying a structured cause.
func Degraded(text, code, message string) Answer {
	return Answer{
		Text:  text,
		Error: true,
		Cause: &Cause{Code: code, Message: message},
	}
}

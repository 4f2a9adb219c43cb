// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the sabia command.
package main

import (
	"fmt"
	"io"

	"github.com/jllopis/sabia/pkg/errors"
)

// CLIError wraps SabiaError with a hint for the terminal user.
type CLIError struct {
	*errors.SabiaError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(se *errors.SabiaError, hint string) *CLIError {
	return &CLIError{SabiaError: se, Hint: hint}
}

// Error returns the message followed by the hint.
func (e *CLIError) Error() string {
	if e.SabiaError == nil {
		return "unknown error"
	}
	msg := e.SabiaError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError writes the error in a short human form.
func (e *CLIError) PrintError(w io.Writer) {
	fmt.Fprintf(w, "Error [%s]: %s\n", e.Code, e.Detail())
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// WrapConfigError marks a configuration that failed to load or validate.
func WrapConfigError(err error, path string) *CLIError {
	se := errors.New(errors.CodeInvalidInput, "configuration rejected", err).
		WithContext("path", path)
	hint := "check the YAML file and SABIA_* environment variables"
	if path == "" {
		hint = "pass --config <file> or set SABIA_* environment variables"
	}
	return NewCLIError(se, hint)
}

// WrapConnectionError marks a server that could not be reached.
func WrapConnectionError(err error, url string) *CLIError {
	se := errors.New(errors.CodeNetwork, "connection failed", err).
		WithContext("url", url).
		WithRecoverable(true)
	return NewCLIError(se, fmt.Sprintf("start the server with 'sabia serve' or check --addr (%s)", url))
}

// WrapIndexError marks a failed knowledge index build.
func WrapIndexError(err error, corpus string) *CLIError {
	se := errors.New(errors.CodeCapabilityUnavailable, "index build failed", err).
		WithContext("corpus", corpus)
	return NewCLIError(se, "check knowledge.corpus_path and the embedder settings")
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides typed error handling with rich context for Sabia.
//
// Every failure that can happen while answering a question is classified with
// an ErrorCode. Orchestrators fold these errors into degraded answers; the
// codes travel alongside the prose in the structured error channel and in
// metrics.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode classifies Sabia errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeToolFailure indicates a capability invocation failed.
	CodeToolFailure ErrorCode = "TOOL_FAILURE"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates a provider quota or rate limit was hit.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeUnauthorized indicates a provider rejected the credentials.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeLLMError indicates a text-generation provider error.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeParse indicates model output did not follow the expected protocol.
	CodeParse ErrorCode = "PARSE_ERROR"

	// CodeMaxIterations indicates the reasoning loop ran out of iterations.
	CodeMaxIterations ErrorCode = "MAX_ITERATIONS"

	// CodeCapabilityUnavailable indicates a capability could not be built or is absent.
	CodeCapabilityUnavailable ErrorCode = "CAPABILITY_UNAVAILABLE"

	// CodeProviderUnavailable indicates an upstream provider is down (5xx, open breaker).
	CodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"

	// CodeNetwork indicates a transport level failure talking to a provider.
	CodeNetwork ErrorCode = "NETWORK_ERROR"
)

// SabiaError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type SabiaError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int
}

// Error implements the error interface.
func (e *SabiaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *SabiaError) Unwrap() error {
	return e.Err
}

// Detail returns the innermost human readable failure description.
// Degraded answers embed it in user-facing text.
func (e *SabiaError) Detail() string {
	if e.Err != nil {
		var inner *SabiaError
		if stderrors.As(e.Err, &inner) {
			return inner.Detail()
		}
		return e.Err.Error()
	}
	return e.Message
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *SabiaError) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
	})
}

// New creates a new SabiaError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *SabiaError {
	return &SabiaError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *SabiaError) WithContext(key string, value interface{}) *SabiaError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *SabiaError) WithAttribute(key, value string) *SabiaError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *SabiaError) WithRecoverable(recoverable bool) *SabiaError {
	e.Recoverable = recoverable
	return e
}

// AsSabiaError attempts to convert an error to a SabiaError.
// Wrapped SabiaErrors are found through the chain; anything else is wrapped
// as an internal error.
func AsSabiaError(err error) *SabiaError {
	if err == nil {
		return nil
	}
	var se *SabiaError
	if stderrors.As(err, &se) {
		return se
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the outermost SabiaError in err's chain,
// or CodeInternal for foreign errors. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *SabiaError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return CodeInternal
}

// Is reports whether any SabiaError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var se *SabiaError
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Code == code {
			return true
		}
		err = se.Err
	}
	return false
}

// RootCode returns the code of the innermost SabiaError in err's chain.
// A TOOL_FAILURE wrapping a RATE_LIMITED search error reports RATE_LIMITED.
func RootCode(err error) ErrorCode {
	code := CodeOf(err)
	for err != nil {
		var se *SabiaError
		if !stderrors.As(err, &se) {
			break
		}
		code = se.Code
		err = se.Err
	}
	return code
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *SabiaError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP status codes. The chat endpoint
// always answers 200; the mapping is only reported in the structured channel.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404
	case CodeUnauthorized:
		return 401
	case CodeInvalidInput, CodeParse:
		return 400
	case CodeTimeout, CodeMaxIterations:
		return 408
	case CodeRateLimit:
		return 429
	case CodeProviderUnavailable, CodeCapabilityUnavailable:
		return 503
	case CodeNetwork:
		return 502
	default:
		return 500
	}
}

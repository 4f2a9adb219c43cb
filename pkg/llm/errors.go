// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"

	"github.com/jllopis/sabia/pkg/errors"
)

// ErrMissingCredential is returned by providers constructed without an API
// key. Startup continues; every request degrades with UNAUTHORIZED.
var ErrMissingCredential = stderrors.New("missing provider credential")

// ErrEmptyResponse is returned when a provider reports success without a response.
var ErrEmptyResponse = stderrors.New("provider returned no response")

// StatusError carries the HTTP status returned by an upstream provider.
// Provider packages convert their SDK errors into it so classification stays
// provider agnostic.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// ClassifyError maps a provider failure onto the Sabia error taxonomy.
// component names the failing side, e.g. "llm" or "search".
func ClassifyError(err error, component string, fallback errors.ErrorCode) *errors.SabiaError {
	if err == nil {
		return nil
	}
	var se *errors.SabiaError
	if stderrors.As(err, &se) {
		return se
	}

	code := fallback
	var status *StatusError
	var netErr net.Error
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		code = errors.CodeTimeout
	case stderrors.Is(err, ErrMissingCredential):
		code = errors.CodeUnauthorized
	case stderrors.As(err, &status):
		code = codeForStatus(status.StatusCode, fallback)
	case stderrors.As(err, &netErr):
		code = errors.CodeNetwork
	}

	return errors.New(code, component+" call failed", err).
		WithAttribute("sabia.component", component).
		WithRecoverable(code != errors.CodeUnauthorized)
}

func codeForStatus(status int, fallback errors.ErrorCode) errors.ErrorCode {
	switch {
	case status == 429:
		return errors.CodeRateLimit
	case status == 401 || status == 403:
		return errors.CodeUnauthorized
	case status >= 500:
		return errors.CodeProviderUnavailable
	default:
		return fallback
	}
}

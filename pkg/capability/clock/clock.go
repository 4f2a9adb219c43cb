// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the current_time capability.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/jllopis/sabia/pkg/core"
)

const Name = "current_time"

// Capability reports the current date and time in a fixed location.
type Capability struct {
	loc *time.Location
	now func() time.Time
}

// New creates the clock for the IANA zone tz. An empty zone means UTC.
func New(tz string) (*Capability, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", tz, err)
	}
	return &Capability{loc: loc, now: time.Now}, nil
}

// Factory adapts New to the registry.
func Factory(tz string) func(context.Context) (core.Capability, error) {
	return func(context.Context) (core.Capability, error) {
		return New(tz)
	}
}

func (c *Capability) Name() string { return Name }

func (c *Capability) Description() string {
	return "Returns the current date and time. Use it for questions about today, now or the current year. Input is ignored."
}

// Invoke ignores its input.
func (c *Capability) Invoke(ctx context.Context, _ string) (string, error) {
	now := c.now().In(c.loc)
	return fmt.Sprintf("%s (%s, %s)", now.Format("2006-01-02 15:04:05 MST"), now.Weekday(), c.loc), nil
}

var _ core.Capability = (*Capability)(nil)

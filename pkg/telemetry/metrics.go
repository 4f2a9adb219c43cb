// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/sabia/pkg/errors"
)

// Metrics holds the Sabia instruments. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	capabilityCalls    metric.Int64Counter
	capabilityDuration metric.Float64Histogram
	iterations         metric.Int64Histogram
	answers            metric.Int64Counter
	errorCounter       metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(TracerName)
	m := &Metrics{}
	var err error

	if m.capabilityCalls, err = meter.Int64Counter(
		"sabia.capability.calls",
		metric.WithDescription("Capability invocations by name and outcome"),
	); err != nil {
		return nil, err
	}
	if m.capabilityDuration, err = meter.Float64Histogram(
		"sabia.capability.duration_ms",
		metric.WithDescription("Capability invocation latency"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.iterations, err = meter.Int64Histogram(
		"sabia.reasoner.iterations",
		metric.WithDescription("Reasoning turns used per answer"),
	); err != nil {
		return nil, err
	}
	if m.answers, err = meter.Int64Counter(
		"sabia.answers.total",
		metric.WithDescription("Answers produced by policy and degradation"),
	); err != nil {
		return nil, err
	}
	if m.errorCounter, err = meter.Int64Counter(
		"sabia.errors.total",
		metric.WithDescription("Total errors by code and component"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCapability records one capability invocation.
func (m *Metrics) RecordCapability(ctx context.Context, name string, durationMs float64, success bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrCapabilityName, name),
		attribute.Bool(AttrCapabilitySuccess, success),
	)
	m.capabilityCalls.Add(ctx, 1, attrs)
	m.capabilityDuration.Record(ctx, durationMs, attrs)
}

// RecordIterations records how many reasoning turns an answer took.
func (m *Metrics) RecordIterations(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.iterations.Record(ctx, int64(n))
}

// RecordAnswer counts a produced answer.
func (m *Metrics) RecordAnswer(ctx context.Context, policy string, degraded bool) {
	if m == nil {
		return
	}
	m.answers.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrPolicy, policy),
		attribute.Bool(AttrDegraded, degraded),
	))
}

// RecordError counts err under its Sabia code for component.
func (m *Metrics) RecordError(ctx context.Context, err error, component string) {
	if m == nil || err == nil {
		return
	}
	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, string(errors.CodeOf(err))),
		attribute.String(AttrComponent, component),
	))
}

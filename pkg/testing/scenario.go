// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package testing provides helpers for testing orchestrators end to end:
// a scripted provider, declarative scenarios and an event collector.
//
//	scenario := testing.NewScenario("greeting").
//	    WithQuestion("Olá").
//	    ExpectAnswer(testing.Contains("Olá")).
//	    ExpectNotDegraded()
//
//	result := scenario.Run(t, orchestrator)
//	result.Assert(t, scenario)
package testing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jllopis/sabia/pkg/core"
)

// Scenario is a question plus the expectations on its answer.
type Scenario struct {
	name         string
	question     string
	context      context.Context
	timeout      time.Duration
	expectations []Expectation
	setupFuncs   []func() error
}

// Expectation is a condition checked after a scenario ran.
type Expectation interface {
	Check(result *ScenarioResult) error
	Description() string
}

// ScenarioResult is the outcome of a scenario.
type ScenarioResult struct {
	Answer   core.Answer
	Events   []core.Event
	Duration time.Duration
}

// NewScenario creates a scenario.
func NewScenario(name string) *Scenario {
	return &Scenario{
		name:    name,
		timeout: 30 * time.Second,
		context: context.Background(),
	}
}

// WithQuestion sets the question text.
func (s *Scenario) WithQuestion(q string) *Scenario {
	s.question = q
	return s
}

// WithContext sets the parent context.
func (s *Scenario) WithContext(ctx context.Context) *Scenario {
	s.context = ctx
	return s
}

// WithTimeout bounds the run.
func (s *Scenario) WithTimeout(d time.Duration) *Scenario {
	s.timeout = d
	return s
}

// WithSetup adds a function run before the question is asked.
func (s *Scenario) WithSetup(fn func() error) *Scenario {
	s.setupFuncs = append(s.setupFuncs, fn)
	return s
}

// Expect adds an expectation.
func (s *Scenario) Expect(exp Expectation) *Scenario {
	s.expectations = append(s.expectations, exp)
	return s
}

// ExpectAnswer matches the answer text.
func (s *Scenario) ExpectAnswer(m StringMatcher) *Scenario {
	return s.Expect(&answerExpectation{matcher: m})
}

// ExpectNotDegraded requires a clean answer.
func (s *Scenario) ExpectNotDegraded() *Scenario {
	return s.Expect(degradedExpectation{})
}

// ExpectDegraded requires a degraded answer with the given code.
func (s *Scenario) ExpectDegraded(code string) *Scenario {
	return s.Expect(degradedExpectation{want: true, code: code})
}

// ExpectCapability requires the trace to contain an action on name.
func (s *Scenario) ExpectCapability(name string) *Scenario {
	return s.Expect(capabilityExpectation{name: name})
}

// ExpectNoCapabilities requires a trace without actions.
func (s *Scenario) ExpectNoCapabilities() *Scenario {
	return s.Expect(capabilityExpectation{})
}

// ExpectFinalState requires the last trace step to be in state.
func (s *Scenario) ExpectFinalState(state string) *Scenario {
	return s.Expect(stateExpectation{state: state})
}

// ExpectEvent requires an event of the given type.
func (s *Scenario) ExpectEvent(t core.EventType) *Scenario {
	return s.Expect(eventExpectation{eventType: t})
}

// ExpectMaxDuration bounds the run time.
func (s *Scenario) ExpectMaxDuration(d time.Duration) *Scenario {
	return s.Expect(maxDurationExpectation{max: d})
}

// Run asks the question. Events are collected when the orchestrator was
// built with collector as its emitter.
func (s *Scenario) Run(t *testing.T, orch core.Orchestrator, collector ...*EventCollector) *ScenarioResult {
	t.Helper()

	for _, setup := range s.setupFuncs {
		if err := setup(); err != nil {
			t.Fatalf("scenario %q setup failed: %v", s.name, err)
		}
	}

	ctx, cancel := context.WithTimeout(s.context, s.timeout)
	defer cancel()

	start := time.Now()
	ans := orch.Answer(ctx, core.Question{Text: s.question})
	result := &ScenarioResult{Answer: ans, Duration: time.Since(start)}
	for _, c := range collector {
		result.Events = append(result.Events, c.Events()...)
	}
	return result
}

// Assert reports every failed expectation.
func (r *ScenarioResult) Assert(t *testing.T, scenario *Scenario) {
	t.Helper()
	for _, exp := range scenario.expectations {
		if err := exp.Check(r); err != nil {
			t.Errorf("scenario %q: expectation %q failed: %v", scenario.name, exp.Description(), err)
		}
	}
}

// StringMatcher matches answer text.
type StringMatcher interface {
	Match(s string) bool
	Description() string
}

type matcher struct {
	desc  string
	match func(string) bool
}

func (m matcher) Match(s string) bool   { return m.match(s) }
func (m matcher) Description() string { return m.desc }

// Contains matches strings containing substr.
func Contains(substr string) StringMatcher {
	return matcher{fmt.Sprintf("contains %q", substr), func(s string) bool { return strings.Contains(s, substr) }}
}

// Equals matches exactly.
func Equals(want string) StringMatcher {
	return matcher{fmt.Sprintf("equals %q", want), func(s string) bool { return s == want }}
}

// HasPrefix matches strings starting with prefix.
func HasPrefix(prefix string) StringMatcher {
	return matcher{fmt.Sprintf("has prefix %q", prefix), func(s string) bool { return strings.HasPrefix(s, prefix) }}
}

// Regex matches a regular expression. An invalid pattern never matches.
func Regex(pattern string) StringMatcher {
	re, err := regexp.Compile(pattern)
	return matcher{fmt.Sprintf("matches %q", pattern), func(s string) bool { return err == nil && re.MatchString(s) }}
}

type answerExpectation struct{ matcher StringMatcher }

func (e *answerExpectation) Check(r *ScenarioResult) error {
	if !e.matcher.Match(r.Answer.Text) {
		return fmt.Errorf("answer %q does not match", r.Answer.Text)
	}
	return nil
}

func (e *answerExpectation) Description() string { return "answer " + e.matcher.Description() }

type degradedExpectation struct {
	want bool
	code string
}

func (e degradedExpectation) Check(r *ScenarioResult) error {
	if r.Answer.Error != e.want {
		return fmt.Errorf("degraded = %v", r.Answer.Error)
	}
	if e.code == "" {
		return nil
	}
	if r.Answer.Cause == nil || r.Answer.Cause.Code != e.code {
		return fmt.Errorf("cause = %+v, want code %s", r.Answer.Cause, e.code)
	}
	return nil
}

func (e degradedExpectation) Description() string {
	if !e.want {
		return "not degraded"
	}
	return "degraded with " + e.code
}

type capabilityExpectation struct{ name string }

func (e capabilityExpectation) Check(r *ScenarioResult) error {
	var used []string
	for _, step := range r.Answer.Trace {
		if step.Action != "" {
			used = append(used, step.Action)
		}
	}
	if e.name == "" {
		if len(used) > 0 {
			return fmt.Errorf("capabilities used: %v", used)
		}
		return nil
	}
	for _, u := range used {
		if u == e.name {
			return nil
		}
	}
	return fmt.Errorf("capability %q not used, got %v", e.name, used)
}

func (e capabilityExpectation) Description() string {
	if e.name == "" {
		return "no capabilities used"
	}
	return fmt.Sprintf("capability %q used", e.name)
}

type stateExpectation struct{ state string }

func (e stateExpectation) Check(r *ScenarioResult) error {
	if len(r.Answer.Trace) == 0 {
		return fmt.Errorf("empty trace")
	}
	if got := r.Answer.Trace[len(r.Answer.Trace)-1].State; got != e.state {
		return fmt.Errorf("final state %s", got)
	}
	return nil
}

func (e stateExpectation) Description() string { return "final state " + e.state }

type eventExpectation struct{ eventType core.EventType }

func (e eventExpectation) Check(r *ScenarioResult) error {
	for _, ev := range r.Events {
		if ev.Type == e.eventType {
			return nil
		}
	}
	return fmt.Errorf("event %q was not emitted", e.eventType)
}

func (e eventExpectation) Description() string { return fmt.Sprintf("event %q emitted", e.eventType) }

type maxDurationExpectation struct{ max time.Duration }

func (e maxDurationExpectation) Check(r *ScenarioResult) error {
	if r.Duration > e.max {
		return fmt.Errorf("duration %v exceeds %v", r.Duration, e.max)
	}
	return nil
}

func (e maxDurationExpectation) Description() string { return fmt.Sprintf("duration <= %v", e.max) }

// EventCollector is a core.EventEmitter that keeps every event.
type EventCollector struct {
	mu     sync.RWMutex
	events []core.Event
}

var _ core.EventEmitter = (*EventCollector)(nil)

// NewEventCollector creates an empty collector.
func NewEventCollector() *EventCollector {
	return &EventCollector{}
}

// Emit implements core.EventEmitter.
func (c *EventCollector) Emit(_ context.Context, event core.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

// Events returns the collected events.
func (c *EventCollector) Events() []core.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]core.Event(nil), c.events...)
}

// EventTypes returns the types of the collected events in order.
func (c *EventCollector) EventTypes() []core.EventType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	types := make([]core.EventType, len(c.events))
	for i, ev := range c.events {
		types[i] = ev.Type
	}
	return types
}

// Reset clears the collector.
func (c *EventCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

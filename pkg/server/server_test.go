// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/sabia/pkg/capability"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/pkg/orchestrator"
	"github.com/jllopis/sabia/pkg/synth"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type orchestratorFunc func(ctx context.Context, q core.Question) core.Answer

func (f orchestratorFunc) Answer(ctx context.Context, q core.Question) core.Answer { return f(ctx, q) }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestChat(t *testing.T) {
	tests := []struct {
		name         string
		orch         core.Orchestrator
		body         string
		wantAnswer   string
		wantDegraded bool
		wantCode     string
	}{
		{
			name:       "answer",
			orch:       orchestratorFunc(func(_ context.Context, q core.Question) core.Answer { return core.Answer{Text: "eco: " + q.Text} }),
			body:       `{"question":"oi"}`,
			wantAnswer: "eco: oi",
		},
		{
			name: "degraded",
			orch: orchestratorFunc(func(context.Context, core.Question) core.Answer {
				return core.Degraded("Ocorreu um erro na busca: quota", string(errors.CodeRateLimit), "429")
			}),
			body:         `{"question":"oi"}`,
			wantAnswer:   "Ocorreu um erro na busca: quota",
			wantDegraded: true,
			wantCode:     "RATE_LIMITED",
		},
		{
			name:         "malformed body",
			orch:         orchestratorFunc(func(context.Context, core.Question) core.Answer { panic("must not be called") }),
			body:         `{"question":`,
			wantAnswer:   "Desculpe, não entendi a pergunta. Envie um texto no campo \"question\".",
			wantDegraded: true,
			wantCode:     "INVALID_INPUT",
		},
		{
			name:         "missing field",
			orch:         orchestratorFunc(func(context.Context, core.Question) core.Answer { panic("must not be called") }),
			body:         `{"text":"oi"}`,
			wantAnswer:   "Desculpe, não entendi a pergunta. Envie um texto no campo \"question\".",
			wantDegraded: true,
			wantCode:     "INVALID_INPUT",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.orch, WithLogger(quiet))
			rec := post(t, s.Handler(), tt.body)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			body := decodeBody(t, rec)
			if len(body) != 1 || body["answer"] != tt.wantAnswer {
				t.Errorf("body = %v, want only answer %q", body, tt.wantAnswer)
			}
			if got := rec.Header().Get(HeaderDegraded) == "true"; got != tt.wantDegraded {
				t.Errorf("degraded header = %v, want %v", got, tt.wantDegraded)
			}
			if got := rec.Header().Get(HeaderErrorCode); got != tt.wantCode {
				t.Errorf("error code header = %q, want %q", got, tt.wantCode)
			}
			if rec.Header().Get(HeaderRequestID) == "" {
				t.Error("expected request id header")
			}
		})
	}
}

func TestChatTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	orch := orchestratorFunc(func(context.Context, core.Question) core.Answer {
		<-block
		return core.Answer{Text: "late"}
	})
	s := New(orch, WithLogger(quiet), WithRequestTimeout(20*time.Millisecond))

	rec := post(t, s.Handler(), `{"question":"q"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(HeaderErrorCode) != string(errors.CodeTimeout) {
		t.Errorf("error code = %q", rec.Header().Get(HeaderErrorCode))
	}
	if decodeBody(t, rec)["answer"] == "" {
		t.Error("expected a non-empty answer")
	}
}

func TestChatAllCapabilitiesUnavailableAndModelFailing(t *testing.T) {
	reg := capability.New(capability.WithLogger(quiet))
	reg.Register(context.Background(), "web_search", func(context.Context) (core.Capability, error) {
		return nil, errors.New(errors.CodeUnauthorized, "missing key", nil)
	})
	provider := &llm.FailingMockProvider{}

	for name, orch := range map[string]core.Orchestrator{
		"search":   orchestrator.NewPipeline(synth.New(provider, synth.WithLogger(quiet)), orchestrator.WithCapability(reg, "web_search"), orchestrator.RequireCapability(), orchestrator.WithPipelineLogger(quiet)),
		"plain":    orchestrator.NewPipeline(synth.New(provider, synth.WithLogger(quiet))),
		"reasoner": orchestrator.NewReasoner(provider, reg, orchestrator.WithReasonerLogger(quiet)),
	} {
		t.Run(name, func(t *testing.T) {
			rec := post(t, New(orch, WithLogger(quiet)).Handler(), `{"question":"Qual a capital do Brasil?"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			answer, ok := decodeBody(t, rec)["answer"].(string)
			if !ok || answer == "" {
				t.Errorf("expected a non-empty answer string, got %v", rec.Body.String())
			}
			if rec.Header().Get(HeaderDegraded) != "true" {
				t.Error("expected degraded header")
			}
		})
	}
}

func TestRootHealthReady(t *testing.T) {
	reg := capability.New(capability.WithLogger(quiet))
	reg.Add(core.CapabilityFunc{CapName: "current_time", CapDescription: "clock", Fn: func(context.Context, string) (string, error) { return "", nil }})
	reg.Register(context.Background(), "web_search", func(context.Context) (core.Capability, error) {
		return nil, errors.New(errors.CodeUnauthorized, "missing key", nil)
	})
	health := core.NewDefaultHealthCheckProvider(0)
	reg.RegisterHealth(health)

	s := New(orchestratorFunc(func(context.Context, core.Question) core.Answer { return core.Answer{} }),
		WithLogger(quiet), WithHealth(health), WithStatuses(reg))

	tests := []struct {
		path string
		want map[string]any
	}{
		{"/", map[string]any{"message": "API do Agente de Pesquisa"}},
		{"/health", map[string]any{"status": "ok"}},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", tt.path, rec.Code)
		}
		body := decodeBody(t, rec)
		for k, v := range tt.want {
			if body[k] != v {
				t.Errorf("%s: %s = %v, want %v", tt.path, k, body[k], v)
			}
		}
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/ready status = %d", rec.Code)
	}
	var ready readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ready); err != nil {
		t.Fatal(err)
	}
	if ready.Status != core.HealthUnhealthy {
		t.Errorf("status = %s, want UNHEALTHY with an omitted capability", ready.Status)
	}
	if len(ready.Capabilities) != 2 || ready.Capabilities[1].Available {
		t.Errorf("unexpected capabilities %+v", ready.Capabilities)
	}
}

func TestCORS(t *testing.T) {
	s := New(orchestratorFunc(func(context.Context, core.Question) core.Answer { return core.Answer{Text: "x"} }), WithLogger(quiet))

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:8501")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	var seen string
	s := New(orchestratorFunc(func(ctx context.Context, _ core.Question) core.Answer {
		seen, _ = core.RequestID(ctx)
		return core.Answer{Text: "x"}
	}), WithLogger(quiet))

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"question":"q"}`))
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if seen != "abc-123" || rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Errorf("request id not propagated: seen %q, header %q", seen, rec.Header().Get(HeaderRequestID))
	}
}

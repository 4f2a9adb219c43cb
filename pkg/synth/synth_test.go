// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package synth

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/errors"
	"github.com/jllopis/sabia/pkg/llm"
	"github.com/jllopis/sabia/pkg/synth/prompts"
)

func TestSynthesizeSingleCall(t *testing.T) {
	provider := llm.NewScriptedMockProvider("  Brasília é a capital.  ")
	s := New(provider)

	ans := s.Synthesize(context.Background(), core.Question{Text: "Qual é a capital do Brasil?"}, []core.ContextFragment{
		{Source: "web_search", Content: "[1] Brasília: capital federal"},
	})
	if ans.Error {
		t.Fatalf("unexpected degraded answer %+v", ans)
	}
	if ans.Text != "Brasília é a capital." {
		t.Errorf("Text = %q", ans.Text)
	}
	if provider.Calls() != 1 {
		t.Errorf("expected exactly one model call, got %d", provider.Calls())
	}
}

func TestSynthesizeFailureDegrades(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"quota", &llm.StatusError{Provider: "gemini", StatusCode: 429, Message: "quota exceeded"}, errors.CodeRateLimit},
		{"credential", llm.ErrMissingCredential, errors.CodeUnauthorized},
		{"other", stderrors.New("boom"), errors.CodeLLMError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &llm.ScriptedMockProvider{Err: tt.err}
			ans := New(provider).Synthesize(context.Background(), core.Question{Text: "q"}, nil)
			if !ans.Error {
				t.Fatal("expected degraded answer")
			}
			if ans.Cause == nil || ans.Cause.Code != string(tt.code) {
				t.Errorf("Cause = %+v, want code %s", ans.Cause, tt.code)
			}
			if !strings.Contains(ans.Text, tt.err.Error()) {
				t.Errorf("answer must embed the failure detail: %q", ans.Text)
			}
			if provider.Calls() != 1 {
				t.Errorf("synthesizer must not retry, calls = %d", provider.Calls())
			}
		})
	}
}

func TestPromptLayout(t *testing.T) {
	s := New(&llm.MockProvider{})
	prompt := s.Prompt(core.Question{Text: "Onde fica?"}, []core.ContextFragment{
		{Source: "web_search", Content: "primeiro"},
		{Source: "current_time", Content: "segundo"},
	})

	p := prompts.Default()
	for _, want := range []string{
		"Responda em português brasileiro.",
		p.ContextHeader,
		"[web_search]\nprimeiro\n[/web_search]",
		"[current_time]\nsegundo\n[/current_time]",
		p.QuestionHeader + "Onde fica?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "primeiro") > strings.Index(prompt, "segundo") {
		t.Error("fragments must keep invocation order")
	}
	if !strings.HasSuffix(prompt, p.AnswerHeader) {
		t.Error("prompt must end with the answer header")
	}
}

func TestPromptWithoutContext(t *testing.T) {
	en, err := prompts.Load("en", "")
	if err != nil {
		t.Fatal(err)
	}
	prompt := New(&llm.MockProvider{}, WithPack(en)).Prompt(core.Question{Text: "hi"}, nil)
	if strings.Contains(prompt, en.ContextHeader) {
		t.Error("no context block expected without fragments")
	}
	if !strings.HasPrefix(prompt, "You are a helpful AI assistant.") {
		t.Errorf("unexpected prompt %q", prompt)
	}
}

func TestContextIsBounded(t *testing.T) {
	long := strings.Repeat("palavra ", 50)
	s := New(&llm.MockProvider{}, WithMaxContextTokens(10), WithTokenCounter(WordCounter{}))

	bounded := s.bound([]core.ContextFragment{
		{Source: "a", Content: "um dois três"},
		{Source: "b", Content: long},
		{Source: "c", Content: "nunca incluído"},
	})
	if len(bounded) != 2 {
		t.Fatalf("expected 2 fragments, got %+v", bounded)
	}
	if bounded[0].Content != "um dois três" {
		t.Errorf("first fragment changed: %q", bounded[0].Content)
	}
	cut := strings.TrimSuffix(bounded[1].Content, truncationMark)
	if got := (WordCounter{}).Count(cut); got != 7 {
		t.Errorf("truncated fragment has %d words, want 7", got)
	}
}

func TestTemperatureClamped(t *testing.T) {
	var got float64
	provider := &llm.MockProvider{ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		got = req.Temperature
		return &llm.ChatResponse{Content: "ok"}, nil
	}}
	New(provider, WithTemperature(3)).Synthesize(context.Background(), core.Question{Text: "q"}, nil)
	if got != 1 {
		t.Errorf("temperature = %v, want 1", got)
	}
}

func TestTruncate(t *testing.T) {
	c := WordCounter{}
	tests := []struct {
		text   string
		budget int
		want   string
		whole  bool
	}{
		{"a b c", 5, "a b c", true},
		{"a, b, c, d", 2, "a, b", false},
		{"a b", 0, "", false},
		{"", 0, "", true},
	}
	for _, tt := range tests {
		got, whole := Truncate(c, tt.text, tt.budget)
		if got != tt.want || whole != tt.whole {
			t.Errorf("Truncate(%q, %d) = (%q, %v), want (%q, %v)", tt.text, tt.budget, got, whole, tt.want, tt.whole)
		}
	}
}

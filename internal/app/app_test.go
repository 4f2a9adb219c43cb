// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/knowledge"
	"github.com/jllopis/sabia/pkg/mcp"
	"github.com/jllopis/sabia/pkg/search"
	sabiatest "github.com/jllopis/sabia/pkg/testing"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func loadConfig(t *testing.T, overrides map[string]any) *config.Config {
	t.Helper()
	cfg, err := config.LoadOptions(config.Options{Overrides: overrides})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.txt")
	text := "O sabiá é a ave símbolo do Brasil.\n\nA capital do Brasil é Brasília."
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewModes(t *testing.T) {
	searx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[{"url":"https://example.com","title":"Sabiá","content":"O sabiá canta ao amanhecer."}]}`)
	}))
	defer searx.Close()
	corpus := writeCorpus(t)

	tests := []struct {
		name         string
		overrides    map[string]any
		question     string
		script       func(*sabiatest.ScenarioProvider)
		capabilities []string
		want         string
		promptHas    string
	}{
		{
			name:      "plain",
			overrides: map[string]any{"server.mode": config.ModePlain},
			script:    func(p *sabiatest.ScenarioProvider) { p.AddResponse("Olá!") },
			want:      "Olá!",
			promptHas: "oi",
		},
		{
			name: "search",
			overrides: map[string]any{
				"server.mode":        config.ModeSearch,
				"search.provider":    "searxng",
				"search.searxng_url": searx.URL,
			},
			script:       func(p *sabiatest.ScenarioProvider) { p.AddResponse("Canta cedo.") },
			capabilities: []string{search.Name},
			want:         "Canta cedo.",
			promptHas:    "O sabiá canta ao amanhecer.",
		},
		{
			name: "knowledge",
			overrides: map[string]any{
				"server.mode":               config.ModeKnowledge,
				"knowledge.enabled":         true,
				"knowledge.corpus_path":     corpus,
				"knowledge.score_threshold": -1.0,
			},
			question:     "Qual é a capital do Brasil?",
			script:       func(p *sabiatest.ScenarioProvider) { p.AddResponse("Brasília.") },
			capabilities: []string{knowledge.Name},
			want:         "Brasília.",
			promptHas:    "Brasília",
		},
		{
			name: "agent",
			overrides: map[string]any{
				"server.mode":    config.ModeAgent,
				"search.enabled": false,
			},
			script: func(p *sabiatest.ScenarioProvider) {
				p.AddStep("Preciso calcular.", "calculator", "6 * 7").AddFinal("Pronto.", "42")
			},
			capabilities: []string{"calculator", "current_time"},
			want:         "42",
			promptHas:    "calculator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadConfig(t, tt.overrides)
			provider := sabiatest.NewScenarioProvider()
			tt.script(provider)

			a, err := New(context.Background(), cfg, WithLogger(quiet), WithProvider(provider))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer a.Close(context.Background())

			names := a.Registry().Names()
			for _, want := range tt.capabilities {
				if !slices.Contains(names, want) {
					t.Errorf("capabilities = %v, missing %s", names, want)
				}
			}
			if len(tt.capabilities) == 0 && len(names) != 0 {
				t.Errorf("capabilities = %v, want none", names)
			}

			question := tt.question
			if question == "" {
				question = "oi"
			}
			answer := a.Ask(context.Background(), question)
			if answer.Cause != nil {
				t.Fatalf("unexpected degraded answer: %+v", answer.Cause)
			}
			if answer.Text != tt.want {
				t.Errorf("answer = %q, want %q", answer.Text, tt.want)
			}
			prompts := strings.Join(provider.Prompts(), "\n")
			if !strings.Contains(prompts, tt.promptHas) {
				t.Errorf("prompts do not contain %q:\n%s", tt.promptHas, prompts)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := loadConfig(t, map[string]any{"server.mode": "oracle"})
	if _, err := New(context.Background(), cfg, WithLogger(quiet)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUnreachableMCPServerIsUnavailable(t *testing.T) {
	cfg := loadConfig(t, map[string]any{
		"server.mode":    config.ModeAgent,
		"search.enabled": false,
	})
	cfg.MCP.Servers = []config.MCPServerConfig{{Name: "docs", URL: "http://127.0.0.1:1/mcp"}}

	a, err := New(context.Background(), cfg, WithLogger(quiet), WithProvider(sabiatest.NewScenarioProvider()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close(context.Background())

	var found bool
	for _, st := range a.Registry().Status() {
		if st.Name == "mcp:docs" {
			found = true
			if st.Available {
				t.Error("expected mcp:docs to be unavailable")
			}
		}
	}
	if !found {
		t.Error("expected mcp:docs registration")
	}
}

func TestMCPServerExposesCapabilities(t *testing.T) {
	cfg := loadConfig(t, map[string]any{"server.mode": config.ModeAgent, "search.enabled": false})
	a, err := New(context.Background(), cfg, WithLogger(quiet), WithProvider(sabiatest.NewScenarioProvider()))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(context.Background())

	httpServer := mcpserver.NewTestStreamableHTTPServer(a.MCPServer().MCPServer())
	defer httpServer.Close()

	client, err := mcp.Dial(context.Background(), "", nil, httpServer.URL)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()
	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	for _, name := range []string{"calculator", "current_time", "ask"} {
		if !slices.Contains(names, name) {
			t.Errorf("tools = %v, missing %s", names, name)
		}
	}
}

func TestIndex(t *testing.T) {
	cfg := loadConfig(t, map[string]any{
		"knowledge.corpus_path": writeCorpus(t),
		"knowledge.cache_path":  filepath.Join(t.TempDir(), "embeddings.db"),
	})
	stats, err := Index(context.Background(), cfg, quiet)
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}
	if stats.Chunks == 0 {
		t.Errorf("expected chunks, got %+v", stats)
	}
	if stats.Source != "corpus.txt" {
		t.Errorf("source = %q", stats.Source)
	}
}

func TestIndexMissingCorpus(t *testing.T) {
	cfg := loadConfig(t, map[string]any{"knowledge.corpus_path": filepath.Join(t.TempDir(), "absent.txt")})
	if _, err := Index(context.Background(), cfg, quiet); err == nil {
		t.Fatal("expected error for missing corpus")
	}
}

func TestFactories(t *testing.T) {
	t.Run("providers", func(t *testing.T) {
		tests := []struct {
			provider string
			wantErr  bool
		}{
			{"openai", false},
			{"anthropic", false},
			{"ollama", false},
			{"cohere", true},
		}
		for _, tt := range tests {
			cfg := loadConfig(t, map[string]any{"llm.provider": tt.provider})
			p, closer, err := NewProvider(context.Background(), cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("%s: err = %v, wantErr %v", tt.provider, err, tt.wantErr)
				continue
			}
			if !tt.wantErr && p == nil {
				t.Errorf("%s: nil provider", tt.provider)
			}
			if closer != nil {
				closer.Close()
			}
		}
	})

	t.Run("vector stores", func(t *testing.T) {
		if _, _, err := NewVectorStore(config.KnowledgeConfig{Store: "chromem"}); err != nil {
			t.Errorf("chromem: %v", err)
		}
		if _, _, err := NewVectorStore(config.KnowledgeConfig{Store: "faiss"}); err == nil {
			t.Error("expected error for unknown store")
		}
	})

	t.Run("embedders", func(t *testing.T) {
		for _, name := range []string{"hash", "ollama", "openai"} {
			cfg := loadConfig(t, map[string]any{"knowledge.embedder": name})
			e, closers, err := NewEmbedder(context.Background(), cfg)
			if err != nil || e == nil {
				t.Errorf("%s: embedder = %v, err = %v", name, e, err)
			}
			for _, c := range closers {
				c.Close()
			}
		}
		cfg := loadConfig(t, map[string]any{"knowledge.embedder": "word2vec"})
		if _, _, err := NewEmbedder(context.Background(), cfg); err == nil {
			t.Error("expected error for unknown embedder")
		}
	})
}

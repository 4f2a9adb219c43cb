// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads Sabia settings from defaults, an optional YAML file,
// SABIA_ environment variables and command line overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Server modes.
const (
	ModeSearch    = "search"
	ModeKnowledge = "knowledge"
	ModePlain     = "plain"
	ModeAgent     = "agent"
)

const envPrefix = "SABIA_"

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	LLM        LLMConfig        `koanf:"llm"`
	Agent      AgentConfig      `koanf:"agent"`
	Search     SearchConfig     `koanf:"search"`
	Knowledge  KnowledgeConfig  `koanf:"knowledge"`
	Clock      ClockConfig      `koanf:"clock"`
	Calculator CalculatorConfig `koanf:"calculator"`
	Prompts    PromptsConfig    `koanf:"prompts"`
	MCP        MCPConfig        `koanf:"mcp"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	Mode           string        `koanf:"mode"` // search, knowledge, plain, agent
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type LLMConfig struct {
	Provider         string  `koanf:"provider"` // gemini, openai, anthropic, ollama
	Model            string  `koanf:"model"`
	BaseURL          string  `koanf:"base_url"`
	APIKey           string  `koanf:"api_key"`
	Temperature      float64 `koanf:"temperature"`
	MaxContextTokens int     `koanf:"max_context_tokens"`
}

type AgentConfig struct {
	MaxIterations int     `koanf:"max_iterations"`
	Temperature   float64 `koanf:"temperature"`
}

type SearchConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Provider        string        `koanf:"provider"` // empty selects by credentials: serpapi, searxng, duckduckgo
	SerpAPIKey      string        `koanf:"serpapi_key"`
	SearxNGURL      string        `koanf:"searxng_url"`
	Region          string        `koanf:"region"`
	MaxResults      int           `koanf:"max_results"`
	Timeout         time.Duration `koanf:"timeout"`
	CacheURL        string        `koanf:"cache_url"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

type KnowledgeConfig struct {
	Enabled         bool    `koanf:"enabled"`
	CorpusPath      string  `koanf:"corpus_path"`
	Store           string  `koanf:"store"` // chromem, qdrant
	PersistPath     string  `koanf:"persist_path"`
	QdrantAddr      string  `koanf:"qdrant_addr"`
	Collection      string  `koanf:"collection"`
	Embedder        string  `koanf:"embedder"` // hash, ollama, openai, gemini
	EmbedderBaseURL string  `koanf:"embedder_base_url"`
	EmbedderModel   string  `koanf:"embedder_model"`
	CachePath       string  `koanf:"cache_path"`
	ChunkSize       int     `koanf:"chunk_size"`
	ChunkOverlap    int     `koanf:"chunk_overlap"`
	TopK            int     `koanf:"top_k"`
	ScoreThreshold  float32 `koanf:"score_threshold"`
}

type ClockConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Timezone string `koanf:"timezone"`
}

type CalculatorConfig struct {
	Enabled bool `koanf:"enabled"`
}

type PromptsConfig struct {
	Locale string `koanf:"locale"`
	Path   string `koanf:"path"`
}

// MCPConfig lists remote MCP servers whose tools become capabilities.
type MCPConfig struct {
	Servers []MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig describes one remote server: a command for stdio, or a URL
// for streamable HTTP.
type MCPServerConfig struct {
	Name    string        `koanf:"name"`
	Command string        `koanf:"command"`
	Args    []string      `koanf:"args"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

func setDefaults(k *koanf.Koanf) {
	k.Set("server.addr", ":8000")
	k.Set("server.mode", ModeSearch)
	k.Set("server.request_timeout", "60s")

	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("telemetry.exporter", "none")

	k.Set("llm.provider", "gemini")
	k.Set("llm.temperature", 0.7)
	k.Set("llm.max_context_tokens", 3000)

	k.Set("agent.max_iterations", 5)
	k.Set("agent.temperature", 0.0)

	k.Set("search.enabled", true)
	k.Set("search.region", "br-pt")
	k.Set("search.max_results", 5)
	k.Set("search.timeout", "15s")
	k.Set("search.cache_ttl", "10m")
	k.Set("search.breaker_failures", 5)
	k.Set("search.breaker_cooldown", "30s")

	k.Set("knowledge.enabled", false)
	k.Set("knowledge.corpus_path", "meus_dados.txt")
	k.Set("knowledge.store", "chromem")
	k.Set("knowledge.qdrant_addr", "localhost:6334")
	k.Set("knowledge.collection", "sabia")
	k.Set("knowledge.embedder", "hash")
	k.Set("knowledge.embedder_base_url", "http://localhost:11434")
	k.Set("knowledge.chunk_size", 200)
	k.Set("knowledge.chunk_overlap", 40)
	k.Set("knowledge.top_k", 3)
	k.Set("knowledge.score_threshold", 0.3)

	k.Set("clock.enabled", true)
	k.Set("clock.timezone", "America/Sao_Paulo")

	k.Set("calculator.enabled", true)

	k.Set("prompts.locale", "pt-BR")
}

// Options selects the configuration sources.
type Options struct {
	// Path is an optional YAML file.
	Path string
	// Profile merges config.<profile>.yaml next to Path when it exists.
	Profile string
	// Overrides are dotted keys applied last, as used by command line flags.
	Overrides map[string]any
}

// Load reads configuration from defaults, the optional YAML file at path and
// the environment.
func Load(path string) (*Config, error) {
	return LoadOptions(Options{Path: path})
}

// LoadWithProfile is Load plus a profile file layered on top of the base file.
func LoadWithProfile(path, profile string) (*Config, error) {
	return LoadOptions(Options{Path: path, Profile: profile})
}

// LoadOptions reads configuration from every source named in opts.
func LoadOptions(opts Options) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	if opts.Path != "" {
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", opts.Path, err)
		}
		if profilePath := ProfilePath(opts.Path, opts.Profile); profilePath != "" {
			if _, err := os.Stat(profilePath); err == nil {
				if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("load profile %s: %w", profilePath, err)
				}
			}
		}
	}

	// SABIA_AGENT_MAX_ITERATIONS -> agent.max_iterations
	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	for key, value := range opts.Overrides {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("override %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	cfg.applyCredentials(os.Getenv)

	return &cfg, nil
}

// ProfilePath returns the profile file for base, e.g. config.yaml + dev ->
// config.dev.yaml. An empty profile yields "".
func ProfilePath(base, profile string) string {
	if profile == "" || base == "" {
		return ""
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + "." + profile + ext
}

// envKey maps an environment variable to a config key. The first underscore
// after the prefix separates the section; the rest belong to the field name.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(s, "_")
	if !ok {
		return section
	}
	return section + "." + field
}

// applyCredentials fills empty keys from the provider's well-known variables.
func (c *Config) applyCredentials(getenv func(string) string) {
	if c.Search.SerpAPIKey == "" {
		c.Search.SerpAPIKey = getenv("SERPAPI_API_KEY")
	}
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = credentialFor(c.LLM.Provider, getenv)
	}
}

func credentialFor(provider string, getenv func(string) string) string {
	switch provider {
	case "gemini":
		if key := getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return getenv("GEMINI_API_KEY")
	case "openai":
		return getenv("OPENAI_API_KEY")
	case "anthropic":
		return getenv("ANTHROPIC_API_KEY")
	default:
		return ""
	}
}

// CredentialFor returns the API key the given knowledge or LLM provider
// would use, falling back to its well-known environment variable.
func (c *Config) CredentialFor(provider string) string {
	if provider == c.LLM.Provider && c.LLM.APIKey != "" {
		return c.LLM.APIKey
	}
	return credentialFor(provider, os.Getenv)
}

// Validate checks enumerations and ranges.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(oneOf(c.Server.Mode, ModeSearch, ModeKnowledge, ModePlain, ModeAgent), "server.mode %q is not one of search, knowledge, plain, agent", c.Server.Mode)
	check(c.Server.RequestTimeout >= 0, "server.request_timeout must not be negative")
	check(oneOf(c.Telemetry.Exporter, "none", "stdout", "otlp"), "telemetry.exporter %q is not one of none, stdout, otlp", c.Telemetry.Exporter)
	check(c.Telemetry.Exporter != "otlp" || c.Telemetry.OTLPEndpoint != "", "telemetry.otlp_endpoint is required for the otlp exporter")
	check(oneOf(c.LLM.Provider, "gemini", "openai", "anthropic", "ollama"), "llm.provider %q is not one of gemini, openai, anthropic, ollama", c.LLM.Provider)
	check(c.LLM.MaxContextTokens > 0, "llm.max_context_tokens must be positive")
	check(c.Agent.MaxIterations >= 1, "agent.max_iterations must be at least 1")
	check(oneOf(c.Search.Provider, "", "serpapi", "searxng", "duckduckgo"), "search.provider %q is not one of serpapi, searxng, duckduckgo", c.Search.Provider)
	check(c.Search.MaxResults > 0, "search.max_results must be positive")
	check(oneOf(c.Knowledge.Store, "chromem", "qdrant"), "knowledge.store %q is not one of chromem, qdrant", c.Knowledge.Store)
	check(oneOf(c.Knowledge.Embedder, "hash", "ollama", "openai", "gemini"), "knowledge.embedder %q is not one of hash, ollama, openai, gemini", c.Knowledge.Embedder)
	check(c.Knowledge.ChunkSize > 0, "knowledge.chunk_size must be positive")
	check(c.Knowledge.ChunkOverlap >= 0 && c.Knowledge.ChunkOverlap < c.Knowledge.ChunkSize, "knowledge.chunk_overlap must be in [0, chunk_size)")
	check(c.Knowledge.TopK > 0, "knowledge.top_k must be positive")
	if c.Clock.Enabled {
		_, err := time.LoadLocation(c.Clock.Timezone)
		check(err == nil, "clock.timezone %q: %v", c.Clock.Timezone, err)
	}

	for i, srv := range c.MCP.Servers {
		check(srv.Name != "", "mcp.servers[%d].name is required", i)
		check((srv.Command == "") != (srv.URL == ""), "mcp.servers[%d] needs exactly one of command or url", i)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jllopis/sabia/pkg/config"
	"github.com/jllopis/sabia/pkg/core"
	"github.com/jllopis/sabia/pkg/resilience"
)

// Select picks the provider from configuration. Without any credential the
// free DuckDuckGo provider is used; missing configuration never fails.
func Select(cfg config.SearchConfig, logger *slog.Logger) (Searcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := defaultHTTPClient(cfg.Timeout)

	provider := cfg.Provider
	if provider == "" {
		switch {
		case cfg.SerpAPIKey != "":
			provider = "serpapi"
		case cfg.SearxNGURL != "":
			provider = "searxng"
		default:
			provider = "duckduckgo"
		}
	}

	switch provider {
	case "serpapi":
		if cfg.SerpAPIKey == "" {
			return nil, fmt.Errorf("serpapi selected but no API key configured")
		}
		logger.Info("using professional search tool: SerpAPI")
		return NewSerpAPI(cfg.SerpAPIKey, cfg.Region, cfg.MaxResults, client), nil
	case "searxng":
		if cfg.SearxNGURL == "" {
			return nil, fmt.Errorf("searxng selected but no URL configured")
		}
		logger.Info("using self-hosted search tool: SearxNG", slog.String("url", cfg.SearxNGURL))
		return NewSearxNG(cfg.SearxNGURL, cfg.Region, cfg.MaxResults, client), nil
	case "duckduckgo":
		logger.Info("using free search tool: DuckDuckGo")
		return NewDuckDuckGo(cfg.Region, cfg.MaxResults, client), nil
	default:
		return nil, fmt.Errorf("unknown search provider %q", provider)
	}
}

// Factory builds the web_search capability: the selected provider, an
// optional redis cache and a circuit breaker.
func Factory(cfg config.SearchConfig, logger *slog.Logger) func(context.Context) (core.Capability, error) {
	return func(ctx context.Context) (core.Capability, error) {
		if logger == nil {
			logger = slog.Default()
		}
		if !cfg.Enabled {
			return nil, fmt.Errorf("search disabled")
		}
		searcher, err := Select(cfg, logger)
		if err != nil {
			return nil, err
		}

		if cfg.CacheURL != "" {
			store, err := NewRedisStore(ctx, cfg.CacheURL)
			if err != nil {
				logger.WarnContext(ctx, "search cache unavailable, continuing without it", slog.String("error", err.Error()))
			} else {
				searcher = NewCached(searcher, store, cfg.CacheTTL, logger)
			}
		}

		searcher = NewGuarded(searcher, resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerFailures,
			Timeout:          cfg.BreakerCooldown,
			OnStateChange: func(name string, from, to resilience.CircuitBreakerState) {
				logger.Warn("search circuit breaker changed state",
					slog.String("breaker", name),
					slog.String("from", string(from)),
					slog.String("to", string(to)),
				)
			},
		})
		return NewCapability(searcher, logger), nil
	}
}

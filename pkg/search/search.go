// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

// Package search implements the web_search capability on top of
// interchangeable search providers.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// NoResults is returned by the capability when a search finds nothing.
const NoResults = "no search results found"

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher queries a search provider.
type Searcher interface {
	// Name identifies the provider in logs.
	Name() string
	// Search returns up to the provider's configured number of results.
	Search(ctx context.Context, query string) ([]Result, error)
}

// Format renders results as numbered snippets for the model prompt.
func Format(results []Result) string {
	if len(results) == 0 {
		return NoResults
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, r.Title)
		if r.Snippet != "" {
			b.WriteString(": ")
			b.WriteString(r.Snippet)
		}
		if r.URL != "" {
			fmt.Fprintf(&b, " (%s)", r.URL)
		}
	}
	return b.String()
}

func defaultHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

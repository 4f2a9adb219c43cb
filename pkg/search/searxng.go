// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jllopis/sabia/pkg/llm"
)

// SearxNG queries a self-hosted SearxNG instance through its JSON API.
type SearxNG struct {
	baseURL    string
	language   string
	maxResults int
	client     *http.Client
}

// NewSearxNG creates a SearxNG searcher. The instance must have the json
// output format enabled.
func NewSearxNG(baseURL, language string, maxResults int, client *http.Client) *SearxNG {
	if client == nil {
		client = defaultHTTPClient(0)
	}
	return &SearxNG{
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   language,
		maxResults: maxResults,
		client:     client,
	}
}

func (s *SearxNG) Name() string { return "SearxNG" }

type searxResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
	Answers []string `json:"answers"`
}

// Search implements Searcher.
func (s *SearxNG) Search(ctx context.Context, query string) ([]Result, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("safesearch", "0")
	values.Set("categories", "general")
	if s.language != "" {
		values.Set("language", s.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/search?%s", s.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searxng request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &llm.StatusError{Provider: "searxng", StatusCode: resp.StatusCode}
	}

	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}

	results := make([]Result, 0, s.maxResults)
	for _, a := range body.Answers {
		results = append(results, Result{Title: "Answer", Snippet: clean(a)})
	}
	for _, r := range body.Results {
		if len(results) >= s.maxResults {
			break
		}
		results = append(results, Result{Title: clean(r.Title), URL: r.URL, Snippet: clean(r.Content)})
	}
	return results, nil
}

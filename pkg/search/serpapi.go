// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jllopis/sabia/pkg/llm"
)

const serpAPIURL = "https://serpapi.com/search.json"

// SerpAPI queries Google through serpapi.com.
type SerpAPI struct {
	apiKey     string
	baseURL    string
	maxResults int
	hl, gl     string
	client     *http.Client
}

// NewSerpAPI creates a SerpAPI searcher. region follows the "br-pt" form
// used for DuckDuckGo and is mapped to Google's gl/hl parameters.
func NewSerpAPI(apiKey, region string, maxResults int, client *http.Client) *SerpAPI {
	s := &SerpAPI{apiKey: apiKey, baseURL: serpAPIURL, maxResults: maxResults, client: client}
	if country, lang, ok := strings.Cut(region, "-"); ok {
		s.gl, s.hl = country, lang
	}
	if s.client == nil {
		s.client = defaultHTTPClient(0)
	}
	return s
}

func (s *SerpAPI) Name() string { return "SerpAPI" }

type serpResponse struct {
	Error     string `json:"error"`
	AnswerBox struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
		Title   string `json:"title"`
		Link    string `json:"link"`
	} `json:"answer_box"`
	KnowledgeGraph struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"knowledge_graph"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

// Search implements Searcher. Direct answers come first, then organic hits.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]Result, error) {
	values := url.Values{}
	values.Set("engine", "google")
	values.Set("q", query)
	values.Set("api_key", s.apiKey)
	if s.gl != "" {
		values.Set("gl", s.gl)
		values.Set("hl", s.hl)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &llm.StatusError{Provider: "serpapi", StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	var body serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode serpapi response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("serpapi: %s", body.Error)
	}

	var results []Result
	if ab := body.AnswerBox; ab.Answer != "" || ab.Snippet != "" {
		snippet := ab.Answer
		if snippet == "" {
			snippet = ab.Snippet
		}
		results = append(results, Result{Title: ab.Title, URL: ab.Link, Snippet: clean(snippet)})
	}
	if kg := body.KnowledgeGraph; kg.Description != "" {
		results = append(results, Result{Title: kg.Title, Snippet: clean(kg.Description)})
	}
	for _, r := range body.OrganicResults {
		if len(results) >= s.maxResults {
			break
		}
		results = append(results, Result{Title: clean(r.Title), URL: r.Link, Snippet: clean(r.Snippet)})
	}
	if len(results) > s.maxResults {
		results = results[:s.maxResults]
	}
	return results, nil
}

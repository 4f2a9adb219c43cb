// Copyright 2026 © The Sabia Authors
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jllopis/sabia/pkg/llm"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// DuckDuckGo scrapes the keyless HTML endpoint. It is the free fallback.
type DuckDuckGo struct {
	baseURL    string
	region     string
	maxResults int
	client     *http.Client
}

// NewDuckDuckGo creates a DuckDuckGo searcher. region is a kl value such as "br-pt".
func NewDuckDuckGo(region string, maxResults int, client *http.Client) *DuckDuckGo {
	if client == nil {
		client = defaultHTTPClient(0)
	}
	return &DuckDuckGo{baseURL: duckDuckGoURL, region: region, maxResults: maxResults, client: client}
}

func (d *DuckDuckGo) Name() string { return "DuckDuckGo" }

// Search implements Searcher.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)
	if d.region != "" {
		form.Set("kl", d.region)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; sabia/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()

	// DuckDuckGo answers 202 when it rate limits scrapers.
	if resp.StatusCode == http.StatusAccepted {
		return nil, &llm.StatusError{Provider: "duckduckgo", StatusCode: http.StatusTooManyRequests, Message: "rate limited"}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.StatusError{Provider: "duckduckgo", StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}
	return parseDuckDuckGo(doc, d.maxResults), nil
}

func parseDuckDuckGo(doc *goquery.Document, max int) []Result {
	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		title := clean(link.Text())
		if title == "" {
			return true
		}
		href, _ := link.Attr("href")
		results = append(results, Result{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: clean(s.Find(".result__snippet").First().Text()),
		})
		return len(results) < max
	})
	return results
}

// resolveRedirect unwraps DuckDuckGo's //duckduckgo.com/l/?uddg=<target> links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

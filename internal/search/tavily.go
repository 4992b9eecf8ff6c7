// Package search adapts the Tavily keyword-search API. The adapter sends the
// exclusion list server-side and re-applies it client-side, since the backend
// only honors exact-domain matches while the pipeline excludes whole suffixes.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs one keyword query. A non-success response surfaces as an error
// the caller logs and moves past; queries are cheap and redundant, so there is
// no retry.
func (c *Client) Search(ctx context.Context, query string, maxResults int, excludeDomains []string) ([]Result, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	payload := map[string]any{
		"api_key":         c.apiKey,
		"query":           query,
		"search_depth":    "advanced",
		"max_results":     maxResults,
		"include_answer":  false,
		"exclude_domains": excludeDomains,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tavily request failed: %s %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return filterExcluded(parsed.Results, excludeDomains), nil
}

func filterExcluded(results []Result, excludeDomains []string) []Result {
	if len(excludeDomains) == 0 {
		return results
	}
	kept := make([]Result, 0, len(results))
	for _, result := range results {
		if excludedDomain(result.URL, excludeDomains) {
			continue
		}
		kept = append(kept, result)
	}
	return kept
}

func excludedDomain(rawURL string, excludeDomains []string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range excludeDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

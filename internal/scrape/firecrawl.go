// Package scrape adapts the Firecrawl scripted-browser API. One endpoint
// covers both plain scrapes (links, markdown, raw markup) and the ordered
// wait/click/write action scripts the submission executor replays.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	FormatLinks    = "links"
	FormatMarkdown = "markdown"
	FormatRawHTML  = "rawHtml"
)

// Action is one step of a browser script, executed in order before the page
// is captured.
type Action struct {
	Type         string `json:"type"`
	Selector     string `json:"selector,omitempty"`
	Text         string `json:"text,omitempty"`
	Milliseconds int    `json:"milliseconds,omitempty"`
}

func Wait(ms int) Action           { return Action{Type: "wait", Milliseconds: ms} }
func Click(selector string) Action { return Action{Type: "click", Selector: selector} }
func Write(text string) Action     { return Action{Type: "write", Text: text} }

type Request struct {
	URL     string
	Formats []string
	Actions []Action
	Timeout time.Duration
}

type Result struct {
	Links    []string
	Markdown string
	RawHTML  string
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey string, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.firecrawl.dev"
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (c *Client) Scrape(ctx context.Context, scrapeReq Request) (*Result, error) {
	timeout := scrapeReq.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	payload := map[string]any{
		"url":     scrapeReq.URL,
		"formats": scrapeReq.Formats,
		"timeout": timeout.Milliseconds(),
	}
	if len(scrapeReq.Actions) > 0 {
		payload["actions"] = scrapeReq.Actions
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("firecrawl request failed: %s", resp.Status)
	}

	var parsed struct {
		Data struct {
			Links    []string `json:"links"`
			Markdown string   `json:"markdown"`
			RawHTML  string   `json:"rawHtml"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return &Result{
		Links:    parsed.Data.Links,
		Markdown: parsed.Data.Markdown,
		RawHTML:  parsed.Data.RawHTML,
	}, nil
}

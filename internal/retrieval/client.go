// Package retrieval wraps the external web content-retrieval service. A
// syntactic URL is fetched as a single page; anything else is treated as a
// search query and passed through verbatim, including site: operators.
package retrieval

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

	"github.com/stellarlinkco/webchat/internal/config"
)

const (
	scrapePath = "/v1/scrape"
	searchPath = "/v1/search"
)

// Request is one retrieval invocation. Limit is clamped to the service
// maximum before the call.
type Request struct {
	QueryOrURL string
	Limit      int
	Language   string
	Region     string
}

// Client performs one outbound call per Retrieve invocation. No retry, no
// caching, no rate limiting.
type Client struct {
	apiKey     string
	baseURL    string
	maxLimit   int
	screenshot bool
	httpClient *http.Client
}

func NewClient(cfg config.RetrievalConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = config.DefaultRetrievalBaseURL
	}
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = config.MaxResultLimit
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = config.DefaultRetrievalTimeout
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		maxLimit:   maxLimit,
		screenshot: cfg.Screenshot,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

// Retrieve fetches a page or runs a search. Upstream failures, including
// timeouts and non-2xx statuses, come back as a failure-tagged Result.
func (c *Client) Retrieve(ctx context.Context, req Request) *Result {
	if isURL(req.QueryOrURL) {
		return c.scrape(ctx, req.QueryOrURL)
	}
	return c.search(ctx, req)
}

func isURL(s string) bool {
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func (c *Client) formats() []string {
	formats := []string{"markdown"}
	if c.screenshot {
		formats = append(formats, "screenshot")
	}
	return formats
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown   string         `json:"markdown"`
		Screenshot string         `json:"screenshot"`
		Metadata   map[string]any `json:"metadata"`
	} `json:"data"`
}

func (c *Client) scrape(ctx context.Context, pageURL string) *Result {
	var parsed scrapeResponse
	if failed := c.post(ctx, scrapePath, scrapeRequest{URL: pageURL, Formats: c.formats()}, pageURL, &parsed); failed != nil {
		return failed
	}
	if !parsed.Success {
		return failure(pageURL, upstreamError(parsed.Error))
	}

	record := Record{
		URL:         pageURL,
		Content:     parsed.Data.Markdown,
		Screenshot:  parsed.Data.Screenshot,
		Metadata:    parsed.Data.Metadata,
		Title:       metadataString(parsed.Data.Metadata, "title"),
		Description: metadataString(parsed.Data.Metadata, "description"),
	}
	if sourceURL := metadataString(parsed.Data.Metadata, "sourceURL"); sourceURL != "" {
		record.URL = sourceURL
	}

	return &Result{
		Query:   pageURL,
		Success: true,
		Results: []Record{record},
		Count:   1,
	}
}

type searchRequest struct {
	Query         string        `json:"query"`
	Limit         int           `json:"limit"`
	Lang          string        `json:"lang,omitempty"`
	Country       string        `json:"country,omitempty"`
	ScrapeOptions scrapeOptions `json:"scrapeOptions"`
}

type scrapeOptions struct {
	Formats []string `json:"formats"`
}

type searchResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    []struct {
		Title       string         `json:"title"`
		URL         string         `json:"url"`
		Description string         `json:"description"`
		Markdown    string         `json:"markdown"`
		Screenshot  string         `json:"screenshot"`
		Metadata    map[string]any `json:"metadata"`
	} `json:"data"`
}

func (c *Client) search(ctx context.Context, req Request) *Result {
	limit := req.Limit
	if limit <= 0 {
		limit = config.DefaultResultLimit
	}
	if limit > c.maxLimit {
		limit = c.maxLimit
	}

	body := searchRequest{
		Query:         req.QueryOrURL,
		Limit:         limit,
		Lang:          req.Language,
		Country:       req.Region,
		ScrapeOptions: scrapeOptions{Formats: c.formats()},
	}

	var parsed searchResponse
	if failed := c.post(ctx, searchPath, body, req.QueryOrURL, &parsed); failed != nil {
		return failed
	}
	if !parsed.Success {
		return failure(req.QueryOrURL, upstreamError(parsed.Error))
	}

	records := make([]Record, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		records = append(records, Record{
			Title:       item.Title,
			URL:         item.URL,
			Description: item.Description,
			Content:     item.Markdown,
			Screenshot:  item.Screenshot,
			Metadata:    item.Metadata,
		})
	}

	return &Result{
		Query:   req.QueryOrURL,
		Success: true,
		Results: records,
		Count:   len(records),
	}
}

// post issues the outbound call and decodes into out. A non-nil return is the
// failure Result to hand back; nil means out holds the decoded payload.
func (c *Client) post(ctx context.Context, path string, body any, query string, out any) *Result {
	payload, err := json.Marshal(body)
	if err != nil {
		return failure(query, fmt.Sprintf("encode request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return failure(query, fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return failure(query, fmt.Sprintf("retrieval request failed: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(query, fmt.Sprintf("read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(query, fmt.Sprintf("retrieval service returned status %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return failure(query, fmt.Sprintf("parse response: %v", err))
	}
	return nil
}

func failure(query, msg string) *Result {
	return &Result{
		Query:   query,
		Success: false,
		Results: []Record{},
		Error:   msg,
	}
}

func upstreamError(msg string) string {
	if msg == "" {
		return "retrieval service reported failure without detail"
	}
	return msg
}

func metadataString(metadata map[string]any, key string) string {
	if value, ok := metadata[key].(string); ok {
		return value
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

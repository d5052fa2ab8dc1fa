// Package rag searches the document store with permission filters applied
// and masks what the caller may not read.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/frahmantamala/medichat/internal/policy"
)

type Document struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	DocumentID string         `json:"documentId"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type Query struct {
	Text    string
	Filters policy.Filters
	Limit   int
}

type ClientConfig struct {
	BaseURL  string
	APIKey   string
	BucketID int
	Limit    int
	Timeout  time.Duration
}

// Client calls the content search endpoint of the document store.
type Client struct {
	baseURL    string
	apiKey     string
	bucketID   int
	limit      int
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		bucketID:   cfg.BucketID,
		limit:      limit,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type searchRequest struct {
	Query           string         `json:"query"`
	BucketID        int            `json:"bucketId,omitempty"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
	N               int            `json:"n"`
}

type searchResponse struct {
	Results []Document `json:"results"`
}

func (c *Client) Search(ctx context.Context, q Query) ([]Document, error) {
	n := q.Limit
	if n <= 0 {
		n = c.limit
	}

	body := searchRequest{
		Query:           q.Text,
		BucketID:        c.bucketID,
		IncludeMetadata: true,
		N:               n,
	}
	if !q.Filters.IsEmpty() {
		body.Filter = q.Filters.Map()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/content", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("document search failed", "bucket_id", c.bucketID, "error", err)
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Error("document search returned error status",
			"status", resp.StatusCode,
			"bucket_id", c.bucketID,
			"body", strings.TrimSpace(string(msg)))
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	c.logger.Info("document search completed",
		"bucket_id", c.bucketID,
		"result_count", len(out.Results))

	return out.Results, nil
}

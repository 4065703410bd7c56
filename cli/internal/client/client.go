// Package client is a thin HTTP client for the engine API. It carries its
// own copies of the wire types so the CLI tracks the API contract, not the
// engine internals.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SchemaRef names the schema a batch should be validated against.
// Version 0 means latest.
type SchemaRef struct {
	Kind    string `json:"kind"`
	Version int    `json:"version,omitempty"`
}

// RecordEnvelope is one raw record in a submission.
type RecordEnvelope struct {
	RecordID   string         `json:"record_id,omitempty"`
	IngestedAt time.Time      `json:"ingested_at,omitempty"`
	Fields     map[string]any `json:"fields"`
}

// BatchEnvelope is the submission payload for POST /api/v1/batches.
type BatchEnvelope struct {
	BatchID  string           `json:"batch_id"`
	SourceID string           `json:"source_id"`
	Schema   SchemaRef        `json:"schema"`
	Records  []RecordEnvelope `json:"records"`
}

// BatchResult is the terminal summary returned for a processed batch.
type BatchResult struct {
	BatchID       string         `json:"batch_id"`
	SourceID      string         `json:"source_id"`
	Kind          string         `json:"kind"`
	SchemaVersion int            `json:"schema_version"`
	Input         int            `json:"input"`
	Clean         int            `json:"clean"`
	Quarantined   int            `json:"quarantined"`
	Deduplicated  int            `json:"deduplicated"`
	RuleFailures  map[string]int `json:"rule_failures,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	DurationMS    int64          `json:"duration_ms"`
	Signature     string         `json:"signature,omitempty"`
}

// SchemaInfo is one registered schema kind and its published versions.
type SchemaInfo struct {
	Kind     string `json:"kind"`
	Versions []int  `json:"versions"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// SubmitBatch posts an envelope and returns the terminal batch summary.
func (c *Client) SubmitBatch(ctx context.Context, envelope *BatchEnvelope) (*BatchResult, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	var result BatchResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/batches", bytes.NewReader(body), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetBatchResult(ctx context.Context, batchID string) (*BatchResult, error) {
	var result BatchResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/batches/"+batchID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListBatchResults(ctx context.Context, limit int) ([]*BatchResult, error) {
	var out struct {
		Results []*BatchResult `json:"results"`
	}
	path := fmt.Sprintf("/api/v1/batches?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) ListSchemas(ctx context.Context) ([]SchemaInfo, error) {
	var out struct {
		Schemas []SchemaInfo `json:"schemas"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/schemas", nil, &out); err != nil {
		return nil, err
	}
	return out.Schemas, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("engine returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("engine returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

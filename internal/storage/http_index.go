package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPIndex posts chunks to an embedding service's /insert_embedding route.
type HTTPIndex struct {
	baseURL string
	client  *http.Client
}

type insertResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func NewHTTPIndex(baseURL string, client *http.Client) *HTTPIndex {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Insert sends one chunk as a single-element JSON list.
func (h *HTTPIndex) Insert(ctx context.Context, chunk string) error {
	payload, err := json.Marshal([]string{chunk})
	if err != nil {
		return fmt.Errorf("failed to encode chunk: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/insert_embedding", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create insert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return fmt.Errorf("failed to read insert response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding service returned status %d", resp.StatusCode)
	}

	var result insertResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to decode insert response: %w", err)
	}
	if result.Status != "success" {
		return fmt.Errorf("embedding service rejected chunk: %s %s", result.Status, result.Message)
	}
	return nil
}

func (h *HTTPIndex) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

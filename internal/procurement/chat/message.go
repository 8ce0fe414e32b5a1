package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Caia-Tech/caia-harvester/pkg/logging"
)

const maxReplyBytes = 1 << 20

// MessageClient talks to a chat service exposing POST /message, which
// answers with the plain-text completion.
type MessageClient struct {
	baseURL string
	client  *http.Client
}

type messageRequest struct {
	Context   string `json:"context"`
	Text      string `json:"text"`
	PlayAudio bool   `json:"playAudio"`
	SessionID string `json:"session_id"`
	Stream    bool   `json:"stream"`
}

func NewMessageClient(baseURL string, client *http.Client) *MessageClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &MessageClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Complete sends one prompt under systemContext and returns the reply text.
func (m *MessageClient) Complete(ctx context.Context, systemContext, userPrompt, sessionID string) (string, error) {
	payload, err := json.Marshal(messageRequest{
		Context:   systemContext,
		Text:      userPrompt,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/message", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read chat reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat service returned status %d", resp.StatusCode)
	}

	reply := strings.TrimSpace(string(body))
	logger := logging.GetLogger("chat")
	logger.Debug().
		Str("session_id", sessionID).
		Int("reply_chars", len(reply)).
		Msg("Chat reply received")
	return reply, nil
}

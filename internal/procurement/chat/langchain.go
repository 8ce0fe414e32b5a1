package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Caia-Tech/caia-harvester/pkg/logging"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainClient uses an OpenAI-compatible chat completions API.
type LangChainClient struct {
	model llms.Model
	name  string
}

// NewLangChainClient builds a client for config.BaseURL. Local services
// without authentication get the placeholder token "none".
func NewLangChainClient(config *pipeline.ChatConfig, client *http.Client) (*LangChainClient, error) {
	token := config.APIKey
	if token == "" {
		token = "none"
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	if client != nil {
		opts = append(opts, openai.WithHTTPClient(client))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &LangChainClient{model: model, name: config.Model}, nil
}

// Complete sends systemContext as the system message and userPrompt as the
// human message. The API is stateless, so sessionID is only logged.
func (l *LangChainClient) Complete(ctx context.Context, systemContext, userPrompt, sessionID string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemContext),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	response, err := l.model.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	reply := strings.TrimSpace(response.Choices[0].Content)
	logger := logging.GetLogger("chat")
	logger.Debug().
		Str("model", l.name).
		Str("session_id", sessionID).
		Int("reply_chars", len(reply)).
		Msg("Chat reply received")
	return reply, nil
}

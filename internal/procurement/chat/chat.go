package chat

import (
	"fmt"
	"net/http"

	"github.com/Caia-Tech/caia-harvester/internal/procurement"
	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
)

// New returns the chat collaborator selected by config.Backend.
func New(config *pipeline.ChatConfig) (procurement.ChatProvider, error) {
	client := &http.Client{Timeout: config.Timeout.Duration}

	switch config.Backend {
	case "message", "":
		return NewMessageClient(config.BaseURL, client), nil
	case "openai":
		return NewLangChainClient(config, client)
	default:
		return nil, fmt.Errorf("unknown chat backend %q", config.Backend)
	}
}

// Package ollama adapts a local Ollama server to the chat-completion and
// content-analysis capabilities. Requests run through the resilience
// executor; outward errors carry the temporary kind when a retry elsewhere
// could help.
package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/infrastructure/resilience"
)

const defaultTimeout = 120 * time.Second

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, model string, timeout time.Duration, exec *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Chat sends one conversation to /api/chat and returns the assistant text.
// JSON mode is requested, but models still wrap output in prose or fences,
// so callers salvage the object before parsing.
func (c *Client) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	payload := chatRequest{
		Model:    c.model,
		Messages: make([]chatMessage, 0, len(messages)),
		Stream:   false,
		Format:   "json",
	}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	var response chatResponse
	err := c.exec.Execute(ctx, "ollama_chat", func(ctx context.Context) error {
		return c.postJSON(ctx, "/api/chat", payload, &response, "chat")
	}, classifyModelError)
	if err != nil {
		return "", wrapTemporaryIfNeeded("ollama chat", err)
	}
	return strings.TrimSpace(response.Message.Content), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// Package draft generates suggested replies to contact messages via an
// OpenAI-compatible completion service. Drafting is advisory: a failure
// here never blocks the admin from replying manually.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUnavailable covers every failure mode of the external service:
// missing credential, network error, timeout, malformed response.
var ErrUnavailable = errors.New("draft service unavailable")

const systemPrompt = "You draft replies to messages sent through a personal portfolio contact form. " +
	"Write a professional, polite business reply. Keep it concise."

const maxDraftTokens = 400

type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// NewClient builds a drafting client. baseURL overrides the default API
// endpoint (used for self-hosted gateways and tests); empty keeps the
// library default.
func NewClient(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: timeout,
	}
}

// DraftReply returns suggested reply text for messageContent. Idempotent
// from the caller's perspective: it reads nothing and mutates nothing.
func (c *Client) DraftReply(ctx context.Context, messageContent string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxDraftTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: messageContent},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrUnavailable)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: blank completion", ErrUnavailable)
	}
	return text, nil
}

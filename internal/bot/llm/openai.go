package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dkurilov/counselbot/internal/bot/models"
	openai "github.com/sashabaranov/go-openai"
)

// chatCompleter is the slice of the go-openai client we use; a seam for
// tests.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient implements Completer on the OpenAI chat completion API.
type OpenAIClient struct {
	client chatCompleter
	model  string
}

func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{client: openai.NewClient(apiKey), model: model}
}

// Complete sends the system prompt plus conversation to the model and
// returns the reply text. Provider failures are translated into the
// package error categories.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == models.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", categorize(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrMalformedResponse
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrMalformedResponse
	}
	return reply, nil
}

// categorize maps provider errors onto package categories so callers never
// branch on go-openai types.
func categorize(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrServerError, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrServerError, err)
}

// Package llm defines the completion interface the bot talks to and the
// error categories callers key user-facing replies on.
package llm

import (
	"context"
	"errors"
)

// Error categories. Callers match with errors.Is and map each category to
// a fixed user-facing reply; provider error details never reach the user.
var (
	ErrRateLimited       = errors.New("llm: rate limited")
	ErrServerError       = errors.New("llm: upstream server error")
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    string
	Content string
}

// Completer produces an assistant reply for a conversation. Implementations
// must honor ctx cancellation and return one of the package error
// categories (possibly wrapped) on failure.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, messages []Message, maxTokens int) (string, error)
}

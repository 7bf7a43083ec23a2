// Package llm is the chat-completion transport used for brief synthesis.
//
// The only backend is Ollama's /api/chat endpoint. The orchestrator
// depends on the ChatClient interface so tests can substitute fakes.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Providers.
const (
	ProviderMock   = "mock"
	ProviderOllama = "ollama"
)

// FormatJSON constrains the reply to a single JSON value.
const FormatJSON = "json"

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Errors.
var (
	ErrUnsupportedProvider = errors.New("unsupported llm provider")
	ErrUnreachable         = errors.New("llm provider unreachable")
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are generation options passed through to the provider.
type Options struct {
	NumPredict int `json:"num_predict,omitempty"`
}

// ChatRequest is a non-streaming chat completion request.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Format   string    `json:"format,omitempty"`
	Options  Options   `json:"options"`
}

// ChatResponse is the provider reply. Token counts are zero when the
// provider omits them. Content may be empty; callers validate it.
type ChatResponse struct {
	Model           string  `json:"model"`
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// TotalTokens returns prompt plus completion tokens.
func (r *ChatResponse) TotalTokens() int {
	return r.PromptEvalCount + r.EvalCount
}

// ChatClient performs chat completions.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ModelLister lists the models a provider has available.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Config configures the transport.
type Config struct {
	Provider        string
	BaseURL         string
	Model           string
	MaxOutputTokens int
	Timeout         time.Duration
	RateLimit       float64
	Burst           int
	MaxRetries      int
}

// NormalizeProvider lowercases and trims a provider name.
func NormalizeProvider(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// ValidateProvider returns ErrUnsupportedProvider for unknown providers.
func ValidateProvider(p string) error {
	switch NormalizeProvider(p) {
	case ProviderMock, ProviderOllama:
		return nil
	}
	return ErrUnsupportedProvider
}

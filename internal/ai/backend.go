package ai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/koguma/bearcourt/internal/config"
)

// Request is a single text-generation call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
	TopP         float32
}

// Backend is the AI text-generation upstream. Implementations return a
// *StatusError for HTTP-classed failures so the retry predicate can
// discriminate 4xx from 5xx.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a backend failure carrying an HTTP-like status code.
// Connectivity failures without a response carry code zero.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ai backend: status %d: %s", e.Code, e.Message)
}

// Retryable reports whether an error is worth another attempt: client-class
// (4xx) failures never are, because retrying auth or validation failures
// wastes quota and cannot succeed.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
		return false
	}
	return true
}

// StatusCode extracts the HTTP-like status class from err, zero when absent.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// OpenAIBackend adapts the OpenAI chat-completions API to Backend.
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend builds a backend from configuration. BaseURL supports
// OpenAI-compatible gateways.
func NewOpenAIBackend(cfg config.AIConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Complete implements Backend.
func (b *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
		}
		return "", &StatusError{Code: 0, Message: err.Error()}
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &StatusError{Code: 502, Message: "empty completion"}
	}
	return resp.Choices[0].Message.Content, nil
}

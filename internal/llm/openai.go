package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "You are an experienced technical interviewer. Always answer with a single JSON object and nothing else."

// OpenAIClient wraps an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAIClient creates a client for baseURL (empty means the OpenAI API).
func NewOpenAIClient(baseURL, apiKey, modelName string) (*OpenAIClient, error) {
	if strings.TrimSpace(modelName) == "" {
		return nil, errors.New("llm model name is required")
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}, nil
}

// Ping checks that the endpoint answers.
func (c *OpenAIClient) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// GenerateContent sends prompt as a user message in JSON mode and returns the
// first choice's content.
func (c *OpenAIClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("LLM returned no choices")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if raw == "" {
		return "", errors.New("LLM returned empty content")
	}
	return raw, nil
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

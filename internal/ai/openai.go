package ai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/suPer8Hu/germanleap/internal/models"
)

// OpenAIProvider sends turn-based chat completions through the OpenAI SDK.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIProvider(s Settings) (*OpenAIProvider, error) {
	if err := requireKey(ProviderOpenAI, s); err != nil {
		return nil, err
	}
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(s.BaseURL, "/")
	}
	model := s.Model
	if model == "" {
		model = "gpt-4-turbo-preview"
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

func (p *OpenAIProvider) Chat(ctx context.Context, systemPrompt string, history []models.Message) (string, error) {
	turns := chatTurns(systemPrompt, history)
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: t.Role, Content: t.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/suPer8Hu/germanleap/internal/models"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

type groqChatReq struct {
	Model       string     `json:"model"`
	Messages    []chatTurn `json:"messages"`
	Temperature float64    `json:"temperature"`
	MaxTokens   int        `json:"max_tokens"`
	Stream      bool       `json:"stream"`
}

type groqChatResp struct {
	Choices []struct {
		Message chatTurn `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGroqProvider(s Settings) (*GroqProvider, error) {
	if err := requireKey(ProviderGroq, s); err != nil {
		return nil, err
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}
	model := s.Model
	if model == "" {
		model = "llama-3.1-70b-versatile"
	}
	return &GroqProvider{
		BaseURL: baseURL,
		APIKey:  s.APIKey,
		Model:   model,
		// no client timeout; the caller's ctx bounds the call
		Client: &http.Client{},
	}, nil
}

func (p *GroqProvider) Chat(ctx context.Context, systemPrompt string, history []models.Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("groq: http client is nil")
	}

	b, err := json.Marshal(groqChatReq{
		Model:       p.Model,
		Messages:    chatTurns(systemPrompt, history),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("groq: %s", msg)
	}

	var decoded groqChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return decoded.Choices[0].Message.Content, nil
}

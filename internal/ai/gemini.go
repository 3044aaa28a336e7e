package ai

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/suPer8Hu/germanleap/internal/models"
)

// generativeModel is the part of *genai.GenerativeModel that Chat uses.
type generativeModel interface {
	SetTemperature(float32)
	SetMaxOutputTokens(int32)
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiProvider flattens the conversation into one prompt string and
// calls single-string generation.
type GeminiProvider struct {
	client    *genai.Client
	modelName string
	model     func(name string) generativeModel
}

func NewGeminiProvider(ctx context.Context, s Settings) (*GeminiProvider, error) {
	if err := requireKey(ProviderGemini, s); err != nil {
		return nil, err
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(s.APIKey))
	if err != nil {
		return nil, err
	}
	modelName := s.Model
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	return &GeminiProvider{
		client:    cl,
		modelName: modelName,
		model:     func(name string) generativeModel { return cl.GenerativeModel(name) },
	}, nil
}

func (g *GeminiProvider) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiProvider) Chat(ctx context.Context, systemPrompt string, history []models.Message) (string, error) {
	m := g.model(g.modelName)
	m.SetTemperature(temperature)
	m.SetMaxOutputTokens(maxTokens)

	resp, err := m.GenerateContent(ctx, genai.Text(FlattenConversation(systemPrompt, history)))
	if err != nil {
		return "", err
	}
	return geminiText(resp)
}

// FlattenConversation renders the prompt for single-string backends:
// the system prompt, then "User: ..." / "Assistant: ..." turns separated by
// blank lines. System-role history entries are not rendered.
func FlattenConversation(systemPrompt string, history []models.Message) string {
	parts := make([]string, 0, len(history)+1)
	parts = append(parts, systemPrompt+"\n\n")
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			parts = append(parts, "User: "+m.Content)
		case models.RoleAssistant:
			parts = append(parts, "Assistant: "+m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

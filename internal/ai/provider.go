package ai

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/suPer8Hu/germanleap/internal/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Sampling settings shared by every backend.
const (
	temperature = 0.7
	maxTokens   = 1000
)

var (
	ErrMissingCredential = errors.New("ai: missing api credential")
	ErrUnknownProvider   = errors.New("ai: unknown provider")
	ErrEmptyResponse     = errors.New("ai: empty response")
)

// Provider is one hosted chat-completion backend. Each implementation owns
// its payload shape and response envelope; none keeps state between calls.
type Provider interface {
	Chat(ctx context.Context, systemPrompt string, history []models.Message) (string, error)
}

type Settings struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Config selects exactly one provider for the process lifetime.
type Config struct {
	Provider string
	OpenAI   Settings
	Gemini   Settings
	Groq     Settings
}

// Tutor turns (profile, history, mode) into a reply using the configured provider.
type Tutor struct {
	name     string
	model    string
	provider Provider
}

func NewTutor(name, model string, p Provider) *Tutor {
	return &Tutor{name: name, model: model, provider: p}
}

// New builds the tutor for cfg.Provider. Unknown providers and missing
// credentials are reported before any request is served.
func New(ctx context.Context, cfg Config) (*Tutor, error) {
	return DefaultRegistry().Build(ctx, cfg)
}

// Close releases the provider's client when it holds one.
func (t *Tutor) Close() error {
	if c, ok := t.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Tutor) Provider() string { return t.name }
func (t *Tutor) Model() string    { return t.model }

// GetResponse is a pure function of its inputs plus the backend's answer.
// Backend errors are logged and returned unchanged.
func (t *Tutor) GetResponse(ctx context.Context, profile *models.Profile, history []models.Message, mode *models.TeachingMode) (string, error) {
	systemPrompt := BuildSystemPrompt(profile, mode)

	reply, err := t.provider.Chat(ctx, systemPrompt, history)
	if err != nil {
		log.Printf("[ai] provider=%s model=%s chat failed err=%v", t.name, t.model, err)
		return "", err
	}
	return reply, nil
}

// chatTurn is the role/content pair used by the turn-based backends.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatTurns prepends the system prompt and keeps history order and roles as-is.
func chatTurns(systemPrompt string, history []models.Message) []chatTurn {
	out := make([]chatTurn, 0, len(history)+1)
	out = append(out, chatTurn{Role: string(models.RoleSystem), Content: systemPrompt})
	for _, m := range history {
		out = append(out, chatTurn{Role: string(m.Role), Content: m.Content})
	}
	return out
}

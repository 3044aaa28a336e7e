package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/suPer8Hu/germanleap/internal/models"
)

func TestFlattenConversation(t *testing.T) {
	now := time.Now()
	history := []models.Message{
		models.NewMessage(models.RoleUser, "Hallo", now),
		models.NewMessage(models.RoleSystem, "hidden", now),
		models.NewMessage(models.RoleAssistant, "Hallo! Wie geht's?", now),
		models.NewMessage(models.RoleUser, "Gut.", now),
	}

	got := FlattenConversation("SYS", history)

	want := "SYS\n\n\n\nUser: Hallo\n\nAssistant: Hallo! Wie geht's?\n\nUser: Gut."
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
}

func TestFlattenConversation_NoHistory(t *testing.T) {
	if got := FlattenConversation("SYS", nil); got != "SYS\n\n" {
		t.Fatalf("got %q", got)
	}
}

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Guten "), genai.Text("Tag!")}},
		}},
	}
	got, err := geminiText(resp)
	if err != nil {
		t.Fatalf("geminiText: %v", err)
	}
	if got != "Guten Tag!" {
		t.Fatalf("unexpected text %q", got)
	}

	for _, empty := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
	} {
		if _, err := geminiText(empty); !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("expected ErrEmptyResponse, got %v", err)
		}
	}
}

type fakeGenerativeModel struct {
	temperature float32
	maxTokens   int32
	prompt      string
	resp        *genai.GenerateContentResponse
	err         error
}

func (m *fakeGenerativeModel) SetTemperature(v float32)   { m.temperature = v }
func (m *fakeGenerativeModel) SetMaxOutputTokens(v int32) { m.maxTokens = v }

func (m *fakeGenerativeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	if len(parts) == 1 {
		if t, ok := parts[0].(genai.Text); ok {
			m.prompt = string(t)
		}
	}
	return m.resp, m.err
}

func TestGeminiChat(t *testing.T) {
	fake := &fakeGenerativeModel{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("Servus!")}}}},
	}}
	var gotName string
	g := &GeminiProvider{
		modelName: "gemini-1.5-pro",
		model: func(name string) generativeModel {
			gotName = name
			return fake
		},
	}
	history := []models.Message{models.NewMessage(models.RoleUser, "Hallo", time.Now())}

	reply, err := g.Chat(context.Background(), "SYS", history)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Servus!" || gotName != "gemini-1.5-pro" {
		t.Fatalf("reply=%q model=%q", reply, gotName)
	}
	if fake.temperature != 0.7 || fake.maxTokens != 1000 {
		t.Fatalf("sampling settings temperature=%v max_tokens=%d", fake.temperature, fake.maxTokens)
	}
	if fake.prompt != FlattenConversation("SYS", history) {
		t.Fatalf("unexpected prompt %q", fake.prompt)
	}

	upstream := errors.New("quota exceeded")
	fake.err = upstream
	if _, err := g.Chat(context.Background(), "SYS", history); err != upstream {
		t.Fatalf("expected upstream error unchanged, got %v", err)
	}
	if err := g.Close(); err != nil {
		t.Fatalf("close without client: %v", err)
	}
}

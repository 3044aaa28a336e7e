package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TeachingMode is the conversational focus of a session.
type TeachingMode string

const (
	ModeGrammarPractice    TeachingMode = "grammar_practice"
	ModeVocabularyBuilding TeachingMode = "vocabulary_building"
	ModeSpeakingPractice   TeachingMode = "speaking_practice"
	ModeExamPreparation    TeachingMode = "exam_preparation"
	ModeInterviewCoaching  TeachingMode = "interview_coaching"
	ModeCareerGuidance     TeachingMode = "career_guidance"
)

var TeachingModes = []TeachingMode{
	ModeGrammarPractice,
	ModeVocabularyBuilding,
	ModeSpeakingPractice,
	ModeExamPreparation,
	ModeInterviewCoaching,
	ModeCareerGuidance,
}

func (m TeachingMode) Valid() bool {
	for _, known := range TeachingModes {
		if m == known {
			return true
		}
	}
	return false
}

// Title renders the mode key for display: "grammar_practice" -> "Grammar Practice".
func (m TeachingMode) Title() string {
	words := strings.Fields(strings.ReplaceAll(string(m), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// Message is immutable once appended to a session.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(role Role, content string, at time.Time) Message {
	return Message{Role: role, Content: content, Timestamp: at.UTC()}
}

// ChatSession is an append-only conversation owned by one profile.
type ChatSession struct {
	SessionID    string        `json:"session_id"`
	StudentID    string        `json:"student_id"`
	TeachingMode *TeachingMode `json:"teaching_mode"`
	Messages     []Message     `json:"messages"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func NewChatSession(sessionID, studentID string, mode *TeachingMode, at time.Time) *ChatSession {
	at = at.UTC()
	s := &ChatSession{
		SessionID: sessionID,
		StudentID: studentID,
		Messages:  []Message{},
		CreatedAt: at,
		UpdatedAt: at,
	}
	if mode != nil {
		m := *mode
		s.TeachingMode = &m
	}
	return s
}

func (s *ChatSession) Append(m Message) {
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = m.Timestamp
}

func (s *ChatSession) SetTeachingMode(mode TeachingMode, at time.Time) {
	s.TeachingMode = &mode
	s.UpdatedAt = at.UTC()
}

// History returns a copy of the ordered message sequence.
func (s *ChatSession) History() []Message {
	return append([]Message(nil), s.Messages...)
}

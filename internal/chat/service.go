// Package chat runs one tutoring exchange per request: resolve the profile,
// load or create the session, ask the tutor, append both turns and persist.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

var (
	ErrProfileNotFound = errors.New("student profile not found")
	ErrSessionNotFound = errors.New("session not found")
)

// Responder produces the tutor's reply. *ai.Tutor implements it.
type Responder interface {
	GetResponse(ctx context.Context, profile *models.Profile, history []models.Message, mode *models.TeachingMode) (string, error)
}

type SendRequest struct {
	StudentID    string
	SessionID    string // empty starts a new session
	Message      string
	TeachingMode *models.TeachingMode
}

type Reply struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type Service struct {
	store store.Store
	tutor Responder
	now   func() time.Time

	jobs  JobStore
	queue JobQueue
}

func NewService(st store.Store, tutor Responder) *Service {
	return &Service{store: st, tutor: tutor, now: time.Now}
}

// SendMessage persists nothing until the tutor has answered: a provider
// failure leaves the stored session untouched and the inbound message is
// dropped. Two concurrent calls on one session are last-writer-wins.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*Reply, error) {
	// 1) profile
	profile, err := s.store.GetProfile(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, req.StudentID)
		}
		return nil, err
	}

	// 2) resolve or create session
	var sess *models.ChatSession
	if req.SessionID != "" {
		sess, err = s.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
	} else {
		sid, err := NewSessionID()
		if err != nil {
			return nil, err
		}
		sess = models.NewChatSession(sid, req.StudentID, req.TeachingMode, s.now())
	}

	// 3) user turn
	sess.Append(models.NewMessage(models.RoleUser, req.Message, s.now()))

	// 4) request mode wins over the stored one
	mode := sess.TeachingMode
	if req.TeachingMode != nil {
		mode = req.TeachingMode
	}
	reply, err := s.tutor.GetResponse(ctx, profile, sess.History(), mode)
	if err != nil {
		return nil, err
	}

	// 5) assistant turn
	assistant := models.NewMessage(models.RoleAssistant, reply, s.now())
	sess.Append(assistant)

	// 6) remember an explicit mode for later requests
	if req.TeachingMode != nil {
		sess.SetTeachingMode(*req.TeachingMode, assistant.Timestamp)
	}

	// 7) persist the whole session
	if err := s.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	return &Reply{
		SessionID: sess.SessionID,
		Message:   reply,
		Timestamp: assistant.Timestamp,
	}, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, err
	}
	return sess, nil
}

// ListStudentSessions returns the student's sessions newest first. An
// unknown student simply has none.
func (s *Service) ListStudentSessions(ctx context.Context, studentID string) ([]*models.ChatSession, error) {
	return s.store.GetSessionsByStudent(ctx, studentID)
}

package handlers

import (
	"github.com/suPer8Hu/germanleap/internal/auth"
	"github.com/suPer8Hu/germanleap/internal/chat"
	"github.com/suPer8Hu/germanleap/internal/student"
)

// Services are the components the handlers call into.
type Services struct {
	Auth     *auth.Service
	Students *student.Service
	Chat     *chat.Service

	// AIProvider is reported by /health.
	AIProvider string
}

type Handler struct {
	AuthSvc    *auth.Service
	StudentSvc *student.Service
	ChatSvc    *chat.Service
	aiProvider string
}

func NewHandler(s Services) *Handler {
	return &Handler{
		AuthSvc:    s.Auth,
		StudentSvc: s.Students,
		ChatSvc:    s.Chat,
		aiProvider: s.AIProvider,
	}
}

package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/germanleap/internal/chat"
	"github.com/suPer8Hu/germanleap/internal/common"
	"github.com/suPer8Hu/germanleap/internal/models"
)

type sendMessageReq struct {
	StudentID    string               `json:"student_id" binding:"required"`
	SessionID    string               `json:"session_id"`
	Message      *string              `json:"message" binding:"required"`
	TeachingMode *models.TeachingMode `json:"teaching_mode" binding:"omitempty,teaching_mode"`
}

func (r sendMessageReq) toSend() chat.SendRequest {
	out := chat.SendRequest{
		StudentID: r.StudentID,
		SessionID: strings.TrimSpace(r.SessionID),
		Message:   *r.Message,
	}
	// "" means no mode, like an absent field
	if r.TeachingMode != nil && *r.TeachingMode != "" {
		out.TeachingMode = r.TeachingMode
	}
	return out
}

// chatError maps orchestrator errors onto the envelope. Anything that is not
// a not-found condition is a generic 500 carrying the underlying text.
func chatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrProfileNotFound):
		common.Fail(c, http.StatusNotFound, 40401, err.Error())
	case errors.Is(err, chat.ErrSessionNotFound):
		common.Fail(c, http.StatusNotFound, 40402, err.Error())
	case errors.Is(err, chat.ErrJobNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "job not found")
	case errors.Is(err, chat.ErrJobsDisabled):
		common.Fail(c, http.StatusServiceUnavailable, 50301, err.Error())
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "Error processing message: "+err.Error())
	}
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, bindMessage(err))
		return
	}

	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), req.toSend())
	if err != nil {
		log.Printf("[chat] send failed student_id=%s session_id=%s err=%v", req.StudentID, req.SessionID, err)
		chatError(c, err)
		return
	}
	common.OK(c, reply)
}

func (h *Handler) GetChatSession(c *gin.Context) {
	sess, err := h.ChatSvc.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "Session not found")
			return
		}
		chatError(c, err)
		return
	}
	common.OK(c, sess)
}

func (h *Handler) ListStudentSessions(c *gin.Context) {
	sessions, err := h.ChatSvc.ListStudentSessions(c.Request.Context(), c.Param("student_id"))
	if err != nil {
		log.Printf("[chat] list sessions failed student_id=%s err=%v", c.Param("student_id"), err)
		chatError(c, err)
		return
	}
	common.OK(c, gin.H{"sessions": sessions})
}

func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, bindMessage(err))
		return
	}

	// read idempotency key
	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}

	job, created, err := h.ChatSvc.EnqueueMessage(c.Request.Context(), req.toSend(), idempoKey)
	if err != nil {
		log.Printf("[chat] enqueue failed student_id=%s session_id=%s key=%s err=%v", req.StudentID, req.SessionID, idempoKey, err)
		chatError(c, err)
		return
	}
	if !created {
		log.Printf("[chat] idempotent replay student_id=%s key=%s job_id=%s", req.StudentID, idempoKey, job.ID)
	}
	common.OK(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		chatError(c, err)
		return
	}
	common.OK(c, gin.H{"job": j})
}

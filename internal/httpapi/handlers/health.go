package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/germanleap/internal/common"
)

func (h *Handler) Root(c *gin.Context) {
	common.OK(c, gin.H{
		"message": "GermanLeap Lea AI Tutor API",
		"version": "1.0.0",
		"status":  "running",
	})
}

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{
		"status":      "healthy",
		"ai_provider": h.aiProvider,
	})
}

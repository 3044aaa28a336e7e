package middleware

import (
	"log"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/suPer8Hu/germanleap/internal/auth"
	"github.com/suPer8Hu/germanleap/internal/common"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-ID"
	StudentIDKey    = "student_id"
)

// Recovery turns a panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[http] panic request_id=%s path=%s err=%v\n%s",
					c.GetString(RequestIDKey), c.Request.URL.Path, r, debug.Stack())
				common.Abort(c, http.StatusInternalServerError, 50000, "internal server error")
			}
		}()
		c.Next()
	}
}

// RequestID echoes a caller-supplied X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AuthRequired accepts "Authorization: Bearer <jwt>" and stores the token's
// student id under StudentIDKey.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			common.Abort(c, http.StatusUnauthorized, 40101, "missing or invalid token")
			return
		}
		studentID, err := auth.ParseJWT(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), secret)
		if err != nil {
			common.Abort(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}
		c.Set(StudentIDKey, studentID)
		c.Next()
	}
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/germanleap/internal/common"
	"github.com/suPer8Hu/germanleap/internal/config"
	"github.com/suPer8Hu/germanleap/internal/httpapi/handlers"
	"github.com/suPer8Hu/germanleap/internal/httpapi/middleware"
)

func NewRouter(cfg config.Config, svc handlers.Services) *gin.Engine {
	handlers.RegisterValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	h := handlers.NewHandler(svc)

	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	api := r.Group("/api")

	// auth
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/login", h.Login)
	api.GET("/auth/me", middleware.AuthRequired(cfg.JWTSecret), h.Me)

	// profiles
	api.POST("/students/profile", h.CreateProfile)
	api.GET("/students/profile/:student_id", h.GetProfile)
	api.PATCH("/students/profile/:student_id", h.UpdateProfile)

	// chat
	api.POST("/chat/message", h.SendChatMessage)
	api.GET("/chat/session/:session_id", h.GetChatSession)
	api.GET("/chat/student/:student_id/sessions", h.ListStudentSessions)

	// async chat (CHAT_JOBS_ENABLED)
	api.POST("/chat/message/async", h.SendChatMessageAsync)
	api.GET("/chat/jobs/:job_id", h.GetChatJob)

	return r
}

package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/germanleap/internal/auth"
	"github.com/suPer8Hu/germanleap/internal/common"
	"github.com/suPer8Hu/germanleap/internal/httpapi/middleware"
	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

type signupReq struct {
	Name           string       `json:"name" binding:"required"`
	Email          string       `json:"email" binding:"required"`
	Password       string       `json:"password" binding:"required"`
	CurrentLevel   models.Level `json:"current_level" binding:"required,level"`
	Goals          []string     `json:"goals"`
	TargetExam     *string      `json:"target_exam"`
	CareerInterest *string      `json:"career_interest"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func authPayload(res *auth.Result) gin.H {
	return gin.H{
		"success": res.Success,
		"message": res.Message,
		"profile": res.Profile.Redacted(),
		"token":   res.Token,
	}
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, bindMessage(err))
		return
	}

	res, err := h.AuthSvc.Signup(c.Request.Context(), auth.SignupInput{
		Name:           req.Name,
		Email:          req.Email,
		Password:       req.Password,
		CurrentLevel:   req.CurrentLevel,
		Goals:          req.Goals,
		TargetExam:     req.TargetExam,
		CareerInterest: req.CareerInterest,
	})
	if err != nil {
		log.Printf("[auth] signup failed email=%s err=%v", req.Email, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "Error during signup: "+err.Error())
		return
	}
	if !res.Success {
		common.Fail(c, http.StatusBadRequest, 10010, res.Message)
		return
	}
	common.OK(c, authPayload(res))
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, bindMessage(err))
		return
	}

	res, err := h.AuthSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("[auth] login failed email=%s err=%v", req.Email, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "Error during login: "+err.Error())
		return
	}
	if !res.Success {
		common.Fail(c, http.StatusUnauthorized, 40110, res.Message)
		return
	}
	common.OK(c, authPayload(res))
}

func (h *Handler) Me(c *gin.Context) {
	studentID := c.GetString(middleware.StudentIDKey)
	if studentID == "" {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	p, err := h.AuthSvc.Me(c.Request.Context(), studentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "Profile not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	common.OK(c, p.Redacted())
}

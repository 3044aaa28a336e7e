package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/suPer8Hu/germanleap/internal/common"
	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/student"
)

type createProfileReq struct {
	Name           string       `json:"name" binding:"required"`
	Email          string       `json:"email" binding:"required"`
	CurrentLevel   models.Level `json:"current_level" binding:"required,level"`
	Goals          []string     `json:"goals"`
	TargetExam     *string      `json:"target_exam"`
	CareerInterest *string      `json:"career_interest"`
}

func studentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, student.ErrProfileNotFound):
		common.Fail(c, http.StatusNotFound, 40401, "Profile not found")
	case errors.Is(err, student.ErrEmailTaken):
		common.Fail(c, http.StatusConflict, 40901, "An account with this email already exists.")
	case errors.Is(err, student.ErrInvalidLevel):
		common.Fail(c, http.StatusBadRequest, 10002, "current_level must be one of A1, A2, B1, B2")
	default:
		log.Printf("[student] request failed path=%s err=%v", c.FullPath(), err)
		common.Fail(c, http.StatusInternalServerError, 50001, "Error processing profile: "+err.Error())
	}
}

func (h *Handler) CreateProfile(c *gin.Context) {
	var req createProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, bindMessage(err))
		return
	}

	p, err := h.StudentSvc.Create(c.Request.Context(), student.CreateInput{
		Name:           req.Name,
		Email:          req.Email,
		CurrentLevel:   req.CurrentLevel,
		Goals:          req.Goals,
		TargetExam:     req.TargetExam,
		CareerInterest: req.CareerInterest,
	})
	if err != nil {
		studentError(c, err)
		return
	}
	common.Created(c, p.Redacted())
}

func (h *Handler) GetProfile(c *gin.Context) {
	p, err := h.StudentSvc.Get(c.Request.Context(), c.Param("student_id"))
	if err != nil {
		studentError(c, err)
		return
	}
	common.OK(c, p.Redacted())
}

// UpdateProfile applies only the enumerated fields that are present and
// non-null; unknown keys are ignored.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var u student.ProfileUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, bindMessage(err))
		return
	}

	p, err := h.StudentSvc.Update(c.Request.Context(), c.Param("student_id"), u)
	if err != nil {
		studentError(c, err)
		return
	}
	common.OK(c, p.Redacted())
}

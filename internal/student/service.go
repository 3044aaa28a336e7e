// Package student creates, reads and partially updates learner profiles.
package student

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidLevel    = errors.New("invalid level")
)

type CreateInput struct {
	Name           string
	Email          string
	CurrentLevel   models.Level
	Goals          []string
	TargetExam     *string
	CareerInterest *string
}

// ProfileUpdate lists the updatable fields. A nil field is left unchanged,
// so a JSON null cannot clear goals, target_exam or career_interest.
type ProfileUpdate struct {
	Name           *string       `json:"name"`
	Email          *string       `json:"email"`
	CurrentLevel   *models.Level `json:"current_level"`
	Goals          *[]string     `json:"goals"`
	TargetExam     *string       `json:"target_exam"`
	CareerInterest *string       `json:"career_interest"`
}

type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Profile, error) {
	if !in.CurrentLevel.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, in.CurrentLevel)
	}
	goals := in.Goals
	if goals == nil {
		goals = []string{}
	}
	now := s.now().UTC()
	p := &models.Profile{
		StudentID:      uuid.NewString(),
		Name:           in.Name,
		Email:          in.Email,
		CurrentLevel:   in.CurrentLevel,
		Goals:          goals,
		TargetExam:     in.TargetExam,
		CareerInterest: in.CareerInterest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, in.Email)
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, studentID string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, studentID)
		}
		return nil, err
	}
	return p, nil
}

// Update merges the non-nil fields of u into the stored profile.
func (s *Service) Update(ctx context.Context, studentID string, u ProfileUpdate) (*models.Profile, error) {
	p, err := s.Get(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.CurrentLevel != nil {
		if !u.CurrentLevel.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, *u.CurrentLevel)
		}
		p.CurrentLevel = *u.CurrentLevel
	}
	if u.Goals != nil {
		p.Goals = append([]string{}, (*u.Goals)...)
	}
	if u.TargetExam != nil {
		p.TargetExam = u.TargetExam
	}
	if u.CareerInterest != nil {
		p.CareerInterest = u.CareerInterest
	}

	if err := s.store.SaveProfile(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, p.Email)
		}
		return nil, err
	}
	return p, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

const (
	msgEmailExists   = "An account with this email already exists. Please login instead."
	msgSignupOK      = "Account created successfully!"
	msgNoAccount     = "No account found with this email. Please sign up first."
	msgNoPassword    = "This account was created without a password. Please sign up again."
	msgWrongPassword = "Incorrect password. Please try again."
	msgLoginOK       = "Login successful!"
)

// Result is the outcome of signup or login. Expected rejections come back
// with Success=false and a human-readable Message, never as an error.
// Profile still carries the password hash; callers scrub it before
// returning it to a client.
type Result struct {
	Success bool
	Message string
	Profile *models.Profile
	Token   string
}

type SignupInput struct {
	Name           string
	Email          string
	Password       string
	CurrentLevel   models.Level
	Goals          []string
	TargetExam     *string
	CareerInterest *string
}

type Service struct {
	store     store.Store
	hasher    Hasher
	jwtSecret string
	jwtTTL    time.Duration
	now       func() time.Time
}

func NewService(st store.Store, hasher Hasher, jwtSecret string, jwtTTL time.Duration) *Service {
	if jwtTTL <= 0 {
		jwtTTL = 24 * time.Hour
	}
	return &Service{store: st, hasher: hasher, jwtSecret: jwtSecret, jwtTTL: jwtTTL, now: time.Now}
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	_, err := s.store.GetProfileByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return &Result{Success: false, Message: msgEmailExists}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
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
		PasswordHash:   &hash,
		CurrentLevel:   in.CurrentLevel,
		Goals:          goals,
		TargetExam:     in.TargetExam,
		CareerInterest: in.CareerInterest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, store.ErrDuplicateEmail) {
			return &Result{Success: false, Message: msgEmailExists}, nil
		}
		return nil, err
	}

	token, err := SignJWT(p.StudentID, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	log.Printf("[auth] signup student_id=%s", p.StudentID)
	return &Result{Success: true, Message: msgSignupOK, Profile: p, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	p, err := s.store.GetProfileByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &Result{Success: false, Message: msgNoAccount}, nil
		}
		return nil, err
	}

	if !p.HasPassword() {
		return &Result{Success: false, Message: msgNoPassword}, nil
	}

	if err := s.hasher.Verify(password, *p.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return &Result{Success: false, Message: msgWrongPassword}, nil
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}

	token, err := SignJWT(p.StudentID, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Result{Success: true, Message: msgLoginOK, Profile: p, Token: token}, nil
}

// Me resolves the profile a token was issued for.
func (s *Service) Me(ctx context.Context, studentID string) (*models.Profile, error) {
	return s.store.GetProfile(ctx, studentID)
}

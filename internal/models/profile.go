package models

import "time"

// Level is a CEFR proficiency level.
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
)

func (l Level) Valid() bool {
	switch l {
	case LevelA1, LevelA2, LevelB1, LevelB2:
		return true
	}
	return false
}

// Profile is a learner's identity and preferences record.
// A nil PasswordHash marks an account created before password support;
// such accounts cannot log in.
type Profile struct {
	StudentID      string    `json:"student_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   *string   `json:"password_hash,omitempty"`
	CurrentLevel   Level     `json:"current_level"`
	Goals          []string  `json:"goals"`
	TargetExam     *string   `json:"target_exam"`
	CareerInterest *string   `json:"career_interest"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (p *Profile) HasPassword() bool {
	return p.PasswordHash != nil && *p.PasswordHash != ""
}

// Redacted returns a copy safe to hand to clients.
func (p *Profile) Redacted() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	out.PasswordHash = nil
	out.Goals = append([]string{}, p.Goals...)
	return &out
}

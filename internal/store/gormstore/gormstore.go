// Package gormstore keeps profiles and sessions in a relational database.
// Goals and messages live in JSON columns so a session is still written as
// one row.
package gormstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

type profileRow struct {
	StudentID      string                      `gorm:"primaryKey;type:varchar(36)"`
	Name           string                      `gorm:"type:varchar(255);not null"`
	Email          string                      `gorm:"type:varchar(255);index;not null"`
	PasswordHash   *string                     `gorm:"type:varchar(255)"`
	CurrentLevel   string                      `gorm:"type:varchar(4);not null"`
	Goals          datatypes.JSONSlice[string] `gorm:"not null"`
	TargetExam     *string                     `gorm:"type:varchar(255)"`
	CareerInterest *string                     `gorm:"type:varchar(255)"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (profileRow) TableName() string { return "student_profiles" }

type sessionRow struct {
	SessionID    string                              `gorm:"primaryKey;type:varchar(64)"`
	StudentID    string                              `gorm:"type:varchar(36);index;not null"`
	TeachingMode *string                             `gorm:"type:varchar(32)"`
	Messages     datatypes.JSONSlice[models.Message] `gorm:"not null"`
	CreatedAt    time.Time                           `gorm:"index"`
	UpdatedAt    time.Time
}

func (sessionRow) TableName() string { return "chat_sessions" }

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&profileRow{}, &sessionRow{})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

func (s *Store) GetProfile(ctx context.Context, studentID string) (*models.Profile, error) {
	var row profileRow
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var row profileRow
	if err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	existing, err := s.GetProfileByEmail(ctx, p.Email)
	switch {
	case err == nil && existing.StudentID != p.StudentID:
		return store.ErrDuplicateEmail
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	row := profileFromModel(p)
	row.UpdatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error; err != nil {
		return err
	}
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	var row sessionRow
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&row).Error; err != nil {
		return nil, notFound(err)
	}
	return row.toModel(), nil
}

func (s *Store) SaveSession(ctx context.Context, sess *models.ChatSession) error {
	row := sessionFromModel(sess)
	row.UpdatedAt = s.now().UTC()
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error; err != nil {
		return err
	}
	sess.UpdatedAt = row.UpdatedAt
	return nil
}

func (s *Store) GetSessionsByStudent(ctx context.Context, studentID string) ([]*models.ChatSession, error) {
	var rows []sessionRow
	if err := s.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.ChatSession, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func profileFromModel(p *models.Profile) profileRow {
	goals := p.Goals
	if goals == nil {
		goals = []string{}
	}
	return profileRow{
		StudentID:      p.StudentID,
		Name:           p.Name,
		Email:          p.Email,
		PasswordHash:   p.PasswordHash,
		CurrentLevel:   string(p.CurrentLevel),
		Goals:          datatypes.JSONSlice[string](goals),
		TargetExam:     p.TargetExam,
		CareerInterest: p.CareerInterest,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (r *profileRow) toModel() *models.Profile {
	goals := []string(r.Goals)
	if goals == nil {
		goals = []string{}
	}
	return &models.Profile{
		StudentID:      r.StudentID,
		Name:           r.Name,
		Email:          r.Email,
		PasswordHash:   r.PasswordHash,
		CurrentLevel:   models.Level(r.CurrentLevel),
		Goals:          goals,
		TargetExam:     r.TargetExam,
		CareerInterest: r.CareerInterest,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func sessionFromModel(s *models.ChatSession) sessionRow {
	msgs := s.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	row := sessionRow{
		SessionID: s.SessionID,
		StudentID: s.StudentID,
		Messages:  datatypes.JSONSlice[models.Message](msgs),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if s.TeachingMode != nil {
		m := string(*s.TeachingMode)
		row.TeachingMode = &m
	}
	return row
}

func (r *sessionRow) toModel() *models.ChatSession {
	msgs := []models.Message(r.Messages)
	if msgs == nil {
		msgs = []models.Message{}
	}
	sess := &models.ChatSession{
		SessionID: r.SessionID,
		StudentID: r.StudentID,
		Messages:  msgs,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.TeachingMode != nil {
		m := models.TeachingMode(*r.TeachingMode)
		sess.TeachingMode = &m
	}
	return sess
}

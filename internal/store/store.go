// Package store defines the profile/session persistence contract shared by
// every backend.
package store

import (
	"context"
	"errors"

	"github.com/suPer8Hu/germanleap/internal/models"
)

var (
	ErrNotFound       = errors.New("store: record not found")
	ErrDuplicateEmail = errors.New("store: email already registered")
)

// Store persists profiles and chat sessions as whole-record snapshots.
// Writes are upserts; there is no transaction spanning records and no
// optimistic concurrency token, so concurrent read-modify-write cycles on
// the same session are last-writer-wins.
type Store interface {
	GetProfile(ctx context.Context, studentID string) (*models.Profile, error)
	// GetProfileByEmail matches case-insensitively.
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	// SaveProfile rejects an email owned by another student with
	// ErrDuplicateEmail and sets p.UpdatedAt.
	SaveProfile(ctx context.Context, p *models.Profile) error

	GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error)
	// SaveSession sets s.UpdatedAt.
	SaveSession(ctx context.Context, s *models.ChatSession) error
	// GetSessionsByStudent returns sessions newest first by CreatedAt.
	GetSessionsByStudent(ctx context.Context, studentID string) ([]*models.ChatSession, error)

	Close() error
}

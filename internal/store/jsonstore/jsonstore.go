// Package jsonstore keeps every profile and session as one self-contained
// JSON document: profiles/<student_id>.json and sessions/<session_id>.json.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

const (
	profilesPrefix = "profiles/"
	sessionsPrefix = "sessions/"
)

type Store struct {
	blobs Blobs
	now   func() time.Time
}

var _ store.Store = (*Store)(nil)

func New(blobs Blobs) *Store {
	return &Store{blobs: blobs, now: time.Now}
}

// NewDisk stores records under dir on the local filesystem.
func NewDisk(dir string) (*Store, error) {
	d, err := NewDiskBlobs(dir)
	if err != nil {
		return nil, err
	}
	return New(d), nil
}

func (s *Store) Close() error { return nil }

// validID rejects ids that would escape their collection.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func (s *Store) getJSON(ctx context.Context, key string, dst any) error {
	data, err := s.blobs.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) putJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.blobs.Put(ctx, key, data)
}

func (s *Store) GetProfile(ctx context.Context, studentID string) (*models.Profile, error) {
	if !validID(studentID) {
		return nil, store.ErrNotFound
	}
	var p models.Profile
	if err := s.getJSON(ctx, profilesPrefix+studentID+".json", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	keys, err := s.blobs.List(ctx, profilesPrefix)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		var p models.Profile
		if err := s.getJSON(ctx, key, &p); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if strings.EqualFold(p.Email, email) {
			return &p, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	if !validID(p.StudentID) {
		return fmt.Errorf("invalid student id %q", p.StudentID)
	}
	existing, err := s.GetProfileByEmail(ctx, p.Email)
	switch {
	case err == nil && existing.StudentID != p.StudentID:
		return store.ErrDuplicateEmail
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	p.UpdatedAt = s.now().UTC()
	return s.putJSON(ctx, profilesPrefix+p.StudentID+".json", p)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	if !validID(sessionID) {
		return nil, store.ErrNotFound
	}
	var sess models.ChatSession
	if err := s.getJSON(ctx, sessionsPrefix+sessionID+".json", &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess *models.ChatSession) error {
	if !validID(sess.SessionID) {
		return fmt.Errorf("invalid session id %q", sess.SessionID)
	}
	sess.UpdatedAt = s.now().UTC()
	return s.putJSON(ctx, sessionsPrefix+sess.SessionID+".json", sess)
}

func (s *Store) GetSessionsByStudent(ctx context.Context, studentID string) ([]*models.ChatSession, error) {
	keys, err := s.blobs.List(ctx, sessionsPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ChatSession, 0)
	for _, key := range keys {
		var sess models.ChatSession
		if err := s.getJSON(ctx, key, &sess); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if sess.StudentID == studentID {
			out = append(out, &sess)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

package chat

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

func newULID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// NewSessionID returns a time-ordered session id.
func NewSessionID() (string, error) { return newULID() }

func NewJobID() (string, error) { return newULID() }

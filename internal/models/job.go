package models

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// ChatJob is one queued chat message processed by the worker.
type ChatJob struct {
	ID           string        `json:"id"` // ULID
	StudentID    string        `json:"student_id"`
	SessionID    string        `json:"session_id,omitempty"`
	Message      string        `json:"message"`
	TeachingMode *TeachingMode `json:"teaching_mode,omitempty"`

	Status JobStatus `json:"status"`

	// Filled when succeeded
	Reply     string     `json:"reply,omitempty"`
	RepliedAt *time.Time `json:"replied_at,omitempty"`

	// Filled when failed
	Error *string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

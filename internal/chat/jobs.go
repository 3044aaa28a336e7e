package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrJobsDisabled = errors.New("async chat jobs are disabled")
)

// JobStore keeps chat job records. Get returns store.ErrNotFound for an
// unknown id.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.ChatJob) error
	GetJob(ctx context.Context, id string) (*models.ChatJob, error)
	SaveJob(ctx context.Context, job *models.ChatJob) error
	DeleteJob(ctx context.Context, id string) error
	// ClaimIdempotencyKey binds (studentID, key) to jobID unless another job
	// already holds it, in which case that job's id is returned.
	ClaimIdempotencyKey(ctx context.Context, studentID, key, jobID string) (existingID string, claimed bool, err error)
	// ReleaseIdempotencyKey unbinds the key only while it still points at jobID.
	ReleaseIdempotencyKey(ctx context.Context, studentID, key, jobID string) error
}

// JobTimeout bounds one worker run.
const JobTimeout = 2 * time.Minute

type JobQueue interface {
	PublishJob(ctx context.Context, jobID string) error
}

// WithJobs enables the async endpoints.
func (s *Service) WithJobs(jobs JobStore, queue JobQueue) *Service {
	s.jobs = jobs
	s.queue = queue
	return s
}

func (s *Service) JobsEnabled() bool { return s.jobs != nil && s.queue != nil }

// EnqueueMessage validates the request, records a queued job and publishes
// it. A repeated idempotency key returns the first job with created=false
// and publishes nothing. A failed publish releases the key so the client
// can retry with it.
func (s *Service) EnqueueMessage(ctx context.Context, req SendRequest, idempotencyKey string) (job *models.ChatJob, created bool, err error) {
	if !s.JobsEnabled() {
		return nil, false, ErrJobsDisabled
	}

	if _, err := s.store.GetProfile(ctx, req.StudentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrProfileNotFound, req.StudentID)
		}
		return nil, false, err
	}
	if req.SessionID != "" {
		if _, err := s.GetSession(ctx, req.SessionID); err != nil {
			return nil, false, err
		}
	}

	jobID, err := NewJobID()
	if err != nil {
		return nil, false, err
	}

	// the record exists before the key can point at it
	now := s.now().UTC()
	job = &models.ChatJob{
		ID:           jobID,
		StudentID:    req.StudentID,
		SessionID:    req.SessionID,
		Message:      req.Message,
		TeachingMode: req.TeachingMode,
		Status:       models.JobQueued,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, false, err
	}

	if idempotencyKey != "" {
		existingID, claimed, err := s.jobs.ClaimIdempotencyKey(ctx, req.StudentID, idempotencyKey, jobID)
		if err != nil {
			s.dropJob(ctx, jobID)
			return nil, false, err
		}
		if !claimed {
			s.dropJob(ctx, jobID)
			existing, err := s.GetJob(ctx, existingID)
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
	}

	if err := s.queue.PublishJob(ctx, job.ID); err != nil {
		log.Printf("[chat] publish failed job_id=%s err=%v", job.ID, err)
		if idempotencyKey != "" {
			if rerr := s.jobs.ReleaseIdempotencyKey(ctx, req.StudentID, idempotencyKey, jobID); rerr != nil {
				log.Printf("[chat] release idempotency key failed job_id=%s key=%s err=%v", job.ID, idempotencyKey, rerr)
			}
		}
		_ = s.failJob(ctx, job, "enqueue failed: "+err.Error())
		return nil, false, err
	}
	return job, true, nil
}

func (s *Service) dropJob(ctx context.Context, jobID string) {
	if err := s.jobs.DeleteJob(ctx, jobID); err != nil {
		log.Printf("[chat] drop unclaimed job failed job_id=%s err=%v", jobID, err)
	}
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*models.ChatJob, error) {
	if s.jobs == nil {
		return nil, ErrJobsDisabled
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, err
	}
	return job, nil
}

// RunJob executes a queued job through SendMessage. A tutor or lookup
// failure is recorded on the job and is not returned: the job is done and
// must not be redelivered. Only a missing job or a job store failure is
// returned.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == models.JobSucceeded || job.Status == models.JobFailed {
		log.Printf("[chat] job already finished job_id=%s status=%s", job.ID, job.Status)
		return nil
	}

	job.Status = models.JobRunning
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return err
	}

	reply, err := s.SendMessage(ctx, SendRequest{
		StudentID:    job.StudentID,
		SessionID:    job.SessionID,
		Message:      job.Message,
		TeachingMode: job.TeachingMode,
	})
	if err != nil {
		log.Printf("[chat] job failed job_id=%s student_id=%s err=%v", job.ID, job.StudentID, err)
		return s.failJob(ctx, job, err.Error())
	}

	at := reply.Timestamp
	job.Status = models.JobSucceeded
	job.SessionID = reply.SessionID
	job.Reply = reply.Message
	job.RepliedAt = &at
	job.Error = nil
	job.UpdatedAt = s.now().UTC()
	return s.jobs.SaveJob(ctx, job)
}

func (s *Service) failJob(ctx context.Context, job *models.ChatJob, msg string) error {
	job.Status = models.JobFailed
	job.Error = &msg
	job.UpdatedAt = s.now().UTC()
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		log.Printf("[chat] mark failed job_id=%s err=%v", job.ID, err)
		return err
	}
	return nil
}

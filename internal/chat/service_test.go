package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/suPer8Hu/germanleap/internal/models"
	"github.com/suPer8Hu/germanleap/internal/store"
	"github.com/suPer8Hu/germanleap/internal/store/jsonstore"
)

type recordingResponder struct {
	reply string
	err   error

	calls   int
	history []models.Message
	mode    *models.TeachingMode
}

func (r *recordingResponder) GetResponse(ctx context.Context, profile *models.Profile, history []models.Message, mode *models.TeachingMode) (string, error) {
	_ = ctx
	r.calls++
	// copy to avoid mutations
	r.history = append([]models.Message(nil), history...)
	r.mode = mode
	if r.err != nil {
		return "", r.err
	}
	return r.reply, nil
}

func openTestService(t *testing.T, resp Responder) (*Service, *jsonstore.Store) {
	t.Helper()
	st, err := jsonstore.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	anna := &models.Profile{
		StudentID:    "anna",
		Name:         "Anna",
		Email:        "anna@example.com",
		CurrentLevel: models.LevelB1,
		Goals:        []string{},
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.SaveProfile(context.Background(), anna); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return NewService(st, resp), st
}

func modePtr(m models.TeachingMode) *models.TeachingMode { return &m }

func TestSendMessage_NewSession(t *testing.T) {
	prov := &recordingResponder{reply: "Man sagt 'Hallo'."}
	svc, st := openTestService(t, prov)
	ctx := context.Background()

	reply, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", Message: "Wie sagt man 'hello'?"})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if reply.SessionID == "" || reply.Message != "Man sagt 'Hallo'." || reply.Timestamp.IsZero() {
		t.Fatalf("unexpected reply %+v", reply)
	}

	sess, err := st.GetSession(ctx, reply.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.StudentID != "anna" || sess.TeachingMode != nil {
		t.Fatalf("unexpected session %+v", sess)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sess.Messages))
	}
	if sess.Messages[0].Role != models.RoleUser || sess.Messages[0].Content != "Wie sagt man 'hello'?" {
		t.Fatalf("unexpected user msg: role=%q content=%q", sess.Messages[0].Role, sess.Messages[0].Content)
	}
	if sess.Messages[1].Role != models.RoleAssistant || sess.Messages[1].Content != "Man sagt 'Hallo'." {
		t.Fatalf("unexpected assistant msg: role=%q content=%q", sess.Messages[1].Role, sess.Messages[1].Content)
	}
	if !sess.Messages[1].Timestamp.Equal(reply.Timestamp) {
		t.Fatalf("reply timestamp %v != stored %v", reply.Timestamp, sess.Messages[1].Timestamp)
	}

	// the tutor sees the history including the just-appended user turn
	if len(prov.history) != 1 || prov.history[0].Content != "Wie sagt man 'hello'?" {
		t.Fatalf("unexpected provider history %+v", prov.history)
	}
}

func TestSendMessage_AppendsToExistingSession(t *testing.T) {
	prov := &recordingResponder{reply: "ok"}
	svc, st := openTestService(t, prov)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", Message: "eins"})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", SessionID: first.SessionID, Message: "zwei"})
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Fatalf("expected same session, got %s and %s", first.SessionID, second.SessionID)
	}

	sessions, err := st.GetSessionsByStudent(ctx, "anna")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected exactly 1 session, got %d", len(sessions))
	}
	if len(sessions[0].Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(sessions[0].Messages))
	}
	if len(prov.history) != 3 || prov.history[2].Content != "zwei" {
		t.Fatalf("unexpected provider history %+v", prov.history)
	}
}

func TestSendMessage_TeachingModePrecedence(t *testing.T) {
	prov := &recordingResponder{reply: "ok"}
	svc, st := openTestService(t, prov)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", Message: "a", TeachingMode: modePtr(models.ModeGrammarPractice)})
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if prov.mode == nil || *prov.mode != models.ModeGrammarPractice {
		t.Fatalf("expected grammar mode, got %v", prov.mode)
	}

	if _, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", SessionID: first.SessionID, Message: "b", TeachingMode: modePtr(models.ModeVocabularyBuilding)}); err != nil {
		t.Fatalf("second: %v", err)
	}
	if *prov.mode != models.ModeVocabularyBuilding {
		t.Fatalf("request mode must win, got %v", *prov.mode)
	}
	sess, _ := st.GetSession(ctx, first.SessionID)
	if sess.TeachingMode == nil || *sess.TeachingMode != models.ModeVocabularyBuilding {
		t.Fatalf("expected stored vocabulary_building, got %v", sess.TeachingMode)
	}

	if _, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", SessionID: first.SessionID, Message: "c"}); err != nil {
		t.Fatalf("third: %v", err)
	}
	if *prov.mode != models.ModeVocabularyBuilding {
		t.Fatalf("expected stored mode fallback, got %v", *prov.mode)
	}
	sess, _ = st.GetSession(ctx, first.SessionID)
	if *sess.TeachingMode != models.ModeVocabularyBuilding {
		t.Fatalf("mode changed without an explicit request: %v", *sess.TeachingMode)
	}
}

func TestSendMessage_ProviderFailurePersistsNothing(t *testing.T) {
	upstream := errors.New("429 rate limited")
	prov := &recordingResponder{reply: "ok"}
	svc, st := openTestService(t, prov)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", Message: "hallo"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	prov.err = upstream
	_, err = svc.SendMessage(ctx, SendRequest{StudentID: "anna", SessionID: first.SessionID, Message: "lost", TeachingMode: modePtr(models.ModeCareerGuidance)})
	if err != upstream {
		t.Fatalf("expected provider error unchanged, got %v", err)
	}
	sess, _ := st.GetSession(ctx, first.SessionID)
	if len(sess.Messages) != 2 || sess.TeachingMode != nil {
		t.Fatalf("failed request leaked into session: %+v", sess)
	}

	if _, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", Message: "new"}); !errors.Is(err, upstream) {
		t.Fatalf("expected provider error, got %v", err)
	}
	list, _ := st.GetSessionsByStudent(ctx, "anna")
	if len(list) != 1 {
		t.Fatalf("failed new-session request must not create a session, have %d", len(list))
	}
}

func TestSendMessage_NotFound(t *testing.T) {
	prov := &recordingResponder{reply: "ok"}
	svc, _ := openTestService(t, prov)
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, SendRequest{StudentID: "ghost", Message: "hi"}); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", SessionID: "nope", Message: "hi"}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.GetSession(ctx, "nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if prov.calls != 0 {
		t.Fatalf("tutor must not be called on lookup failures, got %d calls", prov.calls)
	}
}

func TestListStudentSessions(t *testing.T) {
	prov := &recordingResponder{reply: "ok"}
	svc, _ := openTestService(t, prov)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.SendMessage(ctx, SendRequest{StudentID: "anna", Message: "hi"}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	list, err := svc.ListStudentSessions(ctx, "anna")
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 sessions, got %d (%v)", len(list), err)
	}
	none, err := svc.ListStudentSessions(ctx, "ghost")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no sessions, got %d (%v)", len(none), err)
	}
}

type memJobs struct {
	mu    sync.Mutex
	jobs  map[string]models.ChatJob
	keys  map[string]string
	saves int

	createErr error // returned once by CreateJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: map[string]models.ChatJob{}, keys: map[string]string{}}
}

func (m *memJobs) CreateJob(ctx context.Context, job *models.ChatJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr; err != nil {
		m.createErr = nil
		return err
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) DeleteJob(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *memJobs) GetJob(ctx context.Context, id string) (*models.ChatJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &j, nil
}

func (m *memJobs) SaveJob(ctx context.Context, job *models.ChatJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobs) ClaimIdempotencyKey(ctx context.Context, studentID, key, jobID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := studentID + ":" + key
	if existing, ok := m.keys[k]; ok {
		return existing, false, nil
	}
	m.keys[k] = jobID
	return jobID, true, nil
}

func (m *memJobs) ReleaseIdempotencyKey(ctx context.Context, studentID, key, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := studentID + ":" + key
	if m.keys[k] == jobID {
		delete(m.keys, k)
	}
	return nil
}

type memQueue struct {
	published []string
	err       error
	failOnce  error
}

func (q *memQueue) PublishJob(ctx context.Context, jobID string) error {
	if q.err != nil {
		return q.err
	}
	if err := q.failOnce; err != nil {
		q.failOnce = nil
		return err
	}
	q.published = append(q.published, jobID)
	return nil
}

func TestJobs_Disabled(t *testing.T) {
	svc, _ := openTestService(t, &recordingResponder{reply: "ok"})
	if _, _, err := svc.EnqueueMessage(context.Background(), SendRequest{StudentID: "anna", Message: "hi"}, ""); !errors.Is(err, ErrJobsDisabled) {
		t.Fatalf("expected ErrJobsDisabled, got %v", err)
	}
}

func TestJobs_EnqueueAndRun(t *testing.T) {
	prov := &recordingResponder{reply: "Guten Tag!"}
	svc, st := openTestService(t, prov)
	jobs, queue := newMemJobs(), &memQueue{}
	svc.WithJobs(jobs, queue)
	ctx := context.Background()

	job, created, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "anna", Message: "Hallo", TeachingMode: modePtr(models.ModeSpeakingPractice)}, "")
	if err != nil || !created {
		t.Fatalf("enqueue: created=%v err=%v", created, err)
	}
	if job.Status != models.JobQueued || len(queue.published) != 1 || queue.published[0] != job.ID {
		t.Fatalf("unexpected job %+v published=%v", job, queue.published)
	}
	if prov.calls != 0 {
		t.Fatalf("enqueue must not call the tutor")
	}

	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("run: %v", err)
	}
	done, err := svc.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if done.Status != models.JobSucceeded || done.Reply != "Guten Tag!" || done.RepliedAt == nil || done.SessionID == "" {
		t.Fatalf("unexpected finished job %+v", done)
	}
	sess, err := st.GetSession(ctx, done.SessionID)
	if err != nil || len(sess.Messages) != 2 || *sess.TeachingMode != models.ModeSpeakingPractice {
		t.Fatalf("job did not run through the orchestrator: %+v %v", sess, err)
	}

	// redelivery of a finished job is a no-op
	if err := svc.RunJob(ctx, job.ID); err != nil || prov.calls != 1 {
		t.Fatalf("rerun: calls=%d err=%v", prov.calls, err)
	}
}

func TestJobs_IdempotencyKey(t *testing.T) {
	svc, _ := openTestService(t, &recordingResponder{reply: "ok"})
	jobs, queue := newMemJobs(), &memQueue{}
	svc.WithJobs(jobs, queue)
	ctx := context.Background()

	first, created, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "anna", Message: "hi"}, "key-1")
	if err != nil || !created {
		t.Fatalf("first: created=%v err=%v", created, err)
	}
	again, created, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "anna", Message: "hi"}, "key-1")
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if created || again.ID != first.ID {
		t.Fatalf("expected existing job %s, got %s created=%v", first.ID, again.ID, created)
	}
	if len(queue.published) != 1 {
		t.Fatalf("repeat must not publish again, published=%v", queue.published)
	}
}

func TestJobs_FailuresAreRecorded(t *testing.T) {
	upstream := errors.New("upstream down")
	prov := &recordingResponder{err: upstream}
	svc, _ := openTestService(t, prov)
	jobs, queue := newMemJobs(), &memQueue{}
	svc.WithJobs(jobs, queue)
	ctx := context.Background()

	job, _, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "anna", Message: "hi"}, "")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := svc.RunJob(ctx, job.ID); err != nil {
		t.Fatalf("tutor failure must not be returned, got %v", err)
	}
	failed, _ := svc.GetJob(ctx, job.ID)
	if failed.Status != models.JobFailed || failed.Error == nil || *failed.Error != "upstream down" {
		t.Fatalf("unexpected failed job %+v", failed)
	}

	if err := svc.RunJob(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	if _, _, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "ghost", Message: "hi"}, ""); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, _, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "anna", SessionID: "nope", Message: "hi"}, ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if len(queue.published) != 1 {
		t.Fatalf("rejected requests must not publish, published=%v", queue.published)
	}

	queue.err = errors.New("channel closed")
	if _, _, err := svc.EnqueueMessage(ctx, SendRequest{StudentID: "anna", Message: "hi"}, ""); err == nil {
		t.Fatalf("expected publish error")
	}
}

func TestJobs_IdempotencyKeySurvivesCreateFailure(t *testing.T) {
	svc, _ := openTestService(t, &recordingResponder{reply: "ok"})
	jobs, queue := newMemJobs(), &memQueue{}
	jobs.createErr = errors.New("redis timeout")
	svc.WithJobs(jobs, queue)
	ctx := context.Background()
	req := SendRequest{StudentID: "anna", Message: "hi"}

	if _, _, err := svc.EnqueueMessage(ctx, req, "k"); err == nil {
		t.Fatalf("expected create error")
	}
	if len(jobs.keys) != 0 {
		t.Fatalf("failed create must not bind the key, keys=%v", jobs.keys)
	}

	job, created, err := svc.EnqueueMessage(ctx, req, "k")
	if err != nil || !created || job.Status != models.JobQueued {
		t.Fatalf("retry: job=%+v created=%v err=%v", job, created, err)
	}
	if len(queue.published) != 1 || queue.published[0] != job.ID {
		t.Fatalf("retry must publish, published=%v", queue.published)
	}
}

func TestJobs_IdempotencyKeyReleasedOnPublishFailure(t *testing.T) {
	svc, _ := openTestService(t, &recordingResponder{reply: "ok"})
	jobs, queue := newMemJobs(), &memQueue{failOnce: errors.New("channel closed")}
	svc.WithJobs(jobs, queue)
	ctx := context.Background()
	req := SendRequest{StudentID: "anna", Message: "hi"}

	if _, _, err := svc.EnqueueMessage(ctx, req, "k"); err == nil {
		t.Fatalf("expected publish error")
	}

	job, created, err := svc.EnqueueMessage(ctx, req, "k")
	if err != nil || !created || job.Status != models.JobQueued {
		t.Fatalf("retry: job=%+v created=%v err=%v", job, created, err)
	}
	if len(queue.published) != 1 || queue.published[0] != job.ID {
		t.Fatalf("retry must publish, published=%v", queue.published)
	}

	again, created, err := svc.EnqueueMessage(ctx, req, "k")
	if err != nil || created || again.ID != job.ID {
		t.Fatalf("replay after retry: job=%+v created=%v err=%v", again, created, err)
	}
}

func TestJobs_LosingClaimDropsItsRecord(t *testing.T) {
	svc, _ := openTestService(t, &recordingResponder{reply: "ok"})
	jobs, queue := newMemJobs(), &memQueue{}
	svc.WithJobs(jobs, queue)
	ctx := context.Background()
	req := SendRequest{StudentID: "anna", Message: "hi"}

	first, _, err := svc.EnqueueMessage(ctx, req, "k")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, _, err := svc.EnqueueMessage(ctx, req, "k"); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if len(jobs.jobs) != 1 {
		t.Fatalf("expected only %s stored, got %d jobs", first.ID, len(jobs.jobs))
	}
}

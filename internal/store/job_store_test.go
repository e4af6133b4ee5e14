package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/voiceforge/api/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSpec() model.JobSpec {
	return model.JobSpec{
		Mode:    model.ModeSpeaker,
		Text:    "hello",
		VoiceID: "voice-1",
	}
}

func TestJobCreateAndGet(t *testing.T) {
	s := NewJobStore(testDB(t))
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.State != model.JobStateQueued || job.Attempt != 0 {
		t.Errorf("new job state=%s attempt=%d, want queued/0", job.State, job.Attempt)
	}

	got, err := s.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Spec.Text != "hello" || got.Spec.Mode != model.ModeSpeaker {
		t.Errorf("spec round-trip mismatch: %+v", got.Spec)
	}
	if got.Result != nil || got.Error != nil {
		t.Error("new job must not carry result or error")
	}
}

func TestJobGetMissing(t *testing.T) {
	s := NewJobStore(testDB(t))
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobTransitionCompareAndSet(t *testing.T) {
	s := NewJobStore(testDB(t))
	ctx := context.Background()

	job, err := s.Create(ctx, testSpec())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	attempt := 1
	running, err := s.Transition(ctx, job.ID, model.JobStateQueued, model.JobStateRunning, TransitionFields{Attempt: &attempt})
	if err != nil {
		t.Fatalf("transition to running: %v", err)
	}
	if running.State != model.JobStateRunning || running.Attempt != 1 {
		t.Errorf("got state=%s attempt=%d", running.State, running.Attempt)
	}
	if !running.UpdatedAt.After(job.UpdatedAt) && !running.UpdatedAt.Equal(job.UpdatedAt) {
		t.Error("updatedAt went backwards")
	}

	// Same transition again must lose: the state already moved.
	if _, err := s.Transition(ctx, job.ID, model.JobStateQueued, model.JobStateRunning, TransitionFields{}); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestJobTransitionMissing(t *testing.T) {
	s := NewJobStore(testDB(t))
	_, err := s.Transition(context.Background(), "nope", model.JobStateQueued, model.JobStateRunning, TransitionFields{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestJobTerminalStateDoesNotRegress(t *testing.T) {
	s := NewJobStore(testDB(t))
	ctx := context.Background()

	job, _ := s.Create(ctx, testSpec())
	attempt := 1
	if _, err := s.Transition(ctx, job.ID, model.JobStateQueued, model.JobStateRunning, TransitionFields{Attempt: &attempt}); err != nil {
		t.Fatalf("to running: %v", err)
	}
	if _, err := s.Transition(ctx, job.ID, model.JobStateRunning, model.JobStateCancelled, TransitionFields{}); err != nil {
		t.Fatalf("to cancelled: %v", err)
	}

	// A late worker result must not overwrite the terminal state.
	result := &model.JobResult{AudioID: job.ID, AudioURL: "/api/audio/" + job.ID, Format: "wav"}
	if _, err := s.Transition(ctx, job.ID, model.JobStateRunning, model.JobStateSucceeded, TransitionFields{Result: result}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := s.Get(ctx, job.ID)
	if got.State != model.JobStateCancelled {
		t.Errorf("terminal state regressed to %s", got.State)
	}
	if got.Result != nil {
		t.Error("cancelled job must not carry a result")
	}
}

func TestJobTransitionStoresResultAndError(t *testing.T) {
	s := NewJobStore(testDB(t))
	ctx := context.Background()

	job, _ := s.Create(ctx, testSpec())
	attempt := 1
	s.Transition(ctx, job.ID, model.JobStateQueued, model.JobStateRunning, TransitionFields{Attempt: &attempt})

	result := &model.JobResult{AudioID: job.ID, AudioURL: "/api/audio/" + job.ID, Format: "wav", DurationSeconds: 1.5}
	done, err := s.Transition(ctx, job.ID, model.JobStateRunning, model.JobStateSucceeded, TransitionFields{Result: result})
	if err != nil {
		t.Fatalf("to succeeded: %v", err)
	}
	if done.Result == nil || done.Result.DurationSeconds != 1.5 {
		t.Errorf("result not persisted: %+v", done.Result)
	}

	failed, _ := s.Create(ctx, testSpec())
	s.Transition(ctx, failed.ID, model.JobStateQueued, model.JobStateRunning, TransitionFields{Attempt: &attempt})
	jerr := &model.JobError{Code: "busy", Message: "engine busy"}
	got, err := s.Transition(ctx, failed.ID, model.JobStateRunning, model.JobStateFailed, TransitionFields{Error: jerr})
	if err != nil {
		t.Fatalf("to failed: %v", err)
	}
	if got.Error == nil || got.Error.Code != "busy" {
		t.Errorf("error not persisted: %+v", got.Error)
	}
}

func TestJobListFiltersByState(t *testing.T) {
	s := NewJobStore(testDB(t))
	ctx := context.Background()

	first, _ := s.Create(ctx, testSpec())
	second, _ := s.Create(ctx, testSpec())
	attempt := 1
	s.Transition(ctx, first.ID, model.JobStateQueued, model.JobStateRunning, TransitionFields{Attempt: &attempt})

	queued, err := s.List(ctx, string(model.JobStateQueued), 50, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(queued) != 1 || queued[0].ID != second.ID {
		t.Errorf("expected only %s queued, got %d jobs", second.ID, len(queued))
	}

	all, err := s.List(ctx, "", 50, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(all))
	}
}

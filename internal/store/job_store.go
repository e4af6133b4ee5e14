package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voiceforge/api/internal/model"
)

var (
	// ErrNotFound is returned when a job does not exist.
	ErrNotFound = errors.New("job not found")
	// ErrConflict is returned by Transition when the stored state does not
	// match the expected from-state. Callers treat it as a lost race, not a
	// failure.
	ErrConflict = errors.New("job state conflict")
)

// TransitionFields carries the optional record updates applied together
// with a state transition. Nil fields leave the stored value untouched.
type TransitionFields struct {
	Attempt *int
	Result  *model.JobResult
	Error   *model.JobError
}

// JobStore is the durable record of every job. The execution engine is the
// only writer; all state changes go through Transition's compare-and-set.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new job in state queued with attempt 0.
func (s *JobStore) Create(ctx context.Context, spec model.JobSpec) (*model.Job, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal job spec: %w", err)
	}

	now := time.Now().UTC()
	job := &model.Job{
		ID:        uuid.New().String(),
		State:     model.JobStateQueued,
		Attempt:   0,
		Spec:      spec,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, state, attempt, spec, result, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, NULL, NULL, ?, ?)`,
		job.ID, job.State, job.Attempt, string(specJSON), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return job, nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(ctx context.Context, id string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, state, attempt, spec, result, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// List returns jobs ordered newest first, optionally filtered by state.
func (s *JobStore) List(ctx context.Context, state string, limit, offset int) ([]*model.Job, error) {
	query := `SELECT id, state, attempt, spec, result, error, created_at, updated_at
		 FROM jobs`
	args := []interface{}{}
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, state)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*model.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Transition atomically moves a job from one state to another, keyed on the
// current state. It returns ErrConflict when the stored state is not `from`
// and ErrNotFound when the job does not exist. This compare-and-set is the
// sole synchronization primitive between the worker and cancellation.
func (s *JobStore) Transition(ctx context.Context, id string, from, to model.JobState, fields TransitionFields) (*model.Job, error) {
	var attempt interface{}
	if fields.Attempt != nil {
		attempt = *fields.Attempt
	}

	result, err := marshalNullable(fields.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal job result: %w", err)
	}
	jobErr, err := marshalNullable(fields.Error)
	if err != nil {
		return nil, fmt.Errorf("marshal job error: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET state = ?,
			attempt = COALESCE(?, attempt),
			result  = COALESCE(?, result),
			error   = COALESCE(?, error),
			updated_at = ?
		 WHERE id = ? AND state = ?`,
		to, attempt, result, jobErr, time.Now().UTC(), id, from,
	)
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("transition job: %w", err)
	}
	if n == 0 {
		// Either the job is gone or the state moved under us.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	return s.Get(ctx, id)
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case *model.JobResult:
		if x == nil {
			return nil, nil
		}
	case *model.JobError:
		if x == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job      model.Job
		specJSON string
		result   sql.NullString
		jobErr   sql.NullString
	)

	err := row.Scan(&job.ID, &job.State, &job.Attempt, &specJSON, &result, &jobErr, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if err := json.Unmarshal([]byte(specJSON), &job.Spec); err != nil {
		return nil, fmt.Errorf("unmarshal job spec: %w", err)
	}
	if result.Valid {
		job.Result = &model.JobResult{}
		if err := json.Unmarshal([]byte(result.String), job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal job result: %w", err)
		}
	}
	if jobErr.Valid {
		job.Error = &model.JobError{}
		if err := json.Unmarshal([]byte(jobErr.String), job.Error); err != nil {
			return nil, fmt.Errorf("unmarshal job error: %w", err)
		}
	}
	return &job, nil
}

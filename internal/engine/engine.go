package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
)

// ErrAlreadyTerminal is returned when cancelling a job that already reached
// a terminal state.
var ErrAlreadyTerminal = errors.New("job already terminal")

// ErrNotRetryable is returned when retrying a job that is not failed or
// cancelled.
var ErrNotRetryable = errors.New("job is not in a retryable state")

// JobStore is the engine's contract with job persistence. Transition must
// be an atomic compare-and-set keyed on the current state, returning
// store.ErrConflict on a state mismatch.
type JobStore interface {
	Create(ctx context.Context, spec model.JobSpec) (*model.Job, error)
	Get(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, state string, limit, offset int) ([]*model.Job, error)
	Transition(ctx context.Context, id string, from, to model.JobState, fields store.TransitionFields) (*model.Job, error)
}

// VoiceResolver resolves voice records, read-only.
type VoiceResolver interface {
	Get(ctx context.Context, id string) (*model.Voice, error)
}

// UploadResolver resolves upload asset records, read-only.
type UploadResolver interface {
	Get(ctx context.Context, id string) (*model.Upload, error)
}

// BlobStore moves audio bytes between object storage and the engine:
// reading clone/emotion reference audio and persisting synthesis results.
type BlobStore interface {
	ReadUpload(ctx context.Context, upload *model.Upload) ([]byte, error)
	SaveResult(ctx context.Context, jobID string, audio []byte) (*model.JobResult, error)
}

// Notifier receives every job state transition. Optional.
type Notifier interface {
	JobUpdated(job *model.Job)
}

// Options configures an Engine.
type Options struct {
	Jobs    JobStore
	Voices  VoiceResolver
	Uploads UploadResolver
	Synth   client.Synthesizer
	Blobs   BlobStore
	// Notifier is optional; nil disables transition broadcasts.
	Notifier Notifier
	// MaxAttempts bounds dispatch attempts per job. Defaults to 3.
	MaxAttempts int
	// DispatchTimeout bounds a single downstream call. Defaults to 5m.
	DispatchTimeout time.Duration
	// RetryDelay is waited before a retried job rejoins the queue tail.
	RetryDelay time.Duration
}

// Engine owns the job lifecycle: it admits submissions, dispatches one job
// at a time against the downstream synthesizer, and applies the
// retry/cancellation policy. The dispatch slot has capacity exactly 1
// because the downstream engine cannot process more than one request
// concurrently.
type Engine struct {
	jobs    JobStore
	voices  VoiceResolver
	uploads UploadResolver
	synth   client.Synthesizer
	blobs   BlobStore
	notif   Notifier

	maxAttempts     int
	dispatchTimeout time.Duration
	retryDelay      time.Duration

	queue *AdmissionQueue
	slot  chan struct{}

	mu             sync.Mutex
	inflightID     string
	inflightCancel context.CancelFunc
}

func New(opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = 5 * time.Minute
	}
	return &Engine{
		jobs:            opts.Jobs,
		voices:          opts.Voices,
		uploads:         opts.Uploads,
		synth:           opts.Synth,
		blobs:           opts.Blobs,
		notif:           opts.Notifier,
		maxAttempts:     opts.MaxAttempts,
		dispatchTimeout: opts.DispatchTimeout,
		retryDelay:      opts.RetryDelay,
		queue:           NewAdmissionQueue(),
		slot:            make(chan struct{}, 1),
	}
}

// Submit validates a job spec, persists it as queued and enqueues its id.
// It never blocks on the dispatch slot.
func (e *Engine) Submit(ctx context.Context, spec *model.JobSpec) (*model.Job, error) {
	if err := ValidateSpec(spec); err != nil {
		return nil, err
	}

	voice, err := e.voices.Get(ctx, spec.VoiceID)
	if errors.Is(err, store.ErrVoiceNotFound) {
		return nil, validationErrorf("voice %s not found", spec.VoiceID)
	}
	if err != nil {
		return nil, err
	}
	if voice.State != model.VoiceStateActive {
		return nil, validationErrorf("voice %s is deleted", spec.VoiceID)
	}

	if spec.Mode == model.ModeReference {
		if _, err := e.uploads.Get(ctx, spec.EmotionAudioID); err != nil {
			if errors.Is(err, store.ErrUploadNotFound) {
				return nil, validationErrorf("emotion audio %s not found", spec.EmotionAudioID)
			}
			return nil, err
		}
	}

	job, err := e.jobs.Create(ctx, *spec)
	if err != nil {
		return nil, err
	}
	e.queue.Enqueue(job.ID)
	e.notify(job)
	return job, nil
}

// Get returns a job by id.
func (e *Engine) Get(ctx context.Context, id string) (*model.Job, error) {
	return e.jobs.Get(ctx, id)
}

// List returns jobs filtered by state.
func (e *Engine) List(ctx context.Context, state string, limit, offset int) ([]*model.Job, error) {
	return e.jobs.List(ctx, state, limit, offset)
}

// Cancel flips a queued or running job to cancelled. For a queued job the
// id is removed from the queue so it never reaches the dispatch slot; for a
// running job the in-flight downstream call is aborted best-effort and a
// late-arriving result is discarded. Both races against the worker resolve
// through the store's compare-and-set.
func (e *Engine) Cancel(ctx context.Context, id string) (*model.Job, error) {
	job, err := e.jobs.Transition(ctx, id, model.JobStateQueued, model.JobStateCancelled, store.TransitionFields{})
	if err == nil {
		e.queue.Remove(id)
		e.notify(job)
		return job, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, err
	}

	job, err = e.jobs.Transition(ctx, id, model.JobStateRunning, model.JobStateCancelled, store.TransitionFields{})
	if err == nil {
		e.abortInflight(id)
		e.notify(job)
		return job, nil
	}
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrAlreadyTerminal
	}
	return nil, err
}

// Retry submits a fresh job with the spec of a failed or cancelled job.
// The voice is re-validated: retrying is a new submission.
func (e *Engine) Retry(ctx context.Context, id string) (*model.Job, error) {
	job, err := e.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.State != model.JobStateFailed && job.State != model.JobStateCancelled {
		return nil, ErrNotRetryable
	}
	spec := job.Spec
	return e.Submit(ctx, &spec)
}

// QueueStatus reports a snapshot of the admission queue and the running
// job, if any. A retried job waiting out its backoff is already queued in
// the store but not yet re-admitted, so it is absent from Positions and
// PendingCount until the delay elapses.
func (e *Engine) QueueStatus() *model.QueueStatus {
	positions := e.queue.Positions()

	status := &model.QueueStatus{
		MaxConcurrency: 1,
		PendingCount:   len(positions),
		Positions:      positions,
	}

	e.mu.Lock()
	if e.inflightID != "" {
		id := e.inflightID
		status.RunningJobID = &id
	}
	e.mu.Unlock()

	return status
}

// Run is the execution worker loop: dequeue one id, dispatch it while
// holding the single slot, resolve the outcome, repeat. It returns when
// ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		e.queue.Close()
	}()

	for {
		id, ok := e.queue.Dequeue()
		if !ok {
			return
		}
		e.dispatch(ctx, id)
	}
}

// Requeue reloads jobs left queued by a previous process into the
// admission queue, preserving creation order. Called once before Run.
func (e *Engine) Requeue(ctx context.Context) error {
	jobs, err := e.jobs.List(ctx, string(model.JobStateQueued), 10000, 0)
	if err != nil {
		return fmt.Errorf("reload queued jobs: %w", err)
	}
	// List is newest-first; enqueue oldest-first.
	for i := len(jobs) - 1; i >= 0; i-- {
		e.queue.Enqueue(jobs[i].ID)
	}
	return nil
}

// dispatch runs one job while holding the dispatch slot. The slot is held
// for the entire downstream call and released exactly once on every exit
// path.
func (e *Engine) dispatch(ctx context.Context, id string) {
	e.slot <- struct{}{}
	defer func() { <-e.slot }()

	job, err := e.jobs.Get(ctx, id)
	if err != nil {
		log.Printf("dispatch: job %s: %v", id, err)
		return
	}

	// Re-validate after dequeue: the job may have been cancelled while it
	// sat in the queue. A Conflict here is the expected no-op path.
	attempt := job.Attempt + 1
	job, err = e.jobs.Transition(ctx, id, model.JobStateQueued, model.JobStateRunning, store.TransitionFields{Attempt: &attempt})
	if errors.Is(err, store.ErrConflict) {
		return
	}
	if err != nil {
		log.Printf("dispatch: job %s: %v", id, err)
		return
	}
	e.notify(job)

	callCtx, cancel := context.WithTimeout(ctx, e.dispatchTimeout)
	e.setInflight(id, cancel)
	audio, synthErr := e.synthesize(callCtx, job)
	e.clearInflight(id)
	cancel()

	e.resolveOutcome(ctx, job, audio, synthErr)
}

// synthesize resolves the job's voice and emotion references and performs
// the downstream call.
func (e *Engine) synthesize(ctx context.Context, job *model.Job) ([]byte, error) {
	spec := &job.Spec

	voice, err := e.voices.Get(ctx, spec.VoiceID)
	if err != nil {
		return nil, &client.DownstreamError{Kind: client.ErrKindInvalid, Message: fmt.Sprintf("resolve voice: %v", err)}
	}
	upload, err := e.uploads.Get(ctx, voice.SourceUploadID)
	if err != nil {
		return nil, &client.DownstreamError{Kind: client.ErrKindInvalid, Message: fmt.Sprintf("resolve voice audio: %v", err)}
	}
	promptAudio, err := e.blobs.ReadUpload(ctx, upload)
	if err != nil {
		return nil, &client.DownstreamError{Kind: client.ErrKindInvalid, Message: fmt.Sprintf("read voice audio: %v", err)}
	}

	var emotionAudio []byte
	if spec.Mode == model.ModeReference {
		emotionUpload, err := e.uploads.Get(ctx, spec.EmotionAudioID)
		if err != nil {
			return nil, &client.DownstreamError{Kind: client.ErrKindInvalid, Message: fmt.Sprintf("resolve emotion audio: %v", err)}
		}
		emotionAudio, err = e.blobs.ReadUpload(ctx, emotionUpload)
		if err != nil {
			return nil, &client.DownstreamError{Kind: client.ErrKindInvalid, Message: fmt.Sprintf("read emotion audio: %v", err)}
		}
	}

	payload := BuildPayload(spec, promptAudio, emotionAudio)
	return e.synth.Synthesize(ctx, payload)
}

// resolveOutcome classifies the dispatch result and applies the state
// machine: succeed, re-queue for a retryable failure with attempts left,
// or fail. A Conflict on any transition means the job was cancelled while
// running; the outcome is discarded.
func (e *Engine) resolveOutcome(ctx context.Context, job *model.Job, audio []byte, synthErr error) {
	if synthErr == nil {
		result, err := e.blobs.SaveResult(ctx, job.ID, audio)
		if err != nil {
			synthErr = &client.DownstreamError{Kind: client.ErrKindTransport, Message: fmt.Sprintf("store result: %v", err)}
		} else {
			updated, err := e.jobs.Transition(ctx, job.ID, model.JobStateRunning, model.JobStateSucceeded, store.TransitionFields{Result: result})
			if errors.Is(err, store.ErrConflict) {
				log.Printf("job %s: discarding result, job no longer running", job.ID)
				return
			}
			if err != nil {
				log.Printf("job %s: record success: %v", job.ID, err)
				return
			}
			e.notify(updated)
			return
		}
	}

	kind, msg := client.Classify(synthErr)
	retryable := kind == client.ErrKindBusy || kind == client.ErrKindTransport

	if retryable && job.Attempt < e.maxAttempts {
		updated, err := e.jobs.Transition(ctx, job.ID, model.JobStateRunning, model.JobStateQueued, store.TransitionFields{})
		if errors.Is(err, store.ErrConflict) {
			return
		}
		if err != nil {
			log.Printf("job %s: re-queue: %v", job.ID, err)
			return
		}
		log.Printf("job %s: attempt %d failed (%s), re-queueing: %s", job.ID, job.Attempt, kind, msg)
		e.requeueAfterDelay(job.ID)
		e.notify(updated)
		return
	}

	updated, err := e.jobs.Transition(ctx, job.ID, model.JobStateRunning, model.JobStateFailed, store.TransitionFields{
		Error: &model.JobError{Code: string(kind), Message: msg},
	})
	if errors.Is(err, store.ErrConflict) {
		return
	}
	if err != nil {
		log.Printf("job %s: record failure: %v", job.ID, err)
		return
	}
	log.Printf("job %s: failed after %d attempts (%s): %s", job.ID, job.Attempt, kind, msg)
	e.notify(updated)
}

// requeueAfterDelay re-enqueues a retried job at the current tail, after
// the configured backoff.
func (e *Engine) requeueAfterDelay(id string) {
	if e.retryDelay <= 0 {
		e.queue.Enqueue(id)
		return
	}
	time.AfterFunc(e.retryDelay, func() {
		e.queue.Enqueue(id)
	})
}

func (e *Engine) setInflight(id string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.inflightID = id
	e.inflightCancel = cancel
	e.mu.Unlock()
}

func (e *Engine) clearInflight(id string) {
	e.mu.Lock()
	if e.inflightID == id {
		e.inflightID = ""
		e.inflightCancel = nil
	}
	e.mu.Unlock()
}

// abortInflight cancels the downstream call for id if it is the one in
// flight. Best-effort: the call may have already returned.
func (e *Engine) abortInflight(id string) {
	e.mu.Lock()
	cancel := e.inflightCancel
	match := e.inflightID == id
	e.mu.Unlock()
	if match && cancel != nil {
		cancel()
	}
}

func (e *Engine) notify(job *model.Job) {
	if e.notif != nil {
		e.notif.JobUpdated(job)
	}
}

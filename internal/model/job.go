package model

import "time"

// TtsMode selects which emotion-control parameter group applies to a job.
type TtsMode string

const (
	ModeSpeaker   TtsMode = "speaker"
	ModeReference TtsMode = "reference"
	ModeVector    TtsMode = "vector"
	ModeText      TtsMode = "text"
)

// Job states
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transition is permitted out of s.
func (s JobState) Terminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed || s == JobStateCancelled
}

// GenerationArgs are sampling controls forwarded to the synthesis engine.
type GenerationArgs struct {
	DoSample    *bool    `json:"doSample,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gt=0,lte=2"`
	TopP        *float64 `json:"topP,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK        *int     `json:"topK,omitempty" validate:"omitempty,gte=0"`
}

// JobSpec is the client-supplied synthesis request. Exactly one mode's
// parameter group may be populated; the pairing is checked by the engine.
type JobSpec struct {
	Mode           TtsMode            `json:"mode" validate:"required,oneof=speaker reference vector text"`
	Text           string             `json:"text" validate:"required,min=1,max=5000"`
	VoiceID        string             `json:"voiceId" validate:"required"`
	GenerationArgs *GenerationArgs    `json:"generationArgs,omitempty"`
	EmotionAudioID string             `json:"emotionAudioId,omitempty"`
	EmotionWeight  *float64           `json:"emotionWeight,omitempty" validate:"omitempty,gte=0,lte=1"`
	EmotionFactors map[string]float64 `json:"emotionFactors,omitempty" validate:"omitempty,dive,gte=0,lte=1"`
	EmotionRandom  bool               `json:"emotionRandom,omitempty"`
	EmotionText    string             `json:"emotionText,omitempty" validate:"omitempty,max=500"`
}

// JobResult references the synthesized audio. Set only on succeeded jobs.
type JobResult struct {
	AudioID         string  `json:"audioId"`
	AudioURL        string  `json:"audioUrl"`
	Format          string  `json:"format"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// JobError carries the last downstream error kind and message. Set only on
// failed jobs.
type JobError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Job is a synthesis request under orchestration.
type Job struct {
	ID        string     `json:"id"`
	State     JobState   `json:"state"`
	Attempt   int        `json:"attempt"`
	Spec      JobSpec    `json:"request"`
	Result    *JobResult `json:"result,omitempty"`
	Error     *JobError  `json:"error,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// JobListResponse is the paginated job listing payload.
type JobListResponse struct {
	Jobs   []*Job `json:"jobs"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

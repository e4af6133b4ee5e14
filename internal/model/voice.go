package model

import "time"

// Voice states
type VoiceState string

const (
	VoiceStateActive  VoiceState = "active"
	VoiceStateDeleted VoiceState = "deleted"
)

// Voice is a named synthesis identity cloned from an uploaded audio asset.
type Voice struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	SourceUploadID string     `json:"sourceUploadId"`
	State          VoiceState `json:"state"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// CreateVoiceRequest is the payload for POST /api/voices
type CreateVoiceRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
	UploadID    string `json:"uploadId" validate:"required"`
}

// VoiceListResponse is the voice listing payload.
type VoiceListResponse struct {
	Voices []*Voice `json:"voices"`
}

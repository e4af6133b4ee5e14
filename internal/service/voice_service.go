package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
)

// VoiceService handles voice record management.
type VoiceService struct {
	voices  *store.VoiceStore
	uploads *store.UploadStore
}

func NewVoiceService(voices *store.VoiceStore, uploads *store.UploadStore) *VoiceService {
	return &VoiceService{voices: voices, uploads: uploads}
}

// Create clones a new voice identity from an uploaded asset.
func (s *VoiceService) Create(ctx context.Context, req *model.CreateVoiceRequest) (*model.Voice, error) {
	if _, err := s.uploads.Get(ctx, req.UploadID); err != nil {
		if errors.Is(err, store.ErrUploadNotFound) {
			return nil, fmt.Errorf("uploadId does not exist: %w", err)
		}
		return nil, err
	}
	return s.voices.Create(ctx, req.Name, req.Description, req.UploadID)
}

// Get returns an active voice by id.
func (s *VoiceService) Get(ctx context.Context, id string) (*model.Voice, error) {
	voice, err := s.voices.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if voice.State != model.VoiceStateActive {
		return nil, store.ErrVoiceNotFound
	}
	return voice, nil
}

// List returns active voices.
func (s *VoiceService) List(ctx context.Context, limit, offset int) ([]*model.Voice, error) {
	return s.voices.List(ctx, limit, offset)
}

// Delete soft-deletes a voice. Jobs already dispatched are unaffected; new
// submissions referencing the voice are rejected from this point on.
func (s *VoiceService) Delete(ctx context.Context, id string) error {
	return s.voices.Delete(ctx, id)
}

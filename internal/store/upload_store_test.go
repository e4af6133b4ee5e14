package store

import (
	"context"
	"errors"
	"testing"

	"github.com/voiceforge/api/internal/model"
)

func TestUploadCreateGetDelete(t *testing.T) {
	s := NewUploadStore(testDB(t))
	ctx := context.Background()

	upload := &model.Upload{
		ID:          "u-1",
		FileName:    "voice.wav",
		ContentType: "audio/wav",
		SizeBytes:   1234,
		StorageKey:  "uploads/u-1.wav",
	}
	if err := s.Create(ctx, upload); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FileName != "voice.wav" || got.StorageKey != "uploads/u-1.wav" {
		t.Errorf("round-trip mismatch: %+v", got)
	}

	if err := s.Delete(ctx, "u-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "u-1"); !errors.Is(err, ErrUploadNotFound) {
		t.Errorf("expected ErrUploadNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "u-1"); !errors.Is(err, ErrUploadNotFound) {
		t.Errorf("expected ErrUploadNotFound on second delete, got %v", err)
	}
}

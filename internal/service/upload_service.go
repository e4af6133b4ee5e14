package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
	"github.com/voiceforge/api/internal/store"
)

// ErrUploadInUse is returned when deleting an upload still referenced by an
// active voice.
var ErrUploadInUse = errors.New("upload is referenced by an active voice")

// ErrUnsupportedMedia is returned for disallowed file types.
var ErrUnsupportedMedia = errors.New("unsupported audio format")

// ErrFileTooLarge is returned when an upload exceeds the size limit.
var ErrFileTooLarge = errors.New("file too large")

var allowedExtensions = map[string]string{
	".wav": "audio/wav",
	".mp3": "audio/mpeg",
	".m4a": "audio/mp4",
}

var allowedContentTypes = map[string]bool{
	"audio/wav":  true,
	"audio/wave": true,
	"audio/x-wav": true,
	"audio/mpeg": true,
	"audio/mp4":  true,
}

// UploadService stores uploaded audio assets: bytes in object storage,
// metadata in the upload store.
type UploadService struct {
	storage  client.StorageClient
	uploads  *store.UploadStore
	voices   *store.VoiceStore
	maxBytes int64
}

func NewUploadService(storage client.StorageClient, uploads *store.UploadStore, voices *store.VoiceStore, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = 20 * 1024 * 1024
	}
	return &UploadService{storage: storage, uploads: uploads, voices: voices, maxBytes: maxBytes}
}

// Save validates and persists one uploaded file.
func (s *UploadService) Save(ctx context.Context, fileHeader *multipart.FileHeader) (*model.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	fallbackType, ok := allowedExtensions[ext]
	if !ok {
		return nil, ErrUnsupportedMedia
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = fallbackType
	}
	if !allowedContentTypes[contentType] {
		return nil, ErrUnsupportedMedia
	}

	if fileHeader.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	id := uuid.New().String()
	key := fmt.Sprintf("uploads/%s%s", id, ext)

	fileURL, err := s.storage.Upload(ctx, key, file, contentType)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	upload := &model.Upload{
		ID:          id,
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		SizeBytes:   fileHeader.Size,
		StorageKey:  key,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.uploads.Create(ctx, upload); err != nil {
		// Don't leave orphaned bytes behind.
		_ = s.storage.Delete(ctx, key)
		return nil, err
	}

	return &model.UploadResponse{
		ID:          upload.ID,
		FileName:    upload.FileName,
		ContentType: upload.ContentType,
		SizeBytes:   upload.SizeBytes,
		FileURL:     fileURL,
		CreatedAt:   upload.CreatedAt,
	}, nil
}

// Get returns upload metadata.
func (s *UploadService) Get(ctx context.Context, id string) (*model.Upload, error) {
	return s.uploads.Get(ctx, id)
}

// List returns uploads, newest first.
func (s *UploadService) List(ctx context.Context, limit, offset int) ([]*model.Upload, error) {
	return s.uploads.List(ctx, limit, offset)
}

// Delete removes an upload and its stored bytes. Rejected while any active
// voice still references the asset.
func (s *UploadService) Delete(ctx context.Context, id string) error {
	upload, err := s.uploads.Get(ctx, id)
	if err != nil {
		return err
	}

	refs, err := s.voices.CountActiveByUpload(ctx, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return ErrUploadInUse
	}

	if err := s.uploads.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, upload.StorageKey); err != nil {
		// Metadata removal already succeeded; stale bytes are harmless.
		log.Printf("delete upload bytes %s: %v", upload.StorageKey, err)
	}
	return nil
}

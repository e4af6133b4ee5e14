package service

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/voiceforge/api/internal/client"
	"github.com/voiceforge/api/internal/model"
)

// FileService moves audio bytes for the execution engine: it reads voice
// and emotion reference audio out of object storage and persists synthesis
// results. It implements engine.BlobStore.
type FileService struct {
	storage client.StorageClient
}

func NewFileService(storage client.StorageClient) *FileService {
	return &FileService{storage: storage}
}

// ReadUpload returns the raw bytes of an uploaded asset.
func (s *FileService) ReadUpload(ctx context.Context, upload *model.Upload) ([]byte, error) {
	return s.storage.Download(ctx, upload.StorageKey)
}

// SaveResult stores synthesized audio and returns the result reference.
// Results are served back through /api/audio/{audioId}.
func (s *FileService) SaveResult(ctx context.Context, jobID string, audio []byte) (*model.JobResult, error) {
	key := resultKey(jobID)
	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(audio), "audio/wav"); err != nil {
		return nil, fmt.Errorf("store result audio: %w", err)
	}

	return &model.JobResult{
		AudioID:         jobID,
		AudioURL:        "/api/audio/" + jobID,
		Format:          "wav",
		DurationSeconds: wavDuration(audio),
	}, nil
}

// ReadResult returns stored result audio by its audio id.
func (s *FileService) ReadResult(ctx context.Context, audioID string) ([]byte, error) {
	return s.storage.Download(ctx, resultKey(audioID))
}

func resultKey(audioID string) string {
	return fmt.Sprintf("results/%s.wav", audioID)
}

// wavDuration derives the duration from a RIFF/WAVE header. Returns 0 when
// the bytes are not a parseable PCM WAV file.
func wavDuration(audio []byte) float64 {
	if len(audio) < 44 || string(audio[0:4]) != "RIFF" || string(audio[8:12]) != "WAVE" {
		return 0
	}

	var byteRate uint32
	var dataSize uint32

	// Walk the chunk list; fmt carries the byte rate, data the sample bytes.
	offset := 12
	for offset+8 <= len(audio) {
		chunkID := string(audio[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(audio[offset+4 : offset+8])
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+16 <= len(audio) {
				byteRate = binary.LittleEndian.Uint32(audio[body+8 : body+12])
			}
		case "data":
			dataSize = chunkSize
		}

		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if byteRate == 0 || dataSize == 0 {
		return 0
	}
	return float64(dataSize) / float64(byteRate)
}

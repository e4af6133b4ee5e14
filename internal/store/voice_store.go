package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voiceforge/api/internal/model"
)

// ErrVoiceNotFound is returned when a voice does not exist or is deleted.
var ErrVoiceNotFound = errors.New("voice not found")

// ErrVoiceNameTaken is returned when an active voice already uses a name.
var ErrVoiceNameTaken = errors.New("voice name already exists")

// VoiceStore persists voice records. Voices are soft-deleted: a deleted
// voice is invisible to lookups but keeps its row so jobs already
// dispatched stay resolvable by id.
type VoiceStore struct {
	db *sql.DB
}

func NewVoiceStore(db *sql.DB) *VoiceStore {
	return &VoiceStore{db: db}
}

// Create inserts a new active voice. The name must be unique among active
// voices.
func (s *VoiceStore) Create(ctx context.Context, name, description, sourceUploadID string) (*model.Voice, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voices WHERE name = ? AND state = ?`,
		name, model.VoiceStateActive,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check voice name: %w", err)
	}
	if exists > 0 {
		return nil, ErrVoiceNameTaken
	}

	now := time.Now().UTC()
	voice := &model.Voice{
		ID:             uuid.New().String(),
		Name:           name,
		Description:    description,
		SourceUploadID: sourceUploadID,
		State:          model.VoiceStateActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO voices (id, name, description, source_upload_id, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		voice.ID, voice.Name, voice.Description, voice.SourceUploadID, voice.State, voice.CreatedAt, voice.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert voice: %w", err)
	}
	return voice, nil
}

// Get retrieves a voice by ID regardless of state. Callers that must not
// see deleted voices check State themselves.
func (s *VoiceStore) Get(ctx context.Context, id string) (*model.Voice, error) {
	voice := &model.Voice{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, source_upload_id, state, created_at, updated_at
		 FROM voices WHERE id = ?`, id,
	).Scan(&voice.ID, &voice.Name, &voice.Description, &voice.SourceUploadID, &voice.State, &voice.CreatedAt, &voice.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get voice: %w", err)
	}
	return voice, nil
}

// List returns active voices, newest first.
func (s *VoiceStore) List(ctx context.Context, limit, offset int) ([]*model.Voice, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, source_upload_id, state, created_at, updated_at
		 FROM voices WHERE state = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		model.VoiceStateActive, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	defer rows.Close()

	voices := []*model.Voice{}
	for rows.Next() {
		voice := &model.Voice{}
		if err := rows.Scan(&voice.ID, &voice.Name, &voice.Description, &voice.SourceUploadID, &voice.State, &voice.CreatedAt, &voice.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan voice: %w", err)
		}
		voices = append(voices, voice)
	}
	return voices, rows.Err()
}

// Delete soft-deletes an active voice. Jobs already dispatched keep
// resolving the record; new submissions referencing it are rejected.
func (s *VoiceStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE voices SET state = ?, updated_at = ? WHERE id = ? AND state = ?`,
		model.VoiceStateDeleted, time.Now().UTC(), id, model.VoiceStateActive,
	)
	if err != nil {
		return fmt.Errorf("delete voice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete voice: %w", err)
	}
	if n == 0 {
		return ErrVoiceNotFound
	}
	return nil
}

// CountActiveByUpload reports how many active voices reference an upload.
func (s *VoiceStore) CountActiveByUpload(ctx context.Context, uploadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voices WHERE source_upload_id = ? AND state = ?`,
		uploadID, model.VoiceStateActive,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count voices by upload: %w", err)
	}
	return count, nil
}

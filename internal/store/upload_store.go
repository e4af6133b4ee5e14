package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voiceforge/api/internal/model"
)

// ErrUploadNotFound is returned when an upload record does not exist.
var ErrUploadNotFound = errors.New("upload not found")

// UploadStore persists metadata for uploaded audio assets. The bytes live
// in object storage under Upload.StorageKey.
type UploadStore struct {
	db *sql.DB
}

func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db}
}

func (s *UploadStore) Create(ctx context.Context, upload *model.Upload) error {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (id, file_name, content_type, size_bytes, storage_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		upload.ID, upload.FileName, upload.ContentType, upload.SizeBytes, upload.StorageKey, upload.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert upload: %w", err)
	}
	return nil
}

func (s *UploadStore) Get(ctx context.Context, id string) (*model.Upload, error) {
	upload := &model.Upload{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, content_type, size_bytes, storage_key, created_at
		 FROM uploads WHERE id = ?`, id,
	).Scan(&upload.ID, &upload.FileName, &upload.ContentType, &upload.SizeBytes, &upload.StorageKey, &upload.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return upload, nil
}

func (s *UploadStore) List(ctx context.Context, limit, offset int) ([]*model.Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, content_type, size_bytes, storage_key, created_at
		 FROM uploads ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	uploads := []*model.Upload{}
	for rows.Next() {
		upload := &model.Upload{}
		if err := rows.Scan(&upload.ID, &upload.FileName, &upload.ContentType, &upload.SizeBytes, &upload.StorageKey, &upload.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}
	return uploads, rows.Err()
}

func (s *UploadStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete upload: %w", err)
	}
	if n == 0 {
		return ErrUploadNotFound
	}
	return nil
}

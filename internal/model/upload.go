package model

import "time"

// Upload is a raw audio asset provided by a client, referenced by voices
// (as the clone source) and by reference-mode jobs (as emotion audio).
type Upload struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	StorageKey  string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadResponse is returned after a successful upload.
type UploadResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	FileURL     string    `json:"fileUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UploadListResponse is the upload listing payload.
type UploadListResponse struct {
	Uploads []*Upload `json:"uploads"`
}

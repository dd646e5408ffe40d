package models

import "time"

// MediaAsset is a persisted video record. It exists only for remote objects the store has confirmed.
// Sizes are serialized as strings for compatibility with existing gallery clients.
type MediaAsset struct {
	ID             string    `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	Description    string    `json:"description" db:"description"`
	RemoteObjectID string    `json:"publicId" db:"remote_object_id"`
	OriginalSize   int64     `json:"originalSize,string" db:"original_size"`
	CompressedSize int64     `json:"compressedSize,string" db:"compressed_size"`
	Duration       float64   `json:"duration" db:"duration"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// VideoMetadata is the descriptive part of a MediaAsset supplied by the uploading client
type VideoMetadata struct {
	Title        string
	Description  string
	Duration     float64
	OriginalSize int64
}

// VideoUploadForm holds the raw multipart text fields of a server-mediated video upload
type VideoUploadForm struct {
	Title        string `form:"title" validate:"required"`
	Description  string `form:"description" validate:"required"`
	Duration     string `form:"duration" validate:"required"`
	OriginalSize string `form:"originalSize" validate:"required"`
}

// DirectUploadRequest is the body a client sends after a direct upload completed on the remote store
type DirectUploadRequest struct {
	Title        string  `json:"title" validate:"required"`
	Description  string  `json:"description" validate:"required"`
	Duration     float64 `json:"duration" validate:"required,gt=0"`
	OriginalSize int64   `json:"originalSize,string" validate:"required,gt=0"`
	PublicID     string  `json:"publicId" validate:"required"`
}

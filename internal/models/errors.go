package models

import "errors"

// Error taxonomy shared by services and handlers
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConfiguration    = errors.New("media store is not configured")
	ErrMissingFields    = errors.New("missing required fields")
	ErrInvalidFields    = errors.New("invalid fields")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrUploadFailed     = errors.New("upload failed")
	ErrNotConfirmed     = errors.New("remote object not confirmed")
	ErrDuplicate        = errors.New("remote object already registered")
	ErrPersistence      = errors.New("failed to persist media asset")
	ErrRemoteStore      = errors.New("media store request failed")
	ErrNotFound         = errors.New("not found")
)

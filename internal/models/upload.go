package models

import "time"

// ResourceKind is the remote store's resource type
type ResourceKind string

const (
	ResourceKindImage ResourceKind = "image"
	ResourceKindVideo ResourceKind = "video"
)

// UploadSignature is a minted direct-upload authorization together with the exact parameters it covers.
// A direct upload must send exactly SignedParams (plus file, api_key and signature) for the store to accept it.
type UploadSignature struct {
	IssuedAt     int64             `json:"issuedAt"`
	Signature    string            `json:"signature"`
	ExpiresAt    int64             `json:"expiresAt"`
	APIKey       string            `json:"apiKey"`
	UploadURL    string            `json:"uploadUrl"`
	Folder       string            `json:"folder"`
	ResourceType ResourceKind      `json:"resourceType"`
	SignedParams map[string]string `json:"signedParams"`
	MaxFileSize  int64             `json:"maxFileSize"`
}

// IntentStatus is the lifecycle state of an upload intent
type IntentStatus string

const (
	// IntentStatusPending: recorded before the remote call
	IntentStatusPending IntentStatus = "pending"
	// IntentStatusUploaded: the store confirmed the object, the MediaAsset is not written yet
	IntentStatusUploaded IntentStatus = "uploaded"
	// IntentStatusConfirmed: the MediaAsset was written in the same transaction
	IntentStatusConfirmed IntentStatus = "confirmed"
	// IntentStatusFailed: the store rejected the upload
	IntentStatusFailed IntentStatus = "failed"
	// IntentStatusExpired: stuck pending past the sweep deadline
	IntentStatusExpired IntentStatus = "expired"
	// IntentStatusDiscarding: claimed by a discard worker; the intent can no longer be confirmed
	IntentStatusDiscarding IntentStatus = "discarding"
	// IntentStatusDiscarded: the orphaned remote object was destroyed by the sweeper
	IntentStatusDiscarded IntentStatus = "discarded"
)

// UploadIntent is the outbox row that brackets a server-mediated video upload
type UploadIntent struct {
	ID             string       `db:"id"`
	UserID         string       `db:"user_id"`
	ResourceKind   ResourceKind `db:"resource_kind"`
	Status         IntentStatus `db:"status"`
	RemoteObjectID string       `db:"remote_object_id"`
	ErrorMessage   string       `db:"error_message"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
}

// SweepResult summarizes one sweep pass
type SweepResult struct {
	Expired  int
	Enqueued int
}

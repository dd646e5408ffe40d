package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mediagallery/backend/internal/models"
)

// uploadIntentRepository implements upload intent repository operations
type uploadIntentRepository struct {
	db *sql.DB
}

// NewUploadIntentRepository creates a new upload intent repository
func NewUploadIntentRepository(db *sql.DB) *uploadIntentRepository {
	return &uploadIntentRepository{
		db: db,
	}
}

// Create inserts a new upload intent
func (r *uploadIntentRepository) Create(ctx context.Context, intent *models.UploadIntent) error {
	query := `
		INSERT INTO upload_intents (id, user_id, resource_kind, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		intent.ID,
		intent.UserID,
		intent.ResourceKind,
		intent.Status,
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload intent: %w", err)
	}

	return nil
}

// GetByID retrieves an upload intent by ID
func (r *uploadIntentRepository) GetByID(ctx context.Context, id string) (*models.UploadIntent, error) {
	query := `
		SELECT id, user_id, resource_kind, status, remote_object_id, error_message, created_at, updated_at
		FROM upload_intents
		WHERE id = ?
		LIMIT 1
	`

	intent, err := scanIntent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("upload intent %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload intent by id: %w", err)
	}
	return intent, nil
}

// MarkUploaded records the remote object of a pending intent
func (r *uploadIntentRepository) MarkUploaded(ctx context.Context, id, remoteObjectID string) error {
	query := `
		UPDATE upload_intents
		SET status = ?, remote_object_id = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, query, id,
		models.IntentStatusUploaded, remoteObjectID, time.Now().UTC(), id, models.IntentStatusPending)
}

// MarkFailed records a store rejection on a pending intent
func (r *uploadIntentRepository) MarkFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE upload_intents
		SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, query, id,
		models.IntentStatusFailed, message, time.Now().UTC(), id, models.IntentStatusPending)
}

// ClaimDiscard moves an uploaded intent to discarding.
// A confirmation racing with the claim finds the intent no longer uploaded and rolls back.
func (r *uploadIntentRepository) ClaimDiscard(ctx context.Context, id string) error {
	query := `
		UPDATE upload_intents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, query, id,
		models.IntentStatusDiscarding, time.Now().UTC(), id, models.IntentStatusUploaded)
}

// MarkDiscarded records that the remote object of a claimed intent was destroyed
func (r *uploadIntentRepository) MarkDiscarded(ctx context.Context, id string) error {
	query := `
		UPDATE upload_intents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	return r.transition(ctx, query, id,
		models.IntentStatusDiscarded, time.Now().UTC(), id, models.IntentStatusDiscarding)
}

func (r *uploadIntentRepository) transition(ctx context.Context, query, id string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update upload intent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("upload intent %s not in expected state: %w", id, models.ErrNotFound)
	}
	return nil
}

// ExpireStalePending expires up to limit pending intents last updated before the cutoff
func (r *uploadIntentRepository) ExpireStalePending(ctx context.Context, before time.Time, limit int) (int64, error) {
	query := `
		UPDATE upload_intents
		SET status = ?, updated_at = ?
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at
		LIMIT ?
	`

	result, err := r.db.ExecContext(ctx, query,
		models.IntentStatusExpired, time.Now().UTC(), models.IntentStatusPending, before, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to expire upload intents: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// ListStaleOrphans retrieves up to limit uploaded or discarding intents last updated before the cutoff, oldest first.
// Discarding intents show up again when their discard task gave up.
func (r *uploadIntentRepository) ListStaleOrphans(ctx context.Context, before time.Time, limit int) ([]models.UploadIntent, error) {
	query := `
		SELECT id, user_id, resource_kind, status, remote_object_id, error_message, created_at, updated_at
		FROM upload_intents
		WHERE status IN (?, ?) AND updated_at < ?
		ORDER BY updated_at
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, models.IntentStatusUploaded, models.IntentStatusDiscarding, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload intents: %w", err)
	}
	defer rows.Close()

	intents := make([]models.UploadIntent, 0)
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan upload intent: %w", err)
		}
		intents = append(intents, *intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating upload intents: %w", err)
	}

	return intents, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntent(s scanner) (*models.UploadIntent, error) {
	var (
		intent         models.UploadIntent
		remoteObjectID sql.NullString
		errorMessage   sql.NullString
	)
	if err := s.Scan(
		&intent.ID,
		&intent.UserID,
		&intent.ResourceKind,
		&intent.Status,
		&remoteObjectID,
		&errorMessage,
		&intent.CreatedAt,
		&intent.UpdatedAt,
	); err != nil {
		return nil, err
	}
	intent.RemoteObjectID = remoteObjectID.String
	intent.ErrorMessage = errorMessage.String
	return &intent, nil
}

package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/mediagallery/backend/internal/models"
)

const mysqlDuplicateEntry = 1062

// mediaAssetRepository implements media asset repository operations
type mediaAssetRepository struct {
	db *sql.DB
}

// NewMediaAssetRepository creates a new media asset repository
func NewMediaAssetRepository(db *sql.DB) *mediaAssetRepository {
	return &mediaAssetRepository{
		db: db,
	}
}

const insertMediaAssetQuery = `
	INSERT INTO media_assets (id, title, description, remote_object_id, original_size, compressed_size, duration, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertMediaAsset(ctx context.Context, ex execer, asset *models.MediaAsset) error {
	_, err := ex.ExecContext(ctx, insertMediaAssetQuery,
		asset.ID,
		asset.Title,
		asset.Description,
		asset.RemoteObjectID,
		asset.OriginalSize,
		asset.CompressedSize,
		asset.Duration,
		asset.CreatedAt,
		asset.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: %s", models.ErrDuplicate, asset.RemoteObjectID)
		}
		return fmt.Errorf("failed to create media asset: %w", err)
	}
	return nil
}

// Create inserts a media asset on a dedicated connection that is released on return
func (r *mediaAssetRepository) Create(ctx context.Context, asset *models.MediaAsset) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	return insertMediaAsset(ctx, conn, asset)
}

// CreateConfirmed inserts a media asset and confirms its upload intent in one transaction
func (r *mediaAssetRepository) CreateConfirmed(ctx context.Context, asset *models.MediaAsset, intentID string) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertMediaAsset(ctx, tx, asset); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE upload_intents
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, models.IntentStatusConfirmed, asset.CreatedAt, intentID, models.IntentStatusUploaded)
	if err != nil {
		return fmt.Errorf("failed to confirm upload intent: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("upload intent %s is not in uploaded state", intentID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List retrieves all media assets, newest first
func (r *mediaAssetRepository) List(ctx context.Context) ([]models.MediaAsset, error) {
	query := `
		SELECT id, title, description, remote_object_id, original_size, compressed_size, duration, created_at, updated_at
		FROM media_assets
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query media assets: %w", err)
	}
	defer rows.Close()

	assets := make([]models.MediaAsset, 0)
	for rows.Next() {
		var asset models.MediaAsset
		if err := rows.Scan(
			&asset.ID,
			&asset.Title,
			&asset.Description,
			&asset.RemoteObjectID,
			&asset.OriginalSize,
			&asset.CompressedSize,
			&asset.Duration,
			&asset.CreatedAt,
			&asset.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan media asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media assets: %w", err)
	}

	return assets, nil
}

// ExistsByRemoteObjectID reports whether a media asset references the remote object
func (r *mediaAssetRepository) ExistsByRemoteObjectID(ctx context.Context, remoteObjectID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM media_assets WHERE remote_object_id = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, remoteObjectID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check media asset: %w", err)
	}
	return exists, nil
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry
}

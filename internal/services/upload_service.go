package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/metrics"
	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/internal/storage"
	"github.com/mediagallery/backend/libs/config"
)

// sniffLen is the number of leading bytes inspected to detect the payload type
const sniffLen = 3072

// MediaStore defines the remote media store operations
type MediaStore interface {
	Upload(ctx context.Context, kind models.ResourceKind, fileName string, r io.Reader, params storage.UploadParams) (*storage.ObjectDescriptor, error)
	GetResource(ctx context.Context, kind models.ResourceKind, publicID string) (*storage.ObjectDescriptor, error)
	ListResources(ctx context.Context, kind models.ResourceKind, maxResults int) ([]storage.ObjectDescriptor, error)
	Destroy(ctx context.Context, kind models.ResourceKind, publicID string) error
}

// MediaAssetRepository defines the interface for media asset data access
type MediaAssetRepository interface {
	Create(ctx context.Context, asset *models.MediaAsset) error
	CreateConfirmed(ctx context.Context, asset *models.MediaAsset, intentID string) error
	List(ctx context.Context) ([]models.MediaAsset, error)
	ExistsByRemoteObjectID(ctx context.Context, remoteObjectID string) (bool, error)
}

// UploadIntentRepository defines the interface for upload intent data access
type UploadIntentRepository interface {
	Create(ctx context.Context, intent *models.UploadIntent) error
	GetByID(ctx context.Context, id string) (*models.UploadIntent, error)
	MarkUploaded(ctx context.Context, id, remoteObjectID string) error
	MarkFailed(ctx context.Context, id, message string) error
	ClaimDiscard(ctx context.Context, id string) error
	MarkDiscarded(ctx context.Context, id string) error
	ExpireStalePending(ctx context.Context, before time.Time, limit int) (int64, error)
	ListStaleOrphans(ctx context.Context, before time.Time, limit int) ([]models.UploadIntent, error)
}

// UploadFile is a file received by the server
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// UploadService relays uploads to the media store and reconciles video metadata
type UploadService struct {
	store      MediaStore
	assetRepo  MediaAssetRepository
	intentRepo UploadIntentRepository
	storeCfg   config.MediaStoreConfig
	folder     string
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewUploadService creates a new upload service
func NewUploadService(
	store MediaStore,
	assetRepo MediaAssetRepository,
	intentRepo UploadIntentRepository,
	storeCfg config.MediaStoreConfig,
	uploadCfg config.UploadConfig,
	logger *zap.Logger,
) *UploadService {
	return &UploadService{
		store:      store,
		assetRepo:  assetRepo,
		intentRepo: intentRepo,
		storeCfg:   storeCfg,
		folder:     uploadCfg.Folder,
		validate:   newValidator(),
		logger:     logger,
		now:        time.Now,
	}
}

// UploadImage relays an image to the media store. Images are not persisted locally.
func (s *UploadService) UploadImage(ctx context.Context, userID string, file UploadFile) (*models.ImageUploadResult, error) {
	body, err := sniff(file.Reader, "image/")
	if err != nil {
		return nil, err
	}
	if err := s.storeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	descriptor, err := s.store.Upload(ctx, models.ResourceKindImage, file.Name, body, storage.UploadParams{Folder: s.folder})
	if err != nil {
		metrics.RecordUpload(string(models.ResourceKindImage), "error", 0)
		s.logger.Warn("image upload rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	metrics.RecordUpload(string(models.ResourceKindImage), "success", file.Size)

	s.logger.Info("image uploaded",
		zap.String("user_id", userID),
		zap.String("public_id", descriptor.PublicID),
	)
	return &models.ImageUploadResult{Success: true, RemoteObjectID: descriptor.PublicID}, nil
}

// UploadVideo relays a video to the media store and persists its MediaAsset once the store confirms it.
// An upload intent brackets the remote call so that orphaned remote objects can be found by the sweeper.
func (s *UploadService) UploadVideo(ctx context.Context, userID string, form models.VideoUploadForm, file UploadFile) (*models.MediaAsset, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, validationError(err)
	}
	meta, err := parseVideoForm(form)
	if err != nil {
		return nil, err
	}

	body, err := sniff(file.Reader, "video/", "audio/")
	if err != nil {
		return nil, err
	}
	if err := s.storeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	now := s.now().UTC()
	intent := &models.UploadIntent{
		ID:           uuid.NewString(),
		UserID:       userID,
		ResourceKind: models.ResourceKindVideo,
		Status:       models.IntentStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.intentRepo.Create(ctx, intent); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	descriptor, err := s.store.Upload(ctx, models.ResourceKindVideo, file.Name, body, storage.UploadParams{
		Folder:         s.folder,
		Transformation: storage.VideoUploadTransformation,
	})
	if err != nil {
		metrics.RecordUpload(string(models.ResourceKindVideo), "error", 0)
		if markErr := s.intentRepo.MarkFailed(ctx, intent.ID, err.Error()); markErr != nil {
			s.logger.Error("failed to mark upload intent failed", zap.String("intent_id", intent.ID), zap.Error(markErr))
		}
		s.logger.Warn("video upload rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrUploadFailed, err)
	}
	metrics.RecordUpload(string(models.ResourceKindVideo), "success", file.Size)

	if err := s.intentRepo.MarkUploaded(ctx, intent.ID, descriptor.PublicID); err != nil {
		metrics.RecordReconciliation("server", "error")
		s.logger.Error("failed to mark upload intent uploaded",
			zap.String("intent_id", intent.ID),
			zap.String("public_id", descriptor.PublicID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}

	asset := newMediaAsset(meta, descriptor, s.now().UTC())
	if err := s.assetRepo.CreateConfirmed(ctx, asset, intent.ID); err != nil {
		metrics.RecordReconciliation("server", "error")
		s.logger.Error("failed to persist media asset",
			zap.String("intent_id", intent.ID),
			zap.String("public_id", descriptor.PublicID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	metrics.RecordReconciliation("server", "success")

	s.logger.Info("video uploaded",
		zap.String("user_id", userID),
		zap.String("asset_id", asset.ID),
		zap.String("public_id", asset.RemoteObjectID),
	)
	return asset, nil
}

// ReconcileDirect persists the MediaAsset of a video the client uploaded directly.
// The store is asked to confirm the object before anything is written.
func (s *UploadService) ReconcileDirect(ctx context.Context, userID string, req models.DirectUploadRequest) (*models.MediaAsset, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if !strings.HasPrefix(req.PublicID, s.folder+"/") {
		return nil, fmt.Errorf("%w: %s is outside the upload folder", models.ErrNotConfirmed, req.PublicID)
	}
	if err := s.storeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	descriptor, err := s.store.GetResource(ctx, models.ResourceKindVideo, req.PublicID)
	if errors.Is(err, storage.ErrResourceNotFound) || errors.Is(err, storage.ErrIncompleteDescriptor) {
		metrics.RecordReconciliation("direct", "not_confirmed")
		return nil, fmt.Errorf("%w: %v", models.ErrNotConfirmed, err)
	}
	if err != nil {
		metrics.RecordReconciliation("direct", "error")
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteStore, err)
	}

	meta := models.VideoMetadata{
		Title:        req.Title,
		Description:  req.Description,
		Duration:     req.Duration,
		OriginalSize: req.OriginalSize,
	}
	asset := newMediaAsset(meta, descriptor, s.now().UTC())
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			metrics.RecordReconciliation("direct", "duplicate")
			return nil, err
		}
		metrics.RecordReconciliation("direct", "error")
		return nil, fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	metrics.RecordReconciliation("direct", "success")

	s.logger.Info("direct upload reconciled",
		zap.String("user_id", userID),
		zap.String("asset_id", asset.ID),
		zap.String("public_id", asset.RemoteObjectID),
	)
	return asset, nil
}

func newMediaAsset(meta models.VideoMetadata, descriptor *storage.ObjectDescriptor, now time.Time) *models.MediaAsset {
	return &models.MediaAsset{
		ID:             uuid.NewString(),
		Title:          meta.Title,
		Description:    meta.Description,
		RemoteObjectID: descriptor.PublicID,
		OriginalSize:   meta.OriginalSize,
		CompressedSize: descriptor.Bytes,
		Duration:       meta.Duration,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func parseVideoForm(form models.VideoUploadForm) (models.VideoMetadata, error) {
	duration, err := strconv.ParseFloat(strings.TrimSpace(form.Duration), 64)
	if err != nil || duration <= 0 {
		return models.VideoMetadata{}, fmt.Errorf("%w: duration must be a positive number", models.ErrInvalidFields)
	}
	originalSize, err := strconv.ParseInt(strings.TrimSpace(form.OriginalSize), 10, 64)
	if err != nil || originalSize <= 0 {
		return models.VideoMetadata{}, fmt.Errorf("%w: originalSize must be a positive integer", models.ErrInvalidFields)
	}
	return models.VideoMetadata{
		Title:        form.Title,
		Description:  form.Description,
		Duration:     duration,
		OriginalSize: originalSize,
	}, nil
}

// sniff detects the payload type from its leading bytes and returns a reader that replays them
func sniff(r io.Reader, allowedPrefixes ...string) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, fmt.Errorf("%w: file is empty", models.ErrMissingFields)
	}

	detected := mimetype.Detect(head)
	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(detected.String(), prefix) {
			return io.MultiReader(bytes.NewReader(head), r), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedMedia, detected.String())
}

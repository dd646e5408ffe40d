package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/metrics"
	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/config"
)

// DiscardEnqueuer schedules compensation of an orphaned remote object
type DiscardEnqueuer interface {
	EnqueueDiscard(ctx context.Context, intentID string) error
}

// ReconcileService cleans up server-mediated uploads that never reached a MediaAsset
type ReconcileService struct {
	intentRepo UploadIntentRepository
	assetRepo  MediaAssetRepository
	store      MediaStore
	enqueuer   DiscardEnqueuer
	staleAfter time.Duration
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(
	intentRepo UploadIntentRepository,
	assetRepo MediaAssetRepository,
	store MediaStore,
	enqueuer DiscardEnqueuer,
	sweepCfg config.SweepConfig,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		intentRepo: intentRepo,
		assetRepo:  assetRepo,
		store:      store,
		enqueuer:   enqueuer,
		staleAfter: sweepCfg.StaleAfter,
		batchSize:  sweepCfg.BatchSize,
		logger:     logger,
		now:        time.Now,
	}
}

// Sweep expires intents stuck in pending and enqueues a discard for every stale uploaded or discarding intent
func (s *ReconcileService) Sweep(ctx context.Context) (*models.SweepResult, error) {
	cutoff := s.now().UTC().Add(-s.staleAfter)
	result := &models.SweepResult{}

	expired, err := s.intentRepo.ExpireStalePending(ctx, cutoff, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to expire pending intents: %w", err)
	}
	result.Expired = int(expired)
	metrics.RecordSweep("expired", result.Expired)

	intents, err := s.intentRepo.ListStaleOrphans(ctx, cutoff, s.batchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list orphaned intents: %w", err)
	}

	for _, intent := range intents {
		if err := s.enqueuer.EnqueueDiscard(ctx, intent.ID); err != nil {
			s.logger.Error("failed to enqueue discard",
				zap.String("intent_id", intent.ID),
				zap.Error(err),
			)
			continue
		}
		result.Enqueued++
	}
	metrics.RecordSweep("enqueued", result.Enqueued)

	if result.Expired > 0 || result.Enqueued > 0 {
		s.logger.Info("sweep completed",
			zap.Int("expired", result.Expired),
			zap.Int("enqueued", result.Enqueued),
		)
	}
	return result, nil
}

// Discard destroys the remote object of an uploaded intent that has no MediaAsset and marks the intent discarded.
// The intent is claimed before anything is destroyed, so a late confirmation fails instead of
// referencing a deleted object. A discarding intent is a retry of an earlier attempt.
func (s *ReconcileService) Discard(ctx context.Context, intentID string) error {
	intent, err := s.intentRepo.GetByID(ctx, intentID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("upload intent not found, skipping discard", zap.String("intent_id", intentID))
		return nil
	}
	if err != nil {
		return err
	}

	switch intent.Status {
	case models.IntentStatusUploaded:
		if err := s.intentRepo.ClaimDiscard(ctx, intentID); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				s.logger.Info("upload intent changed before discard, skipping",
					zap.String("intent_id", intentID),
				)
				return nil
			}
			return err
		}
	case models.IntentStatusDiscarding:
		// retry after a failed destroy
	default:
		s.logger.Debug("upload intent no longer uploaded, skipping discard",
			zap.String("intent_id", intentID),
			zap.String("status", string(intent.Status)),
		)
		return nil
	}

	exists, err := s.assetRepo.ExistsByRemoteObjectID(ctx, intent.RemoteObjectID)
	if err != nil {
		return err
	}
	if exists {
		s.logger.Warn("remote object is referenced by a media asset, keeping it",
			zap.String("intent_id", intentID),
			zap.String("public_id", intent.RemoteObjectID),
		)
		return s.intentRepo.MarkDiscarded(ctx, intentID)
	}

	if err := s.store.Destroy(ctx, intent.ResourceKind, intent.RemoteObjectID); err != nil {
		return fmt.Errorf("failed to destroy orphaned object: %w", err)
	}
	if err := s.intentRepo.MarkDiscarded(ctx, intentID); err != nil {
		return err
	}
	metrics.RecordSweep("discarded", 1)

	s.logger.Info("orphaned remote object discarded",
		zap.String("intent_id", intentID),
		zap.String("public_id", intent.RemoteObjectID),
	)
	return nil
}

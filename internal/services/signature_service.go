package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/metrics"
	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/internal/storage"
	"github.com/mediagallery/backend/libs/config"
)

// SignatureService mints direct-upload signatures
type SignatureService struct {
	storeCfg    config.MediaStoreConfig
	folder      string
	maxFileSize int64
	logger      *zap.Logger
	now         func() time.Time
}

// NewSignatureService creates a new signature service
func NewSignatureService(storeCfg config.MediaStoreConfig, uploadCfg config.UploadConfig, logger *zap.Logger) *SignatureService {
	return &SignatureService{
		storeCfg:    storeCfg,
		folder:      uploadCfg.Folder,
		maxFileSize: uploadCfg.MaxDirectUploadSize,
		logger:      logger,
		now:         time.Now,
	}
}

// Mint signs {timestamp, folder, resource_type} for a direct upload of kind.
// A direct upload must send exactly the returned SignedParams.
func (s *SignatureService) Mint(ctx context.Context, kind models.ResourceKind) (*models.UploadSignature, error) {
	if err := s.storeCfg.Validate(); err != nil {
		metrics.RecordSignature("not_configured")
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	issuedAt := s.now().Unix()
	params := map[string]string{
		"timestamp":     strconv.FormatInt(issuedAt, 10),
		"folder":        s.folder,
		"resource_type": string(kind),
	}

	signature, err := storage.SignParams(params, s.storeCfg.APISecret, storage.SignatureAlgorithm(s.storeCfg.SignatureAlgorithm))
	if err != nil {
		metrics.RecordSignature("error")
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	metrics.RecordSignature("success")

	s.logger.Debug("minted upload signature",
		zap.Int64("issued_at", issuedAt),
		zap.String("resource_type", string(kind)),
	)

	return &models.UploadSignature{
		IssuedAt:     issuedAt,
		Signature:    signature,
		ExpiresAt:    issuedAt + int64(s.storeCfg.SignatureTTL/time.Second),
		APIKey:       s.storeCfg.APIKey,
		UploadURL:    storage.UploadURL(s.storeCfg, kind),
		Folder:       s.folder,
		ResourceType: kind,
		SignedParams: params,
		MaxFileSize:  s.maxFileSize,
	}, nil
}

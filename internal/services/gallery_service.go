package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/internal/storage"
	"github.com/mediagallery/backend/libs/config"
)

// GalleryService assembles the gallery from persisted videos and the live image listing
type GalleryService struct {
	assetRepo MediaAssetRepository
	store     MediaStore
	urls      *storage.URLBuilder
	storeCfg  config.MediaStoreConfig
	pageSize  int
	logger    *zap.Logger
}

// NewGalleryService creates a new gallery service
func NewGalleryService(
	assetRepo MediaAssetRepository,
	store MediaStore,
	urls *storage.URLBuilder,
	storeCfg config.MediaStoreConfig,
	galleryCfg config.GalleryConfig,
	logger *zap.Logger,
) *GalleryService {
	return &GalleryService{
		assetRepo: assetRepo,
		store:     store,
		urls:      urls,
		storeCfg:  storeCfg,
		pageSize:  galleryCfg.ImagePageSize,
		logger:    logger,
	}
}

// ListVideos returns all persisted videos, newest first
func (s *GalleryService) ListVideos(ctx context.Context) ([]models.MediaAsset, error) {
	assets, err := s.assetRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	return assets, nil
}

// ListImages returns the most recent images from the media store, newest first
func (s *GalleryService) ListImages(ctx context.Context) ([]models.ImageAsset, error) {
	if err := s.storeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	resources, err := s.store.ListResources(ctx, models.ResourceKindImage, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteStore, err)
	}

	images := make([]models.ImageAsset, 0, len(resources))
	for _, r := range resources {
		images = append(images, models.ImageAsset{
			RemoteObjectID: r.PublicID,
			URL:            r.SecureURL,
			Width:          r.Width,
			Height:         r.Height,
			CreatedAt:      r.CreatedAt,
		})
	}
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CreatedAt.After(images[j].CreatedAt)
	})
	if s.pageSize > 0 && len(images) > s.pageSize {
		images = images[:s.pageSize]
	}
	return images, nil
}

// Assemble fetches videos and images concurrently and decorates them with display URLs.
// The two collections are not consistent with each other; either failure fails the whole gallery.
func (s *GalleryService) Assemble(ctx context.Context) (*models.Gallery, error) {
	var (
		videos []models.MediaAsset
		images []models.ImageAsset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		videos, err = s.ListVideos(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		images, err = s.ListImages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("failed to assemble gallery", zap.Error(err))
		return nil, err
	}

	gallery := &models.Gallery{
		Videos: make([]models.GalleryVideo, 0, len(videos)),
		Images: make([]models.GalleryImage, 0, len(images)),
	}
	for _, v := range videos {
		gallery.Videos = append(gallery.Videos, models.GalleryVideo{
			MediaAsset:   v,
			ThumbnailURL: s.urls.VideoThumbnailURL(v.RemoteObjectID),
			PreviewURL:   s.urls.VideoPreviewURL(v.RemoteObjectID),
			DownloadURL:  s.urls.VideoDownloadURL(v.RemoteObjectID),
		})
	}
	for _, img := range images {
		gallery.Images = append(gallery.Images, models.GalleryImage{
			ImageAsset:   img,
			ThumbnailURL: s.urls.ImageThumbnailURL(img.RemoteObjectID),
		})
	}
	return gallery, nil
}

// SocialFormats returns social-format crops of an existing image
func (s *GalleryService) SocialFormats(ctx context.Context, publicID string) ([]models.SocialFormat, error) {
	if publicID == "" {
		return nil, fmt.Errorf("%w: publicId", models.ErrMissingFields)
	}
	if err := s.storeCfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}

	if _, err := s.store.GetResource(ctx, models.ResourceKindImage, publicID); err != nil {
		if errors.Is(err, storage.ErrResourceNotFound) {
			return nil, fmt.Errorf("image %s: %w", publicID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteStore, err)
	}

	return s.urls.SocialFormats(publicID), nil
}

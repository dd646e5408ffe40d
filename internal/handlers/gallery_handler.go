package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/handlers"
)

// GalleryService defines the interface for gallery operations
type GalleryService interface {
	// Method Assemble retrieve persisted videos and live images concurrently, decorated with display URLs.
	//
	// If either collection fails the whole gallery fails and the error is returned together with "nil" value.
	Assemble(ctx context.Context) (*models.Gallery, error)
	// Method SocialFormats builds social network crops of an existing image.
	//
	// Returns ErrNotFound if the media store does not hold the image.
	SocialFormats(ctx context.Context, publicID string) ([]models.SocialFormat, error)
}

// GalleryHandler handles gallery HTTP requests
type GalleryHandler struct {
	handlers.BaseHandler
	galleryService GalleryService
	authMw         func(http.Handler) http.Handler
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(galleryService GalleryService, logger *zap.Logger, authMw func(http.Handler) http.Handler) *GalleryHandler {
	return &GalleryHandler{
		BaseHandler:    handlers.BaseHandler{Logger: logger},
		galleryService: galleryService,
		authMw:         authMw,
	}
}

// RegisterRoutes registers all gallery handler routes
func (h *GalleryHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authMw)
		r.Get("/gallery", h.GetGallery)
		r.Get("/transformations/social", h.GetSocialFormats)
	})
}

// GetGallery handles GET /gallery
// @Summary Get gallery
// @Description Videos with thumbnail, preview and download URLs plus the most recent images
// @Tags gallery
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Gallery
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 502 {object} map[string]string "Media store unavailable"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /gallery [get]
func (h *GalleryHandler) GetGallery(w http.ResponseWriter, r *http.Request) {
	gallery, err := h.galleryService.Assemble(r.Context())
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "assemble gallery")
		return
	}
	h.RespondJSON(w, http.StatusOK, gallery)
}

// GetSocialFormats handles GET /transformations/social
// @Summary Social formats
// @Description Crops of an image sized for common social network placements
// @Tags gallery
// @Produce json
// @Param publicId query string true "Remote id of the image"
// @Security BearerAuth
// @Success 200 {array} models.SocialFormat
// @Failure 400 {object} map[string]string "publicId is required"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 404 {object} map[string]string "Image not found"
// @Failure 502 {object} map[string]string "Media store unavailable"
// @Router /transformations/social [get]
func (h *GalleryHandler) GetSocialFormats(w http.ResponseWriter, r *http.Request) {
	formats, err := h.galleryService.SocialFormats(r.Context(), r.URL.Query().Get("publicId"))
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "social formats")
		return
	}
	h.RespondJSON(w, http.StatusOK, formats)
}

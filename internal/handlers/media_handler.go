package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/internal/services"
	authMiddleware "github.com/mediagallery/backend/libs/auth/middleware"
	"github.com/mediagallery/backend/libs/handlers"
)

// multipartMemory is the part of a multipart body kept in memory; the rest spills to temp files
const multipartMemory = 32 << 20

// UploadService defines the interface for upload operations
type UploadService interface {
	// Method UploadImage relays an image to the media store and returns its remote id.
	//
	// Images are never persisted. Returns ErrUnsupportedMedia if the payload is not an image and
	// ErrUploadFailed if the store rejects it.
	UploadImage(ctx context.Context, userID string, file services.UploadFile) (*models.ImageUploadResult, error)
	// Method UploadVideo relays a video to the media store and persists its MediaAsset after the store confirms it.
	//
	// "form" carries the caller supplied metadata; missing fields are reported before any remote call.
	UploadVideo(ctx context.Context, userID string, form models.VideoUploadForm, file services.UploadFile) (*models.MediaAsset, error)
	// Method ReconcileDirect persists the MediaAsset of a video uploaded straight to the media store.
	//
	// Returns ErrNotConfirmed if the store does not know the object and ErrDuplicate if it was already reconciled.
	ReconcileDirect(ctx context.Context, userID string, req models.DirectUploadRequest) (*models.MediaAsset, error)
}

// VideoLister defines the interface for the public video listing
type VideoLister interface {
	// Method ListVideos retrieve all persisted videos, newest first.
	ListVideos(ctx context.Context) ([]models.MediaAsset, error)
	// Method ListImages retrieve the most recent images from the media store, newest first.
	ListImages(ctx context.Context) ([]models.ImageAsset, error)
}

// MediaHandler handles video and image HTTP requests
type MediaHandler struct {
	handlers.BaseHandler
	uploadService UploadService
	lister        VideoLister
	maxUploadSize int64
	authMw        func(http.Handler) http.Handler
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(
	uploadService UploadService,
	lister VideoLister,
	maxUploadSize int64,
	logger *zap.Logger,
	authMw func(http.Handler) http.Handler,
) *MediaHandler {
	return &MediaHandler{
		BaseHandler:   handlers.BaseHandler{Logger: logger},
		uploadService: uploadService,
		lister:        lister,
		maxUploadSize: maxUploadSize,
		authMw:        authMw,
	}
}

// RegisterRoutes registers all media handler routes.
// The video listing is public; everything else goes through the auth middleware.
func (h *MediaHandler) RegisterRoutes(r chi.Router) {
	r.Get("/videos", h.ListVideos)

	r.Group(func(r chi.Router) {
		r.Use(h.authMw)
		r.Post("/videos", h.UploadVideo)
		r.Post("/videos/direct", h.ReconcileDirect)
		r.Get("/images", h.ListImages)
		r.Post("/images", h.UploadImage)
	})
}

// ListVideos handles GET /videos
// @Summary List videos
// @Description List every persisted video, newest first
// @Tags videos
// @Produce json
// @Success 200 {array} models.MediaAsset
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /videos [get]
func (h *MediaHandler) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := h.lister.ListVideos(r.Context())
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "list videos")
		return
	}
	if videos == nil {
		videos = []models.MediaAsset{}
	}
	h.RespondJSON(w, http.StatusOK, videos)
}

// UploadVideo handles POST /videos
// @Summary Upload video
// @Description Upload a video through the server. The media store's reported size becomes compressedSize.
// @Tags videos
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Video file"
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param duration formData number true "Duration in seconds"
// @Param originalSize formData integer true "Original size in bytes"
// @Security BearerAuth
// @Success 201 {object} models.MediaAsset
// @Failure 400 {object} map[string]string "Missing or invalid fields"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 413 {object} map[string]string "Request body too large"
// @Failure 415 {object} map[string]string "Not a video"
// @Failure 502 {object} map[string]string "Media store rejected the upload"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /videos [post]
func (h *MediaHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	file, cleanup, err := h.readMultipart(w, r)
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "upload video")
		return
	}
	defer cleanup()

	form := models.VideoUploadForm{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Duration:     r.FormValue("duration"),
		OriginalSize: r.FormValue("originalSize"),
	}

	asset, err := h.uploadService.UploadVideo(r.Context(), userID, form, file)
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "upload video")
		return
	}

	h.RespondJSON(w, http.StatusCreated, asset)
}

// ReconcileDirect handles POST /videos/direct
// @Summary Register a direct upload
// @Description Persist the metadata of a video uploaded straight to the media store with a minted signature
// @Tags videos
// @Accept json
// @Produce json
// @Param request body models.DirectUploadRequest true "Video metadata"
// @Security BearerAuth
// @Success 201 {object} models.MediaAsset
// @Failure 400 {object} map[string]string "Missing or invalid fields"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 409 {object} map[string]string "Already registered"
// @Failure 422 {object} map[string]string "Remote object not confirmed"
// @Failure 502 {object} map[string]string "Media store unavailable"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /videos/direct [post]
func (h *MediaHandler) ReconcileDirect(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req models.DirectUploadRequest
	if err := h.DecodeJSON(r, &req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondServiceError(&h.BaseHandler, w, err, "register direct upload")
			return
		}
		h.Logger.Info("invalid direct upload body", zap.Error(err))
		h.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset, err := h.uploadService.ReconcileDirect(r.Context(), userID, req)
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "register direct upload")
		return
	}

	h.RespondJSON(w, http.StatusCreated, asset)
}

// UploadImage handles POST /images
// @Summary Upload image
// @Description Upload an image through the server. Images are not persisted.
// @Tags images
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image file"
// @Security BearerAuth
// @Success 200 {object} models.ImageUploadResult
// @Failure 400 {object} map[string]string "File is required"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 413 {object} map[string]string "Request body too large"
// @Failure 415 {object} map[string]string "Not an image"
// @Failure 502 {object} map[string]string "Media store rejected the upload"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /images [post]
func (h *MediaHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	file, cleanup, err := h.readMultipart(w, r)
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "upload image")
		return
	}
	defer cleanup()

	result, err := h.uploadService.UploadImage(r.Context(), userID, file)
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "upload image")
		return
	}

	h.RespondJSON(w, http.StatusOK, result)
}

// ListImages handles GET /images
// @Summary List images
// @Description List the most recent images held by the media store, newest first
// @Tags images
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ImageAsset
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 502 {object} map[string]string "Media store unavailable"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /images [get]
func (h *MediaHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	images, err := h.lister.ListImages(r.Context())
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "list images")
		return
	}
	if images == nil {
		images = []models.ImageAsset{}
	}
	h.RespondJSON(w, http.StatusOK, images)
}

// userID resolves the caller or writes 401
func (h *MediaHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := authMiddleware.GetUserID(r.Context())
	if !ok || userID == "" {
		h.RespondError(w, http.StatusUnauthorized, models.ErrUnauthorized.Error())
		return "", false
	}
	return userID, true
}

// readMultipart parses the body under the server upload limit and opens the "file" part
func (h *MediaHandler) readMultipart(w http.ResponseWriter, r *http.Request) (services.UploadFile, func(), error) {
	if r.ContentLength > h.maxUploadSize {
		return services.UploadFile{}, nil, &http.MaxBytesError{Limit: h.maxUploadSize}
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return services.UploadFile{}, nil, err
		}
		return services.UploadFile{}, nil, fmt.Errorf("%w: multipart body with a file is required", models.ErrMissingFields)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		return services.UploadFile{}, nil, fmt.Errorf("%w: file", models.ErrMissingFields)
	}

	cleanup := func() {
		file.Close()
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.Logger.Warn("failed to remove multipart temp files", zap.Error(err))
		}
	}
	return services.UploadFile{Name: header.Filename, Size: header.Size, Reader: file}, cleanup, nil
}

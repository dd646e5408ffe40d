package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/handlers"
)

// SignatureService defines the interface for minting direct upload authorizations
type SignatureService interface {
	// Method Mint signs the canonical parameter set {timestamp, folder, resource_type} for a direct upload of kind.
	//
	// Every call yields an independent signature. Returns ErrConfiguration if the signing secret is missing.
	Mint(ctx context.Context, kind models.ResourceKind) (*models.UploadSignature, error)
}

// SignatureHandler handles signature HTTP requests
type SignatureHandler struct {
	handlers.BaseHandler
	signatureService SignatureService
	authMw           func(http.Handler) http.Handler
}

// NewSignatureHandler creates a new signature handler
func NewSignatureHandler(signatureService SignatureService, logger *zap.Logger, authMw func(http.Handler) http.Handler) *SignatureHandler {
	return &SignatureHandler{
		BaseHandler:      handlers.BaseHandler{Logger: logger},
		signatureService: signatureService,
		authMw:           authMw,
	}
}

// RegisterRoutes registers all signature handler routes
func (h *SignatureHandler) RegisterRoutes(r chi.Router) {
	r.With(h.authMw).Get("/videos/signature", h.Mint)
}

// Mint handles GET /videos/signature
// @Summary Mint a direct upload signature
// @Description Sign the parameters of a direct upload to the media store.
// @Description The upload must send exactly signedParams together with apiKey and signature as form fields.
// @Description The signature is the hex digest of the signed parameters sorted by key, joined as key=value with "&", followed by the API secret.
// @Tags videos
// @Produce json
// @Param resourceType query string false "Resource kind (video or image)" default(video)
// @Security BearerAuth
// @Success 200 {object} models.UploadSignature
// @Failure 400 {object} map[string]string "Unknown resource type"
// @Failure 401 {object} map[string]string "Authentication required"
// @Failure 500 {object} map[string]string "Media store is not configured"
// @Router /videos/signature [get]
func (h *SignatureHandler) Mint(w http.ResponseWriter, r *http.Request) {
	kind := models.ResourceKindVideo
	if raw := r.URL.Query().Get("resourceType"); raw != "" {
		kind = models.ResourceKind(raw)
		if kind != models.ResourceKindVideo && kind != models.ResourceKindImage {
			h.RespondError(w, http.StatusBadRequest, "resourceType must be video or image")
			return
		}
	}

	signature, err := h.signatureService.Mint(r.Context(), kind)
	if err != nil {
		respondServiceError(&h.BaseHandler, w, err, "mint signature")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.RespondJSON(w, http.StatusOK, signature)
}

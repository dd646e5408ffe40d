package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/handlers"
)

// errorStatus maps a service error onto the HTTP status reported to the caller
func errorStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrMissingFields), errors.Is(err, models.ErrInvalidFields):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotConfirmed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrUploadFailed), errors.Is(err, models.ErrRemoteStore):
		return http.StatusBadGateway
	default:
		// ErrConfiguration, ErrPersistence and anything unexpected
		return http.StatusInternalServerError
	}
}

// respondServiceError logs err and writes the JSON error body for it.
// Client errors carry the service message; server errors only name the failed operation.
func respondServiceError(h *handlers.BaseHandler, w http.ResponseWriter, err error, operation string) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(operation+" failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.Logger.Info(operation+" rejected", zap.Int("status", status), zap.Error(err))
	}

	message := err.Error()
	switch {
	case errors.Is(err, models.ErrConfiguration):
		message = models.ErrConfiguration.Error()
	case errors.Is(err, models.ErrPersistence):
		message = models.ErrPersistence.Error()
	case status == http.StatusRequestEntityTooLarge:
		message = "request body too large"
	case status == http.StatusInternalServerError:
		message = operation + " failed"
	}
	h.RespondError(w, status, message)
}

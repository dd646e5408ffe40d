package middlewares

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mediagallery/backend/libs/handlers"
)

// RequestSizeLimitMiddleware caps request bodies at maxRequestSize bytes.
// A body whose declared length is already over the cap gets 413 without reaching next.
func RequestSizeLimitMiddleware(maxRequestSize int64, logger *zap.Logger) func(http.Handler) http.Handler {
	base := handlers.BaseHandler{Logger: logger}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxRequestSize {
				logger.Info("request body over limit",
					zap.String("path", r.URL.Path),
					zap.Int64("content_length", r.ContentLength),
					zap.Int64("limit", maxRequestSize),
					zap.String("request_id", GetRequestID(r.Context())),
				)
				base.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxRequestSize)
			next.ServeHTTP(w, r)
		})
	}
}

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mediagallery/backend/libs/auth/service"
)

type stubVerifier struct {
	tokens map[string]string
}

func (v *stubVerifier) Verify(token string) (*service.Identity, error) {
	if userID, ok := v.tokens[token]; ok {
		return &service.Identity{UserID: userID}, nil
	}
	return nil, errors.New("invalid")
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		header         string
		cookie         string
		expectedStatus int
		expectedUserID string
		expectedError  string
	}{
		{name: "bearer token", header: "Bearer good", expectedStatus: http.StatusOK, expectedUserID: "user_1"},
		{name: "lowercase scheme", header: "bearer good", expectedStatus: http.StatusOK, expectedUserID: "user_1"},
		{name: "session cookie", cookie: "good", expectedStatus: http.StatusOK, expectedUserID: "user_1"},
		{name: "no credentials", expectedStatus: http.StatusUnauthorized, expectedError: "authentication required"},
		{name: "invalid token", header: "Bearer bad", expectedStatus: http.StatusUnauthorized, expectedError: "invalid or expired token"},
		{name: "wrong scheme", header: "Basic good", expectedStatus: http.StatusUnauthorized, expectedError: "authentication required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := &stubVerifier{tokens: map[string]string{"good": "user_1"}}
			var gotUserID string
			handler := AuthMiddleware(verifier, "__session")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUserID, _ = GetUserID(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/gallery", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "__session", Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedUserID, gotUserID)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
				assert.JSONEq(t, `{"error":"`+tt.expectedError+`"}`, w.Body.String())
			}
		})
	}
}

func TestAPIKeyMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name           string
		configured     string
		provided       string
		expectedStatus int
	}{
		{name: "disabled", configured: "", provided: "", expectedStatus: http.StatusOK},
		{name: "valid key", configured: "k", provided: "k", expectedStatus: http.StatusOK},
		{name: "missing key", configured: "k", provided: "", expectedStatus: http.StatusUnauthorized},
		{name: "wrong key", configured: "k", provided: "x", expectedStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			if tt.provided != "" {
				req.Header.Set("X-API-Key", tt.provided)
			}
			w := httptest.NewRecorder()

			APIKeyMiddleware(tt.configured)(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

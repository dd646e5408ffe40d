package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/directupload"
)

// fakeBackend serves the API endpoints and the store upload target
type fakeBackend struct {
	server      *httptest.Server
	calls       atomic.Int32
	storeStatus int
	uploaded    []byte
	fields      map[string]string
	registered  models.DirectUploadRequest
	authHeader  string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{storeStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/videos/signature", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		b.authHeader = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(models.UploadSignature{
			IssuedAt:     1700000000,
			Signature:    "sig",
			APIKey:       "key",
			UploadURL:    b.server.URL + "/store/video/upload",
			Folder:       "next-cloudinary-uploads",
			ResourceType: models.ResourceKindVideo,
			SignedParams: map[string]string{
				"timestamp":     "1700000000",
				"folder":        "next-cloudinary-uploads",
				"resource_type": "video",
			},
			MaxFileSize: 1 << 20,
		})
	})
	mux.HandleFunc("/store/video/upload", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.fields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			b.fields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.uploaded, _ = io.ReadAll(f)
		if b.storeStatus != http.StatusOK {
			w.WriteHeader(b.storeStatus)
			w.Write([]byte(`{"error":{"message":"Invalid Signature"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"public_id":  "next-cloudinary-uploads/clip",
			"bytes":      524288,
			"duration":   12.5,
			"secure_url": "https://res.example.com/clip.mp4",
			"created_at": time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/api/v1/videos/direct", func(w http.ResponseWriter, r *http.Request) {
		b.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewDecoder(r.Body).Decode(&b.registered); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid request body"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.MediaAsset{
			ID:             "a1",
			Title:          b.registered.Title,
			RemoteObjectID: b.registered.PublicID,
			OriginalSize:   b.registered.OriginalSize,
			CompressedSize: 524288,
		})
	})
	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0o600))
	return path
}

func testOptions(apiURL string) uploadOptions {
	return uploadOptions{
		apiURL:      apiURL,
		token:       "session-token",
		title:       "Sample",
		description: "demo",
		duration:    12.5,
		maxSize:     defaultMaxSize,
	}
}

func TestRunUpload_Success(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeTempFile(t, 4096)
	var progress bytes.Buffer

	asset, err := runUpload(context.Background(), path, testOptions(backend.server.URL+"/api/v1"), &progress, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "next-cloudinary-uploads/clip", asset.RemoteObjectID)
	assert.Equal(t, int64(524288), asset.CompressedSize)
	assert.Equal(t, "Bearer session-token", backend.authHeader)

	assert.Equal(t, bytes.Repeat([]byte{0x42}, 4096), backend.uploaded)
	assert.Equal(t, map[string]string{
		"timestamp":     "1700000000",
		"folder":        "next-cloudinary-uploads",
		"resource_type": "video",
		"api_key":       "key",
		"signature":     "sig",
	}, backend.fields)

	assert.Equal(t, models.DirectUploadRequest{
		Title:        "Sample",
		Description:  "demo",
		Duration:     12.5,
		OriginalSize: 4096,
		PublicID:     "next-cloudinary-uploads/clip",
	}, backend.registered)
	assert.Contains(t, progress.String(), "100%")
}

func TestRunUpload_FileTooLargeMakesNoCalls(t *testing.T) {
	backend := newFakeBackend(t)
	path := writeTempFile(t, 2048)
	opts := testOptions(backend.server.URL + "/api/v1")
	opts.maxSize = 1024

	_, err := runUpload(context.Background(), path, opts, io.Discard, zap.NewNop())

	assert.True(t, errors.Is(err, directupload.ErrFileTooLarge))
	assert.Equal(t, int32(0), backend.calls.Load())
}

func TestRunUpload_ServerCeilingApplies(t *testing.T) {
	backend := newFakeBackend(t)
	// The fake API advertises a 1 MiB ceiling
	path := writeTempFile(t, 2<<20)

	_, err := runUpload(context.Background(), path, testOptions(backend.server.URL+"/api/v1"), io.Discard, zap.NewNop())

	assert.True(t, errors.Is(err, directupload.ErrFileTooLarge))
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestRunUpload_StoreRejectionSkipsRegistration(t *testing.T) {
	backend := newFakeBackend(t)
	backend.storeStatus = http.StatusUnauthorized
	path := writeTempFile(t, 1024)

	_, err := runUpload(context.Background(), path, testOptions(backend.server.URL+"/api/v1"), io.Discard, zap.NewNop())

	require.Error(t, err)
	assert.True(t, errors.Is(err, directupload.ErrUploadFailed))
	assert.Contains(t, err.Error(), "Invalid Signature")
	assert.Equal(t, models.DirectUploadRequest{}, backend.registered)
}

func TestAPIClient_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"authentication required"}`))
	}))
	defer server.Close()

	_, err := newAPIClient(server.URL, "bad").MintSignature(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "authentication required")
}

func TestRenderProgress(t *testing.T) {
	tests := []struct {
		name        string
		events      []directupload.Event
		contains    string
		notContains string
	}{
		{
			name: "success completes the bar",
			events: []directupload.Event{
				{Kind: directupload.EventProgress, Percent: 10},
				{Kind: directupload.EventProgress, Percent: 60},
				{Kind: directupload.EventSucceeded, Percent: 100},
			},
			contains: "100%",
		},
		{
			name: "failure keeps the last percentage",
			events: []directupload.Event{
				{Kind: directupload.EventProgress, Percent: 40},
				{Kind: directupload.EventFailed, Percent: 40, Err: directupload.ErrUploadFailed},
			},
			contains:    "40%",
			notContains: "100%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			bar := newProgressBar(&out, "clip.mp4")

			for _, ev := range tt.events {
				renderProgress(&out, bar, ev)
			}

			assert.Contains(t, out.String(), "clip.mp4")
			assert.Contains(t, out.String(), tt.contains)
			if tt.notContains != "" {
				assert.NotContains(t, out.String(), tt.notContains)
			}
			assert.True(t, bytes.HasSuffix(out.Bytes(), []byte("\n")))
		})
	}
}

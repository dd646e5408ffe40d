package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/internal/storage"
)

func setupUploadService(store *mockMediaStore, assets *mockMediaAssetRepository, intents *mockUploadIntentRepository) *UploadService {
	svc := NewUploadService(store, assets, intents, testStoreConfig(), testUploadConfig(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func videoFile() UploadFile {
	content := append(append([]byte{}, mp4Header...), bytes.Repeat([]byte{0x01}, 4096)...)
	return UploadFile{Name: "clip.mp4", Size: int64(len(content)), Reader: bytes.NewReader(content)}
}

func imageFile() UploadFile {
	return UploadFile{Name: "cat.png", Size: int64(len(pngHeader)), Reader: bytes.NewReader(pngHeader)}
}

func validVideoForm() models.VideoUploadForm {
	return models.VideoUploadForm{
		Title:        "Clip",
		Description:  "A clip",
		Duration:     "12.5",
		OriginalSize: "1048576",
	}
}

func TestUploadService_UploadImage(t *testing.T) {
	tests := []struct {
		name        string
		file        UploadFile
		store       *mockMediaStore
		expectedID  string
		expectedErr error
	}{
		{
			name: "success returns the remote id without persisting",
			file: imageFile(),
			store: &mockMediaStore{uploadDescriptor: &storage.ObjectDescriptor{
				PublicID: "next-cloudinary-uploads/cat", Bytes: 10, SecureURL: "https://x/cat.png",
			}},
			expectedID: "next-cloudinary-uploads/cat",
		},
		{
			name:        "video payload is rejected",
			file:        videoFile(),
			store:       &mockMediaStore{},
			expectedErr: models.ErrUnsupportedMedia,
		},
		{
			name:        "empty payload",
			file:        UploadFile{Name: "empty.png", Reader: bytes.NewReader(nil)},
			store:       &mockMediaStore{},
			expectedErr: models.ErrMissingFields,
		},
		{
			name:        "store failure",
			file:        imageFile(),
			store:       &mockMediaStore{uploadErr: &storage.RemoteError{Status: 401, Message: "Invalid Signature"}},
			expectedErr: models.ErrUploadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := &mockMediaAssetRepository{}
			intents := &mockUploadIntentRepository{}
			svc := setupUploadService(tt.store, assets, intents)

			result, err := svc.UploadImage(context.Background(), "user_1", tt.file)

			assert.Empty(t, assets.created)
			assert.Empty(t, intents.created)
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Success)
			assert.Equal(t, tt.expectedID, result.RemoteObjectID)
			assert.Equal(t, models.ResourceKindImage, tt.store.uploadKind)
			assert.Equal(t, "next-cloudinary-uploads", tt.store.uploadParams.Folder)
			assert.Equal(t, pngHeader, tt.store.uploadedBytes)
		})
	}
}

func TestUploadService_UploadImage_NotConfigured(t *testing.T) {
	store := &mockMediaStore{}
	svc := setupUploadService(store, &mockMediaAssetRepository{}, &mockUploadIntentRepository{})
	svc.storeCfg.CloudName = ""

	_, err := svc.UploadImage(context.Background(), "user_1", imageFile())

	assert.ErrorIs(t, err, models.ErrConfiguration)
	assert.Equal(t, 0, store.totalCalls())
}

func TestUploadService_UploadVideo(t *testing.T) {
	descriptor := &storage.ObjectDescriptor{
		PublicID:  "next-cloudinary-uploads/clip",
		Bytes:     524288,
		Duration:  12.4,
		SecureURL: "https://res.example.com/clip.mp4",
	}

	t.Run("success persists the asset from caller fields and the store descriptor", func(t *testing.T) {
		store := &mockMediaStore{uploadDescriptor: descriptor}
		assets := &mockMediaAssetRepository{}
		intents := &mockUploadIntentRepository{}
		svc := setupUploadService(store, assets, intents)
		file := videoFile()

		asset, err := svc.UploadVideo(context.Background(), "user_1", validVideoForm(), file)

		require.NoError(t, err)
		assert.Equal(t, "Clip", asset.Title)
		assert.Equal(t, "A clip", asset.Description)
		assert.Equal(t, 12.5, asset.Duration)
		assert.Equal(t, int64(1048576), asset.OriginalSize)
		assert.Equal(t, int64(524288), asset.CompressedSize)
		assert.Equal(t, "next-cloudinary-uploads/clip", asset.RemoteObjectID)
		assert.NotEmpty(t, asset.ID)

		assert.Equal(t, models.ResourceKindVideo, store.uploadKind)
		assert.Equal(t, "q_auto,f_mp4", store.uploadParams.Transformation)
		assert.Equal(t, int(file.Size), len(store.uploadedBytes))

		require.Len(t, intents.created, 1)
		assert.Equal(t, models.IntentStatusPending, intents.created[0].Status)
		assert.Equal(t, "user_1", intents.created[0].UserID)
		assert.Equal(t, []models.IntentStatus{models.IntentStatusUploaded}, intents.transitions)
		assert.Equal(t, []string{intents.created[0].ID}, assets.confirmedFor)
		require.Len(t, assets.created, 1)
	})

	t.Run("missing fields before any remote call", func(t *testing.T) {
		store := &mockMediaStore{uploadDescriptor: descriptor}
		intents := &mockUploadIntentRepository{}
		svc := setupUploadService(store, &mockMediaAssetRepository{}, intents)
		form := validVideoForm()
		form.Description = ""
		form.Duration = ""

		asset, err := svc.UploadVideo(context.Background(), "user_1", form, videoFile())

		assert.Nil(t, asset)
		assert.ErrorIs(t, err, models.ErrMissingFields)
		assert.Contains(t, err.Error(), "description")
		assert.Contains(t, err.Error(), "duration")
		assert.Equal(t, 0, store.totalCalls())
		assert.Empty(t, intents.created)
	})

	t.Run("invalid fields", func(t *testing.T) {
		for _, form := range []models.VideoUploadForm{
			{Title: "t", Description: "d", Duration: "abc", OriginalSize: "10"},
			{Title: "t", Description: "d", Duration: "1.5", OriginalSize: "-1"},
			{Title: "t", Description: "d", Duration: "0", OriginalSize: "10"},
		} {
			store := &mockMediaStore{}
			svc := setupUploadService(store, &mockMediaAssetRepository{}, &mockUploadIntentRepository{})

			_, err := svc.UploadVideo(context.Background(), "user_1", form, videoFile())

			assert.ErrorIs(t, err, models.ErrInvalidFields)
			assert.Equal(t, 0, store.totalCalls())
		}
	})

	t.Run("image payload is rejected", func(t *testing.T) {
		store := &mockMediaStore{}
		svc := setupUploadService(store, &mockMediaAssetRepository{}, &mockUploadIntentRepository{})

		_, err := svc.UploadVideo(context.Background(), "user_1", validVideoForm(), imageFile())

		assert.ErrorIs(t, err, models.ErrUnsupportedMedia)
		assert.Equal(t, 0, store.totalCalls())
	})

	t.Run("intent write failure makes no remote call", func(t *testing.T) {
		store := &mockMediaStore{uploadDescriptor: descriptor}
		intents := &mockUploadIntentRepository{createErr: errors.New("connection refused")}
		svc := setupUploadService(store, &mockMediaAssetRepository{}, intents)

		_, err := svc.UploadVideo(context.Background(), "user_1", validVideoForm(), videoFile())

		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.Equal(t, 0, store.totalCalls())
	})

	t.Run("store failure persists nothing", func(t *testing.T) {
		store := &mockMediaStore{uploadErr: &storage.RemoteError{Status: 400, Message: "Invalid video file"}}
		assets := &mockMediaAssetRepository{}
		intents := &mockUploadIntentRepository{}
		svc := setupUploadService(store, assets, intents)

		asset, err := svc.UploadVideo(context.Background(), "user_1", validVideoForm(), videoFile())

		assert.Nil(t, asset)
		assert.ErrorIs(t, err, models.ErrUploadFailed)
		assert.Contains(t, err.Error(), "Invalid video file")
		assert.Empty(t, assets.created)
		assert.Equal(t, []models.IntentStatus{models.IntentStatusFailed}, intents.transitions)
		assert.Contains(t, intents.failMessages[0], "Invalid video file")
	})

	t.Run("database failure after confirmation leaves the intent uploaded", func(t *testing.T) {
		store := &mockMediaStore{uploadDescriptor: descriptor}
		assets := &mockMediaAssetRepository{createErr: errors.New("connection reset")}
		intents := &mockUploadIntentRepository{}
		svc := setupUploadService(store, assets, intents)

		asset, err := svc.UploadVideo(context.Background(), "user_1", validVideoForm(), videoFile())

		assert.Nil(t, asset)
		assert.ErrorIs(t, err, models.ErrPersistence)
		assert.Equal(t, []models.IntentStatus{models.IntentStatusUploaded}, intents.transitions)
		assert.Equal(t, []string{"next-cloudinary-uploads/clip"}, intents.uploadedIDs)
	})
}

func TestUploadService_ReconcileDirect(t *testing.T) {
	valid := models.DirectUploadRequest{
		Title:        "Clip",
		Description:  "Uploaded directly",
		Duration:     61.2,
		OriginalSize: 700 << 20,
		PublicID:     "next-cloudinary-uploads/big",
	}
	confirmed := &storage.ObjectDescriptor{
		PublicID:  "next-cloudinary-uploads/big",
		Bytes:     300 << 20,
		SecureURL: "https://res.example.com/big.mp4",
	}

	tests := []struct {
		name          string
		req           func() models.DirectUploadRequest
		store         *mockMediaStore
		createErr     error
		expectedErr   error
		expectedCalls int
	}{
		{
			name:          "success",
			req:           func() models.DirectUploadRequest { return valid },
			store:         &mockMediaStore{resource: confirmed},
			expectedCalls: 1,
		},
		{
			name: "missing public id",
			req: func() models.DirectUploadRequest {
				r := valid
				r.PublicID = ""
				return r
			},
			store:       &mockMediaStore{},
			expectedErr: models.ErrMissingFields,
		},
		{
			name: "outside the upload folder",
			req: func() models.DirectUploadRequest {
				r := valid
				r.PublicID = "elsewhere/big"
				return r
			},
			store:       &mockMediaStore{},
			expectedErr: models.ErrNotConfirmed,
		},
		{
			name:          "store has no such object",
			req:           func() models.DirectUploadRequest { return valid },
			store:         &mockMediaStore{resourceErr: fmt.Errorf("%w: x", storage.ErrResourceNotFound)},
			expectedErr:   models.ErrNotConfirmed,
			expectedCalls: 1,
		},
		{
			name:          "store unreachable",
			req:           func() models.DirectUploadRequest { return valid },
			store:         &mockMediaStore{resourceErr: errors.New("dial tcp: timeout")},
			expectedErr:   models.ErrRemoteStore,
			expectedCalls: 1,
		},
		{
			name:          "already reconciled",
			req:           func() models.DirectUploadRequest { return valid },
			store:         &mockMediaStore{resource: confirmed},
			createErr:     fmt.Errorf("%w: x", models.ErrDuplicate),
			expectedErr:   models.ErrDuplicate,
			expectedCalls: 1,
		},
		{
			name:          "database unavailable",
			req:           func() models.DirectUploadRequest { return valid },
			store:         &mockMediaStore{resource: confirmed},
			createErr:     errors.New("connection refused"),
			expectedErr:   models.ErrPersistence,
			expectedCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := &mockMediaAssetRepository{createErr: tt.createErr}
			svc := setupUploadService(tt.store, assets, &mockUploadIntentRepository{})

			asset, err := svc.ReconcileDirect(context.Background(), "user_1", tt.req())

			assert.Equal(t, tt.expectedCalls, tt.store.totalCalls())
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, asset)
				assert.Empty(t, assets.created)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(300<<20), asset.CompressedSize)
			assert.Equal(t, int64(700<<20), asset.OriginalSize)
			assert.Equal(t, "next-cloudinary-uploads/big", asset.RemoteObjectID)
			require.Len(t, assets.created, 1)
		})
	}
}

func TestSniff(t *testing.T) {
	body, err := sniff(bytes.NewReader(mp4Header), "video/")
	require.NoError(t, err)
	var buf bytes.Buffer
	buf.ReadFrom(body)
	assert.Equal(t, mp4Header, buf.Bytes())

	_, err = sniff(strings.NewReader("just some text"), "video/", "image/")
	assert.ErrorIs(t, err, models.ErrUnsupportedMedia)
}

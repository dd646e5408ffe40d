package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/config"
)

func newTestURLBuilder() *URLBuilder {
	return NewURLBuilder(config.MediaStoreConfig{
		CloudName:       "demo",
		DeliveryBaseURL: "https://res.example.com/",
	})
}

func TestURLBuilder_VideoURLs(t *testing.T) {
	b := newTestURLBuilder()
	publicID := "next-cloudinary-uploads/clip"

	assert.Equal(t,
		"https://res.example.com/demo/video/upload/c_fill,g_auto,h_225,q_auto,w_400/next-cloudinary-uploads/clip.jpg",
		b.VideoThumbnailURL(publicID))
	assert.Equal(t,
		"https://res.example.com/demo/video/upload/c_fill,h_225,w_400/e_preview:duration_15:max_seg_9:min_seg_dur_1/next-cloudinary-uploads/clip.mp4",
		b.VideoPreviewURL(publicID))
	assert.Equal(t,
		"https://res.example.com/demo/video/upload/c_limit,h_1080,w_1920/next-cloudinary-uploads/clip.mp4",
		b.VideoDownloadURL(publicID))
}

func TestURLBuilder_ImageThumbnailURL(t *testing.T) {
	b := newTestURLBuilder()

	assert.Equal(t,
		"https://res.example.com/demo/image/upload/c_fill,g_auto,h_225,q_auto,w_400/f_auto/next-cloudinary-uploads/cat",
		b.ImageThumbnailURL("next-cloudinary-uploads/cat"))
}

func TestURLBuilder_URL(t *testing.T) {
	b := newTestURLBuilder()

	tests := []struct {
		name           string
		kind           models.ResourceKind
		transformation string
		publicID       string
		format         string
		want           string
	}{
		{
			name:     "no transformation",
			kind:     models.ResourceKindImage,
			publicID: "cat",
			want:     "https://res.example.com/demo/image/upload/cat",
		},
		{
			name:           "with format",
			kind:           models.ResourceKindImage,
			transformation: "w_10",
			publicID:       "cat",
			format:         "png",
			want:           "https://res.example.com/demo/image/upload/w_10/cat.png",
		},
		{
			name:     "segments are escaped",
			kind:     models.ResourceKindImage,
			publicID: "my folder/a cat",
			want:     "https://res.example.com/demo/image/upload/my%20folder/a%20cat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.URL(tt.kind, tt.transformation, tt.publicID, tt.format))
		})
	}
}

func TestURLBuilder_SocialFormats(t *testing.T) {
	b := newTestURLBuilder()

	formats := b.SocialFormats("cat")

	require.Len(t, formats, 5)
	assert.Equal(t, "Instagram Square (1:1)", formats[0].Name)
	assert.Equal(t, "https://res.example.com/demo/image/upload/c_fill,g_auto,h_1080,w_1080/f_auto/cat", formats[0].URL)
	assert.Equal(t, 1500, formats[3].Width)
	assert.Equal(t, 500, formats[3].Height)
	assert.Equal(t, "205:78", formats[4].AspectRatio)
	assert.Equal(t, "https://res.example.com/demo/image/upload/c_fill,g_auto,h_312,w_820/f_auto/cat", formats[4].URL)
}

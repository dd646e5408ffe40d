package storage

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/config"
)

// Fixed delivery transformations used by the gallery
const (
	VideoUploadTransformation = "q_auto,f_mp4"
	ThumbnailTransformation   = "c_fill,g_auto,h_225,q_auto,w_400"
	PreviewTransformation     = "c_fill,h_225,w_400/e_preview:duration_15:max_seg_9:min_seg_dur_1"
	DownloadTransformation    = "c_limit,h_1080,w_1920"
	ImageFormatTransformation = "f_auto"
)

type socialFormat struct {
	name        string
	width       int
	height      int
	aspectRatio string
}

var socialFormats = []socialFormat{
	{name: "Instagram Square (1:1)", width: 1080, height: 1080, aspectRatio: "1:1"},
	{name: "Instagram Portrait (4:5)", width: 1080, height: 1350, aspectRatio: "4:5"},
	{name: "Twitter Post (16:9)", width: 1200, height: 675, aspectRatio: "16:9"},
	{name: "Twitter Header (3:1)", width: 1500, height: 500, aspectRatio: "3:1"},
	{name: "Facebook Cover (205:78)", width: 820, height: 312, aspectRatio: "205:78"},
}

// URLBuilder derives delivery URLs from public ids
type URLBuilder struct {
	baseURL   string
	cloudName string
}

// NewURLBuilder creates a new URLBuilder
func NewURLBuilder(cfg config.MediaStoreConfig) *URLBuilder {
	return &URLBuilder{
		baseURL:   strings.TrimRight(cfg.DeliveryBaseURL, "/"),
		cloudName: cfg.CloudName,
	}
}

// URL returns the delivery URL of publicID with the given transformation and optional format extension
func (b *URLBuilder) URL(kind models.ResourceKind, transformation, publicID, format string) string {
	path := escapePublicID(publicID)
	if format != "" {
		path += "." + format
	}
	if transformation == "" {
		return fmt.Sprintf("%s/%s/%s/upload/%s", b.baseURL, url.PathEscape(b.cloudName), kind, path)
	}
	return fmt.Sprintf("%s/%s/%s/upload/%s/%s", b.baseURL, url.PathEscape(b.cloudName), kind, transformation, path)
}

// VideoThumbnailURL returns the fill-cropped 400x225 jpg poster of a video
func (b *URLBuilder) VideoThumbnailURL(publicID string) string {
	return b.URL(models.ResourceKindVideo, ThumbnailTransformation, publicID, "jpg")
}

// VideoPreviewURL returns the short hover preview clip of a video
func (b *URLBuilder) VideoPreviewURL(publicID string) string {
	return b.URL(models.ResourceKindVideo, PreviewTransformation, publicID, "mp4")
}

// VideoDownloadURL returns the mp4 rendition offered for download, bounded to 1920x1080
func (b *URLBuilder) VideoDownloadURL(publicID string) string {
	return b.URL(models.ResourceKindVideo, DownloadTransformation, publicID, "mp4")
}

// ImageThumbnailURL returns the gallery thumbnail of an image in an automatically chosen format
func (b *URLBuilder) ImageThumbnailURL(publicID string) string {
	return b.URL(models.ResourceKindImage, ThumbnailTransformation+"/"+ImageFormatTransformation, publicID, "")
}

// SocialFormats returns fill-cropped delivery URLs of an image for each supported social format
func (b *URLBuilder) SocialFormats(publicID string) []models.SocialFormat {
	formats := make([]models.SocialFormat, 0, len(socialFormats))
	for _, f := range socialFormats {
		transformation := fmt.Sprintf("c_fill,g_auto,h_%d,w_%d/%s", f.height, f.width, ImageFormatTransformation)
		formats = append(formats, models.SocialFormat{
			Name:        f.name,
			Width:       f.width,
			Height:      f.height,
			AspectRatio: f.aspectRatio,
			URL:         b.URL(models.ResourceKindImage, transformation, publicID, ""),
		})
	}
	return formats
}

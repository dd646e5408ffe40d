package models

import "time"

// ImageAsset is an image as listed live by the remote store; it is never persisted locally
type ImageAsset struct {
	RemoteObjectID string    `json:"publicId"`
	URL            string    `json:"url"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ImageUploadResult is returned by the server-mediated image upload
type ImageUploadResult struct {
	Success        bool   `json:"success"`
	RemoteObjectID string `json:"publicId"`
}

// GalleryVideo is a MediaAsset decorated with display URLs
type GalleryVideo struct {
	MediaAsset
	ThumbnailURL string `json:"thumbnailUrl"`
	PreviewURL   string `json:"previewUrl"`
	DownloadURL  string `json:"downloadUrl"`
}

// GalleryImage is an ImageAsset decorated with a thumbnail URL
type GalleryImage struct {
	ImageAsset
	ThumbnailURL string `json:"thumbnailUrl"`
}

// Gallery holds the two independently fetched collections, each ordered newest first
type Gallery struct {
	Videos []GalleryVideo `json:"videos"`
	Images []GalleryImage `json:"images"`
}

// SocialFormat describes a fixed social media crop
type SocialFormat struct {
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspectRatio"`
	URL         string `json:"url"`
}

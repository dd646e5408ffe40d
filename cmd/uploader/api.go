package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/directupload"
)

// apiError is the JSON error body returned by the API
type apiError struct {
	Error string `json:"error"`
}

// apiClient talks to the media gallery API on behalf of the signed-in user
type apiClient struct {
	http *resty.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetAuthToken(token).
			SetHeader("Accept", "application/json"),
	}
}

// MintSignature asks the API for a direct video upload authorization
func (c *apiClient) MintSignature(ctx context.Context) (*directupload.Authorization, error) {
	var auth directupload.Authorization
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("resourceType", string(models.ResourceKindVideo)).
		SetResult(&auth).
		SetError(&apiError{}).
		Get("/videos/signature")
	if err := checkResponse(resp, err, "mint signature"); err != nil {
		return nil, err
	}
	return &auth, nil
}

// RegisterDirectUpload hands a completed direct upload to the API for persistence
func (c *apiClient) RegisterDirectUpload(ctx context.Context, req models.DirectUploadRequest) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&asset).
		SetError(&apiError{}).
		Post("/videos/direct")
	if err := checkResponse(resp, err, "register upload"); err != nil {
		return nil, err
	}
	return &asset, nil
}

func checkResponse(resp *resty.Response, err error, operation string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	if resp.IsError() {
		if body, ok := resp.Error().(*apiError); ok && body.Error != "" {
			return fmt.Errorf("%s: API returned %d: %s", operation, resp.StatusCode(), body.Error)
		}
		return fmt.Errorf("%s: API returned %d", operation, resp.StatusCode())
	}
	return nil
}

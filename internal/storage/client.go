// Package storage talks to the remote media store: signed uploads, resource lookups and delivery URLs
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/metrics"
	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/config"
)

var (
	// ErrIncompleteDescriptor is returned when a store response lacks a required field
	ErrIncompleteDescriptor = errors.New("incomplete object descriptor")
	// ErrResourceNotFound is returned when the store has no object with the requested public id
	ErrResourceNotFound = errors.New("resource not found")
)

// RemoteError is a non-success response from the store
type RemoteError struct {
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("media store returned %d: %s", e.Status, e.Message)
}

// ObjectDescriptor is the store's canonical description of an uploaded object
type ObjectDescriptor struct {
	PublicID     string    `json:"public_id"`
	ResourceType string    `json:"resource_type"`
	Format       string    `json:"format"`
	Bytes        int64     `json:"bytes"`
	Duration     float64   `json:"duration"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SecureURL    string    `json:"secure_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate fails closed when an upload confirmation lacks the fields a MediaAsset is built from
func (d *ObjectDescriptor) Validate() error {
	var missing []string
	if d.PublicID == "" {
		missing = append(missing, "public_id")
	}
	if d.Bytes <= 0 {
		missing = append(missing, "bytes")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteDescriptor, strings.Join(missing, ", "))
	}
	return nil
}

// displayable reports whether a listed object can be shown in the gallery
func (d *ObjectDescriptor) displayable() bool {
	return d.PublicID != "" && d.SecureURL != ""
}

// UploadParams are the optional parameters of a server-side upload
type UploadParams struct {
	Folder         string
	Transformation string
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type listResponse struct {
	Resources []ObjectDescriptor `json:"resources"`
}

type destroyResponse struct {
	Result string `json:"result"`
}

// Client is a media store API client
type Client struct {
	httpClient *resty.Client
	cfg        config.MediaStoreConfig
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new Client for the given store configuration
func NewClient(cfg config.MediaStoreConfig, logger *zap.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(cfg.APIBaseURL).
			SetHeader("Accept", "application/json"),
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// UploadURL returns the upload endpoint for a resource kind
func UploadURL(cfg config.MediaStoreConfig, kind models.ResourceKind) string {
	return fmt.Sprintf("%s/v1_1/%s/%s/upload", cfg.APIBaseURL, url.PathEscape(cfg.CloudName), kind)
}

// Upload sends r to the store as a signed upload and waits for the object descriptor
func (c *Client) Upload(ctx context.Context, kind models.ResourceKind, fileName string, r io.Reader, params UploadParams) (*ObjectDescriptor, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	form := map[string]string{
		"timestamp":      strconv.FormatInt(c.now().Unix(), 10),
		"folder":         params.Folder,
		"resource_type":  string(kind),
		"transformation": params.Transformation,
	}
	signature, err := SignParams(form, c.cfg.APISecret, SignatureAlgorithm(c.cfg.SignatureAlgorithm))
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload: %w", err)
	}
	form["api_key"] = c.cfg.APIKey
	form["signature"] = signature
	for k, v := range form {
		if v == "" {
			delete(form, k)
		}
	}

	var descriptor ObjectDescriptor
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFileReader("file", fileName, r).
		SetFormData(form).
		SetResult(&descriptor).
		SetError(&errorEnvelope{}).
		Post(fmt.Sprintf("/v1_1/%s/%s/upload", url.PathEscape(c.cfg.CloudName), kind))
	err = c.checkResponse(resp, err)
	metrics.RecordStoreOperation("upload", metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if err := descriptor.Validate(); err != nil {
		return nil, err
	}

	c.logger.Debug("uploaded object to media store",
		zap.String("public_id", descriptor.PublicID),
		zap.String("resource_type", string(kind)),
		zap.Int64("bytes", descriptor.Bytes),
	)
	return &descriptor, nil
}

// ListResources returns up to maxResults uploaded objects of a kind, newest first
func (c *Client) ListResources(ctx context.Context, kind models.ResourceKind, maxResults int) ([]ObjectDescriptor, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	var list listResponse
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret).
		SetQueryParams(map[string]string{
			"max_results": strconv.Itoa(maxResults),
			"direction":   "desc",
		}).
		SetResult(&list).
		SetError(&errorEnvelope{}).
		Get(fmt.Sprintf("/v1_1/%s/resources/%s/upload", url.PathEscape(c.cfg.CloudName), kind))
	err = c.checkResponse(resp, err)
	metrics.RecordStoreOperation("list", metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	resources := make([]ObjectDescriptor, 0, len(list.Resources))
	for _, r := range list.Resources {
		if !r.displayable() {
			c.logger.Warn("skipping listed object without a delivery url",
				zap.String("public_id", r.PublicID),
				zap.String("resource_type", string(kind)),
			)
			continue
		}
		resources = append(resources, r)
	}
	return resources, nil
}

// GetResource looks up a single uploaded object by public id
func (c *Client) GetResource(ctx context.Context, kind models.ResourceKind, publicID string) (*ObjectDescriptor, error) {
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	var descriptor ObjectDescriptor
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret).
		SetResult(&descriptor).
		SetError(&errorEnvelope{}).
		Get(fmt.Sprintf("/v1_1/%s/resources/%s/upload/%s", url.PathEscape(c.cfg.CloudName), kind, escapePublicID(publicID)))
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		metrics.RecordStoreOperation("get", "not_found", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, publicID)
	}
	err = c.checkResponse(resp, err)
	metrics.RecordStoreOperation("get", metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

// Destroy deletes an uploaded object. Destroying an object that no longer exists is not an error.
func (c *Client) Destroy(ctx context.Context, kind models.ResourceKind, publicID string) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	form := map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(c.now().Unix(), 10),
	}
	signature, err := SignParams(form, c.cfg.APISecret, SignatureAlgorithm(c.cfg.SignatureAlgorithm))
	if err != nil {
		return fmt.Errorf("failed to sign destroy: %w", err)
	}
	form["api_key"] = c.cfg.APIKey
	form["signature"] = signature

	var result destroyResponse
	start := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		SetError(&errorEnvelope{}).
		Post(fmt.Sprintf("/v1_1/%s/%s/destroy", url.PathEscape(c.cfg.CloudName), kind))
	err = c.checkResponse(resp, err)
	metrics.RecordStoreOperation("destroy", metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		return err
	}

	if result.Result != "ok" && result.Result != "not found" {
		return &RemoteError{Status: resp.StatusCode(), Message: "unexpected destroy result: " + result.Result}
	}
	c.logger.Info("destroyed media store object",
		zap.String("public_id", publicID),
		zap.String("result", result.Result),
	)
	return nil
}

// checkResponse converts transport failures and non-success statuses into errors
func (c *Client) checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("media store request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	message := http.StatusText(resp.StatusCode())
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Message != "" {
		message = env.Error.Message
	}
	return &RemoteError{Status: resp.StatusCode(), Message: message}
}

// escapePublicID escapes each segment of a folder-qualified public id
func escapePublicID(publicID string) string {
	segments := strings.Split(publicID, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Package directupload streams a file straight from the client to the media store
// using an authorization minted by the API server.
package directupload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrFileTooLarge is returned before any network call when the file exceeds the ceiling
	ErrFileTooLarge = errors.New("file too large")
	// ErrUploadFailed wraps transport failures, store rejections and malformed store responses
	ErrUploadFailed = errors.New("upload failed")
	// ErrCanceled is returned when the caller cancels an upload in flight
	ErrCanceled = errors.New("upload canceled")
	// ErrInvalidAuthorization is returned when the authorization lacks the upload target or signature
	ErrInvalidAuthorization = errors.New("invalid upload authorization")
)

const maxErrorBody = 64 << 10

// UploadError is a non-success response from the store
type UploadError struct {
	Status  int
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: store returned %d: %s", e.Status, e.Message)
}

func (e *UploadError) Unwrap() error {
	return ErrUploadFailed
}

// Authorization is a minted upload signature together with the exact parameters it covers.
// It decodes directly from the API's signature response.
type Authorization struct {
	UploadURL    string            `json:"uploadUrl"`
	APIKey       string            `json:"apiKey"`
	Signature    string            `json:"signature"`
	SignedParams map[string]string `json:"signedParams"`
	MaxFileSize  int64             `json:"maxFileSize"`
}

// Descriptor is the store's description of the uploaded object
type Descriptor struct {
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

func (d *Descriptor) validate() error {
	var missing []string
	if d.PublicID == "" {
		missing = append(missing, "public_id")
	}
	if d.Bytes <= 0 {
		missing = append(missing, "bytes")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: incomplete store response, missing %s", ErrUploadFailed, strings.Join(missing, ", "))
	}
	return nil
}

// Client starts direct uploads
type Client struct {
	httpClient *http.Client
	maxSize    int64
	logger     *zap.Logger
}

// NewClient creates a new Client. Files larger than maxSize are refused.
func NewClient(httpClient *http.Client, maxSize int64, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		maxSize:    maxSize,
		logger:     logger,
	}
}

// Upload is a direct upload in flight
type Upload struct {
	progress   *progress
	cancel     context.CancelFunc
	done       chan struct{}
	descriptor *Descriptor
	err        error
}

// Progress subscribes to progress events. The channel is closed after the terminal event.
func (u *Upload) Progress() <-chan Event {
	return u.progress.subscribe()
}

// Wait blocks until the upload finishes
func (u *Upload) Wait() (*Descriptor, error) {
	<-u.done
	return u.descriptor, u.err
}

// Cancel aborts the upload. Bytes already received by the store are not cleaned up.
func (u *Upload) Cancel() {
	u.cancel()
}

// Start validates the file size and begins streaming size bytes of r to the store.
// The returned Upload completes asynchronously; the transfer is tied to ctx.
func (c *Client) Start(ctx context.Context, fileName string, r io.Reader, size int64, auth Authorization) (*Upload, error) {
	if size > c.maxSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, c.maxSize)
	}
	if auth.UploadURL == "" || auth.Signature == "" || auth.APIKey == "" {
		return nil, ErrInvalidAuthorization
	}

	prefix, suffix, contentType, err := multipartEnvelope(fileName, auth)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	u := &Upload{
		progress: newProgress(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	counter := &countingReader{
		r:        io.LimitReader(r, size),
		total:    size,
		progress: u.progress,
	}
	body := io.MultiReader(bytes.NewReader(prefix), counter, bytes.NewReader(suffix))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, auth.UploadURL, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = int64(len(prefix)) + size + int64(len(suffix))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("starting direct upload",
		zap.String("file", fileName),
		zap.Int64("size", size),
		zap.String("url", auth.UploadURL),
	)

	go c.run(ctx, u, req)
	return u, nil
}

func (c *Client) run(ctx context.Context, u *Upload, req *http.Request) {
	defer close(u.done)
	defer u.cancel()

	descriptor, err := c.send(ctx, req)
	u.descriptor, u.err = descriptor, err
	if err != nil {
		c.logger.Warn("direct upload failed", zap.Error(err))
		u.progress.finish(Event{Kind: EventFailed, Err: err})
		return
	}

	c.logger.Info("direct upload completed",
		zap.String("public_id", descriptor.PublicID),
		zap.Int64("bytes", descriptor.Bytes),
	)
	u.progress.finish(Event{Kind: EventSucceeded, Descriptor: descriptor})
}

func (c *Client) send(ctx context.Context, req *http.Request) (*Descriptor, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UploadError{Status: resp.StatusCode, Message: errorMessage(resp)}
	}

	var descriptor Descriptor
	if err := json.NewDecoder(resp.Body).Decode(&descriptor); err != nil {
		return nil, fmt.Errorf("%w: failed to decode store response: %v", ErrUploadFailed, err)
	}
	if err := descriptor.validate(); err != nil {
		return nil, err
	}
	return &descriptor, nil
}

// errorMessage extracts the store's diagnostic from an error response
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// multipartEnvelope renders everything around the file content: the signed fields, api_key and signature, then the file part header
func multipartEnvelope(fileName string, auth Authorization) (prefix, suffix []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(auth.SignedParams))
	for k := range auth.SignedParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, auth.SignedParams[k]); err != nil {
			return nil, nil, "", fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}
	if err := w.WriteField("api_key", auth.APIKey); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write api_key: %w", err)
	}
	if err := w.WriteField("signature", auth.Signature); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write signature: %w", err)
	}
	if _, err := w.CreateFormFile("file", fileName); err != nil {
		return nil, nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	prefix = append([]byte(nil), buf.Bytes()...)

	buf.Reset()
	if err := w.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	suffix = append([]byte(nil), buf.Bytes()...)

	return prefix, suffix, w.FormDataContentType(), nil
}

// countingReader reports the share of file bytes the transport has consumed
type countingReader struct {
	r        io.Reader
	read     int64
	total    int64
	progress *progress
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.read += int64(n)
		if c.total > 0 {
			c.progress.publish(int(c.read * 100 / c.total))
		}
	}
	return n, err
}

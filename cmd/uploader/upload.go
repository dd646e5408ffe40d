package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/internal/models"
	"github.com/mediagallery/backend/libs/directupload"
)

// uploadOptions are the inputs of one upload run
type uploadOptions struct {
	apiURL      string
	token       string
	title       string
	description string
	duration    float64
	maxSize     int64
}

// runUpload mints a signature, streams the file to the media store and registers the result.
// Canceling ctx aborts the transfer; nothing is registered in that case.
func runUpload(ctx context.Context, path string, opts uploadOptions, out io.Writer, logger *zap.Logger) (*models.MediaAsset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() > opts.maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", directupload.ErrFileTooLarge, path, info.Size(), opts.maxSize)
	}

	api := newAPIClient(opts.apiURL, opts.token)
	auth, err := api.MintSignature(ctx)
	if err != nil {
		return nil, err
	}

	// The server may advertise a tighter ceiling than the local one
	maxSize := opts.maxSize
	if auth.MaxFileSize > 0 && auth.MaxFileSize < maxSize {
		maxSize = auth.MaxFileSize
	}

	uploader := directupload.NewClient(nil, maxSize, logger)
	upload, err := uploader.Start(ctx, filepath.Base(path), file, info.Size(), *auth)
	if err != nil {
		return nil, err
	}

	bar := newProgressBar(out, filepath.Base(path))
	for event := range upload.Progress() {
		renderProgress(out, bar, event)
	}

	descriptor, err := upload.Wait()
	if err != nil {
		return nil, err
	}

	return api.RegisterDirectUpload(ctx, models.DirectUploadRequest{
		Title:        opts.title,
		Description:  opts.description,
		Duration:     opts.duration,
		OriginalSize: info.Size(),
		PublicID:     descriptor.PublicID,
	})
}

const progressWidth = 30

// newProgressBar renders upload percentages for one file on out
func newProgressBar(out io.Writer, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(name),
		progressbar.OptionSetWidth(progressWidth),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

// renderProgress moves the bar to the event's percentage and closes it on the terminal event
func renderProgress(out io.Writer, bar *progressbar.ProgressBar, event directupload.Event) {
	switch event.Kind {
	case directupload.EventSucceeded:
		bar.Finish()
	case directupload.EventFailed:
		bar.Set(event.Percent)
		fmt.Fprintln(out)
	default:
		bar.Set(event.Percent)
	}
}

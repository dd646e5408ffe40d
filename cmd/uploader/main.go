package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mediagallery/backend/libs/directupload"
	"github.com/mediagallery/backend/libs/logger"
)

const defaultMaxSize = 670 << 20

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := uploadOptions{}
	var verbose bool

	cmd := &cobra.Command{
		Use:   "uploader <file>",
		Short: "Upload a video straight to the media store and register it in the gallery",
		Long: `uploader asks the API for a signed upload authorization, streams the video
directly to the media store while showing progress, and registers the uploaded
object with the API. Press Ctrl-C to cancel the transfer.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.token == "" {
				opts.token = os.Getenv("MEDIA_GALLERY_TOKEN")
			}
			if opts.token == "" {
				return errors.New("a session token is required (--token or MEDIA_GALLERY_TOKEN)")
			}
			if opts.duration <= 0 {
				return errors.New("--duration must be a positive number of seconds")
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			return logger.Init(level)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			asset, err := runUpload(ctx, args[0], opts, cmd.ErrOrStderr(), logger.Logger)
			if err != nil {
				if errors.Is(err, directupload.ErrCanceled) || errors.Is(ctx.Err(), context.Canceled) {
					fmt.Fprintln(cmd.ErrOrStderr(), "upload canceled")
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				}
				logger.Logger.Debug("upload failed", zap.Error(err))
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(asset)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.apiURL, "api", "http://localhost:8080/api/v1", "Base URL of the media gallery API")
	flags.StringVar(&opts.token, "token", "", "Session token (defaults to MEDIA_GALLERY_TOKEN)")
	flags.StringVar(&opts.title, "title", "", "Video title")
	flags.StringVar(&opts.description, "description", "", "Video description")
	flags.Float64Var(&opts.duration, "duration", 0, "Video duration in seconds")
	flags.Int64Var(&opts.maxSize, "max-size", defaultMaxSize, "Largest file accepted, in bytes")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("duration")

	return cmd
}

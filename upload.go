package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chunkrelay/chunkrelay/internal/bandwidth"
	"github.com/chunkrelay/chunkrelay/internal/client/apiclient"
	"github.com/chunkrelay/chunkrelay/internal/client/pump"
	"github.com/chunkrelay/chunkrelay/internal/client/retry"
	"github.com/chunkrelay/chunkrelay/internal/client/session"
	"github.com/chunkrelay/chunkrelay/internal/client/slicer"
	"github.com/chunkrelay/chunkrelay/internal/client/transport"
	"github.com/chunkrelay/chunkrelay/internal/config"
)

func newUploadCmd() *cobra.Command {
	var chunkSizeStr string
	var concurrency int
	var maxAttempts int
	var binary bool
	var bandwidthLimit string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file to a chunkrelay server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := buildLogger(cfg)

			if chunkSizeStr == "" {
				chunkSizeStr = cfg.Client.ChunkSize
			}

			if concurrency == 0 {
				concurrency = cfg.Client.Concurrency
			}

			if maxAttempts == 0 {
				maxAttempts = cfg.Client.MaxAttempts
			}

			if bandwidthLimit == "" {
				bandwidthLimit = cfg.Client.BandwidthLimit
			}

			return runUpload(cmd.Context(), args[0], chunkSizeStr, concurrency, maxAttempts, binary, bandwidthLimit, logger)
		},
	}

	cmd.Flags().StringVar(&chunkSizeStr, "chunk-size", "", "chunk size, e.g. 10MiB (defaults to config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of chunks in flight at once (defaults to config)")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "retry attempts per chunk (defaults to config)")
	cmd.Flags().BoolVar(&binary, "binary", false, "use the raw binary transport instead of multipart")
	cmd.Flags().StringVar(&bandwidthLimit, "bandwidth-limit", "", "cap upload rate, e.g. 5MiB/s (defaults to config)")

	return cmd
}

func runUpload(ctx context.Context, path, chunkSizeStr string, concurrency, maxAttempts int, binary bool, bandwidthLimit string, logger *slog.Logger) error {
	ctx = shutdownContext(ctx, logger)

	chunkSize, err := config.ParseSize(chunkSizeStr)
	if err != nil {
		return fmt.Errorf("parsing chunk size: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	dataDir, err := os.UserCacheDir()
	if err != nil {
		dataDir = os.TempDir()
	}

	mgr := session.NewManager(filepath.Join(dataDir, "chunkrelay"), logger)
	mgr.CleanExpiredRecords()

	sessionID, resumed, err := mgr.Resolve(path)
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}

	api := apiclient.New(flagServerURL, nil)

	var missing []int
	if resumed {
		resumeInfo, resumeErr := api.Resume(ctx, sessionID, slicer.Count(info.Size(), chunkSize), filepath.Base(path), info.Size(), chunkSize)
		if resumeErr == nil && resumeInfo.CanResume {
			missing = resumeInfo.MissingChunks
			statusf(flagQuiet, "resuming session %s: %d chunks already received\n", sessionID, len(resumeInfo.ReceivedChunks))
		}
	}

	limiter, err := bandwidth.New(bandwidthLimit, logger)
	if err != nil {
		return fmt.Errorf("parsing bandwidth limit: %w", err)
	}

	httpClient := &http.Client{Transport: limiter.RoundTripper(http.DefaultTransport)}

	var sender transport.Sender
	if binary {
		sender = transport.NewBinary(httpClient)
	} else {
		sender = transport.NewMultipart(httpClient)
	}

	policy := retry.NewPolicy(maxAttempts)

	opts := pump.Options{
		SessionID:   sessionID,
		BaseURL:     flagServerURL,
		FilePath:    path,
		FileName:    filepath.Base(path),
		ChunkSize:   chunkSize,
		Concurrency: concurrency,
		Sender:      sender,
		Finalizer:   api,
		RetryPolicy: policy,
		Logger:      logger,
		Missing:     missing,
	}

	task, err := pump.New(opts)
	if err != nil {
		return fmt.Errorf("preparing upload: %w", err)
	}

	done := make(chan error, 1)

	go func() {
		done <- mgr.Start(ctx, task, chunkSize)
	}()

	if isatty.IsTerminal(os.Stdout.Fd()) && !flagQuiet {
		printProgress(task)
	}

	return <-done
}

func printProgress(task *pump.Task) {
	go func() {
		for p := range task.Progress() {
			fmt.Fprintf(os.Stderr, "\r%s / %s (%s/s, %s remaining)   ",
				humanize.Bytes(uint64(p.UploadedBytes)),  //nolint:gosec // progress values are never negative
				humanize.Bytes(uint64(p.TotalBytes)),     //nolint:gosec
				humanize.Bytes(uint64(p.BytesPerSecond)), //nolint:gosec
				time.Duration(p.RemainingSeconds*float64(time.Second)).Round(time.Second),
			)
		}

		fmt.Fprintln(os.Stderr)
	}()
}

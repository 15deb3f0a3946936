package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chunkrelay/chunkrelay/internal/client/apiclient"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the server-side status of an upload session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}

	return cmd
}

func runStatus(ctx context.Context, sessionID string, out io.Writer) error {
	api := apiclient.New(flagServerURL, nil)

	info, err := api.Status(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetching status for %s: %w", sessionID, err)
	}

	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(info)
	}

	state := "uploading"
	switch {
	case info.Completed:
		state = "completed"
	case info.Failed:
		state = "failed"
	}

	fmt.Fprintf(out, "session:    %s\n", info.SessionID)
	fmt.Fprintf(out, "file:       %s\n", info.FileName)
	fmt.Fprintf(out, "state:      %s\n", state)
	fmt.Fprintf(out, "progress:   %d/%d chunks (%.1f%%)\n", len(info.ReceivedChunks), info.TotalChunks, info.ProgressPercent)
	fmt.Fprintf(out, "bytes:      %d/%d\n", info.UploadedBytes, info.FileSize)

	if info.ErrorMessage != "" {
		fmt.Fprintf(out, "error:      %s\n", info.ErrorMessage)
	}

	return nil
}

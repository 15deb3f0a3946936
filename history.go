package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chunkrelay/chunkrelay/internal/client/apiclient"
)

func newHistoryCmd() *cobra.Command {
	var limit int
	var recent bool

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show recorded terminal transitions for a session, or the most recent across all sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				recent = true
			}

			if recent {
				return runRecentHistory(cmd.Context(), limit, cmd.OutOrStdout())
			}

			return runHistory(cmd.Context(), args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events to show")

	return cmd
}

func runHistory(ctx context.Context, sessionID string, out io.Writer) error {
	api := apiclient.New(flagServerURL, nil)

	events, err := api.History(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fetching history for %s: %w", sessionID, err)
	}

	return printHistory(out, events)
}

func runRecentHistory(ctx context.Context, limit int, out io.Writer) error {
	api := apiclient.New(flagServerURL, nil)

	events, err := api.RecentHistory(ctx, limit)
	if err != nil {
		return fmt.Errorf("fetching recent history: %w", err)
	}

	return printHistory(out, events)
}

func printHistory(out io.Writer, events []apiclient.HistoryEvent) error {
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(events)
	}

	for _, e := range events {
		fmt.Fprintf(out, "%s  %-10s %-36s %10d bytes  %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Kind, e.SessionID, e.Bytes, e.ErrorMsg)
	}

	return nil
}

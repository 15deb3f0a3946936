package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chunkrelay/chunkrelay/internal/client/apiclient"
)

func newCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <session-id>",
		Short: "Cancel an in-progress upload session on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := apiclient.New(flagServerURL, nil)

			if err := api.Cancel(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("cancelling session %s: %w", args[0], err)
			}

			statusf(flagQuiet, "session %s cancelled\n", args[0])

			return nil
		},
	}

	return cmd
}

package main

import (
	"github.com/spf13/cobra"
)

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <file>",
		Short: "Continue an interrupted upload for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger := buildLogger(cfg)

			return runUpload(cmd.Context(), args[0], cfg.Client.ChunkSize, cfg.Client.Concurrency, cfg.Client.MaxAttempts, false, cfg.Client.BandwidthLimit, logger)
		},
	}

	return cmd
}

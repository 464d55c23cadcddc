package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"framecast/internal/session"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale export workspaces left by crashed runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			result := session.CleanStale(cfg.Paths.ScratchDir, maxAge, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d stale workspace(s)\n", len(result.Removed))
			for _, sweepErr := range result.Errors {
				fmt.Fprintf(out, "Failed to remove %s: %v\n", sweepErr.Path, sweepErr.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "Remove workspaces older than this")
	return cmd
}

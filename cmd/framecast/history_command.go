package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"framecast/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg.Paths.JournalDir)
			if err != nil {
				return fmt.Errorf("open export history: %w", err)
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list export history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No exports recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{
					entry.CompletedAt.Local().Format("2006-01-02 15:04"),
					entry.Format,
					strconv.FormatInt(entry.Frames, 10),
					formatDuration(entry.DurationSeconds),
					formatBytes(entry.SizeBytes),
					entry.OutputPath,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Completed", "Format", "Frames", "Length", "Size", "Output"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return cmd
}

func formatDuration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	return d.String()
}

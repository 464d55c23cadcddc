package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"framecast/internal/events"
	"framecast/internal/export"
	"framecast/internal/journal"
	"framecast/internal/session"
)

const defaultBatchSize = 8

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var formatFlag string
	var fps int
	var width int
	var height int
	var audioPath string
	var batchSize int

	cmd := &cobra.Command{
		Use:   "export <frames-dir>",
		Short: "Encode a directory of rendered frames into a video",
		Long: `Export reads sequentially named PNG frames from a directory, stages them
in a private workspace, and encodes them with FFmpeg. The h264 format
produces a broadly playable MP4 with the stream index at the front; the
prores format produces a 10-bit QuickTime file for further editing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			format, err := export.ParseFormat(formatFlag)
			if err != nil {
				return err
			}
			destination := strings.TrimSpace(outputPath)
			if destination == "" {
				destination = "export" + format.Ext()
			}
			if filepath.Ext(destination) == "" {
				destination += format.Ext()
			}

			framePaths, err := collectFramePaths(args[0])
			if err != nil {
				return err
			}
			if len(framePaths) == 0 {
				return fmt.Errorf("no PNG frames found in %s", args[0])
			}

			store, err := journal.Open(cfg.Paths.JournalDir)
			if err != nil {
				return fmt.Errorf("open export history: %w", err)
			}
			defer store.Close()

			bus := events.New()
			exporter := export.New(cfg, bus, logger, export.WithJournal(store))

			out := cmd.OutOrStdout()
			unsubscribe := bus.Subscribe(func(e events.ExportProgress) {
				fmt.Fprintf(out, "\rEncoding frame %d/%d", e.Frame, e.Total)
			})
			defer unsubscribe()

			// Ctrl-C flows through the context, kills the encoder, and
			// still tears the workspace down.
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if _, err := exporter.Begin(session.Settings{Width: width, Height: height, FPS: fps}); err != nil {
				return err
			}

			if err := stageFrames(runCtx, exporter, framePaths, batchSize); err != nil {
				exporter.Cancel()
				return err
			}
			if audioPath != "" {
				blob, readErr := os.ReadFile(audioPath)
				if readErr != nil {
					exporter.Cancel()
					return fmt.Errorf("read audio file: %w", readErr)
				}
				if _, saveErr := exporter.SaveAudio(runCtx, blob); saveErr != nil {
					exporter.Cancel()
					return saveErr
				}
			}

			result, err := exporter.Finalize(runCtx, format, export.FixedPath(destination))
			fmt.Fprintln(out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Wrote %s (%d frames, %s)\n", result.OutputPath, result.Frames, formatBytes(result.SizeBytes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination video path")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "h264", "Output format (h264 or prores)")
	cmd.Flags().IntVar(&fps, "fps", 30, "Frame rate of the rendered sequence")
	cmd.Flags().IntVar(&width, "width", 1920, "Frame width in pixels")
	cmd.Flags().IntVar(&height, "height", 1080, "Frame height in pixels")
	cmd.Flags().StringVar(&audioPath, "audio", "", "Optional WAV audio track to mux in")
	cmd.Flags().IntVar(&batchSize, "batch-size", defaultBatchSize, "Frames staged per batch")
	return cmd
}

// collectFramePaths returns the PNG files in dir sorted by name. Render
// pipelines emit zero-padded sequential names, so lexical order is frame
// order.
func collectFramePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frames directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".png") {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func stageFrames(ctx context.Context, exporter *export.Exporter, framePaths []string, batchSize int) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	for start := 0; start < len(framePaths); start += batchSize {
		end := start + batchSize
		if end > len(framePaths) {
			end = len(framePaths)
		}
		batch := make([][]byte, 0, end-start)
		for _, path := range framePaths[start:end] {
			payload, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read frame %s: %w", path, err)
			}
			batch = append(batch, payload)
		}
		if _, err := exporter.SaveFrameBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

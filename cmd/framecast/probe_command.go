package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framecast/internal/ffprobe"
	"framecast/internal/mp4meta"
)

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <video-file>",
		Short: "Inspect an exported video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			binary := firstNonEmpty(cfg.Encoder.FFprobePath, "ffprobe")
			result, err := ffprobe.Inspect(cmd.Context(), binary, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"Size", formatBytes(result.SizeBytes())},
				{"Duration", formatDuration(result.DurationSeconds())},
				{"Audio streams", fmt.Sprintf("%d", result.AudioStreamCount())},
			}
			if video, ok := result.VideoStream(); ok {
				rows = append(rows,
					[]string{"Video codec", video.CodecName},
					[]string{"Resolution", fmt.Sprintf("%dx%d", video.Width, video.Height)},
				)
				if frames := result.FrameCount(); frames > 0 {
					rows = append(rows, []string{"Frames", fmt.Sprintf("%d", frames)})
				}
			}

			// Fast-start only means anything for MP4/MOV containers.
			lower := strings.ToLower(args[0])
			if strings.HasSuffix(lower, ".mp4") || strings.HasSuffix(lower, ".mov") {
				if fast, fsErr := mp4meta.FastStart(args[0]); fsErr == nil {
					placement := "end of file"
					if fast {
						placement = "front of file (fast start)"
					}
					rows = append(rows, []string{"Stream index", placement})
				}
			}

			fmt.Fprintln(out, renderTable(
				[]string{"Property", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

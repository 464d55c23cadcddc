package deps

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"framecast/internal/services"
)

// DefaultProbeTimeout bounds each candidate's version check.
const DefaultProbeTimeout = 5 * time.Second

// InstallGuidance is appended to encoder-not-found errors so the failure is
// actionable without consulting documentation.
const InstallGuidance = "FFmpeg not found. Install it with your package manager " +
	"(brew install ffmpeg, apt install ffmpeg) or set encoder.ffmpeg_path in the config."

// FFmpegCandidates returns the ordered executable paths probed by Locate.
// An explicit override, when set, is tried first but still subjected to the
// same version check as every other candidate.
func FFmpegCandidates(override string) []string {
	candidates := make([]string, 0, 6)
	if override = strings.TrimSpace(override); override != "" {
		candidates = append(candidates, override)
	}
	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/opt/homebrew/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
			"/opt/local/bin/ffmpeg",
		)
	case "windows":
		candidates = append(candidates,
			`C:\ffmpeg\bin\ffmpeg.exe`,
			`C:\Program Files\ffmpeg\bin\ffmpeg.exe`,
		)
	default:
		candidates = append(candidates,
			"/usr/bin/ffmpeg",
			"/usr/local/bin/ffmpeg",
		)
	}
	candidates = append(candidates, "ffmpeg")
	return candidates
}

// Locate probes candidates in order with a bounded `-version` invocation and
// returns the first that exits successfully. All candidates failing is an
// ErrEncoderNotFound condition carrying installation guidance.
func Locate(ctx context.Context, candidates []string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", services.Wrap(services.ErrCanceled, "locate", "", "encoder lookup interrupted", err)
		}
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if probe(ctx, candidate, timeout) {
			return candidate, nil
		}
	}
	// A dead context fails every probe; that is a cancellation, not a
	// missing encoder.
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrCanceled, "locate", "", "encoder lookup interrupted", err)
	}
	return "", services.Wrap(services.ErrEncoderNotFound, "locate", "", InstallGuidance, nil)
}

func probe(ctx context.Context, binary string, timeout time.Duration) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(probeCtx, binary, "-version")
	return cmd.Run() == nil
}

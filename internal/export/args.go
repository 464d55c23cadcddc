package export

import (
	"strconv"
)

// encodePlan carries everything the primary ffmpeg invocation needs.
type encodePlan struct {
	inputPattern string
	audioPath    string // empty disables audio
	fps          int
	format       Format
	crf          int
	preset       string
	audioBitrate string
	output       string
}

// args builds the primary encode invocation. The temporary output lives
// inside the workspace so a crash mid-encode never touches the user's
// destination.
func (p encodePlan) args() []string {
	args := []string{
		"-y",
		"-framerate", strconv.Itoa(p.fps),
		"-i", p.inputPattern,
	}
	if p.audioPath != "" {
		args = append(args, "-i", p.audioPath)
	}

	switch p.format {
	case FormatProRes:
		args = append(args,
			"-c:v", "prores_ks",
			"-profile:v", "3",
			"-pix_fmt", "yuv422p10le",
		)
	default:
		args = append(args,
			"-c:v", "libx264",
			"-preset", p.preset,
			"-crf", strconv.Itoa(p.crf),
			"-pix_fmt", "yuv420p",
		)
	}

	if p.audioPath != "" {
		args = append(args,
			"-c:a", "aac",
			"-b:a", p.audioBitrate,
			"-ar", "44100",
			"-ac", "2",
			"-shortest",
		)
	} else {
		args = append(args, "-an")
	}

	args = append(args, p.output)
	return args
}

// remuxArgs builds the second-stage invocation for the compatibility mode: a
// stream copy that relocates the moov index to the front of the file.
func remuxArgs(tempOutput, destination string) []string {
	return []string{
		"-y",
		"-i", tempOutput,
		"-c", "copy",
		"-movflags", "+faststart",
		destination,
	}
}

package deps

import (
	"os/exec"
	"strings"
)

// Tool identifies an external binary the pipeline shells out to.
type Tool struct {
	Name     string
	Binary   string
	Purpose  string
	Optional bool
}

// ToolStatus is a Tool resolved against the host.
type ToolStatus struct {
	Tool
	Available bool
	Path      string
	Detail    string
}

// Tools returns the binaries framecast depends on, with config overrides
// applied. FFmpeg performs every encode and is required; ffprobe only backs
// output inspection.
func Tools(ffmpegOverride, ffprobeOverride string) []Tool {
	return []Tool{
		{
			Name:    "FFmpeg",
			Binary:  overrideOr(ffmpegOverride, "ffmpeg"),
			Purpose: "video encoding",
		},
		{
			Name:     "FFprobe",
			Binary:   overrideOr(ffprobeOverride, "ffprobe"),
			Purpose:  "media inspection",
			Optional: true,
		},
	}
}

// Resolve looks each tool up on the host. A tool with an empty binary name
// is reported unavailable rather than skipped, so callers always get one
// status per tool.
func Resolve(tools []Tool) []ToolStatus {
	statuses := make([]ToolStatus, len(tools))
	for i, tool := range tools {
		statuses[i] = resolveTool(tool)
	}
	return statuses
}

func resolveTool(tool Tool) ToolStatus {
	status := ToolStatus{Tool: tool}
	binary := strings.TrimSpace(tool.Binary)
	if binary == "" {
		status.Detail = "no binary configured"
		return status
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		status.Detail = binary + " not found on this system"
		return status
	}
	status.Available = true
	status.Path = path
	return status
}

func overrideOr(override, fallback string) string {
	if override = strings.TrimSpace(override); override != "" {
		return override
	}
	return fallback
}

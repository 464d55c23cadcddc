package export

import (
	"fmt"
	"strings"
)

// Format selects the output container/codec mode.
type Format string

const (
	// FormatH264 is the broadly-playable distribution mode: libx264 in an
	// MP4 container, remuxed for fast-start playback.
	FormatH264 Format = "h264"
	// FormatProRes is the high-fidelity production mode: 10-bit ProRes in a
	// QuickTime container, intended for further editing.
	FormatProRes Format = "prores"
)

// Ext returns the container extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatProRes {
		return ".mov"
	}
	return ".mp4"
}

// ParseFormat normalizes a user-supplied format name.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "h264", "mp4", "":
		return FormatH264, nil
	case "prores", "mov":
		return FormatProRes, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want h264 or prores)", value)
	}
}

package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir
	}
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.JournalDir) == "" {
		c.Paths.JournalDir = defaultJournalDir
	}
	if c.Paths.JournalDir, err = expandPath(c.Paths.JournalDir); err != nil {
		return fmt.Errorf("paths.journal_dir: %w", err)
	}

	if path := strings.TrimSpace(c.Encoder.FFmpegPath); path != "" {
		if c.Encoder.FFmpegPath, err = expandPath(path); err != nil {
			return fmt.Errorf("encoder.ffmpeg_path: %w", err)
		}
	}
	if path := strings.TrimSpace(c.Encoder.FFprobePath); path != "" {
		if c.Encoder.FFprobePath, err = expandPath(path); err != nil {
			return fmt.Errorf("encoder.ffprobe_path: %w", err)
		}
	}
	if c.Encoder.ProbeTimeout <= 0 {
		c.Encoder.ProbeTimeout = defaultProbeSeconds
	}

	if strings.TrimSpace(c.Export.H264Preset) == "" {
		c.Export.H264Preset = defaultH264Preset
	}
	if strings.TrimSpace(c.Export.AudioBitrate) == "" {
		c.Export.AudioBitrate = defaultAudioBitrate
	}
	if c.Export.H264CRF == 0 {
		c.Export.H264CRF = defaultH264CRF
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

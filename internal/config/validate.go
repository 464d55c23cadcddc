package config

import "fmt"

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.Export.H264CRF < 0 || c.Export.H264CRF > 51 {
		return fmt.Errorf("export.h264_crf must be between 0 and 51, got %d", c.Export.H264CRF)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	if c.Encoder.ProbeTimeout < 1 {
		return fmt.Errorf("encoder.probe_timeout must be at least 1 second, got %d", c.Encoder.ProbeTimeout)
	}
	return nil
}

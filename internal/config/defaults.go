package config

const (
	defaultScratchDir   = "~/.cache/framecast/sessions"
	defaultJournalDir   = "~/.local/share/framecast"
	defaultProbeSeconds = 5
	defaultH264CRF      = 18
	defaultH264Preset   = "medium"
	defaultAudioBitrate = "192k"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScratchDir: defaultScratchDir,
			JournalDir: defaultJournalDir,
		},
		Encoder: Encoder{
			ProbeTimeout: defaultProbeSeconds,
		},
		Export: Export{
			H264CRF:      defaultH264CRF,
			H264Preset:   defaultH264Preset,
			AudioBitrate: defaultAudioBitrate,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

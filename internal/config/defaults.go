package config

const (
	defaultConfigPath         = "~/.config/sightline/config.toml"
	defaultProjectConfig      = "sightline.toml"
	defaultLogDir             = "~/.local/share/sightline/logs"
	defaultStateDir           = "~/.local/share/sightline"
	defaultDefaceBinary       = "deface"
	defaultDefaceThresh       = 0.2
	defaultDefaceMaskScale    = 1.3
	defaultDefaceReplaceWith  = "blur"
	defaultDefaceBatchSize    = 1
	defaultTranscribeBinary   = "whisper"
	defaultTranscribeModel    = "base"
	defaultWorkers            = 1
	defaultPollIntervalMS     = 50
	defaultGracePeriodSeconds = 5
	defaultEventBuffer        = 1024
	defaultPublishTimeoutMS   = 100
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// replaceModes lists the anonymization modes the deface tool accepts.
var replaceModes = []string{"blur", "solid", "none", "img", "mosaic"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Deface: Deface{
			Binary:       defaultDefaceBinary,
			Thresh:       defaultDefaceThresh,
			MaskScale:    defaultDefaceMaskScale,
			ReplaceWith:  defaultDefaceReplaceWith,
			KeepAudio:    true,
			KeepMetadata: true,
			BatchSize:    defaultDefaceBatchSize,
		},
		Transcribe: Transcribe{
			Binary: defaultTranscribeBinary,
			Model:  defaultTranscribeModel,
		},
		Batch: Batch{
			Workers:            defaultWorkers,
			PollIntervalMS:     defaultPollIntervalMS,
			GracePeriodSeconds: defaultGracePeriodSeconds,
			EventBuffer:        defaultEventBuffer,
			PublishTimeoutMS:   defaultPublishTimeoutMS,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

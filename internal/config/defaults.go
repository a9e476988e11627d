package config

const (
	defaultRemoteRoot                = "~/archive"
	defaultCacheDir                  = "~/.local/share/archivist/cache"
	defaultLogDir                    = "~/.local/share/archivist/logs"
	defaultLogFormat                 = "console"
	defaultLogLevel                  = "info"
	defaultLogRetentionDays          = 60
	defaultWorkerPollInterval        = 30
	defaultWorkerBatchSize           = 10
	defaultWorkerErrorRetryInterval  = 10
	defaultWorkflowHeartbeatInterval = 15
	defaultWorkflowHeartbeatTimeout  = 120
	defaultFacesCommand              = "archivist-faces"
	defaultCaptionCommand            = "archivist-caption"
	defaultEmbedCommand              = "archivist-embed"
	defaultTranscribeCommand         = "archivist-transcribe"
	defaultInferenceStageTimeout     = 600
	defaultMaxTranscribeMinutes      = 8
	defaultPhashThreshold            = 5
	defaultThumbnailSize             = 800
	defaultPosterSeconds             = 1.0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			RemoteRoot: defaultRemoteRoot,
			CacheDir:   defaultCacheDir,
			LogDir:     defaultLogDir,
		},
		Worker: Worker{
			PollInterval:       defaultWorkerPollInterval,
			BatchSize:          defaultWorkerBatchSize,
			ErrorRetryInterval: defaultWorkerErrorRetryInterval,
		},
		Inference: Inference{
			Enabled:              true,
			FacesCommand:         defaultFacesCommand,
			CaptionCommand:       defaultCaptionCommand,
			EmbedCommand:         defaultEmbedCommand,
			TranscribeCommand:    defaultTranscribeCommand,
			StageTimeout:         defaultInferenceStageTimeout,
			MaxTranscribeMinutes: defaultMaxTranscribeMinutes,
		},
		Duplicates: Duplicates{
			PhashThreshold: defaultPhashThreshold,
		},
		Media: Media{
			ThumbnailSize: defaultThumbnailSize,
			PosterSeconds: defaultPosterSeconds,
		},
		Workflow: Workflow{
			HeartbeatInterval: defaultWorkflowHeartbeatInterval,
			HeartbeatTimeout:  defaultWorkflowHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

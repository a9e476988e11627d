package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeWorker()
	c.normalizeInference()
	c.normalizeDuplicates()
	c.normalizeMedia()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.RemoteRoot, err = expandPath(c.Paths.RemoteRoot); err != nil {
		return fmt.Errorf("paths.remote_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() {
	if len(c.Remote.Contributors) == 0 {
		return
	}
	cleaned := make(map[string]string, len(c.Remote.Contributors))
	for token, name := range c.Remote.Contributors {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		cleaned[token] = strings.TrimSpace(name)
	}
	c.Remote.Contributors = cleaned
}

func (c *Config) normalizeWorker() {
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = defaultWorkerPollInterval
	}
	if c.Worker.BatchSize <= 0 {
		c.Worker.BatchSize = defaultWorkerBatchSize
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		c.Worker.ErrorRetryInterval = defaultWorkerErrorRetryInterval
	}
}

func (c *Config) normalizeInference() {
	c.Inference.FacesCommand = strings.TrimSpace(c.Inference.FacesCommand)
	if c.Inference.FacesCommand == "" {
		c.Inference.FacesCommand = defaultFacesCommand
	}
	c.Inference.CaptionCommand = strings.TrimSpace(c.Inference.CaptionCommand)
	if c.Inference.CaptionCommand == "" {
		c.Inference.CaptionCommand = defaultCaptionCommand
	}
	c.Inference.EmbedCommand = strings.TrimSpace(c.Inference.EmbedCommand)
	if c.Inference.EmbedCommand == "" {
		c.Inference.EmbedCommand = defaultEmbedCommand
	}
	c.Inference.TranscribeCommand = strings.TrimSpace(c.Inference.TranscribeCommand)
	if c.Inference.TranscribeCommand == "" {
		c.Inference.TranscribeCommand = defaultTranscribeCommand
	}
	if c.Inference.StageTimeout <= 0 {
		c.Inference.StageTimeout = defaultInferenceStageTimeout
	}
	if c.Inference.MaxTranscribeMinutes <= 0 {
		c.Inference.MaxTranscribeMinutes = defaultMaxTranscribeMinutes
	}
}

func (c *Config) normalizeDuplicates() {
	if c.Duplicates.PhashThreshold < 0 {
		c.Duplicates.PhashThreshold = defaultPhashThreshold
	}
}

func (c *Config) normalizeMedia() {
	if c.Media.ThumbnailSize <= 0 {
		c.Media.ThumbnailSize = defaultThumbnailSize
	}
	if c.Media.PosterSeconds <= 0 {
		c.Media.PosterSeconds = defaultPosterSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

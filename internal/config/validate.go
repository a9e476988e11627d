package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateDuplicates(); err != nil {
		return err
	}
	if err := c.validateMedia(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RemoteRoot) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/archivist/config.toml"
		}
		return fmt.Errorf("paths.remote_root is required. Edit %s (create with 'archivist config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateWorker() error {
	return ensurePositiveMap(map[string]int{
		"worker.poll_interval":        c.Worker.PollInterval,
		"worker.batch_size":           c.Worker.BatchSize,
		"worker.error_retry_interval": c.Worker.ErrorRetryInterval,
	})
}

func (c *Config) validateInference() error {
	if !c.Inference.Enabled {
		return nil
	}
	commands := map[string]string{
		"inference.faces_command":      c.Inference.FacesCommand,
		"inference.caption_command":    c.Inference.CaptionCommand,
		"inference.embed_command":      c.Inference.EmbedCommand,
		"inference.transcribe_command": c.Inference.TranscribeCommand,
	}
	for key, value := range commands {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set when inference.enabled is true", key)
		}
	}
	return ensurePositiveMap(map[string]int{
		"inference.stage_timeout":          c.Inference.StageTimeout,
		"inference.max_transcribe_minutes": c.Inference.MaxTranscribeMinutes,
	})
}

func (c *Config) validateDuplicates() error {
	if c.Duplicates.PhashThreshold < 0 {
		return errors.New("duplicates.phash_threshold must be >= 0")
	}
	if c.Duplicates.PhashThreshold > 64 {
		return errors.New("duplicates.phash_threshold must be <= 64 (fingerprint bit width)")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if c.Media.ThumbnailSize <= 0 {
		return errors.New("media.thumbnail_size must be positive")
	}
	if c.Media.PosterSeconds <= 0 {
		return errors.New("media.poster_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

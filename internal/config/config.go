package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	RemoteRoot string `toml:"remote_root"`
	CacheDir   string `toml:"cache_dir"`
	LogDir     string `toml:"log_dir"`
}

// Remote contains configuration for the remote archive store.
type Remote struct {
	// Contributors maps inbox folder tokens to display names.
	Contributors map[string]string `toml:"contributors"`
}

// Worker contains configuration for the ingestion poll loop.
type Worker struct {
	PollInterval       int `toml:"poll_interval"`
	BatchSize          int `toml:"batch_size"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
}

// Inference contains configuration for the Phase 2 model stages.
type Inference struct {
	Enabled              bool   `toml:"enabled"`
	FacesCommand         string `toml:"faces_command"`
	CaptionCommand       string `toml:"caption_command"`
	EmbedCommand         string `toml:"embed_command"`
	TranscribeCommand    string `toml:"transcribe_command"`
	StageTimeout         int    `toml:"stage_timeout"`
	MaxTranscribeMinutes int    `toml:"max_transcribe_minutes"`
}

// Duplicates contains configuration for near-duplicate detection.
type Duplicates struct {
	// PhashThreshold is the maximum Hamming distance between perceptual
	// fingerprints for two images to count as near duplicates.
	PhashThreshold int `toml:"phash_threshold"`
}

// Media contains configuration for thumbnail and poster generation.
type Media struct {
	ThumbnailSize int     `toml:"thumbnail_size"`
	PosterSeconds float64 `toml:"poster_seconds"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for archivist.
//
// Configuration sections by subsystem:
//   - Paths: remote archive root, local cache, and log directories
//   - Remote: contributor folder mapping
//   - Worker: poll interval and per-cycle batch limits
//   - Inference: Phase 2 model commands, timeout, and transcription guard
//   - Duplicates: perceptual-distance threshold
//   - Media: thumbnail and poster generation settings
//   - Workflow: heartbeat intervals and timeouts
//   - Logging: log format, level, and retention
type Config struct {
	Paths      Paths      `toml:"paths"`
	Remote     Remote     `toml:"remote"`
	Worker     Worker     `toml:"worker"`
	Inference  Inference  `toml:"inference"`
	Duplicates Duplicates `toml:"duplicates"`
	Media      Media      `toml:"media"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/archivist/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/archivist/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("archivist.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The remote root is created on a best-effort basis so the daemon can start
// when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	required := []string{
		c.Paths.CacheDir,
		c.Paths.LogDir,
		c.DownloadDir(),
		c.SidecarCacheDir(),
		c.ThumbnailCacheDir(),
		c.PosterCacheDir(),
		c.TranscriptCacheDir(),
	}
	for _, dir := range required {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.RemoteRoot) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.RemoteRoot, 0o755)
	}
	return nil
}

// DatabasePath returns the location of the SQLite state store.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.CacheDir, "archivist.db")
}

// DownloadDir returns the scratch directory for claimed file downloads.
func (c *Config) DownloadDir() string {
	return filepath.Join(c.Paths.CacheDir, "downloads")
}

// SidecarCacheDir returns the local mirror directory for sidecar documents.
func (c *Config) SidecarCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "sidecars")
}

// ThumbnailCacheDir returns the local directory for generated thumbnails.
func (c *Config) ThumbnailCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "thumbnails")
}

// PosterCacheDir returns the local directory for generated video posters.
func (c *Config) PosterCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "posters")
}

// TranscriptCacheDir returns the local directory for transcription output.
func (c *Config) TranscriptCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "transcripts")
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// FFmpegBinary returns the ffmpeg executable name used for poster extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// ContributorName resolves an inbox folder token to a display name.
// Unknown tokens are returned unchanged.
func (c *Config) ContributorName(token string) string {
	if name, ok := c.Remote.Contributors[token]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return token
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"archivist/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if cfg.Paths.RemoteRoot != filepath.Join(tempHome, "archive") {
		t.Fatalf("unexpected remote root: %q", cfg.Paths.RemoteRoot)
	}
	wantCache := filepath.Join(tempHome, ".local", "share", "archivist", "cache")
	if cfg.Paths.CacheDir != wantCache {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, wantCache)
	}
	if !cfg.Inference.Enabled {
		t.Fatal("expected inference enabled by default")
	}
	if cfg.Duplicates.PhashThreshold != 5 {
		t.Fatalf("unexpected phash threshold: %d", cfg.Duplicates.PhashThreshold)
	}
	if cfg.Media.ThumbnailSize != 800 {
		t.Fatalf("unexpected thumbnail size: %d", cfg.Media.ThumbnailSize)
	}
	if cfg.Inference.MaxTranscribeMinutes != 8 {
		t.Fatalf("unexpected transcription guard: %d", cfg.Inference.MaxTranscribeMinutes)
	}
	if cfg.Workflow.HeartbeatInterval != config.Default().Workflow.HeartbeatInterval {
		t.Fatalf("unexpected heartbeat interval: %d", cfg.Workflow.HeartbeatInterval)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{
		cfg.Paths.CacheDir,
		cfg.Paths.LogDir,
		cfg.DownloadDir(),
		cfg.SidecarCacheDir(),
		cfg.ThumbnailCacheDir(),
		cfg.PosterCacheDir(),
		cfg.TranscriptCacheDir(),
	} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "archivist.toml")

	type payload struct {
		Paths struct {
			RemoteRoot string `toml:"remote_root"`
		} `toml:"paths"`
		Worker struct {
			PollInterval int `toml:"poll_interval"`
			BatchSize    int `toml:"batch_size"`
		} `toml:"worker"`
		Duplicates struct {
			PhashThreshold int `toml:"phash_threshold"`
		} `toml:"duplicates"`
	}
	custom := payload{}
	custom.Paths.RemoteRoot = filepath.Join(tempDir, "vault")
	custom.Worker.PollInterval = 5
	custom.Worker.BatchSize = 3
	custom.Duplicates.PhashThreshold = 8
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.RemoteRoot != filepath.Join(tempDir, "vault") {
		t.Fatalf("unexpected remote root: %q", cfg.Paths.RemoteRoot)
	}
	if cfg.Worker.PollInterval != 5 {
		t.Fatalf("expected poll interval 5, got %d", cfg.Worker.PollInterval)
	}
	if cfg.Worker.BatchSize != 3 {
		t.Fatalf("expected batch size 3, got %d", cfg.Worker.BatchSize)
	}
	if cfg.Duplicates.PhashThreshold != 8 {
		t.Fatalf("expected phash threshold 8, got %d", cfg.Duplicates.PhashThreshold)
	}
	if cfg.Worker.ErrorRetryInterval != config.Default().Worker.ErrorRetryInterval {
		t.Fatalf("expected default retry interval, got %d", cfg.Worker.ErrorRetryInterval)
	}
}

func TestContributorName(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Contributors = map[string]string{"grandma_j": "Grandma Josephine"}

	if got := cfg.ContributorName("grandma_j"); got != "Grandma Josephine" {
		t.Fatalf("unexpected contributor name: %q", got)
	}
	if got := cfg.ContributorName("stranger"); got != "stranger" {
		t.Fatalf("unknown token should pass through: %q", got)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "remote_root") {
		t.Fatalf("sample config missing remote_root: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.RemoteRoot, "archive") {
		t.Fatalf("expected remote root in sample, got %q", cfg.Paths.RemoteRoot)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.RemoteRoot = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing remote root")
	}

	cfg = config.Default()
	cfg.Worker.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive poll interval")
	}

	cfg = config.Default()
	cfg.Workflow.HeartbeatTimeout = cfg.Workflow.HeartbeatInterval
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when timeout <= interval")
	}

	cfg = config.Default()
	cfg.Duplicates.PhashThreshold = 65
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for threshold above fingerprint width")
	}

	cfg = config.Default()
	cfg.Inference.FacesCommand = ""
	cfg.Inference.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing faces command with inference enabled")
	}

	cfg = config.Default()
	cfg.Inference.Enabled = false
	cfg.Inference.FacesCommand = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled inference should not require commands: %v", err)
	}
}

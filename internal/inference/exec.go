package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"archivist/internal/config"
	"archivist/internal/store"
)

// execRunner shells out to a model command. The subprocess lifetime is the
// model's residency window: Load verifies the command resolves, Run starts
// the process and waits, Unload has nothing left to free.
type execRunner struct {
	name    string
	command []string
	parse   func(output []byte, result *Result) error
}

func newExecRunner(name, command string, parse func([]byte, *Result) error) *execRunner {
	return &execRunner{
		name:    name,
		command: strings.Fields(command),
		parse:   parse,
	}
}

func (e *execRunner) Name() string {
	return e.name
}

func (e *execRunner) Load(ctx context.Context) error {
	if len(e.command) == 0 {
		return fmt.Errorf("%s: no command configured", e.name)
	}
	if _, err := exec.LookPath(e.command[0]); err != nil {
		return fmt.Errorf("%s: %w", e.name, err)
	}
	return nil
}

func (e *execRunner) Unload(ctx context.Context) error {
	return nil
}

func (e *execRunner) Run(ctx context.Context, req Request) (Result, error) {
	args := append(append([]string(nil), e.command[1:]...), req.LocalPath)
	cmd := exec.CommandContext(ctx, e.command[0], args...)
	output, err := cmd.Output()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", e.name, err)
	}

	var result Result
	if err := e.parse(output, &result); err != nil {
		return Result{}, fmt.Errorf("%s: parse output: %w", e.name, err)
	}
	return result, nil
}

type faceDetection struct {
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Confidence float64   `json:"confidence"`
	Embedding  []float64 `json:"embedding"`
}

func parseFaces(output []byte, result *Result) error {
	var payload struct {
		Faces []faceDetection `json:"faces"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return err
	}
	for _, face := range payload.Faces {
		result.Faces = append(result.Faces, store.Face{
			X:          face.X,
			Y:          face.Y,
			Width:      face.Width,
			Height:     face.Height,
			Confidence: face.Confidence,
			Embedding:  face.Embedding,
		})
	}
	return nil
}

func parseCaption(output []byte, result *Result) error {
	var payload struct {
		Caption string `json:"caption"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return err
	}
	result.Caption = strings.TrimSpace(payload.Caption)
	return nil
}

func parseEmbedding(output []byte, result *Result) error {
	var payload struct {
		Model  string    `json:"model"`
		Vector []float64 `json:"vector"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return err
	}
	result.EmbeddingModel = payload.Model
	result.EmbeddingVector = payload.Vector
	return nil
}

func parseTranscript(output []byte, result *Result) error {
	var payload struct {
		Transcript string `json:"transcript"`
	}
	if err := json.Unmarshal(output, &payload); err != nil {
		return err
	}
	result.Transcript = strings.TrimSpace(payload.Transcript)
	return nil
}

func isImage(asset *store.Asset) bool {
	return asset.MediaKind == store.MediaImage
}

func isVisual(asset *store.Asset) bool {
	return asset.MediaKind == store.MediaImage || asset.MediaKind == store.MediaVideo
}

func hasSoundtrack(asset *store.Asset) bool {
	return asset.MediaKind == store.MediaVideo || asset.MediaKind == store.MediaAudio
}

// posterOrOriginal hands visual models a still frame for videos so image
// models never see a container format.
func posterOrOriginal(req Request) string {
	if req.Asset.MediaKind == store.MediaVideo && req.Asset.PosterPath != "" {
		return req.Asset.PosterPath
	}
	return req.LocalPath
}

// DurationGuard skips transcription for clips longer than maxMinutes. The
// skip is policy, not failure: no error entry is recorded.
func DurationGuard(maxMinutes int) func(asset *store.Asset) (string, bool) {
	return func(asset *store.Asset) (string, bool) {
		if maxMinutes <= 0 {
			return "", true
		}
		duration := assetDurationSeconds(asset)
		if duration > float64(maxMinutes)*60 {
			return fmt.Sprintf("duration %.0fs exceeds %dm transcription limit", duration, maxMinutes), false
		}
		return "", true
	}
}

func assetDurationSeconds(asset *store.Asset) float64 {
	if asset.VideoJSON == "" {
		return 0
	}
	var payload struct {
		DurationSeconds float64 `json:"duration_seconds"`
	}
	if err := json.Unmarshal([]byte(asset.VideoJSON), &payload); err != nil {
		return 0
	}
	return payload.DurationSeconds
}

// Stages builds the fixed Phase 2 sequence from the configured model
// commands: faces, caption, embedding, transcription.
func Stages(cfg *config.Config) []Stage {
	return []Stage{
		{
			Name:    "faces",
			Applies: isImage,
			Runner:  newExecRunner("faces", cfg.Inference.FacesCommand, parseFaces),
		},
		{
			Name:    "caption",
			Applies: isVisual,
			Input:   posterOrOriginal,
			Runner:  newExecRunner("caption", cfg.Inference.CaptionCommand, parseCaption),
		},
		{
			Name:    "embedding",
			Applies: isVisual,
			Input:   posterOrOriginal,
			Runner:  newExecRunner("embedding", cfg.Inference.EmbedCommand, parseEmbedding),
		},
		{
			Name:    "transcript",
			Applies: hasSoundtrack,
			Guard:   DurationGuard(cfg.Inference.MaxTranscribeMinutes),
			Runner:  newExecRunner("transcript", cfg.Inference.TranscribeCommand, parseTranscript),
		},
	}
}

// NewSchedulerFromConfig wires a fresh session and the standard stages.
func NewSchedulerFromConfig(cfg *config.Config, logger *slog.Logger) *Scheduler {
	return NewScheduler(
		NewSession(),
		Stages(cfg),
		cfg.Inference.Enabled,
		time.Duration(cfg.Inference.StageTimeout)*time.Second,
		logger,
	)
}

package inference

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"archivist/internal/logging"
	"archivist/internal/store"
)

// Request carries the asset and the local copy of its bytes to a stage.
type Request struct {
	Asset     *store.Asset
	LocalPath string
}

// Result is what one stage produced. Only the fields belonging to the
// stage are populated.
type Result struct {
	Faces           []store.Face
	Caption         string
	EmbeddingModel  string
	EmbeddingVector []float64
	Transcript      string
}

// Runner is a full stage model: loadable, runnable, unloadable.
type Runner interface {
	Loader
	Run(ctx context.Context, req Request) (Result, error)
}

// Stage is one step of the fixed Phase 2 sequence.
type Stage struct {
	// Name labels the stage in logs and error entries.
	Name string
	// Applies reports whether the stage runs for this media kind at all.
	Applies func(asset *store.Asset) bool
	// Guard may veto a run with a reason. A veto is a skip, not a failure.
	Guard func(asset *store.Asset) (string, bool)
	// Input picks the file handed to the model.
	Input  func(req Request) string
	Runner Runner
}

// StageOutcome records how one stage ended for one asset.
type StageOutcome struct {
	Stage   string
	Result  Result
	Skipped bool
	Reason  string
	Err     error
}

// Scheduler drives the stages strictly serially through one Session.
type Scheduler struct {
	session *Session
	stages  []Stage
	enabled bool
	timeout time.Duration
	logger  *slog.Logger
}

// NewScheduler returns a Scheduler. When enabled is false the whole phase
// is skipped for every asset. timeout bounds a single stage run.
func NewScheduler(session *Session, stages []Stage, enabled bool, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		session: session,
		stages:  stages,
		enabled: enabled,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "inference"),
	}
}

// Session exposes the scheduler's session for residency assertions.
func (s *Scheduler) Session() *Session {
	return s.session
}

// Process runs every applicable stage for the asset in order. A stage
// failure appends one entry to the asset's error list and the next stage
// still runs; only context cancellation stops the sequence early.
func (s *Scheduler) Process(ctx context.Context, req Request) []StageOutcome {
	if !s.enabled {
		s.logger.Debug("inference disabled, skipping all stages",
			slog.String(logging.FieldAssetID, req.Asset.ID))
		return nil
	}

	outcomes := make([]StageOutcome, 0, len(s.stages))
	for _, stage := range s.stages {
		if err := ctx.Err(); err != nil {
			break
		}
		outcome := s.runStage(ctx, stage, req)
		if outcome.Err != nil {
			req.Asset.RecordError(fmt.Sprintf("%s: %v", stage.Name, outcome.Err))
			s.logger.Warn("stage failed",
				slog.String(logging.FieldAssetID, req.Asset.ID),
				slog.String(logging.FieldStage, stage.Name),
				slog.Any("error", outcome.Err),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (s *Scheduler) runStage(ctx context.Context, stage Stage, req Request) StageOutcome {
	outcome := StageOutcome{Stage: stage.Name}

	if stage.Applies != nil && !stage.Applies(req.Asset) {
		outcome.Skipped = true
		outcome.Reason = "media kind not applicable"
		return outcome
	}
	if stage.Guard != nil {
		if reason, ok := stage.Guard(req.Asset); !ok {
			outcome.Skipped = true
			outcome.Reason = reason
			s.logger.Info("stage skipped",
				slog.String(logging.FieldAssetID, req.Asset.ID),
				slog.String(logging.FieldStage, stage.Name),
				slog.String("reason", reason),
			)
			return outcome
		}
	}

	stageCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	lease, err := s.session.Acquire(stageCtx, stage.Runner)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	defer func() {
		// Release uses a fresh deadline so a stage timeout cannot also
		// starve the unload.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("model unload failed",
				slog.String(logging.FieldStage, stage.Name),
				slog.Any("error", err),
			)
		}
	}()

	input := req
	if stage.Input != nil {
		input.LocalPath = stage.Input(req)
	}
	outcome.Result, outcome.Err = stage.Runner.Run(stageCtx, input)
	return outcome
}

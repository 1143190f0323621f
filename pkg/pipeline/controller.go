package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jmuozan/vid2cloud/pkg/hardware"
	"github.com/jmuozan/vid2cloud/pkg/logging"
	"github.com/jmuozan/vid2cloud/pkg/metrics"
	"github.com/jmuozan/vid2cloud/pkg/models"
	"github.com/jmuozan/vid2cloud/pkg/tools"
)

// Options configures one pipeline run. Every historically interactive
// decision point of the underlying tools is pre-filled here.
type Options struct {
	// BaseDir is where the per-run working directory is derived; defaults
	// to the video's directory.
	BaseDir string

	FrameRate        int
	Device           string
	Backend          string
	ModelSize        string
	KeyframeInterval int
	RefinementSteps  int
	AcceptDegraded   bool

	// StageTimeout bounds each stage attempt; zero disables timeouts
	StageTimeout time.Duration

	ToolOverrides tools.Overrides

	Log     *logging.Logger
	Metrics *metrics.Collector
	Caps    *hardware.Capabilities
}

// Controller drives the stage state machine end to end. It is the only
// component that decides run-level success classification and the only
// writer of the working directory layout.
type Controller struct {
	run      *models.PipelineRun
	ws       *Workspace
	stages   []*Stage
	registry *tools.Registry
	executor *Executor
	resolver *Resolver
	locator  *Locator
	caps     *hardware.Capabilities
	log      *logging.Logger
	metrics  *metrics.Collector
	opts     Options
}

// NewController validates the source video and prepares a run
func NewController(videoPath string, opts Options) (*Controller, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return nil, &InputError{Path: videoPath, Err: err}
	}
	f.Close()

	if opts.FrameRate <= 0 {
		opts.FrameRate = 10
	}
	if opts.BaseDir == "" {
		opts.BaseDir = "."
	}
	if opts.Caps == nil {
		opts.Caps = hardware.Detect()
	}
	if opts.Log == nil {
		opts.Log = logging.NewLogger(logging.INFO, false)
	}

	ws := NewWorkspace(opts.BaseDir, videoPath)
	run := &models.PipelineRun{
		ID:        uuid.New().String()[:8],
		VideoPath: videoPath,
		FrameRate: opts.FrameRate,
		WorkDir:   ws.Root(),
		State:     models.StateIdle,
		Status:    models.RunStatusRunning,
		CreatedAt: time.Now(),
	}

	return &Controller{
		run:      run,
		ws:       ws,
		stages:   DefaultStages(opts.StageTimeout),
		registry: tools.NewRegistry(opts.ToolOverrides),
		caps:     opts.Caps,
		log:      opts.Log,
		metrics:  opts.Metrics,
		opts:     opts,
	}, nil
}

// RunRecord returns the run record for inspection
func (c *Controller) RunRecord() *models.PipelineRun { return c.run }

// Workspace returns the run's working directory layout
func (c *Controller) Workspace() *Workspace { return c.ws }

// Run executes the pipeline to a terminal state. The returned run record
// carries the final status even when err is non-nil.
func (c *Controller) Run(ctx context.Context) (*models.PipelineRun, error) {
	if err := c.ws.Ensure(); err != nil {
		return c.finalizeFailed(err)
	}
	if err := c.ws.Lock(); err != nil {
		c.run.Status = models.RunStatusFailed
		c.run.Error = err.Error()
		return c.run, err
	}
	defer c.ws.Unlock()

	runLog, err := logging.NewRunLogger(c.ws.LogsDir(), "pipeline", logging.DEBUG, false)
	if err == nil {
		c.log = runLog
		defer runLog.Close()
	}
	c.executor = NewExecutor(c.ws.LogsDir(), c.log)
	c.resolver = NewResolver(c.caps, c.log)
	c.locator = NewLocator(c.log)

	stageStates := []models.PipelineState{
		models.StateExtracting,
		models.StateSegmenting,
		models.StateMasking,
		models.StateReconstructing,
	}

	var input *models.Artifact
	partial := false

	for i, stage := range c.stages {
		if ctx.Err() != nil {
			return c.finalizeFailed(&CancellationError{Stage: stage.Name})
		}

		c.transition(stageStates[i], "stage start")
		if err := c.ws.EnsureDir(stage.OutputDir(c.ws)); err != nil {
			return c.finalizeFailed(err)
		}
		if stage.ArtifactDir(c.ws) != stage.OutputDir(c.ws) {
			if err := c.ws.EnsureDir(stage.ArtifactDir(c.ws)); err != nil {
				return c.finalizeFailed(err)
			}
		}

		art, err := c.runStage(ctx, stage, input)
		if err != nil {
			if IsCancellation(err) || stage.Mandatory {
				return c.finalizeFailed(err)
			}
			// Best-effort stage exhausted its policy
			partial = true
			c.log.Warn("Best-effort stage failed, continuing degraded", map[string]interface{}{
				"stage": stage.Name, "error": err.Error(),
			})
			if stage.Name == models.StageMask {
				// Reconstruction requires masked input
				return c.finalizePartial("masking produced no output, reconstruction skipped")
			}
			// Reconstruction: finalize with the best artifact obtainable,
			// which may be the synthesized placeholder.
			art, rerr := c.locator.Resolve(c.ws, stage, nil)
			if rerr != nil {
				return c.finalizeFailed(rerr)
			}
			c.recordArtifact(art)
			return c.finalizePartial("reconstruction fallbacks exhausted")
		}

		empty := art.Placeholder() || len(scanArtifacts(stage.ArtifactDir(c.ws), stage.Pattern)) == 0
		if empty && stage.Kind != models.ArtifactPointCloud {
			if stage.Mandatory {
				return c.finalizeFailed(&StageFailedError{Stage: stage.Name})
			}
			partial = true
			c.recordArtifact(art)
			if stage.Name == models.StageMask {
				return c.finalizePartial("masking produced no output, reconstruction skipped")
			}
			continue
		}
		if art.Placeholder() {
			partial = true
		}

		c.recordArtifact(art)
		input = art
	}

	if partial {
		return c.finalizePartial("one or more stages produced degraded output")
	}
	return c.finalizeCompleted()
}

// runStage drives the attempt/fallback loop for one stage until an
// artifact resolves or the fallback policy is exhausted
func (c *Controller) runStage(ctx context.Context, stage *Stage, input *models.Artifact) (*models.Artifact, error) {
	cfg := c.initialConfig(stage)

	for {
		c.resolver.MarkTried(stage.Name, cfg)

		attempt := c.attempt(ctx, stage, input, cfg)
		c.countAttempt(stage.Name, attempt)

		if attempt.Outcome == models.OutcomeCanceled {
			return nil, &CancellationError{Stage: stage.Name}
		}

		if !attempt.Failed() {
			art, err := c.locator.Resolve(c.ws, stage, attempt)
			if err != nil {
				return nil, err
			}
			c.countTier(stage.Name, art.Provenance)
			return art, nil
		}

		next, rule := c.resolver.NextConfig(stage, attempt)
		if next == nil {
			return nil, &StageFailedError{Stage: stage.Name, Signal: attempt.Signal}
		}
		c.countFallback(stage.Name, rule)
		cfg = *next
	}
}

// attempt runs one stage execution, short-circuiting on pre-flight
// capability failures so the resolver sees them like runtime signals
func (c *Controller) attempt(ctx context.Context, stage *Stage, input *models.Artifact, cfg models.StageConfig) *models.StageAttempt {
	if signal := c.preflightSignal(stage, cfg); signal != models.SignalNone {
		var reason error
		switch signal {
		case models.SignalDeviceMissing:
			reason = &DeviceCapabilityError{Device: cfg.Device}
		case models.SignalModelTooLarge:
			reason = &ResourceExhaustionError{Stage: stage.Name}
		default:
			reason = fmt.Errorf("pre-flight: %s", signal)
		}
		c.log.Warn("Pre-flight check failed", map[string]interface{}{
			"stage": stage.Name, "signal": string(signal),
		})
		return &models.StageAttempt{
			ID:          uuid.New().String()[:8],
			Stage:       stage.Name,
			Config:      cfg,
			Outcome:     models.OutcomeFailed,
			Signal:      signal,
			Error:       reason.Error(),
			StartedAt:   time.Now(),
			CompletedAt: time.Now(),
		}
	}

	inv := tools.Invocation{
		InputPath: c.stageInput(stage, input),
		OutputDir: stage.OutputDir(c.ws),
		Config:    cfg,
	}
	tool := c.registry.ForStage(stage.Name, cfg)
	return c.executor.Run(ctx, stage, tool, inv)
}

// preflightSignal checks capability constraints that would make an attempt
// pointless: a missing compute device or an oversized model variant
func (c *Controller) preflightSignal(stage *Stage, cfg models.StageConfig) models.FailureSignal {
	if cfg.Device != "" && cfg.Device != models.DeviceAuto && !c.caps.HasDevice(cfg.Device) {
		return models.SignalDeviceMissing
	}
	if stage.Name == models.StageSegment && !cfg.DegradeToCPU &&
		cfg.ModelSize == models.ModelSizeLarge && !c.caps.FitsModel(cfg.ModelSize) {
		return models.SignalModelTooLarge
	}
	return models.SignalNone
}

// initialConfig builds the first configuration to try for a stage
func (c *Controller) initialConfig(stage *Stage) models.StageConfig {
	switch stage.Name {
	case models.StageExtract:
		return models.StageConfig{FrameRate: c.opts.FrameRate}
	case models.StageSegment:
		device := c.opts.Device
		if device == "" || device == models.DeviceAuto {
			device = c.caps.BestDevice()
		}
		modelSize := c.opts.ModelSize
		if modelSize == "" {
			modelSize = models.ModelSizeLarge
		}
		return models.StageConfig{
			Device:           device,
			ModelSize:        modelSize,
			KeyframeInterval: c.opts.KeyframeInterval,
			RefinementSteps:  c.opts.RefinementSteps,
			AcceptDegraded:   c.opts.AcceptDegraded,
		}
	case models.StageReconstruct:
		backend := c.opts.Backend
		if backend == "" {
			backend = models.BackendColmap
		}
		return models.StageConfig{
			Backend:         backend,
			RefinementSteps: c.opts.RefinementSteps,
		}
	default:
		return models.StageConfig{}
	}
}

// stageInput resolves the input path a stage consumes
func (c *Controller) stageInput(stage *Stage, input *models.Artifact) string {
	if stage.Name == models.StageExtract {
		return c.run.VideoPath
	}
	if input == nil {
		return ""
	}
	return input.Path
}

func (c *Controller) recordArtifact(art *models.Artifact) {
	c.run.Artifacts = append(c.run.Artifacts, *art)
}

func (c *Controller) transition(to models.PipelineState, reason string) {
	if err := models.ValidateTransition(c.run.State, to); err != nil {
		c.log.Error("State machine violation", map[string]interface{}{"error": err.Error()})
	}
	t := c.run.Transition(to, reason)
	c.log.Info("Pipeline state transition", map[string]interface{}{
		"from": string(t.From), "to": string(t.To), "reason": reason,
	})
}

func (c *Controller) finalizeCompleted() (*models.PipelineRun, error) {
	c.transition(models.StateFinalized, "all stages completed")
	c.finish(models.RunStatusCompleted, "")
	return c.run, nil
}

func (c *Controller) finalizePartial(reason string) (*models.PipelineRun, error) {
	c.transition(models.StateFinalized, reason)
	c.finish(models.RunStatusPartiallyCompleted, reason)
	return c.run, nil
}

func (c *Controller) finalizeFailed(err error) (*models.PipelineRun, error) {
	c.transition(models.StateFailed, err.Error())
	c.finish(models.RunStatusFailed, err.Error())
	return c.run, err
}

func (c *Controller) finish(status models.RunStatus, reason string) {
	now := time.Now()
	c.run.Status = status
	c.run.FinishedAt = &now
	c.run.Error = reason
	if c.metrics != nil {
		c.metrics.Runs.WithLabelValues(string(status)).Inc()
	}
	if err := WriteJSON(c.ws.RunStatePath(), c.run); err != nil {
		c.log.Error("Failed to persist run state", map[string]interface{}{"error": err.Error()})
	}
	c.log.Info("Run finished", map[string]interface{}{
		"status": string(status), "work_dir": c.ws.Root(),
	})
}

func (c *Controller) countAttempt(stage string, attempt *models.StageAttempt) {
	if c.metrics != nil {
		c.metrics.StageAttempts.WithLabelValues(stage, string(attempt.Outcome)).Inc()
	}
}

func (c *Controller) countFallback(stage, rule string) {
	if c.metrics != nil {
		c.metrics.Fallbacks.WithLabelValues(stage, rule).Inc()
	}
}

func (c *Controller) countTier(stage string, tier models.ArtifactProvenance) {
	if c.metrics != nil {
		c.metrics.ArtifactTiers.WithLabelValues(stage, string(tier)).Inc()
	}
}

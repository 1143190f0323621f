package pipeline

import (
	"io"
	"testing"

	"github.com/jmuozan/vid2cloud/pkg/hardware"
	"github.com/jmuozan/vid2cloud/pkg/logging"
	"github.com/jmuozan/vid2cloud/pkg/models"
)

func testLogger() *logging.Logger {
	log := logging.NewLogger(logging.ERROR, false)
	log.SetOutput(io.Discard)
	return log
}

func testCaps() *hardware.Capabilities {
	return &hardware.Capabilities{CPUThreads: 8, RAMBytes: 32 * 1024 * 1024 * 1024}
}

func segStage() *Stage {
	return &Stage{Name: models.StageSegment, Policy: SegmentationPolicy()}
}

func reconStage() *Stage {
	return &Stage{Name: models.StageReconstruct, Policy: ReconstructionPolicy()}
}

func failedAttempt(stage string, cfg models.StageConfig, signal models.FailureSignal) *models.StageAttempt {
	return &models.StageAttempt{
		Stage:   stage,
		Config:  cfg,
		Outcome: models.OutcomeFailed,
		Signal:  signal,
	}
}

func TestResolverDeviceFallsBackToCPU(t *testing.T) {
	r := NewResolver(testCaps(), testLogger())
	stage := segStage()

	cfg := models.StageConfig{Device: models.DeviceCUDA, ModelSize: models.ModelSizeLarge}
	r.MarkTried(stage.Name, cfg)

	next, rule := r.NextConfig(stage, failedAttempt(stage.Name, cfg, models.SignalDeviceMissing))
	if next == nil {
		t.Fatal("expected a fallback config")
	}
	if next.Device != models.DeviceCPU {
		t.Errorf("expected cpu fallback, got %s", next.Device)
	}
	if rule != "device-to-cpu" {
		t.Errorf("unexpected rule: %s", rule)
	}
}

func TestResolverOOMEnablesDegradeToCPU(t *testing.T) {
	r := NewResolver(testCaps(), testLogger())
	stage := segStage()

	cfg := models.StageConfig{Device: models.DeviceCUDA}
	r.MarkTried(stage.Name, cfg)

	next, _ := r.NextConfig(stage, failedAttempt(stage.Name, cfg, models.SignalOutOfMemory))
	if next == nil {
		t.Fatal("expected a fallback config")
	}
	if !next.DegradeToCPU {
		t.Error("expected degrade-to-cpu mode enabled")
	}
	if next.Device != models.DeviceCUDA {
		t.Errorf("device should be unchanged, got %s", next.Device)
	}
}

func TestResolverModelSizeFallback(t *testing.T) {
	tests := []struct {
		name           string
		acceptDegraded bool
		wantModelSize  string
		wantDegrade    bool
	}{
		{"default falls back to small model", false, models.ModelSizeSmall, false},
		{"accept-degraded keeps large model", true, models.ModelSizeLarge, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(testCaps(), testLogger())
			stage := segStage()

			cfg := models.StageConfig{
				Device:         models.DeviceCPU,
				ModelSize:      models.ModelSizeLarge,
				AcceptDegraded: tt.acceptDegraded,
			}
			r.MarkTried(stage.Name, cfg)

			next, _ := r.NextConfig(stage, failedAttempt(stage.Name, cfg, models.SignalModelTooLarge))
			if next == nil {
				t.Fatal("expected a fallback config")
			}
			if next.ModelSize != tt.wantModelSize {
				t.Errorf("model size = %s, want %s", next.ModelSize, tt.wantModelSize)
			}
			if next.DegradeToCPU != tt.wantDegrade {
				t.Errorf("degrade_to_cpu = %t, want %t", next.DegradeToCPU, tt.wantDegrade)
			}
		})
	}
}

func TestResolverBackendFallback(t *testing.T) {
	r := NewResolver(testCaps(), testLogger())
	stage := reconStage()

	cfg := models.StageConfig{Backend: models.BackendColmap}
	r.MarkTried(stage.Name, cfg)

	next, rule := r.NextConfig(stage, failedAttempt(stage.Name, cfg, models.SignalToolUnavailable))
	if next == nil {
		t.Fatal("expected a fallback config")
	}
	if next.Backend != models.BackendPycolmap {
		t.Errorf("expected pycolmap, got %s", next.Backend)
	}
	if rule != "backend-to-embedded" {
		t.Errorf("unexpected rule: %s", rule)
	}

	// Embedded backend failing too exhausts the policy
	r.MarkTried(stage.Name, *next)
	final, _ := r.NextConfig(stage, failedAttempt(stage.Name, *next, models.SignalToolUnavailable))
	if final != nil {
		t.Errorf("expected exhausted policy, got %+v", final)
	}
}

func TestResolverNeverRepeatsConfig(t *testing.T) {
	r := NewResolver(testCaps(), testLogger())
	stage := segStage()

	cfg := models.StageConfig{Device: models.DeviceCUDA}
	r.MarkTried(stage.Name, cfg)

	next, _ := r.NextConfig(stage, failedAttempt(stage.Name, cfg, models.SignalDeviceMissing))
	if next == nil {
		t.Fatal("expected a fallback config")
	}
	r.MarkTried(stage.Name, *next)

	// CPU config failing with the same signal has nowhere left to go
	again, _ := r.NextConfig(stage, failedAttempt(stage.Name, *next, models.SignalDeviceMissing))
	if again != nil {
		t.Errorf("resolver returned an already-tried config: %+v", again)
	}
}

func TestResolverNeverRetriesCancellation(t *testing.T) {
	r := NewResolver(testCaps(), testLogger())
	stage := segStage()

	cfg := models.StageConfig{Device: models.DeviceCUDA}
	r.MarkTried(stage.Name, cfg)

	attempt := failedAttempt(stage.Name, cfg, models.SignalCanceled)
	attempt.Outcome = models.OutcomeCanceled
	if next, _ := r.NextConfig(stage, attempt); next != nil {
		t.Error("cancellation must never be resolved to a retry")
	}
}

func TestEmptyPoliciesExhaustImmediately(t *testing.T) {
	r := NewResolver(testCaps(), testLogger())
	for _, stage := range []*Stage{
		{Name: models.StageExtract, Policy: ExtractionPolicy()},
		{Name: models.StageMask, Policy: MaskingPolicy()},
	} {
		cfg := models.StageConfig{}
		r.MarkTried(stage.Name, cfg)
		if next, _ := r.NextConfig(stage, failedAttempt(stage.Name, cfg, models.SignalUnknown)); next != nil {
			t.Errorf("stage %s: expected nil from empty policy", stage.Name)
		}
	}
}

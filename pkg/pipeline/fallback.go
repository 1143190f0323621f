package pipeline

import (
	"github.com/jmuozan/vid2cloud/pkg/hardware"
	"github.com/jmuozan/vid2cloud/pkg/logging"
	"github.com/jmuozan/vid2cloud/pkg/models"
)

// Rule maps a classified failure signal to the next configuration to
// attempt. Next returns false when the rule cannot produce a usable
// configuration for the given failure.
type Rule struct {
	Name    string
	Signals []models.FailureSignal
	Next    func(cfg models.StageConfig, caps *hardware.Capabilities) (models.StageConfig, bool)
}

func (r *Rule) matches(signal models.FailureSignal) bool {
	for _, s := range r.Signals {
		if s == signal {
			return true
		}
	}
	return false
}

// FallbackPolicy is a per-stage ordered, finite list of fallback rules
type FallbackPolicy struct {
	Rules []*Rule
}

// ExtractionPolicy returns the extraction fallback policy. Extraction has
// no alternative tool or device mode, so the policy is empty.
func ExtractionPolicy() *FallbackPolicy {
	return &FallbackPolicy{}
}

// SegmentationPolicy returns the segmentation fallback policy:
// device loss falls back to CPU, memory exhaustion enables the
// degrade-to-CPU continuation mode, an oversized model either proceeds
// degraded (explicit opt-in) or drops to the smaller variant.
func SegmentationPolicy() *FallbackPolicy {
	return &FallbackPolicy{Rules: []*Rule{
		{
			Name:    "device-to-cpu",
			Signals: []models.FailureSignal{models.SignalDeviceMissing},
			Next: func(cfg models.StageConfig, caps *hardware.Capabilities) (models.StageConfig, bool) {
				if cfg.Device == models.DeviceCPU {
					return cfg, false
				}
				cfg.Device = models.DeviceCPU
				return cfg, true
			},
		},
		{
			Name:    "oom-degrade-to-cpu",
			Signals: []models.FailureSignal{models.SignalOutOfMemory},
			Next: func(cfg models.StageConfig, caps *hardware.Capabilities) (models.StageConfig, bool) {
				if cfg.DegradeToCPU {
					return cfg, false
				}
				cfg.DegradeToCPU = true
				return cfg, true
			},
		},
		{
			Name:    "model-size",
			Signals: []models.FailureSignal{models.SignalModelTooLarge},
			Next: func(cfg models.StageConfig, caps *hardware.Capabilities) (models.StageConfig, bool) {
				if cfg.AcceptDegraded {
					// Operator explicitly accepts degraded performance:
					// keep the large model, offload to CPU.
					if cfg.DegradeToCPU {
						return cfg, false
					}
					cfg.DegradeToCPU = true
					return cfg, true
				}
				if cfg.ModelSize == models.ModelSizeSmall {
					return cfg, false
				}
				cfg.ModelSize = models.ModelSizeSmall
				return cfg, true
			},
		},
	}}
}

// MaskingPolicy returns the masking fallback policy. Masking has a single
// tool and no device modes.
func MaskingPolicy() *FallbackPolicy {
	return &FallbackPolicy{}
}

// ReconstructionPolicy returns the reconstruction fallback policy: the
// native toolchain backend is preferred, the library-embedded backend is
// the substitute. A categorically missing tool is treated the same as a
// runtime failure.
func ReconstructionPolicy() *FallbackPolicy {
	return &FallbackPolicy{Rules: []*Rule{
		{
			Name: "backend-to-embedded",
			Signals: []models.FailureSignal{
				models.SignalToolUnavailable,
				models.SignalDeviceMissing,
				models.SignalTimeout,
				models.SignalUnknown,
			},
			Next: func(cfg models.StageConfig, caps *hardware.Capabilities) (models.StageConfig, bool) {
				if cfg.Backend == models.BackendPycolmap {
					return cfg, false
				}
				cfg.Backend = models.BackendPycolmap
				return cfg, true
			},
		},
	}}
}

// Resolver decides the next configuration to try after a failed stage
// attempt. It is consulted exactly once per failure and never returns a
// configuration already tried for the same stage within the same run.
type Resolver struct {
	caps  *hardware.Capabilities
	log   *logging.Logger
	tried map[string]map[string]bool
}

// NewResolver creates a fallback resolver for one pipeline run
func NewResolver(caps *hardware.Capabilities, log *logging.Logger) *Resolver {
	return &Resolver{
		caps:  caps,
		log:   log,
		tried: make(map[string]map[string]bool),
	}
}

// MarkTried records a configuration as attempted for a stage
func (r *Resolver) MarkTried(stage string, cfg models.StageConfig) {
	if r.tried[stage] == nil {
		r.tried[stage] = make(map[string]bool)
	}
	r.tried[stage][cfg.Signature()] = true
}

// NextConfig consults the stage's fallback policy in order and returns the
// next untried configuration plus the name of the rule that fired, or nil
// when the policy is exhausted. Cancellation is never resolved to a retry.
func (r *Resolver) NextConfig(stage *Stage, attempt *models.StageAttempt) (*models.StageConfig, string) {
	if attempt.Signal == models.SignalCanceled {
		return nil, ""
	}

	for _, rule := range stage.Policy.Rules {
		if !rule.matches(attempt.Signal) {
			continue
		}
		next, ok := rule.Next(attempt.Config, r.caps)
		if !ok {
			continue
		}
		if r.tried[stage.Name][next.Signature()] {
			continue
		}
		r.log.Info("Fallback rule fired", map[string]interface{}{
			"stage":  stage.Name,
			"rule":   rule.Name,
			"signal": string(attempt.Signal),
			"next":   next.Signature(),
		})
		return &next, rule.Name
	}

	r.log.Warn("Fallback policy exhausted", map[string]interface{}{
		"stage":  stage.Name,
		"signal": string(attempt.Signal),
	})
	return nil, ""
}

package models

import (
	"testing"
)

func TestStageConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     StageConfig
		wantErr bool
	}{
		{"empty config", StageConfig{}, false},
		{"full valid", StageConfig{Device: DeviceCUDA, Backend: BackendColmap, ModelSize: ModelSizeLarge, FrameRate: 10, KeyframeInterval: 5, RefinementSteps: 3}, false},
		{"negative refinement steps", StageConfig{RefinementSteps: -1}, true},
		{"negative keyframe interval", StageConfig{KeyframeInterval: -2}, true},
		{"negative frame rate", StageConfig{FrameRate: -10}, true},
		{"unknown device", StageConfig{Device: "tpu"}, true},
		{"unknown backend", StageConfig{Backend: "meshroom"}, true},
		{"unknown model size", StageConfig{ModelSize: "huge"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStageConfigSignature(t *testing.T) {
	a := StageConfig{Device: DeviceCUDA, ModelSize: ModelSizeLarge}
	b := StageConfig{Device: DeviceCUDA, ModelSize: ModelSizeLarge}
	c := StageConfig{Device: DeviceCPU, ModelSize: ModelSizeLarge}

	if a.Signature() != b.Signature() {
		t.Error("identical configs should share a signature")
	}
	if a.Signature() == c.Signature() {
		t.Error("different devices should produce different signatures")
	}

	// AcceptDegraded is a policy flag, not an execution parameter; two
	// configs differing only in it would run the tool identically.
	d := a
	d.AcceptDegraded = true
	if a.Signature() != d.Signature() {
		t.Error("accept_degraded should not change the signature")
	}

	e := a
	e.DegradeToCPU = true
	if a.Signature() == e.Signature() {
		t.Error("degrade_to_cpu changes the invocation and must change the signature")
	}
}

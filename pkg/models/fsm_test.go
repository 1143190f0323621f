package models

import (
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    PipelineState
		to      PipelineState
		wantErr bool
	}{
		{"idle to extracting", StateIdle, StateExtracting, false},
		{"extracting to segmenting", StateExtracting, StateSegmenting, false},
		{"segmenting to masking", StateSegmenting, StateMasking, false},
		{"masking to reconstructing", StateMasking, StateReconstructing, false},
		{"masking skips to finalized", StateMasking, StateFinalized, false},
		{"reconstructing to finalized", StateReconstructing, StateFinalized, false},
		{"failed from idle", StateIdle, StateFailed, false},
		{"failed from extracting", StateExtracting, StateFailed, false},
		{"failed from reconstructing", StateReconstructing, StateFailed, false},
		{"no skip from extracting", StateExtracting, StateMasking, true},
		{"no backwards", StateMasking, StateExtracting, true},
		{"finalized is terminal", StateFinalized, StateExtracting, true},
		{"failed is terminal", StateFailed, StateIdle, true},
		{"unknown state", PipelineState("bogus"), StateIdle, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestIsTerminalState(t *testing.T) {
	if !IsTerminalState(StateFinalized) || !IsTerminalState(StateFailed) {
		t.Error("Finalized and Failed should be terminal")
	}
	for _, s := range []PipelineState{StateIdle, StateExtracting, StateSegmenting, StateMasking, StateReconstructing} {
		if IsTerminalState(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStageForState(t *testing.T) {
	tests := []struct {
		state PipelineState
		want  string
	}{
		{StateExtracting, StageExtract},
		{StateSegmenting, StageSegment},
		{StateMasking, StageMask},
		{StateReconstructing, StageReconstruct},
		{StateIdle, ""},
		{StateFinalized, ""},
	}
	for _, tt := range tests {
		if got := StageForState(tt.state); got != tt.want {
			t.Errorf("StageForState(%s) = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestRunTransitionRecordsTrace(t *testing.T) {
	run := &PipelineRun{State: StateIdle}
	run.Transition(StateExtracting, "start")
	run.Transition(StateSegmenting, "frames ready")

	if run.State != StateSegmenting {
		t.Errorf("expected state segmenting, got %s", run.State)
	}
	if len(run.StateTransitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(run.StateTransitions))
	}
	if run.StateTransitions[0].From != StateIdle || run.StateTransitions[0].To != StateExtracting {
		t.Errorf("unexpected first transition: %+v", run.StateTransitions[0])
	}
	if run.StateTransitions[1].Reason != "frames ready" {
		t.Errorf("reason not recorded: %+v", run.StateTransitions[1])
	}
}

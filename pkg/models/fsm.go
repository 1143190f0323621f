package models

import (
	"fmt"
)

// PipelineState represents where the run is in the stage sequence
type PipelineState string

const (
	StateIdle           PipelineState = "idle"
	StateExtracting     PipelineState = "extracting"
	StateSegmenting     PipelineState = "segmenting"
	StateMasking        PipelineState = "masking"
	StateReconstructing PipelineState = "reconstructing"
	StateFinalized      PipelineState = "finalized"
	StateFailed         PipelineState = "failed"
)

// validTransitions maps from-state to allowed to-states.
// Failed is reachable from every non-terminal state; Masking may jump
// straight to Finalized when reconstruction has to be skipped.
var validTransitions = map[PipelineState]map[PipelineState]bool{
	StateIdle: {
		StateExtracting: true,
		StateFailed:     true,
	},
	StateExtracting: {
		StateSegmenting: true,
		StateFailed:     true,
	},
	StateSegmenting: {
		StateMasking: true,
		StateFailed:  true,
	},
	StateMasking: {
		StateReconstructing: true,
		StateFinalized:      true, // masking empty: reconstruction skipped
		StateFailed:         true,
	},
	StateReconstructing: {
		StateFinalized: true,
		StateFailed:    true,
	},
	// Terminal states (no transitions allowed)
	StateFinalized: {},
	StateFailed:    {},
}

// ValidateTransition checks if a state transition is valid
func ValidateTransition(from, to PipelineState) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if the state is terminal (no further transitions)
func IsTerminalState(state PipelineState) bool {
	return state == StateFinalized || state == StateFailed
}

// StageForState returns the stage name executed in a given state, or ""
// for states that run no stage.
func StageForState(state PipelineState) string {
	switch state {
	case StateExtracting:
		return StageExtract
	case StateSegmenting:
		return StageSegment
	case StateMasking:
		return StageMask
	case StateReconstructing:
		return StageReconstruct
	default:
		return ""
	}
}

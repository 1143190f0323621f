package models

import (
	"time"
)

// RunStatus represents the overall status of a pipeline run
type RunStatus string

const (
	RunStatusRunning            RunStatus = "running"
	RunStatusCompleted          RunStatus = "completed"
	RunStatusPartiallyCompleted RunStatus = "partially_completed"
	RunStatusFailed             RunStatus = "failed"
)

// PipelineRun represents one end-to-end execution of the pipeline
type PipelineRun struct {
	ID               string            `json:"id"`
	VideoPath        string            `json:"video_path"`
	FrameRate        int               `json:"frame_rate"`
	WorkDir          string            `json:"work_dir"`
	State            PipelineState     `json:"state"`
	Status           RunStatus         `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	FinishedAt       *time.Time        `json:"finished_at,omitempty"`
	Error            string            `json:"error,omitempty"`
	StateTransitions []StateTransition `json:"state_transitions,omitempty"`
	Artifacts        []Artifact        `json:"artifacts,omitempty"`
}

// StateTransition tracks pipeline state changes with timestamps
type StateTransition struct {
	From      PipelineState `json:"from"`
	To        PipelineState `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
	Reason    string        `json:"reason,omitempty"`
}

// Transition records a state change on the run and returns it
func (r *PipelineRun) Transition(to PipelineState, reason string) StateTransition {
	t := StateTransition{
		From:      r.State,
		To:        to,
		Timestamp: time.Now(),
		Reason:    reason,
	}
	r.State = to
	r.StateTransitions = append(r.StateTransitions, t)
	return t
}

// AttemptOutcome classifies one stage execution
type AttemptOutcome string

const (
	OutcomeSuccess  AttemptOutcome = "success"
	OutcomeDegraded AttemptOutcome = "degraded"
	OutcomeFailed   AttemptOutcome = "failed"
	OutcomeCanceled AttemptOutcome = "canceled"
)

// FailureSignal is the classified reason for a failed stage attempt.
// FallbackResolver keys its policy rules off these.
type FailureSignal string

const (
	SignalNone            FailureSignal = ""
	SignalToolUnavailable FailureSignal = "tool_unavailable"
	SignalDeviceMissing   FailureSignal = "device_missing"
	SignalOutOfMemory     FailureSignal = "out_of_memory"
	SignalModelTooLarge   FailureSignal = "model_too_large"
	SignalTimeout         FailureSignal = "timeout"
	SignalCanceled        FailureSignal = "canceled"
	SignalUnknown         FailureSignal = "unknown"
)

// StageAttempt represents one execution of a stage with a specific configuration
type StageAttempt struct {
	ID          string         `json:"id"`
	Stage       string         `json:"stage"`
	Config      StageConfig    `json:"config"`
	Outcome     AttemptOutcome `json:"outcome"`
	Signal      FailureSignal  `json:"signal,omitempty"`
	ExitCode    int            `json:"exit_code"`
	LogPath     string         `json:"log_path,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
}

// Failed reports whether the attempt needs fallback resolution
func (a *StageAttempt) Failed() bool {
	return a.Outcome == OutcomeFailed || a.Outcome == OutcomeCanceled
}

// ArtifactKind describes what a stage output artifact is
type ArtifactKind string

const (
	ArtifactFrameDir   ArtifactKind = "frame_directory"
	ArtifactMaskSet    ArtifactKind = "mask_set"
	ArtifactPointCloud ArtifactKind = "point_cloud"
)

// ArtifactProvenance records how an artifact was resolved
type ArtifactProvenance string

const (
	ProvenancePointer     ArtifactProvenance = "pointer"
	ProvenanceScan        ArtifactProvenance = "scan"
	ProvenancePlaceholder ArtifactProvenance = "placeholder"
)

// Artifact is the located, canonical output of a stage
type Artifact struct {
	Path       string             `json:"path"`
	Kind       ArtifactKind       `json:"kind"`
	Stage      string             `json:"stage"`
	AttemptID  string             `json:"attempt_id,omitempty"`
	Provenance ArtifactProvenance `json:"provenance"`
}

// Placeholder reports whether the artifact was synthesized rather than produced
func (a *Artifact) Placeholder() bool {
	return a.Provenance == ProvenancePlaceholder
}

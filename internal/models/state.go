// Package models defines workflow state structures for DocFlow.
package models

import "time"

// PhaseCompletionStatus reports how far a document has come within one phase.
type PhaseCompletionStatus struct {
	Phase                WorkflowPhase `json:"phase"`
	CompletionPercentage float64       `json:"completion_percentage"`
	RequiredSections     []string      `json:"required_sections"`
	CompletedSections    []string      `json:"completed_sections"`
	MissingSections      []string      `json:"missing_sections"`
	QualityScore         float64       `json:"quality_score"`
	ReadyForTransition   bool          `json:"ready_for_transition"`
}

// WorkflowSuggestion proposes the next phase and who should drive it.
type WorkflowSuggestion struct {
	NextPhase         WorkflowPhase `json:"next_phase"`
	RecommendedAgent  string        `json:"recommended_agent"`
	Reason            string        `json:"reason"`
	Prerequisites     []string      `json:"prerequisites"`
	EstimatedDuration string        `json:"estimated_duration"`
	Confidence        float64       `json:"confidence"`
}

// TransitionValidation is the result of checking a proposed phase transition.
type TransitionValidation struct {
	Valid           bool            `json:"valid"`
	Errors          []string        `json:"errors"`
	Warnings        []string        `json:"warnings"`
	Recommendations []string        `json:"recommendations"`
	SkippedPhases   []WorkflowPhase `json:"skipped_phases,omitempty"`
}

// TransitionResult is the outcome of executing a phase transition.
type TransitionResult struct {
	Success   bool          `json:"success"`
	FromPhase WorkflowPhase `json:"from_phase"`
	ToPhase   WorkflowPhase `json:"to_phase"`
	Message   string        `json:"message"`
	NextSteps []string      `json:"next_steps,omitempty"`
	Warnings  []string      `json:"warnings,omitempty"`
	Time      time.Time     `json:"time"`
}

// Package models defines enumerated type definitions to avoid circular imports.
package models

import "strings"

// QuestionKind describes how a question expects to be answered
type QuestionKind string

// TurnType identifies the kind of event recorded in a session history
type TurnType string

// UpdateMode describes how a document update is applied to a section
type UpdateMode string

// WorkflowPhase is one stage of the fixed authoring workflow
type WorkflowPhase string

// Question kind constants.
const (
	QuestionKindOpen       QuestionKind = "open"
	QuestionKindEnumerated QuestionKind = "enumerated"
)

// Turn type constants.
const (
	TurnTypeSystem   TurnType = "system"
	TurnTypeQuestion TurnType = "question"
	TurnTypeResponse TurnType = "response"
)

// Update mode constants.
const (
	UpdateModeAppend  UpdateMode = "append"
	UpdateModeReplace UpdateMode = "replace"
)

// Workflow phases, in workflow order.
const (
	PhaseConcept        WorkflowPhase = "concept"
	PhaseRequirements   WorkflowPhase = "requirements"
	PhaseDesign         WorkflowPhase = "design"
	PhaseImplementation WorkflowPhase = "implementation"
)

// PhaseAliasPRD is accepted wherever phase names are parsed and means PhaseConcept.
const PhaseAliasPRD = "prd"

// Turn metadata keys.
const (
	MetaKeyQuestionID = "questionId"
	MetaKeyCategory   = "category"
	MetaKeyEvent      = "event"
	MetaKeyScore      = "completionScore"
)

// IsValidQuestionKind checks if the given question kind is supported.
func IsValidQuestionKind(k QuestionKind) bool {
	switch k {
	case QuestionKindOpen, QuestionKindEnumerated:
		return true
	default:
		return false
	}
}

// ParsePhase maps a phase name (case-insensitive, "prd" alias included) to a WorkflowPhase.
func ParsePhase(name string) (WorkflowPhase, bool) {
	switch n := strings.ToLower(strings.TrimSpace(name)); n {
	case PhaseAliasPRD:
		return PhaseConcept, true
	case string(PhaseConcept), string(PhaseRequirements), string(PhaseDesign), string(PhaseImplementation):
		return WorkflowPhase(n), true
	default:
		return "", false
	}
}

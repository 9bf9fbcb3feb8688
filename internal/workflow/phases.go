package workflow

import (
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/util"
)

// Phases is the fixed workflow order.
var Phases = []models.WorkflowPhase{
	models.PhaseConcept,
	models.PhaseRequirements,
	models.PhaseDesign,
	models.PhaseImplementation,
}

// phaseInfo is the static policy for one phase.
type phaseInfo struct {
	sections  []string
	agent     string
	rationale string
	duration  time.Duration
	nextSteps []string
}

var phaseTable = map[models.WorkflowPhase]phaseInfo{
	models.PhaseConcept: {
		sections:  []string{"Problem Statement", "Target Users", "Goals", "Success Metrics", "Scope"},
		agent:     "prd-creator",
		rationale: "Start by capturing the problem, the users, and what success looks like.",
		duration:  90 * time.Minute,
		nextSteps: []string{
			"Describe the problem being solved",
			"Identify target users",
			"Agree on goals and success metrics",
		},
	},
	models.PhaseRequirements: {
		sections:  []string{"Functional Requirements", "Non-Functional Requirements", "User Stories", "Acceptance Criteria"},
		agent:     "requirements-gatherer",
		rationale: "The concept is settled, so it can be turned into concrete, testable requirements.",
		duration:  2 * time.Hour,
		nextSteps: []string{
			"List functional requirements",
			"Capture non-functional requirements",
			"Write user stories with acceptance criteria",
		},
	},
	models.PhaseDesign: {
		sections:  []string{"Architecture Overview", "Components", "Data Model", "Interfaces"},
		agent:     "solution-architect",
		rationale: "Requirements are complete enough to design an architecture against.",
		duration:  3 * time.Hour,
		nextSteps: []string{
			"Sketch the architecture",
			"Define components and their interfaces",
			"Design the data model",
		},
	},
	models.PhaseImplementation: {
		sections:  []string{"Implementation Plan", "Tasks", "Testing Strategy", "Deployment"},
		agent:     "specification-writer",
		rationale: "The design is ready to be broken down into implementation tasks.",
		duration:  4 * time.Hour,
		nextSteps: []string{
			"Break the design into tasks",
			"Plan the testing strategy",
			"Outline deployment steps",
		},
	},
}

// PhaseIndex returns the phase's position in Phases, or -1.
func PhaseIndex(phase models.WorkflowPhase) int {
	for i, p := range Phases {
		if p == phase {
			return i
		}
	}
	return -1
}

// RequiredSections returns the document sections a phase expects.
func RequiredSections(phase models.WorkflowPhase) []string {
	return append([]string(nil), phaseTable[phase].sections...)
}

// RecommendedAgent returns the agent that drives a phase, or "" for unknown phases.
func RecommendedAgent(phase models.WorkflowPhase) string {
	return phaseTable[phase].agent
}

// NextPhase returns the phase after p and whether one exists.
func NextPhase(p models.WorkflowPhase) (models.WorkflowPhase, bool) {
	i := PhaseIndex(p)
	if i < 0 || i == len(Phases)-1 {
		return "", false
	}
	return Phases[i+1], true
}

// resolvePhase accepts phase names with the "prd" alias.
func resolvePhase(name models.WorkflowPhase) (models.WorkflowPhase, bool) {
	return models.ParsePhase(string(name))
}

// PhaseDescription is the public view of one phase's policy.
type PhaseDescription struct {
	Phase             models.WorkflowPhase `json:"phase"`
	RequiredSections  []string             `json:"required_sections"`
	RecommendedAgent  string               `json:"recommended_agent"`
	EstimatedDuration string               `json:"estimated_duration"`
	NextSteps         []string             `json:"next_steps"`
}

// Describe returns the policy for a phase name, accepting the "prd" alias.
func Describe(name models.WorkflowPhase) (PhaseDescription, bool) {
	phase, ok := resolvePhase(name)
	if !ok {
		return PhaseDescription{}, false
	}
	info := phaseTable[phase]
	return PhaseDescription{
		Phase:             phase,
		RequiredSections:  append([]string(nil), info.sections...),
		RecommendedAgent:  info.agent,
		EstimatedDuration: util.FormatDuration(info.duration),
		NextSteps:         append([]string(nil), info.nextSteps...),
	}, true
}

// DescribeAll returns every phase's policy in workflow order.
func DescribeAll() []PhaseDescription {
	out := make([]PhaseDescription, 0, len(Phases))
	for _, p := range Phases {
		d, _ := Describe(p)
		out = append(out, d)
	}
	return out
}

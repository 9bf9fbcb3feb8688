package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/DocFlow/internal/models"
)

type stubSections struct {
	sections map[string][]string
	err      error
}

func (s stubSections) GetSections(ctx context.Context, path string) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sections[path], nil
}

type stubQuality float64

func (q stubQuality) AssessQuality(ctx context.Context, phase models.WorkflowPhase, path string) (float64, error) {
	return float64(q), nil
}

func TestEvaluatePhaseCompletion(t *testing.T) {
	reader := stubSections{sections: map[string][]string{
		"prd.md": {"Problem Statement", "target users", "Goals", "Success  Metrics", "Appendix"},
	}}
	o := NewOrchestrator(reader, WithQualityAssessor(stubQuality(0.75)))

	status, err := o.EvaluatePhaseCompletion(context.Background(), "prd", "prd.md")
	if err != nil {
		t.Fatalf("EvaluatePhaseCompletion failed: %v", err)
	}
	if status.Phase != models.PhaseConcept {
		t.Errorf("expected concept phase, got %s", status.Phase)
	}
	if status.CompletionPercentage != 80 {
		t.Errorf("expected 80%% completion, got %v", status.CompletionPercentage)
	}
	if len(status.MissingSections) != 1 || status.MissingSections[0] != "Scope" {
		t.Errorf("expected Scope missing, got %v", status.MissingSections)
	}
	if !status.ReadyForTransition {
		t.Error("expected ready at 80% completion and 0.75 quality")
	}
}

func TestEvaluatePhaseCompletion_LowQualityNotReady(t *testing.T) {
	reader := stubSections{sections: map[string][]string{
		"d.md": {"Architecture Overview", "Components", "Data Model", "Interfaces"},
	}}
	o := NewOrchestrator(reader, WithQualityAssessor(stubQuality(0.5)))

	status, err := o.EvaluatePhaseCompletion(context.Background(), models.PhaseDesign, "d.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.CompletionPercentage != 100 {
		t.Errorf("expected 100%% completion, got %v", status.CompletionPercentage)
	}
	if status.ReadyForTransition {
		t.Error("quality below 0.7 must block readiness")
	}
}

func TestEvaluatePhaseCompletion_Errors(t *testing.T) {
	o := NewOrchestrator(stubSections{err: errors.New("no such file")})
	if _, err := o.EvaluatePhaseCompletion(context.Background(), "deployment", "x.md"); err == nil {
		t.Error("expected error for unknown phase")
	}
	if _, err := o.EvaluatePhaseCompletion(context.Background(), models.PhaseDesign, "x.md"); err == nil {
		t.Error("expected section reader error to surface")
	}
}

func TestSuggestNextPhase_FinalPhase(t *testing.T) {
	o := NewOrchestrator(nil)
	for _, status := range []models.PhaseCompletionStatus{{}, {ReadyForTransition: true}} {
		s := o.SuggestNextPhase(models.PhaseImplementation, status)
		if s.NextPhase != models.PhaseImplementation {
			t.Errorf("expected to stay in implementation, got %s", s.NextPhase)
		}
		if s.Confidence != 1.0 {
			t.Errorf("expected confidence 1.0, got %v", s.Confidence)
		}
	}

	s := o.SuggestNextPhase("unknown", models.PhaseCompletionStatus{})
	if s.NextPhase != "unknown" || s.Confidence != 1.0 {
		t.Errorf("unknown phase should stay put with confidence 1.0, got %+v", s)
	}
}

func TestSuggestNextPhase_NotReady(t *testing.T) {
	o := NewOrchestrator(nil)
	status := models.PhaseCompletionStatus{MissingSections: []string{"Goals", "Scope"}}

	s := o.SuggestNextPhase(models.PhaseConcept, status)
	if s.NextPhase != models.PhaseRequirements {
		t.Errorf("expected requirements, got %s", s.NextPhase)
	}
	if s.Confidence != 0.3 {
		t.Errorf("expected confidence 0.3, got %v", s.Confidence)
	}
	if !strings.Contains(strings.ToLower(s.Reason), "missing sections first") {
		t.Errorf("unexpected reason %q", s.Reason)
	}
	if len(s.Prerequisites) != 2 || s.Prerequisites[0] != "Goals" {
		t.Errorf("expected missing sections as prerequisites, got %v", s.Prerequisites)
	}
}

func TestSuggestNextPhase_Ready(t *testing.T) {
	o := NewOrchestrator(nil)
	s := o.SuggestNextPhase(models.PhaseRequirements, models.PhaseCompletionStatus{ReadyForTransition: true})
	if s.NextPhase != models.PhaseDesign || s.RecommendedAgent != "solution-architect" {
		t.Errorf("unexpected suggestion %+v", s)
	}
	if s.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", s.Confidence)
	}
	if s.EstimatedDuration != "3h 0m" {
		t.Errorf("expected 3h 0m, got %q", s.EstimatedDuration)
	}
}

func TestValidatePhaseTransition_SkippedPhases(t *testing.T) {
	o := NewOrchestrator(nil)
	v := o.ValidatePhaseTransition("prd", models.PhaseImplementation)
	if !v.Valid {
		t.Fatalf("expected valid transition, errors: %v", v.Errors)
	}
	if len(v.Warnings) == 0 {
		t.Error("expected a skipped-phase warning")
	}
	if len(v.Recommendations) == 0 || !strings.Contains(v.Recommendations[0], "requirements, design") {
		t.Errorf("expected recommendation listing skipped phases, got %v", v.Recommendations)
	}
	want := []models.WorkflowPhase{models.PhaseRequirements, models.PhaseDesign}
	if len(v.SkippedPhases) != 2 || v.SkippedPhases[0] != want[0] || v.SkippedPhases[1] != want[1] {
		t.Errorf("expected skipped %v, got %v", want, v.SkippedPhases)
	}
}

func TestValidatePhaseTransition_BackwardAndUnknown(t *testing.T) {
	o := NewOrchestrator(nil)

	v := o.ValidatePhaseTransition(models.PhaseDesign, models.PhaseConcept)
	if !v.Valid || len(v.Warnings) != 1 {
		t.Errorf("backward move should be valid with one warning, got %+v", v)
	}

	v = o.ValidatePhaseTransition(models.PhaseConcept, models.PhaseRequirements)
	if !v.Valid || len(v.Warnings) != 0 {
		t.Errorf("adjacent move should be clean, got %+v", v)
	}

	v = o.ValidatePhaseTransition("ideation", models.PhaseDesign)
	if v.Valid || len(v.Errors) != 1 {
		t.Errorf("unknown phase should be invalid, got %+v", v)
	}
}

func TestExecutePhaseTransition(t *testing.T) {
	o := NewOrchestrator(nil)

	res := o.ExecutePhaseTransition(context.Background(), models.WorkflowSuggestion{NextPhase: models.PhaseDesign})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.FromPhase != models.PhaseRequirements || res.ToPhase != models.PhaseDesign {
		t.Errorf("expected requirements -> design, got %s -> %s", res.FromPhase, res.ToPhase)
	}
	if len(res.NextSteps) == 0 {
		t.Error("expected next steps")
	}

	res = o.ExecutePhaseTransition(context.Background(), models.WorkflowSuggestion{NextPhase: models.PhaseConcept})
	if res.Success {
		t.Error("concept has no previous phase, transition should fail")
	}
	if res.Message == "" {
		t.Error("expected joined validation errors in message")
	}

	history := o.TransitionHistory()
	if len(history) != 2 || !history[0].Success || history[1].Success {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestTransitionHistoryLimit(t *testing.T) {
	o := NewOrchestrator(nil, WithHistoryLimit(2))
	for _, p := range []models.WorkflowPhase{models.PhaseRequirements, models.PhaseDesign, models.PhaseImplementation} {
		o.ExecutePhaseTransition(context.Background(), models.WorkflowSuggestion{NextPhase: p})
	}
	history := o.TransitionHistory()
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	if history[0].ToPhase != models.PhaseDesign {
		t.Errorf("expected oldest entry dropped, got %s first", history[0].ToPhase)
	}
}

func TestIsPhaseComplete(t *testing.T) {
	o := NewOrchestrator(nil)
	if o.IsPhaseComplete(models.ConversationState{CompletionScore: 0.69}) {
		t.Error("0.69 should not complete a phase")
	}
	if !o.IsPhaseComplete(models.ConversationState{CompletionScore: 0.7}) {
		t.Error("0.7 should complete a phase")
	}
}

func TestNextPhase(t *testing.T) {
	if p, ok := NextPhase(models.PhaseConcept); !ok || p != models.PhaseRequirements {
		t.Errorf("expected requirements after concept, got %s", p)
	}
	if _, ok := NextPhase(models.PhaseImplementation); ok {
		t.Error("implementation has no next phase")
	}
}

func TestDescribe(t *testing.T) {
	d, ok := Describe("PRD")
	if !ok {
		t.Fatal("expected prd alias to resolve")
	}
	if d.Phase != models.PhaseConcept || d.RecommendedAgent != "prd-creator" {
		t.Errorf("unexpected description %+v", d)
	}
	if d.EstimatedDuration != "1h 30m" {
		t.Errorf("expected 1h 30m, got %s", d.EstimatedDuration)
	}
	if _, ok := Describe("deployment"); ok {
		t.Error("expected unknown phase to be rejected")
	}
	if all := DescribeAll(); len(all) != len(Phases) || all[3].Phase != models.PhaseImplementation {
		t.Errorf("unexpected DescribeAll result %+v", all)
	}
}

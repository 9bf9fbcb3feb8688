// Package workflow owns the fixed authoring phase order: it evaluates phase
// completion and suggests, validates, and executes phase transitions.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/util"
)

// Policy thresholds.
const (
	ReadyCompletionPercentage = 80.0
	ReadyQualityScore         = 0.7
	PhaseCompleteScore        = 0.7

	ConfidenceNotReady = 0.3
	ConfidenceReady    = 0.9
	ConfidenceFinal    = 1.0

	// DefaultHistoryLimit caps TransitionHistory.
	DefaultHistoryLimit = 50
)

// SectionReader lists the section headings present in a document.
type SectionReader interface {
	GetSections(ctx context.Context, path string) ([]string, error)
}

// QualityAssessor scores a document for a phase, 0..1.
type QualityAssessor interface {
	AssessQuality(ctx context.Context, phase models.WorkflowPhase, path string) (float64, error)
}

// Orchestrator evaluates and moves documents through the workflow phases.
type Orchestrator struct {
	sections SectionReader
	quality  QualityAssessor
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	history      []models.TransitionResult
	historyLimit int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithQualityAssessor sets the external quality scorer.
func WithQualityAssessor(q QualityAssessor) Option {
	return func(o *Orchestrator) { o.quality = q }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHistoryLimit caps the transition history. Values below 1 are ignored.
func WithHistoryLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyLimit = n
		}
	}
}

// NewOrchestrator creates an orchestrator. sections may be nil, in which case
// every document is treated as empty.
func NewOrchestrator(sections SectionReader, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sections:     sections,
		logger:       slog.Default(),
		now:          time.Now,
		historyLimit: DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "workflow")
	return o
}

// EvaluatePhaseCompletion compares the document's sections against the phase's
// required sections. Without a QualityAssessor the quality score is the
// completed fraction.
func (o *Orchestrator) EvaluatePhaseCompletion(ctx context.Context, phase models.WorkflowPhase, documentPath string) (models.PhaseCompletionStatus, error) {
	p, ok := resolvePhase(phase)
	if !ok {
		return models.PhaseCompletionStatus{}, fmt.Errorf("unknown phase %q", phase)
	}
	required := RequiredSections(p)

	var present []string
	if o.sections != nil && documentPath != "" {
		s, err := o.sections.GetSections(ctx, documentPath)
		if err != nil {
			o.logger.Error("Orchestrator EvaluatePhaseCompletion failed to read sections", "error", err, "path", documentPath)
			return models.PhaseCompletionStatus{}, fmt.Errorf("failed to read sections of %s: %w", documentPath, err)
		}
		present = s
	}

	have := make(map[string]bool, len(present))
	for _, s := range present {
		have[normalizeSection(s)] = true
	}
	status := models.PhaseCompletionStatus{
		Phase:             p,
		RequiredSections:  required,
		CompletedSections: []string{},
		MissingSections:   []string{},
	}
	for _, s := range required {
		if have[normalizeSection(s)] {
			status.CompletedSections = append(status.CompletedSections, s)
		} else {
			status.MissingSections = append(status.MissingSections, s)
		}
	}
	if len(required) > 0 {
		status.CompletionPercentage = float64(len(status.CompletedSections)) / float64(len(required)) * 100
	}

	status.QualityScore = status.CompletionPercentage / 100
	if o.quality != nil && documentPath != "" {
		q, err := o.quality.AssessQuality(ctx, p, documentPath)
		if err != nil {
			return models.PhaseCompletionStatus{}, fmt.Errorf("failed to assess quality of %s: %w", documentPath, err)
		}
		status.QualityScore = q
	}
	status.ReadyForTransition = status.CompletionPercentage >= ReadyCompletionPercentage && status.QualityScore >= ReadyQualityScore

	o.logger.Debug("Orchestrator phase evaluated", "phase", p, "path", documentPath,
		"completion", status.CompletionPercentage, "quality", status.QualityScore, "ready", status.ReadyForTransition)
	return status, nil
}

// SuggestNextPhase proposes the phase after phase. The suggestion always
// points forward; readiness only changes confidence and prerequisites.
func (o *Orchestrator) SuggestNextPhase(phase models.WorkflowPhase, status models.PhaseCompletionStatus) models.WorkflowSuggestion {
	p, ok := resolvePhase(phase)
	next, hasNext := NextPhase(p)
	if !ok || !hasNext {
		stay := phase
		if ok {
			stay = p
		}
		return models.WorkflowSuggestion{
			NextPhase:        stay,
			RecommendedAgent: RecommendedAgent(stay),
			Reason:           "This is the final phase.",
			Prerequisites:    []string{},
			Confidence:       ConfidenceFinal,
		}
	}

	info := phaseTable[next]
	if !status.ReadyForTransition {
		return models.WorkflowSuggestion{
			NextPhase:         next,
			RecommendedAgent:  info.agent,
			Reason:            "Finish the missing sections first.",
			Prerequisites:     append([]string{}, status.MissingSections...),
			EstimatedDuration: util.FormatDuration(info.duration),
			Confidence:        ConfidenceNotReady,
		}
	}
	return models.WorkflowSuggestion{
		NextPhase:         next,
		RecommendedAgent:  info.agent,
		Reason:            info.rationale,
		Prerequisites:     []string{},
		EstimatedDuration: util.FormatDuration(info.duration),
		Confidence:        ConfidenceReady,
	}
}

// ValidatePhaseTransition checks a proposed move. Only unknown phase names make
// it invalid; backward moves and skipped phases are warnings.
func (o *Orchestrator) ValidatePhaseTransition(from, to models.WorkflowPhase) models.TransitionValidation {
	v := models.TransitionValidation{
		Errors:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}
	f, okFrom := resolvePhase(from)
	t, okTo := resolvePhase(to)
	if !okFrom {
		v.Errors = append(v.Errors, fmt.Sprintf("unknown phase %q", from))
	}
	if !okTo {
		v.Errors = append(v.Errors, fmt.Sprintf("unknown phase %q", to))
	}
	if len(v.Errors) > 0 {
		return v
	}
	v.Valid = true

	fi, ti := PhaseIndex(f), PhaseIndex(t)
	switch {
	case ti < fi:
		v.Warnings = append(v.Warnings, fmt.Sprintf("moving backward from %s to %s", f, t))
	case ti > fi+1:
		v.SkippedPhases = append([]models.WorkflowPhase{}, Phases[fi+1:ti]...)
		names := make([]string, len(v.SkippedPhases))
		for i, p := range v.SkippedPhases {
			names[i] = string(p)
		}
		v.Warnings = append(v.Warnings, fmt.Sprintf("skipping phases: %s", strings.Join(names, ", ")))
		v.Recommendations = append(v.Recommendations, fmt.Sprintf("consider completing %s before %s", strings.Join(names, ", "), t))
	}
	return v
}

// ExecutePhaseTransition applies a suggestion. The origin phase is taken to be
// the one immediately before the suggestion's target.
func (o *Orchestrator) ExecutePhaseTransition(ctx context.Context, suggestion models.WorkflowSuggestion) models.TransitionResult {
	to := suggestion.NextPhase
	if p, ok := resolvePhase(to); ok {
		to = p
	}
	var from models.WorkflowPhase
	if i := PhaseIndex(to); i > 0 {
		from = Phases[i-1]
	}

	result := models.TransitionResult{FromPhase: from, ToPhase: to, Time: o.now()}
	v := o.ValidatePhaseTransition(from, to)
	if !v.Valid {
		result.Message = strings.Join(v.Errors, "; ")
		o.logger.Warn("Orchestrator ExecutePhaseTransition rejected", "from", from, "to", to, "errors", v.Errors)
		o.record(result)
		return result
	}

	result.Success = true
	result.Warnings = v.Warnings
	result.Message = fmt.Sprintf("Transitioned from %s to %s", from, to)
	result.NextSteps = append([]string{}, phaseTable[to].nextSteps...)
	if agent := RecommendedAgent(to); agent != "" {
		result.NextSteps = append(result.NextSteps, "Continue with the "+agent+" agent")
	}
	o.logger.Info("Orchestrator phase transition executed", "from", from, "to", to)
	o.record(result)
	return result
}

// IsPhaseComplete reports whether a conversation has gathered enough to end its phase.
func (o *Orchestrator) IsPhaseComplete(state models.ConversationState) bool {
	return state.CompletionScore >= PhaseCompleteScore
}

// TransitionHistory returns executed transitions, oldest first.
func (o *Orchestrator) TransitionHistory() []models.TransitionResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.TransitionResult(nil), o.history...)
}

func (o *Orchestrator) record(r models.TransitionResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history = append(o.history, r)
	if over := len(o.history) - o.historyLimit; over > 0 {
		o.history = append([]models.TransitionResult(nil), o.history[over:]...)
	}
}

func normalizeSection(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

package conversation

import (
	"context"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// QuestionGenerator produces the questions an agent asks.
type QuestionGenerator interface {
	// GenerateInitialQuestions returns the ordered opening question set
	GenerateInitialQuestions(ctx context.Context, agentName string, cc models.ConversationContext) ([]models.Question, error)
	// GenerateFollowupQuestions may return an empty slice
	GenerateFollowupQuestions(ctx context.Context, agentName, lastResponse string, history []models.ConversationTurn) ([]models.Question, error)
}

// ResponseAnalyzer inspects one answer to one question.
type ResponseAnalyzer interface {
	Analyze(ctx context.Context, response string, question models.Question) (models.AnalysisResult, error)
}

// ContentCapture writes answers into the document being authored.
type ContentCapture interface {
	UpdateDocument(ctx context.Context, path string, updates []models.DocumentUpdate) (models.CaptureResult, error)
	GetSections(ctx context.Context, path string) ([]string, error)
}

// ProgressTracker receives progress pushes. Implementations must not block.
type ProgressTracker interface {
	UpdateProgress(sessionID string, snapshot models.ProgressSnapshot)
	CalculateProgress(sessionID string) (models.ProgressSnapshot, bool)
}

// PhaseAdvisor decides when a phase is done and what comes next.
type PhaseAdvisor interface {
	IsPhaseComplete(state models.ConversationState) bool
	SuggestNextPhase(phase models.WorkflowPhase, status models.PhaseCompletionStatus) models.WorkflowSuggestion
}

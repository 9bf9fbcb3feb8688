package conversation

import "github.com/BTreeMap/DocFlow/internal/models"

// Completion score weights.
const (
	MinExpectedAnswers = 3
	AnswerWeight       = 0.8
	ExtractedDataBonus = 0.2
)

// CalculateCompletionScore derives the score from answered questions and
// extracted data. It holds no state, so equal inputs give equal scores.
func CalculateCompletionScore(state models.ConversationState) float64 {
	answered := len(state.AnsweredQuestions)
	expected := max(MinExpectedAnswers, answered)
	score := min(float64(answered)/float64(expected), 1) * AnswerWeight
	if len(state.ExtractedData) > 0 {
		score += ExtractedDataBonus
	}
	return min(score, 1.0)
}

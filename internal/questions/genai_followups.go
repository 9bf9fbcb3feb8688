package questions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/DocFlow/internal/genai"
	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/util"
)

// AIQuestionPrefix marks questions written by the language model.
const AIQuestionPrefix = "ai"

// DefaultMaxAIFollowups caps model-written follow-ups per session.
const DefaultMaxAIFollowups = 2

const followupSystemPrompt = `You help a product team write a document by interviewing them.
Given the last question, the user's answer, and the conversation so far, reply with ONE short follow-up question
only if the answer leaves something important unclear. Otherwise reply with exactly NONE.`

// PromptGenerator is the language-model call GenAIFollowups needs.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// InitialGenerator is the inner generator GenAIFollowups decorates.
type InitialGenerator interface {
	GenerateInitialQuestions(ctx context.Context, agentName string, cc models.ConversationContext) ([]models.Question, error)
	GenerateFollowupQuestions(ctx context.Context, agentName, lastResponse string, history []models.ConversationTurn) ([]models.Question, error)
}

// GenAIFollowups asks the language model for a follow-up when the inner
// generator has none. Model failures are logged and treated as "no follow-up".
type GenAIFollowups struct {
	inner  InitialGenerator
	llm    PromptGenerator
	max    int
	logger *slog.Logger
}

// NewGenAIFollowups decorates inner. maxPerSession <= 0 uses DefaultMaxAIFollowups.
func NewGenAIFollowups(inner InitialGenerator, llm PromptGenerator, maxPerSession int) *GenAIFollowups {
	if maxPerSession <= 0 {
		maxPerSession = DefaultMaxAIFollowups
	}
	return &GenAIFollowups{inner: inner, llm: llm, max: maxPerSession, logger: slog.Default().With("component", "questions")}
}

func (g *GenAIFollowups) GenerateInitialQuestions(ctx context.Context, agentName string, cc models.ConversationContext) ([]models.Question, error) {
	return g.inner.GenerateInitialQuestions(ctx, agentName, cc)
}

func (g *GenAIFollowups) GenerateFollowupQuestions(ctx context.Context, agentName, lastResponse string, history []models.ConversationTurn) ([]models.Question, error) {
	qs, err := g.inner.GenerateFollowupQuestions(ctx, agentName, lastResponse, history)
	if err != nil || len(qs) > 0 || g.llm == nil {
		return qs, err
	}
	if countAIQuestions(history) >= g.max {
		return nil, nil
	}

	out, err := g.llm.GeneratePrompt(ctx, followupSystemPrompt, buildFollowupPrompt(agentName, lastResponse, history))
	if err != nil {
		if errors.Is(err, genai.ErrCancelled) {
			return nil, err
		}
		g.logger.Warn("GenAIFollowups generation failed, continuing without follow-up", "error", err, "agent", agentName)
		return nil, nil
	}

	text := parseFollowup(out)
	if text == "" {
		return nil, nil
	}
	category := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == models.TurnTypeQuestion {
			category = history[i].Metadata[models.MetaKeyCategory]
			break
		}
	}
	return []models.Question{{
		ID:       util.GenerateQuestionID(AIQuestionPrefix),
		Text:     text,
		Kind:     models.QuestionKindOpen,
		Category: category,
	}}, nil
}

func buildFollowupPrompt(agentName, lastResponse string, history []models.ConversationTurn) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Agent: %s\n\nConversation so far:\n", agentName)
	for _, t := range history {
		switch t.Type {
		case models.TurnTypeQuestion:
			fmt.Fprintf(&sb, "Q: %s\n", t.Content)
		case models.TurnTypeResponse:
			fmt.Fprintf(&sb, "A: %s\n", t.Content)
		}
	}
	fmt.Fprintf(&sb, "\nLatest answer: %s\n", lastResponse)
	return sb.String()
}

// parseFollowup returns the first question line of the model output, or "" for NONE.
func parseFollowup(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) ")
		line = strings.Trim(line, "\"")
		if line == "" {
			continue
		}
		if strings.EqualFold(strings.TrimRight(line, "."), "none") {
			return ""
		}
		return line
	}
	return ""
}

func countAIQuestions(history []models.ConversationTurn) int {
	n := 0
	for _, t := range history {
		if t.Type == models.TurnTypeQuestion && strings.HasPrefix(t.Metadata[models.MetaKeyQuestionID], AIQuestionPrefix+"_") {
			n++
		}
	}
	return n
}

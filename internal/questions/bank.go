// Package questions provides the default question generator and response
// analyzer used by the conversation engine.
package questions

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BTreeMap/DocFlow/internal/models"
)

//go:embed default_bank.yaml
var defaultBankYAML []byte

// DefaultAgentKey is the bank entry used for agents without their own questions.
const DefaultAgentKey = "default"

// Bank is a set of question lists keyed by agent plus shared follow-ups.
type Bank struct {
	Agents    map[string][]models.Question `yaml:"agents"`
	Followups []models.Question            `yaml:"followups"`
}

// ParseBank decodes and validates a YAML question bank.
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	for agent, qs := range b.Agents {
		for i := range qs {
			if qs[i].Kind == "" {
				qs[i].Kind = models.QuestionKindOpen
			}
			if err := qs[i].Validate(); err != nil {
				return nil, fmt.Errorf("agent %s question %d: %w", agent, i, err)
			}
		}
	}
	for i := range b.Followups {
		if b.Followups[i].Kind == "" {
			b.Followups[i].Kind = models.QuestionKindOpen
		}
		if err := b.Followups[i].Validate(); err != nil {
			return nil, fmt.Errorf("follow-up %d: %w", i, err)
		}
	}
	return &b, nil
}

// DefaultBank returns the built-in question bank.
func DefaultBank() *Bank {
	b, err := ParseBank(defaultBankYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in question bank is invalid: %v", err))
	}
	return b
}

// LoadBank reads a question bank from a YAML file.
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}
	return ParseBank(data)
}

// BankGenerator serves questions from a Bank. Follow-ups fire when an answer
// contains one of the answered question's trigger keywords.
type BankGenerator struct {
	bank   *Bank
	byID   map[string]models.Question
	logger *slog.Logger
}

// NewBankGenerator creates a generator over bank.
func NewBankGenerator(bank *Bank) *BankGenerator {
	g := &BankGenerator{bank: bank, byID: make(map[string]models.Question), logger: slog.Default().With("component", "questions")}
	for _, qs := range bank.Agents {
		for _, q := range qs {
			g.byID[q.ID] = q
		}
	}
	for _, q := range bank.Followups {
		g.byID[q.ID] = q
	}
	return g
}

// GenerateInitialQuestions returns the agent's questions ordered by priority.
func (g *BankGenerator) GenerateInitialQuestions(ctx context.Context, agentName string, cc models.ConversationContext) ([]models.Question, error) {
	qs, ok := g.bank.Agents[agentName]
	if !ok {
		qs, ok = g.bank.Agents[DefaultAgentKey]
	}
	if !ok {
		return nil, fmt.Errorf("no questions for agent %q", agentName)
	}
	out := append([]models.Question(nil), qs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	g.logger.Debug("BankGenerator initial questions", "agent", agentName, "count", len(out))
	return out, nil
}

// GenerateFollowupQuestions matches the last answer against its question's
// triggers. Questions already asked in this session are skipped.
func (g *BankGenerator) GenerateFollowupQuestions(ctx context.Context, agentName, lastResponse string, history []models.ConversationTurn) ([]models.Question, error) {
	answeredID := lastAnsweredQuestionID(history)
	q, ok := g.byID[answeredID]
	if !ok || len(q.FollowupTriggers) == 0 {
		return nil, nil
	}

	asked := askedQuestionIDs(history)
	lower := strings.ToLower(lastResponse)

	keywords := make([]string, 0, len(q.FollowupTriggers))
	for k := range q.FollowupTriggers {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)

	var out []models.Question
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			continue
		}
		for _, id := range q.FollowupTriggers[kw] {
			fq, ok := g.byID[id]
			if !ok || asked[id] {
				continue
			}
			asked[id] = true
			out = append(out, fq)
		}
	}
	if len(out) > 0 {
		g.logger.Debug("BankGenerator follow-ups triggered", "agent", agentName, "questionID", answeredID, "count", len(out))
	}
	return out, nil
}

// lastAnsweredQuestionID is the question ID on the newest response turn.
func lastAnsweredQuestionID(history []models.ConversationTurn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == models.TurnTypeResponse {
			return history[i].Metadata[models.MetaKeyQuestionID]
		}
	}
	return ""
}

func askedQuestionIDs(history []models.ConversationTurn) map[string]bool {
	asked := make(map[string]bool)
	for _, t := range history {
		if t.Type != models.TurnTypeQuestion {
			continue
		}
		if id := t.Metadata[models.MetaKeyQuestionID]; id != "" {
			asked[id] = true
		}
	}
	return asked
}

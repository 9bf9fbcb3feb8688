package questions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BTreeMap/DocFlow/internal/models"
)

func TestDefaultBankCoversWorkflowAgents(t *testing.T) {
	b := DefaultBank()
	for _, agent := range []string{"prd-creator", "requirements-gatherer", "solution-architect", "specification-writer", DefaultAgentKey} {
		if len(b.Agents[agent]) == 0 {
			t.Errorf("expected questions for %s", agent)
		}
	}
}

func TestGenerateInitialQuestions_SortedByPriority(t *testing.T) {
	bank, err := ParseBank([]byte(`
agents:
  tester:
    - {id: b, text: Second?, priority: 2}
    - {id: a, text: First?, priority: 1}
`))
	if err != nil {
		t.Fatalf("ParseBank failed: %v", err)
	}
	g := NewBankGenerator(bank)

	qs, err := g.GenerateInitialQuestions(context.Background(), "tester", models.ConversationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 2 || qs[0].ID != "a" || qs[1].ID != "b" {
		t.Errorf("expected priority order a,b got %+v", qs)
	}
	if qs[0].Kind != models.QuestionKindOpen {
		t.Errorf("expected default kind open, got %q", qs[0].Kind)
	}
}

func TestGenerateInitialQuestions_FallsBackToDefault(t *testing.T) {
	g := NewBankGenerator(DefaultBank())
	qs, err := g.GenerateInitialQuestions(context.Background(), "custom-agent", models.ConversationContext{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) == 0 || qs[0].ID != "overview" {
		t.Errorf("expected default questions, got %+v", qs)
	}

	g = NewBankGenerator(&Bank{Agents: map[string][]models.Question{}})
	if _, err := g.GenerateInitialQuestions(context.Background(), "custom-agent", models.ConversationContext{}); err == nil {
		t.Error("expected error when no bank entry applies")
	}
}

func TestParseBank_Invalid(t *testing.T) {
	if _, err := ParseBank([]byte("agents:\n  x:\n    - {id: '', text: hi}\n")); err == nil {
		t.Error("expected validation error for empty id")
	}
	if _, err := ParseBank([]byte("agents: [")); err == nil {
		t.Error("expected YAML error")
	}
}

func TestLoadBank(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.yaml")
	if err := os.WriteFile(path, []byte("agents:\n  a:\n    - {id: q, text: Q?}\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	b, err := LoadBank(path)
	if err != nil {
		t.Fatalf("LoadBank failed: %v", err)
	}
	if len(b.Agents["a"]) != 1 {
		t.Errorf("expected one question, got %d", len(b.Agents["a"]))
	}
	if _, err := LoadBank(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func history(answeredID string, askedIDs ...string) []models.ConversationTurn {
	var h []models.ConversationTurn
	for _, id := range askedIDs {
		h = append(h, models.ConversationTurn{Type: models.TurnTypeQuestion, Metadata: map[string]string{models.MetaKeyQuestionID: id}})
	}
	h = append(h, models.ConversationTurn{Type: models.TurnTypeResponse, Metadata: map[string]string{models.MetaKeyQuestionID: answeredID}})
	return h
}

func TestGenerateFollowupQuestions_Triggers(t *testing.T) {
	g := NewBankGenerator(DefaultBank())
	ctx := context.Background()

	qs, err := g.GenerateFollowupQuestions(ctx, "prd-creator", "Field technicians on their Mobile phones", history("target_users", "problem_statement", "target_users"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "platform" {
		t.Errorf("expected platform follow-up once, got %+v", qs)
	}

	qs, _ = g.GenerateFollowupQuestions(ctx, "prd-creator", "Mobile users", history("target_users", "target_users", "platform"))
	if len(qs) != 0 {
		t.Errorf("already asked follow-ups must not repeat, got %+v", qs)
	}

	qs, _ = g.GenerateFollowupQuestions(ctx, "prd-creator", "Desktop analysts", history("target_users", "target_users"))
	if len(qs) != 0 {
		t.Errorf("expected no follow-ups without a trigger, got %+v", qs)
	}
}

func TestGenerateFollowupQuestions_NoHistory(t *testing.T) {
	g := NewBankGenerator(DefaultBank())
	qs, err := g.GenerateFollowupQuestions(context.Background(), "prd-creator", "anything", nil)
	if err != nil || len(qs) != 0 {
		t.Errorf("expected nothing without history, got %v %v", qs, err)
	}
}

func TestDefaultBankCategoriesMatchSections(t *testing.T) {
	for _, q := range DefaultBank().Agents["prd-creator"] {
		if strings.ToLower(q.Category) != q.Category || strings.Contains(q.Category, " ") {
			t.Errorf("category %q should be snake_case", q.Category)
		}
	}
}

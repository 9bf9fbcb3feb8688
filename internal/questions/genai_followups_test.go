package questions

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/DocFlow/internal/genai"
	"github.com/BTreeMap/DocFlow/internal/models"
)

type mockLLM struct {
	out   string
	err   error
	calls int
}

func (m *mockLLM) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.calls++
	return m.out, m.err
}

func TestGenAIFollowups_UsesModelWhenBankHasNone(t *testing.T) {
	llm := &mockLLM{out: "1. What budget do you have for this?"}
	g := NewGenAIFollowups(NewBankGenerator(DefaultBank()), llm, 0)

	h := []models.ConversationTurn{
		{Type: models.TurnTypeQuestion, Content: "What are the main goals?", Metadata: map[string]string{models.MetaKeyQuestionID: "goals", models.MetaKeyCategory: "goals"}},
		{Type: models.TurnTypeResponse, Content: "Reduce churn", Metadata: map[string]string{models.MetaKeyQuestionID: "goals"}},
	}
	qs, err := g.GenerateFollowupQuestions(context.Background(), "prd-creator", "Reduce churn", h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("expected one follow-up, got %+v", qs)
	}
	if qs[0].Text != "What budget do you have for this?" {
		t.Errorf("unexpected text %q", qs[0].Text)
	}
	if !strings.HasPrefix(qs[0].ID, "ai_") || qs[0].Category != "goals" {
		t.Errorf("unexpected question %+v", qs[0])
	}
}

func TestGenAIFollowups_BankTriggersWin(t *testing.T) {
	llm := &mockLLM{out: "Anything?"}
	g := NewGenAIFollowups(NewBankGenerator(DefaultBank()), llm, 0)
	h := history("target_users", "target_users")

	qs, err := g.GenerateFollowupQuestions(context.Background(), "prd-creator", "mobile field staff", h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "platform" {
		t.Errorf("expected bank follow-up, got %+v", qs)
	}
	if llm.calls != 0 {
		t.Error("model should not be called when the bank has follow-ups")
	}
}

func TestGenAIFollowups_NoneAndCap(t *testing.T) {
	llm := &mockLLM{out: "NONE"}
	g := NewGenAIFollowups(NewBankGenerator(DefaultBank()), llm, 1)

	qs, _ := g.GenerateFollowupQuestions(context.Background(), "prd-creator", "Reduce churn", history("goals", "goals"))
	if len(qs) != 0 {
		t.Errorf("NONE should mean no follow-up, got %+v", qs)
	}

	llm.out = "Why now?"
	qs, _ = g.GenerateFollowupQuestions(context.Background(), "prd-creator", "Reduce churn", history("goals", "goals", "ai_1234abcd"))
	if len(qs) != 0 {
		t.Errorf("cap reached, expected no follow-up, got %+v", qs)
	}
}

func TestGenAIFollowups_ModelErrors(t *testing.T) {
	llm := &mockLLM{err: errors.New("rate limited")}
	g := NewGenAIFollowups(NewBankGenerator(DefaultBank()), llm, 0)
	qs, err := g.GenerateFollowupQuestions(context.Background(), "prd-creator", "Reduce churn", history("goals", "goals"))
	if err != nil || len(qs) != 0 {
		t.Errorf("model failure should degrade to no follow-up, got %v %v", qs, err)
	}

	llm.err = genai.ErrCancelled
	if _, err := g.GenerateFollowupQuestions(context.Background(), "prd-creator", "Reduce churn", history("goals", "goals")); !errors.Is(err, genai.ErrCancelled) {
		t.Errorf("cancellation should fail the turn, got %v", err)
	}
}

func TestParseFollowup(t *testing.T) {
	cases := map[string]string{
		"none":                 "",
		"None.":                "",
		"\n- Who signs off?\n": "Who signs off?",
		"\"Which region?\"":    "Which region?",
		"":                     "",
	}
	for in, want := range cases {
		if got := parseFollowup(in); got != want {
			t.Errorf("parseFollowup(%q) = %q, want %q", in, got, want)
		}
	}
}

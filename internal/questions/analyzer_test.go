package questions

import (
	"context"
	"testing"

	"github.com/BTreeMap/DocFlow/internal/models"
)

func TestAnalyze_ShortAnswerNeedsClarification(t *testing.T) {
	a := NewHeuristicAnalyzer()
	res, err := a.Analyze(context.Background(), "Yes", models.Question{ID: "q", Category: "goals"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.NeedsClarification {
		t.Error("expected a 3 character answer to need clarification")
	}
	if len(res.ExtractedEntities) != 0 {
		t.Errorf("expected no entities from an unclear answer, got %+v", res.ExtractedEntities)
	}
}

func TestAnalyze_VagueAnswer(t *testing.T) {
	a := NewHeuristicAnalyzer()
	res, _ := a.Analyze(context.Background(), "I'm not sure who would use it honestly", models.Question{ID: "q"})
	if !res.NeedsClarification {
		t.Error("expected hedged answer to need clarification")
	}
}

func TestAnalyze_EnumeratedOption(t *testing.T) {
	a := NewHeuristicAnalyzer()
	q := models.Question{ID: "p", Kind: models.QuestionKindEnumerated, Examples: []string{"web", "ios"}, Category: "scope"}
	res, _ := a.Analyze(context.Background(), "Web", q)
	if res.NeedsClarification {
		t.Error("a listed option is a complete answer")
	}
	if res.Completeness != 1 {
		t.Errorf("expected completeness 1, got %v", res.Completeness)
	}
	if len(res.ExtractedEntities) != 1 || res.ExtractedEntities[0].Type != "scope" {
		t.Errorf("expected scope entity, got %+v", res.ExtractedEntities)
	}
}

func TestAnalyze_KeyValueEntities(t *testing.T) {
	a := NewHeuristicAnalyzer()
	res, _ := a.Analyze(context.Background(), "Target Users: site reliability engineers\nGoals: cut paging noise in half", models.Question{ID: "q", Category: "goals"})
	if res.NeedsClarification {
		t.Error("did not expect clarification")
	}
	if len(res.ExtractedEntities) != 2 {
		t.Fatalf("expected 2 entities, got %+v", res.ExtractedEntities)
	}
	if res.ExtractedEntities[0].Type != "target_users" || res.ExtractedEntities[0].Value != "site reliability engineers" {
		t.Errorf("unexpected first entity %+v", res.ExtractedEntities[0])
	}
}

func TestAnalyze_CategoryEntityFallback(t *testing.T) {
	a := NewHeuristicAnalyzer()
	res, _ := a.Analyze(context.Background(), "We want to halve onboarding time for new hires", models.Question{ID: "q", Category: "goals"})
	if len(res.ExtractedEntities) != 1 || res.ExtractedEntities[0].Type != "goals" {
		t.Errorf("expected goals entity, got %+v", res.ExtractedEntities)
	}

	res, _ = a.Analyze(context.Background(), "Nothing more to add from my side", models.Question{ID: "c", Category: "completion"})
	if len(res.ExtractedEntities) != 0 {
		t.Errorf("completion answers carry no entities, got %+v", res.ExtractedEntities)
	}
}

func TestAnalyze_SuggestsExamples(t *testing.T) {
	a := NewHeuristicAnalyzer()
	res, _ := a.Analyze(context.Background(), "dunno", models.Question{ID: "q", Examples: []string{"unit", "integration"}})
	if len(res.SuggestedFollowups) != 1 {
		t.Errorf("expected example hint, got %v", res.SuggestedFollowups)
	}
}

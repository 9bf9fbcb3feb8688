package questions

import (
	"context"
	"regexp"
	"strings"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// Heuristic thresholds.
const (
	MinAnswerLength     = 10
	CompleteAnswerWords = 20
)

var vaguePhrases = []string{"not sure", "maybe", "idk", "i don't know", "i dont know", "no idea"}

var keyValueLine = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z0-9 _-]{0,40}?)\s*:\s*(\S.*)$`)

// HeuristicAnalyzer judges answers by length and hedging and pulls out
// "key: value" lines as entities.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates the analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

// Analyze inspects response as an answer to q.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, response string, q models.Question) (models.AnalysisResult, error) {
	trimmed := strings.TrimSpace(response)
	res := models.AnalysisResult{
		ExtractedEntities:  []models.ExtractedEntity{},
		SuggestedFollowups: []string{},
	}

	matchedOption := q.Kind == models.QuestionKindEnumerated && matchesExample(trimmed, q.Examples)
	res.NeedsClarification = !matchedOption && (len(trimmed) < MinAnswerLength || isVague(trimmed))

	for _, line := range strings.Split(trimmed, "\n") {
		m := keyValueLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		res.ExtractedEntities = append(res.ExtractedEntities, models.ExtractedEntity{
			Type:  entityType(m[1]),
			Value: strings.TrimSpace(m[2]),
		})
	}
	if len(res.ExtractedEntities) == 0 && !res.NeedsClarification && q.Category != "" && q.Category != "completion" {
		res.ExtractedEntities = append(res.ExtractedEntities, models.ExtractedEntity{Type: q.Category, Value: trimmed})
	}

	words := len(strings.Fields(trimmed))
	res.Completeness = min(float64(words)/CompleteAnswerWords, 1)
	if matchedOption {
		res.Completeness = 1
	}
	res.Confidence = 0.8
	if res.NeedsClarification {
		res.Confidence = 0.4
		if len(q.Examples) > 0 {
			res.SuggestedFollowups = append(res.SuggestedFollowups, "For example: "+strings.Join(q.Examples, "; "))
		}
	}
	return res, nil
}

func isVague(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range vaguePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func matchesExample(answer string, examples []string) bool {
	for _, e := range examples {
		if strings.EqualFold(answer, strings.TrimSpace(e)) {
			return true
		}
	}
	return false
}

// entityType normalizes a key such as "Target Users" to "target_users".
func entityType(key string) string {
	fields := strings.FieldsFunc(strings.ToLower(key), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}

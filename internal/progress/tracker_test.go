package progress

import (
	"testing"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
)

func TestTrackerUpdateAndCalculate(t *testing.T) {
	tr := NewTracker()
	if _, ok := tr.CalculateProgress("s1"); ok {
		t.Error("expected no snapshot for unknown session")
	}

	var seen []models.ProgressSnapshot
	tr.Subscribe(func(s models.ProgressSnapshot) { seen = append(seen, s) })

	now := time.Now()
	tr.UpdateProgress("s1", models.ProgressSnapshot{SessionID: "s1", CompletionScore: 0.2, UpdatedAt: now})
	tr.UpdateProgress("s2", models.ProgressSnapshot{SessionID: "s2", UpdatedAt: now.Add(time.Minute)})
	tr.UpdateProgress("s1", models.ProgressSnapshot{SessionID: "s1", CompletionScore: 0.5, UpdatedAt: now.Add(2 * time.Minute)})

	s, ok := tr.CalculateProgress("s1")
	if !ok || s.CompletionScore != 0.5 {
		t.Errorf("expected latest snapshot with score 0.5, got %+v", s)
	}
	if len(seen) != 3 {
		t.Errorf("expected listener to see 3 updates, got %d", len(seen))
	}

	all := tr.All()
	if len(all) != 2 || all[0].SessionID != "s1" {
		t.Errorf("expected s1 first in %+v", all)
	}

	tr.Forget("s1")
	if _, ok := tr.CalculateProgress("s1"); ok {
		t.Error("expected snapshot to be forgotten")
	}
}

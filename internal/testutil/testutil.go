// Package testutil provides common test helpers for DocFlow packages: HTTP
// request and envelope helpers for API tests and session seeding for store
// consumers.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/store"
)

// CreateHTTPRequest creates an HTTP request with an optional JSON body.
func CreateHTTPRequest(t *testing.T, method, url string, body any) *http.Request {
	t.Helper()
	var reqBody bytes.Buffer
	if body != nil {
		reqBody.Write(MustMarshalJSON(t, body))
	}
	req := httptest.NewRequest(method, url, &reqBody)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// DecodeAPIResponse decodes the standard response envelope.
func DecodeAPIResponse(t *testing.T, rr *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	MustUnmarshalJSON(t, rr.Body.Bytes(), &resp)
	return resp
}

// DecodeResult re-decodes an envelope's result into target.
func DecodeResult(t *testing.T, resp models.APIResponse, target any) {
	t.Helper()
	MustUnmarshalJSON(t, MustMarshalJSON(t, resp.Result), target)
}

// SessionSeed describes a session to write directly into a store.
type SessionSeed struct {
	SessionID    string
	AgentName    string
	Phase        models.WorkflowPhase
	DocumentPath string
	Active       bool
	LastActivity time.Time
}

// SeedSession saves a session built from seed and points its agent at it.
func SeedSession(t *testing.T, st store.SessionStore, seed SessionSeed) *models.ConversationSession {
	t.Helper()
	ctx := context.Background()
	if seed.Phase == "" {
		seed.Phase = models.PhaseConcept
	}
	if seed.LastActivity.IsZero() {
		seed.LastActivity = time.Now()
	}
	sess := &models.ConversationSession{
		SessionID:          seed.SessionID,
		AgentName:          seed.AgentName,
		CurrentQuestionSet: []models.Question{{ID: "problem_statement", Text: "What problem are you trying to solve?"}},
		State: models.ConversationState{
			SessionID:         seed.SessionID,
			AgentName:         seed.AgentName,
			CurrentPhase:      seed.Phase,
			AnsweredQuestions: map[string]string{},
			ExtractedData:     map[string]string{},
			IsActive:          seed.Active,
			LastUpdated:       seed.LastActivity,
		},
		Context:      models.ConversationContext{DocumentPath: seed.DocumentPath, Phase: seed.Phase},
		CreatedAt:    seed.LastActivity,
		LastActivity: seed.LastActivity,
	}
	if err := st.SaveSession(ctx, sess); err != nil {
		t.Fatalf("failed to seed session %s: %v", seed.SessionID, err)
	}
	if err := st.SetActiveSession(ctx, seed.AgentName, seed.SessionID); err != nil {
		t.Fatalf("failed to seed active pointer for %s: %v", seed.AgentName, err)
	}
	return sess
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target any) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON %q: %v", data, err)
	}
}

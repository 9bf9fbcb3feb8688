package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// mockEngine records calls and returns canned results.
type mockEngine struct {
	sessions    map[string]*models.ConversationSession
	continueErr error
	followups   int
	nextID      int
	continued   []string
}

func newMockEngine() *mockEngine {
	return &mockEngine{sessions: make(map[string]*models.ConversationSession), followups: 1}
}

func (m *mockEngine) StartConversation(ctx context.Context, agentName string, cc models.ConversationContext) (*models.ConversationSession, error) {
	m.nextID++
	id := "sess-" + string(rune('0'+m.nextID))
	for _, s := range m.sessions {
		if s.AgentName == agentName {
			s.State.IsActive = false
		}
	}
	s := &models.ConversationSession{
		SessionID:          id,
		AgentName:          agentName,
		CurrentQuestionSet: []models.Question{{ID: "q1", Text: "What problem?"}},
		State:              models.ConversationState{SessionID: id, AgentName: agentName, IsActive: true},
		Context:            cc,
		CreatedAt:          time.Now(),
	}
	m.sessions[id] = s
	return s, nil
}

func (m *mockEngine) ContinueConversation(ctx context.Context, sessionID, text string) (*models.ConversationResponse, error) {
	m.continued = append(m.continued, text)
	if m.continueErr != nil {
		return nil, m.continueErr
	}
	resp := &models.ConversationResponse{AgentMessage: "next"}
	for i := 0; i < m.followups; i++ {
		resp.FollowupQuestions = append(resp.FollowupQuestions, models.Question{ID: "f", Text: "More?"})
	}
	return resp, nil
}

func (m *mockEngine) EndConversation(ctx context.Context, sessionID string) (*models.ConversationSummary, error) {
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.New("SESSION_NOT_FOUND")
	}
	s.State.IsActive = false
	return &models.ConversationSummary{SessionID: sessionID, AgentName: s.AgentName}, nil
}

func (m *mockEngine) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	return m.sessions[sessionID], nil
}

type mockDirectory struct {
	current string
	agents  map[string]models.Agent
	err     error
	asked   []string
}

func newMockDirectory(current string) *mockDirectory {
	return &mockDirectory{
		current: current,
		agents: map[string]models.Agent{
			"prd-creator":           {Name: "prd-creator"},
			"requirements-gatherer": {Name: "requirements-gatherer"},
		},
	}
}

func (d *mockDirectory) CurrentAgent() (models.Agent, bool) {
	a, ok := d.agents[d.current]
	return a, ok
}

func (d *mockDirectory) GetAgent(name string) (models.Agent, bool) {
	a, ok := d.agents[name]
	return a, ok
}

func (d *mockDirectory) HandleRequest(ctx context.Context, agentName, text string) (string, error) {
	d.asked = append(d.asked, text)
	if d.err != nil {
		return "", d.err
	}
	return agentName + " says hi", nil
}

func TestRouteUserInput_NoSessionNoAgent(t *testing.T) {
	r := NewSessionRouter(newMockEngine(), newMockDirectory(""))

	res := r.RouteUserInput(context.Background(), "hello")
	if res.RoutedTo != RoutedToError {
		t.Errorf("expected error route, got %s", res.RoutedTo)
	}
	if res.Error != NoActiveAgentMessage {
		t.Errorf("unexpected error message %q", res.Error)
	}
}

func TestRouteUserInput_FallsBackToAgent(t *testing.T) {
	dir := newMockDirectory("prd-creator")
	r := NewSessionRouter(newMockEngine(), dir)

	res := r.RouteUserInput(context.Background(), "what can you do?")
	if res.RoutedTo != RoutedToAgent {
		t.Fatalf("expected agent route, got %+v", res)
	}
	if res.AgentResponse != "prd-creator says hi" {
		t.Errorf("unexpected agent response %q", res.AgentResponse)
	}
}

func TestRouteUserInput_AgentFailure(t *testing.T) {
	dir := newMockDirectory("prd-creator")
	dir.err = errors.New("model offline")
	r := NewSessionRouter(newMockEngine(), dir)

	res := r.RouteUserInput(context.Background(), "hi")
	if res.RoutedTo != RoutedToError || !strings.Contains(res.Error, "model offline") {
		t.Errorf("expected agent error, got %+v", res)
	}
}

func TestRouteUserInput_ToConversation(t *testing.T) {
	eng := newMockEngine()
	r := NewSessionRouter(eng, newMockDirectory("prd-creator"))
	ctx := context.Background()

	sess, err := r.StartConversation(ctx, "prd-creator", models.ConversationContext{DocumentPath: "prd.md"})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	res := r.RouteUserInput(ctx, "Developers lose time to stale docs")
	if res.RoutedTo != RoutedToConversation {
		t.Fatalf("expected conversation route, got %+v", res)
	}
	if !res.ShouldContinue {
		t.Error("expected ShouldContinue with pending follow-ups")
	}

	md, ok := r.GetSessionMetadata(sess.SessionID)
	if !ok {
		t.Fatal("expected metadata for session")
	}
	if md.ResponseCount != 1 {
		t.Errorf("expected 1 response, got %d", md.ResponseCount)
	}
	if md.DocumentPath != "prd.md" {
		t.Errorf("expected document path to be tracked, got %q", md.DocumentPath)
	}

	eng.followups = 0
	res = r.RouteUserInput(ctx, "That's all")
	if res.ShouldContinue {
		t.Error("no follow-ups should end the conversation naturally")
	}
}

func TestRouteUserInput_ConversationErrorClearsActive(t *testing.T) {
	eng := newMockEngine()
	r := NewSessionRouter(eng, newMockDirectory("prd-creator"))
	ctx := context.Background()

	if _, err := r.StartConversation(ctx, "prd-creator", models.ConversationContext{}); err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	eng.continueErr = errors.New("analyzer exploded")

	res := r.RouteUserInput(ctx, "some answer")
	if res.RoutedTo != RoutedToError {
		t.Fatalf("expected error route, got %s", res.RoutedTo)
	}
	if !strings.HasPrefix(res.Error, "Conversation error: ") {
		t.Errorf("expected Conversation error prefix, got %q", res.Error)
	}
	if r.HasActiveSession() {
		t.Error("active session should be cleared after a conversation error")
	}
}

func TestRouteUserInput_StaleSessionSelfHeals(t *testing.T) {
	eng := newMockEngine()
	dir := newMockDirectory("prd-creator")
	r := NewSessionRouter(eng, dir)
	ctx := context.Background()

	sess, err := r.StartConversation(ctx, "prd-creator", models.ConversationContext{})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	delete(eng.sessions, sess.SessionID)

	res := r.RouteUserInput(ctx, "hello again")
	if res.RoutedTo != RoutedToAgent {
		t.Fatalf("expected fallback to agent, got %+v", res)
	}
	if r.HasActiveSession() {
		t.Error("stale session should be cleared")
	}
	if _, ok := r.GetSessionMetadata(sess.SessionID); ok {
		t.Error("stale session metadata should be dropped")
	}
	if len(eng.continued) != 0 {
		t.Error("stale session must not be continued")
	}
}

func TestStartConversation_SwitchingAgentsKeepsMetadata(t *testing.T) {
	r := NewSessionRouter(newMockEngine(), newMockDirectory("prd-creator"))
	ctx := context.Background()

	first, err := r.StartConversation(ctx, "prd-creator", models.ConversationContext{})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	second, err := r.StartConversation(ctx, "requirements-gatherer", models.ConversationContext{})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	if r.ActiveSessionID() != second.SessionID {
		t.Errorf("expected %s active, got %s", second.SessionID, r.ActiveSessionID())
	}
	if id, ok := r.GetSessionForAgent("prd-creator"); !ok || id != first.SessionID {
		t.Errorf("expected prd-creator session to stay queryable, got %q", id)
	}
	if len(r.ListSessionMetadata()) != 2 {
		t.Errorf("expected metadata for both sessions, got %d", len(r.ListSessionMetadata()))
	}
}

func TestStartConversation_UnknownAgent(t *testing.T) {
	r := NewSessionRouter(newMockEngine(), newMockDirectory(""))
	if _, err := r.StartConversation(context.Background(), "ghost", models.ConversationContext{}); err == nil {
		t.Error("expected error for unknown agent")
	}
}

func TestEndActiveConversation(t *testing.T) {
	r := NewSessionRouter(newMockEngine(), newMockDirectory("prd-creator"))
	ctx := context.Background()

	if summary, err := r.EndActiveConversation(ctx); err != nil || summary != nil {
		t.Errorf("expected no-op without active session, got %v %v", summary, err)
	}

	sess, _ := r.StartConversation(ctx, "prd-creator", models.ConversationContext{})
	summary, err := r.EndActiveConversation(ctx)
	if err != nil {
		t.Fatalf("EndActiveConversation failed: %v", err)
	}
	if summary.SessionID != sess.SessionID {
		t.Errorf("expected summary for %s, got %s", sess.SessionID, summary.SessionID)
	}
	if r.HasActiveSession() {
		t.Error("expected no active session after end")
	}
}

func TestEndConversation_InactiveSession(t *testing.T) {
	r := NewSessionRouter(newMockEngine(), newMockDirectory("prd-creator"))
	ctx := context.Background()

	first, _ := r.StartConversation(ctx, "prd-creator", models.ConversationContext{})
	second, _ := r.StartConversation(ctx, "solution-architect", models.ConversationContext{})

	if _, err := r.EndConversation(ctx, first.SessionID); err != nil {
		t.Fatalf("EndConversation failed: %v", err)
	}
	if _, ok := r.GetSessionMetadata(first.SessionID); ok {
		t.Error("expected metadata dropped for ended session")
	}
	if r.ActiveSessionID() != second.SessionID {
		t.Errorf("ending another session should not move routing, got %q", r.ActiveSessionID())
	}
	if _, err := r.EndConversation(ctx, "missing"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestAdoptSession(t *testing.T) {
	r := NewSessionRouter(newMockEngine(), newMockDirectory(""))
	sess := &models.ConversationSession{SessionID: "s-old", AgentName: "prd-creator", CreatedAt: time.Now()}

	r.AdoptSession(sess, false)
	if r.HasActiveSession() {
		t.Error("adopting without makeActive should not route to the session")
	}
	if !r.SetActiveSession("s-old") {
		t.Fatal("expected adopted session to be selectable")
	}
	if r.ActiveSessionID() != "s-old" {
		t.Errorf("expected s-old active, got %q", r.ActiveSessionID())
	}
	if r.SetActiveSession("unknown") {
		t.Error("unknown sessions should not be selectable")
	}
}

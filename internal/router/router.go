// Package router decides where a piece of free-form user input goes: the active
// conversation, the currently selected agent, or nowhere.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// Route destinations.
const (
	RoutedToConversation = "conversation"
	RoutedToAgent        = "agent"
	RoutedToError        = "error"
)

// NoActiveAgentMessage is the RouteResult error when input has nowhere to go.
const NoActiveAgentMessage = "No active agent available"

// ConversationEngine is the part of the conversation engine the router uses.
type ConversationEngine interface {
	StartConversation(ctx context.Context, agentName string, cc models.ConversationContext) (*models.ConversationSession, error)
	ContinueConversation(ctx context.Context, sessionID, userResponse string) (*models.ConversationResponse, error)
	EndConversation(ctx context.Context, sessionID string) (*models.ConversationSummary, error)
	GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error)
}

// AgentDirectory resolves agents and answers free text outside a conversation.
type AgentDirectory interface {
	CurrentAgent() (models.Agent, bool)
	GetAgent(name string) (models.Agent, bool)
	HandleRequest(ctx context.Context, agentName, text string) (string, error)
}

// RouteResult describes where input went and what came back.
type RouteResult struct {
	RoutedTo       string                       `json:"routed_to"`
	SessionID      string                       `json:"session_id,omitempty"`
	AgentName      string                       `json:"agent_name,omitempty"`
	Response       *models.ConversationResponse `json:"response,omitempty"`
	AgentResponse  string                       `json:"agent_response,omitempty"`
	ShouldContinue bool                         `json:"should_continue"`
	Error          string                       `json:"error,omitempty"`
}

// SessionRouter tracks one globally active session plus per-agent sessions
// and their metadata. One mutex guards all three.
type SessionRouter struct {
	engine ConversationEngine
	agents AgentDirectory
	logger *slog.Logger
	now    func() time.Time

	mu            sync.Mutex
	activeSession string
	byAgent       map[string]string
	metadata      map[string]*models.SessionMetadata
}

// Option configures a SessionRouter.
type Option func(*SessionRouter)

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *SessionRouter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *SessionRouter) {
		if now != nil {
			r.now = now
		}
	}
}

// NewSessionRouter creates a router over the engine and agent directory.
func NewSessionRouter(engine ConversationEngine, agents AgentDirectory, opts ...Option) *SessionRouter {
	r := &SessionRouter{
		engine:   engine,
		agents:   agents,
		logger:   slog.Default(),
		now:      time.Now,
		byAgent:  make(map[string]string),
		metadata: make(map[string]*models.SessionMetadata),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "router")
	return r
}

// RouteUserInput sends text to the active conversation if there is a usable
// one, otherwise to the current agent.
func (r *SessionRouter) RouteUserInput(ctx context.Context, text string) RouteResult {
	r.mu.Lock()
	activeID := r.activeSession
	r.mu.Unlock()

	if activeID != "" {
		sess, err := r.engine.GetSession(ctx, activeID)
		if err != nil || sess == nil || !sess.State.IsActive {
			r.logger.Warn("SessionRouter dropping stale active session", "sessionID", activeID, "error", err)
			r.forgetSession(activeID)
		} else {
			return r.routeToConversation(ctx, sess, text)
		}
	}
	return r.routeToAgent(ctx, text)
}

func (r *SessionRouter) routeToConversation(ctx context.Context, sess *models.ConversationSession, text string) RouteResult {
	resp, err := r.engine.ContinueConversation(ctx, sess.SessionID, text)
	if err != nil {
		r.logger.Error("SessionRouter conversation failed", "error", err, "sessionID", sess.SessionID)
		r.ClearActiveSession()
		return RouteResult{
			RoutedTo:  RoutedToError,
			SessionID: sess.SessionID,
			AgentName: sess.AgentName,
			Error:     fmt.Sprintf("Conversation error: %v", err),
		}
	}

	r.mu.Lock()
	md := r.metadataFor(sess)
	md.ResponseCount++
	md.QuestionCount += len(resp.FollowupQuestions)
	md.LastActivity = r.now()
	r.mu.Unlock()

	r.logger.Debug("SessionRouter routed to conversation", "sessionID", sess.SessionID, "followups", len(resp.FollowupQuestions))
	return RouteResult{
		RoutedTo:       RoutedToConversation,
		SessionID:      sess.SessionID,
		AgentName:      sess.AgentName,
		Response:       resp,
		ShouldContinue: len(resp.FollowupQuestions) > 0,
	}
}

func (r *SessionRouter) routeToAgent(ctx context.Context, text string) RouteResult {
	if r.agents == nil {
		return RouteResult{RoutedTo: RoutedToError, Error: NoActiveAgentMessage}
	}
	agent, ok := r.agents.CurrentAgent()
	if !ok {
		r.logger.Debug("SessionRouter no active agent for input")
		return RouteResult{RoutedTo: RoutedToError, Error: NoActiveAgentMessage}
	}

	reply, err := r.agents.HandleRequest(ctx, agent.Name, text)
	if err != nil {
		r.logger.Error("SessionRouter agent request failed", "error", err, "agent", agent.Name)
		return RouteResult{RoutedTo: RoutedToError, AgentName: agent.Name, Error: fmt.Sprintf("Agent error: %v", err)}
	}
	return RouteResult{RoutedTo: RoutedToAgent, AgentName: agent.Name, AgentResponse: reply}
}

// StartConversation starts a session for agentName and makes it the active one.
func (r *SessionRouter) StartConversation(ctx context.Context, agentName string, cc models.ConversationContext) (*models.ConversationSession, error) {
	if r.agents != nil {
		if _, ok := r.agents.GetAgent(agentName); !ok {
			return nil, fmt.Errorf("unknown agent %q", agentName)
		}
	}

	sess, err := r.engine.StartConversation(ctx, agentName, cc)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev := r.byAgent[agentName]; prev != "" && prev != sess.SessionID {
		// The engine ended the agent's previous session.
		delete(r.metadata, prev)
	}
	r.byAgent[agentName] = sess.SessionID
	r.activeSession = sess.SessionID
	md := r.metadataFor(sess)
	md.QuestionCount = min(1, len(sess.CurrentQuestionSet))

	r.logger.Info("SessionRouter conversation started", "sessionID", sess.SessionID, "agent", agentName)
	return sess, nil
}

// EndActiveConversation ends the active session, if any.
func (r *SessionRouter) EndActiveConversation(ctx context.Context) (*models.ConversationSummary, error) {
	r.mu.Lock()
	id := r.activeSession
	r.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	return r.EndConversation(ctx, id)
}

// EndConversation ends a session and drops the router's record of it.
func (r *SessionRouter) EndConversation(ctx context.Context, sessionID string) (*models.ConversationSummary, error) {
	summary, err := r.engine.EndConversation(ctx, sessionID)
	r.forgetSession(sessionID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("SessionRouter conversation ended", "sessionID", sessionID)
	return summary, nil
}

// AdoptSession registers an existing session, e.g. one recovered at startup.
// When makeActive is set it becomes the routing target.
func (r *SessionRouter) AdoptSession(sess *models.ConversationSession, makeActive bool) {
	if sess == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAgent[sess.AgentName] = sess.SessionID
	r.metadataFor(sess)
	if makeActive {
		r.activeSession = sess.SessionID
	}
}

// SetActiveSession points routing at a session already known to the router.
func (r *SessionRouter) SetActiveSession(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.metadata[sessionID]; !ok {
		return false
	}
	r.activeSession = sessionID
	return true
}

// GetSessionForAgent returns the session ID last started for an agent.
func (r *SessionRouter) GetSessionForAgent(agentName string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byAgent[agentName]
	return id, ok
}

// GetSessionMetadata returns a copy of a session's metadata.
func (r *SessionRouter) GetSessionMetadata(sessionID string) (models.SessionMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	md, ok := r.metadata[sessionID]
	if !ok {
		return models.SessionMetadata{}, false
	}
	return *md, true
}

// ListSessionMetadata returns metadata for every tracked session, oldest first.
func (r *SessionRouter) ListSessionMetadata() []models.SessionMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SessionMetadata, 0, len(r.metadata))
	for _, md := range r.metadata {
		out = append(out, *md)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// HasActiveSession reports whether input currently routes to a conversation.
func (r *SessionRouter) HasActiveSession() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeSession != ""
}

// ActiveSessionID returns the routing target or "".
func (r *SessionRouter) ActiveSessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeSession
}

// ClearActiveSession stops routing to the active session. Its metadata stays
// queryable by agent.
func (r *SessionRouter) ClearActiveSession() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeSession = ""
}

// forgetSession drops every trace of a session.
func (r *SessionRouter) forgetSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activeSession == sessionID {
		r.activeSession = ""
	}
	if md, ok := r.metadata[sessionID]; ok && r.byAgent[md.AgentName] == sessionID {
		delete(r.byAgent, md.AgentName)
	}
	delete(r.metadata, sessionID)
}

// metadataFor returns the session's metadata, creating it if needed. Callers hold r.mu.
func (r *SessionRouter) metadataFor(sess *models.ConversationSession) *models.SessionMetadata {
	md, ok := r.metadata[sess.SessionID]
	if !ok {
		md = &models.SessionMetadata{
			SessionID:    sess.SessionID,
			AgentName:    sess.AgentName,
			DocumentPath: sess.Context.DocumentPath,
			TemplateID:   sess.Context.TemplateID,
			StartedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivity,
		}
		r.metadata[sess.SessionID] = md
	}
	return md
}

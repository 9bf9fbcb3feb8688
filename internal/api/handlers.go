// Package api provides HTTP handlers for DocFlow endpoints.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/router"
)

// MessageRequest is the body of POST /messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// Validate checks the message text.
func (r MessageRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("text is required")
	}
	if len(r.Text) > models.MaxResponseLength {
		return models.ErrResponseTooLong
	}
	return nil
}

// StartSessionRequest is the body of POST /sessions. With no agent name the
// phase's agent is used, then the currently selected agent.
type StartSessionRequest struct {
	AgentName    string `json:"agent_name,omitempty"`
	DocumentPath string `json:"document_path,omitempty"`
	TemplateID   string `json:"template_id,omitempty"`
	Phase        string `json:"phase,omitempty"`
	InitialInput string `json:"initial_input,omitempty"`
}

// SelectAgentRequest is the body of PUT /agents/current.
type SelectAgentRequest struct {
	Name string `json:"name"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	started := s.startedAt
	s.mu.Unlock()

	health := map[string]any{
		"status":         "healthy",
		"timestamp":      s.clock().UTC().Format(time.RFC3339),
		"active_session": s.router.ActiveSessionID(),
		"sessions":       len(s.router.ListSessionMetadata()),
	}
	if !started.IsZero() {
		health["uptime"] = s.clock().Sub(started).Round(time.Second).String()
	}
	writeJSONResponse(w, http.StatusOK, health)
}

// messageHandler handles POST /messages
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.logger.Warn("messageHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx := r.Context()
	s.applyAutoSessionAgent(ctx)
	result := s.router.RouteUserInput(ctx, req.Text)
	s.recordAutoSessionActivity(ctx)

	if result.RoutedTo == router.RoutedToError {
		s.logger.Debug("messageHandler routing failed", "error", result.Error, "sessionID", result.SessionID)
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.APIResponse{
			Status:  string(models.APIStatusError),
			Message: result.Error,
			Result:  result,
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// applyAutoSessionAgent selects the auto-session agent when nothing else would receive input.
func (s *Server) applyAutoSessionAgent(ctx context.Context) {
	if s.autoSession == nil || s.router.HasActiveSession() {
		return
	}
	if _, err := s.autoSession.SelectFallbackAgent(ctx, s.agents); err != nil {
		s.logger.Warn("Auto-session agent not selected", "error", err)
	}
}

func (s *Server) recordAutoSessionActivity(ctx context.Context) {
	if s.autoSession == nil {
		return
	}
	if err := s.autoSession.RecordActivity(ctx); err != nil {
		s.logger.Warn("Auto-session activity not recorded", "error", err)
	}
}

// listAgentsHandler handles GET /agents
func (s *Server) listAgentsHandler(w http.ResponseWriter, r *http.Request) {
	current := ""
	if a, ok := s.agents.CurrentAgent(); ok {
		current = a.Name
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"agents":  s.agents.List(),
		"current": current,
	}))
}

// selectAgentHandler handles PUT /agents/current
func (s *Server) selectAgentHandler(w http.ResponseWriter, r *http.Request) {
	var req SelectAgentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.agents.Select(req.Name); err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return
	}
	agent, _ := s.agents.CurrentAgent()
	s.logger.Info("selectAgentHandler agent selected", "agent", agent.Name)
	writeJSONResponse(w, http.StatusOK, models.Success(agent))
}

// clearAgentHandler handles DELETE /agents/current
func (s *Server) clearAgentHandler(w http.ResponseWriter, r *http.Request) {
	s.agents.ClearSelection()
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Agent selection cleared", nil))
}

// startSessionHandler handles POST /sessions
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.logger.Warn("startSessionHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	cc := models.ConversationContext{
		DocumentPath: req.DocumentPath,
		TemplateID:   req.TemplateID,
		InitialInput: req.InitialInput,
	}
	if req.Phase != "" {
		phase, ok := models.ParsePhase(req.Phase)
		if !ok {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(fmt.Sprintf("Unknown phase %q", req.Phase)))
			return
		}
		cc.Phase = phase
	}

	agentName, err := s.resolveAgent(req.AgentName, cc.Phase)
	if err != nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
		return
	}

	sess, err := s.router.StartConversation(r.Context(), agentName, cc)
	if err != nil {
		s.logger.Error("startSessionHandler start failed", "error", err, "agent", agentName)
		writeEngineError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Conversation started", sess))
}

var errNoAgentSelected = errors.New("no agent selected; pass agent_name or a phase")

func (s *Server) resolveAgent(name string, phase models.WorkflowPhase) (string, error) {
	if name != "" {
		if _, ok := s.agents.GetAgent(name); !ok {
			return "", fmt.Errorf("unknown agent %q", name)
		}
		return name, nil
	}
	if phase != "" {
		if a, ok := s.agents.AgentForPhase(phase); ok {
			return a.Name, nil
		}
	}
	if a, ok := s.agents.CurrentAgent(); ok {
		return a.Name, nil
	}
	return "", errNoAgentSelected
}

// listSessionsHandler handles GET /sessions
func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.engine.ListSessions(r.Context())
	if err != nil {
		s.logger.Error("listSessionsHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
		return
	}
	if r.URL.Query().Get("active") == "true" {
		active := sessions[:0]
		for _, sess := range sessions {
			if sess.State.IsActive {
				active = append(active, sess)
			}
		}
		sessions = active
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

// getSessionHandler handles GET /sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.engine.GetSession(r.Context(), id)
	if err != nil {
		s.logger.Error("getSessionHandler failed", "error", err, "sessionID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.ErrorWithCode("SESSION_NOT_FOUND", "Session not found"))
		return
	}

	result := map[string]any{"session": sess}
	if md, ok := s.router.GetSessionMetadata(id); ok {
		result["metadata"] = md
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// endSessionHandler handles DELETE /sessions/{id}
func (s *Server) endSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := s.router.EndConversation(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation ended", summary))
}

// sessionHistoryHandler handles GET /sessions/{id}/history
func (s *Server) sessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	turns, err := s.engine.GetConversationHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(turns))
}

// sessionProgressHandler handles GET /sessions/{id}/progress
func (s *Server) sessionProgressHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.CalculateProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

// pauseSessionHandler handles POST /sessions/{id}/pause
func (s *Server) pauseSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.engine.PauseConversation(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	if s.router.ActiveSessionID() == id {
		s.router.ClearActiveSession()
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation paused", nil))
}

// resumeSessionHandler handles POST /sessions/{id}/resume
func (s *Server) resumeSessionHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if err := s.engine.ResumeConversation(ctx, id); err != nil {
		writeEngineError(w, err)
		return
	}
	sess, err := s.engine.GetSession(ctx, id)
	if err != nil || sess == nil {
		s.logger.Error("resumeSessionHandler reload failed", "error", err, "sessionID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reload session"))
		return
	}
	s.router.AdoptSession(sess, true)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation resumed", sess))
}

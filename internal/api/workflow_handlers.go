// Package api provides workflow and auto-session handlers for DocFlow endpoints.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/workflow"
)

// EvaluateRequest is the body of POST /workflow/evaluate and POST /workflow/transition.
type EvaluateRequest struct {
	Phase        string `json:"phase"`
	DocumentPath string `json:"document_path"`
}

// Validate checks the phase and document path.
func (r EvaluateRequest) Validate() (models.WorkflowPhase, error) {
	phase, ok := models.ParsePhase(r.Phase)
	if !ok {
		return "", fmt.Errorf("unknown phase %q", r.Phase)
	}
	if r.DocumentPath == "" {
		return "", errors.New("document_path is required")
	}
	return phase, nil
}

// ValidateTransitionRequest is the body of POST /workflow/validate.
type ValidateTransitionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AutoSessionRequest is the body of POST /autosession.
type AutoSessionRequest struct {
	AgentName    string `json:"agent_name"`
	DocumentPath string `json:"document_path,omitempty"`
}

// phasesHandler handles GET /workflow/phases
func (s *Server) phasesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(workflow.DescribeAll()))
}

// evaluateHandler handles POST /workflow/evaluate
func (s *Server) evaluateHandler(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	phase, err := req.Validate()
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	status, err := s.orchestrator.EvaluatePhaseCompletion(r.Context(), phase, req.DocumentPath)
	if err != nil {
		s.logger.Error("evaluateHandler failed", "error", err, "phase", phase, "path", req.DocumentPath)
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(err.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]any{
		"status":     status,
		"suggestion": s.orchestrator.SuggestNextPhase(phase, status),
	}))
}

// validateHandler handles POST /workflow/validate
func (s *Server) validateHandler(w http.ResponseWriter, r *http.Request) {
	var req ValidateTransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	v := s.orchestrator.ValidatePhaseTransition(models.WorkflowPhase(req.From), models.WorkflowPhase(req.To))
	writeJSONResponse(w, http.StatusOK, models.Success(v))
}

// transitionHandler handles POST /workflow/transition. It evaluates the
// current phase and executes the suggested transition when it is ready.
func (s *Server) transitionHandler(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	phase, err := req.Validate()
	if err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx := r.Context()
	status, err := s.orchestrator.EvaluatePhaseCompletion(ctx, phase, req.DocumentPath)
	if err != nil {
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(err.Error()))
		return
	}
	suggestion := s.orchestrator.SuggestNextPhase(phase, status)
	if !status.ReadyForTransition || suggestion.NextPhase == phase {
		writeJSONResponse(w, http.StatusConflict, models.APIResponse{
			Status:  string(models.APIStatusError),
			Message: suggestion.Reason,
			Result:  map[string]any{"status": status, "suggestion": suggestion},
		})
		return
	}

	result := s.orchestrator.ExecutePhaseTransition(ctx, suggestion)
	if !result.Success {
		writeJSONResponse(w, http.StatusConflict, models.APIResponse{
			Status:  string(models.APIStatusError),
			Message: result.Message,
			Result:  result,
		})
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage(result.Message, map[string]any{
		"result":     result,
		"suggestion": suggestion,
	}))
}

// transitionHistoryHandler handles GET /workflow/history
func (s *Server) transitionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(s.orchestrator.TransitionHistory()))
}

// autoSessionStateHandler handles GET /autosession
func (s *Server) autoSessionStateHandler(w http.ResponseWriter, r *http.Request) {
	if s.autoSession == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Auto-session is not configured"))
		return
	}
	st, err := s.autoSession.State(r.Context())
	if err != nil {
		s.logger.Error("autoSessionStateHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to read auto-session state"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(st))
}

// enableAutoSessionHandler handles POST /autosession
func (s *Server) enableAutoSessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.autoSession == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Auto-session is not configured"))
		return
	}
	var req AutoSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if _, ok := s.agents.GetAgent(req.AgentName); !ok {
		writeJSONResponse(w, http.StatusNotFound, models.Error(fmt.Sprintf("Unknown agent %q", req.AgentName)))
		return
	}
	if err := s.autoSession.Enable(r.Context(), req.AgentName, req.DocumentPath); err != nil {
		s.logger.Error("enableAutoSessionHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to enable auto-session"))
		return
	}
	st, _ := s.autoSession.State(r.Context())
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Auto-session enabled", st))
}

// disableAutoSessionHandler handles DELETE /autosession
func (s *Server) disableAutoSessionHandler(w http.ResponseWriter, r *http.Request) {
	if s.autoSession == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Auto-session is not configured"))
		return
	}
	if err := s.autoSession.Disable(r.Context()); err != nil {
		s.logger.Error("disableAutoSessionHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to disable auto-session"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Auto-session disabled", nil))
}

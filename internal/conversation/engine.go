// Package conversation implements the session state machine that sequences
// questions, records turns, scores completion, and hands phase boundaries to
// the workflow orchestrator.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/store"
	"github.com/BTreeMap/DocFlow/internal/util"
)

// Category given to the synthesized "anything else" question.
const CompletionCategory = "completion"

// Engine owns conversation sessions. Every public method holds one mutex for
// its whole body, so two turns never interleave.
type Engine struct {
	mu        sync.Mutex
	store     store.SessionStore
	questions QuestionGenerator
	analyzer  ResponseAnalyzer
	advisor   PhaseAdvisor
	capture   ContentCapture
	progress  ProgressTracker
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithContentCapture sets the document writer used for document updates.
func WithContentCapture(c ContentCapture) Option {
	return func(e *Engine) { e.capture = c }
}

// WithProgressTracker sets the tracker that receives progress snapshots.
func WithProgressTracker(p ProgressTracker) Option {
	return func(e *Engine) { e.progress = p }
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine over the given store and collaborators.
func NewEngine(st store.SessionStore, gen QuestionGenerator, analyzer ResponseAnalyzer, advisor PhaseAdvisor, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		questions: gen,
		analyzer:  analyzer,
		advisor:   advisor,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "conversation")
	return e
}

// StartConversation opens a new session for agentName, ending any session the
// agent already has active.
func (e *Engine) StartConversation(ctx context.Context, agentName string, cc models.ConversationContext) (*models.ConversationSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.startConversation(ctx, agentName, cc)
	if err != nil {
		e.logger.Error("Engine StartConversation failed", "error", err, "agent", agentName)
		return nil, wrapError(CodeStartConversationFailed, "", err)
	}
	return sess.Clone(), nil
}

func (e *Engine) startConversation(ctx context.Context, agentName string, cc models.ConversationContext) (*models.ConversationSession, error) {
	if err := (models.Agent{Name: agentName}).Validate(); err != nil {
		return nil, err
	}

	prevID, err := e.store.GetActiveSessionID(ctx, agentName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	if prevID != "" {
		e.logger.Info("Engine ending previous active session", "agent", agentName, "sessionID", prevID)
		if _, err := e.endConversation(ctx, prevID); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				return nil, fmt.Errorf("failed to end previous session %s: %w", prevID, err)
			}
			if err := e.store.ClearActiveSession(ctx, agentName); err != nil {
				return nil, fmt.Errorf("failed to clear stale active session: %w", err)
			}
		}
	}

	qs, err := e.questions.GenerateInitialQuestions(ctx, agentName, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to generate initial questions: %w", err)
	}
	for _, q := range qs {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("invalid initial question %q: %w", q.ID, err)
		}
	}

	phase := cc.Phase
	if phase == "" {
		phase = models.PhaseConcept
	}
	cc.Phase = phase

	now := e.now()
	sessionID := util.GenerateSessionID()
	sess := &models.ConversationSession{
		SessionID:          sessionID,
		AgentName:          agentName,
		CurrentQuestionSet: qs,
		State: models.ConversationState{
			SessionID:         sessionID,
			AgentName:         agentName,
			CurrentPhase:      phase,
			AnsweredQuestions: make(map[string]string),
			ExtractedData:     make(map[string]string),
			QuestionsAsked:    min(len(qs), 1),
			IsActive:          true,
			LastUpdated:       now,
		},
		Context:      cc,
		CreatedAt:    now,
		LastActivity: now,
	}

	if err := e.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if err := e.store.SetActiveSession(ctx, agentName, sessionID); err != nil {
		return nil, fmt.Errorf("failed to set active session: %w", err)
	}

	kickoff := fmt.Sprintf("Started %s conversation with %s (%d questions)", phase, agentName, len(qs))
	if cc.DocumentPath != "" {
		kickoff += " for " + cc.DocumentPath
	}
	if err := e.appendTurn(ctx, sessionID, models.TurnTypeSystem, kickoff, map[string]string{models.MetaKeyEvent: "start"}); err != nil {
		return nil, err
	}
	if len(qs) > 0 {
		if err := e.appendTurn(ctx, sessionID, models.TurnTypeQuestion, qs[0].Text, questionMeta(qs[0])); err != nil {
			return nil, err
		}
	}

	e.pushProgress(sess, 1, len(qs))
	e.logger.Info("Engine conversation started", "sessionID", sessionID, "agent", agentName, "phase", phase, "questions", len(qs))
	return sess, nil
}

// ContinueConversation applies one user response to the session and decides
// what to ask next.
func (e *Engine) ContinueConversation(ctx context.Context, sessionID, userResponse string) (*models.ConversationResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp, err := e.continueConversation(ctx, sessionID, userResponse)
	if err != nil {
		e.logger.Error("Engine ContinueConversation failed", "error", err, "sessionID", sessionID)
		return nil, wrapError(CodeContinueConversationFailed, sessionID, err)
	}
	return resp, nil
}

func (e *Engine) continueConversation(ctx context.Context, sessionID, userResponse string) (*models.ConversationResponse, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.State.IsActive {
		return nil, newError(CodeSessionInactive, sessionID, nil)
	}
	if len(userResponse) > models.MaxResponseLength {
		return nil, models.ErrResponseTooLong
	}

	current, ok := sess.CurrentQuestion()
	responseMeta := map[string]string{}
	if ok {
		responseMeta[models.MetaKeyQuestionID] = current.ID
	}
	if err := e.appendTurn(ctx, sessionID, models.TurnTypeResponse, userResponse, responseMeta); err != nil {
		return nil, err
	}

	if len(sess.CurrentQuestionSet) == 0 {
		return nil, newError(CodeNoCurrentQuestion, sessionID, nil)
	}
	if !ok {
		return e.askAgain(ctx, sess, userResponse)
	}

	sess.State.AnsweredQuestions[current.ID] = userResponse

	analysis, err := e.analyzer.Analyze(ctx, userResponse, current)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze response: %w", err)
	}
	for _, ent := range analysis.ExtractedEntities {
		if ent.Type == "" {
			continue
		}
		sess.State.ExtractedData[ent.Type] = ent.Value
	}
	sess.State.CompletionScore = CalculateCompletionScore(sess.State)

	resp := &models.ConversationResponse{
		FollowupQuestions:   []models.Question{},
		DocumentUpdates:     e.captureUpdates(ctx, sess, current, userResponse, analysis),
		WorkflowSuggestions: []models.WorkflowSuggestion{},
	}

	switch {
	case analysis.NeedsClarification:
		cq := clarificationQuestion(current)
		e.replaceQuestionSet(sess, []models.Question{cq})
		resp.AgentMessage = fmt.Sprintf("I'd like to clarify your answer to %q. %s", current.Text, cq.Text)
		resp.FollowupQuestions = []models.Question{cq}

	default:
		history, err := e.store.GetTurns(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		followups, err := e.questions.GenerateFollowupQuestions(ctx, sess.AgentName, userResponse, history)
		if err != nil {
			return nil, fmt.Errorf("failed to generate follow-up questions: %w", err)
		}

		switch {
		case len(followups) > 0:
			e.replaceQuestionSet(sess, append([]models.Question(nil), followups...))
			resp.AgentMessage = followups[0].Text
			resp.FollowupQuestions = followups

		case sess.State.CurrentQuestionIndex+1 < len(sess.CurrentQuestionSet):
			sess.State.CurrentQuestionIndex++
			next := sess.CurrentQuestionSet[sess.State.CurrentQuestionIndex]
			resp.AgentMessage = next.Text
			resp.FollowupQuestions = []models.Question{next}

		case e.advisor.IsPhaseComplete(sess.State):
			status := models.PhaseCompletionStatus{
				Phase:                sess.State.CurrentPhase,
				CompletionPercentage: sess.State.CompletionScore * 100,
				QualityScore:         sess.State.CompletionScore,
				ReadyForTransition:   true,
			}
			suggestion := e.advisor.SuggestNextPhase(sess.State.CurrentPhase, status)
			resp.WorkflowSuggestions = []models.WorkflowSuggestion{suggestion}
			resp.AgentMessage = phaseCompleteMessage(sess.State.CurrentPhase, suggestion)

		default:
			cq := completionQuestion(sess.State.CurrentPhase)
			e.replaceQuestionSet(sess, []models.Question{cq})
			resp.AgentMessage = cq.Text
			resp.FollowupQuestions = []models.Question{cq}
		}
	}

	now := e.now()
	sess.LastActivity = now
	sess.State.LastUpdated = now

	meta := map[string]string{}
	if len(resp.FollowupQuestions) > 0 {
		meta = questionMeta(resp.FollowupQuestions[0])
	}
	if err := e.appendTurn(ctx, sessionID, models.TurnTypeQuestion, resp.AgentMessage, meta); err != nil {
		return nil, err
	}
	sess.State.QuestionsAsked++
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	resp.Progress = e.snapshot(ctx, sess, len(resp.FollowupQuestions))
	e.reportProgress(resp.Progress)

	e.logger.Debug("Engine turn processed", "sessionID", sessionID, "questionID", current.ID,
		"score", sess.State.CompletionScore, "followups", len(resp.FollowupQuestions),
		"suggestions", len(resp.WorkflowSuggestions))
	return resp, nil
}

// askAgain recovers from an out-of-range index by restarting at question 0.
func (e *Engine) askAgain(ctx context.Context, sess *models.ConversationSession, userResponse string) (*models.ConversationResponse, error) {
	e.logger.Warn("Engine question index out of range, resetting", "sessionID", sess.SessionID,
		"index", sess.State.CurrentQuestionIndex, "setSize", len(sess.CurrentQuestionSet))

	first := sess.CurrentQuestionSet[0]
	sess.State.CurrentQuestionIndex = 0
	sess.State.AnsweredQuestions[first.ID] = userResponse
	sess.State.CompletionScore = CalculateCompletionScore(sess.State)
	now := e.now()
	sess.LastActivity = now
	sess.State.LastUpdated = now

	msg := "I lost track of where we were, so I'm asking it again: " + first.Text
	if err := e.appendTurn(ctx, sess.SessionID, models.TurnTypeQuestion, msg, questionMeta(first)); err != nil {
		return nil, err
	}
	sess.State.QuestionsAsked++
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	resp := &models.ConversationResponse{
		AgentMessage:        msg,
		FollowupQuestions:   []models.Question{first},
		DocumentUpdates:     []models.DocumentUpdate{},
		WorkflowSuggestions: []models.WorkflowSuggestion{},
	}
	resp.Progress = e.snapshot(ctx, sess, len(sess.CurrentQuestionSet))
	e.reportProgress(resp.Progress)
	return resp, nil
}

// EndConversation marks the session inactive and summarizes it.
func (e *Engine) EndConversation(ctx context.Context, sessionID string) (*models.ConversationSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	summary, err := e.endConversation(ctx, sessionID)
	if err != nil {
		e.logger.Error("Engine EndConversation failed", "error", err, "sessionID", sessionID)
		return nil, wrapError(CodeEndConversationFailed, sessionID, err)
	}
	return summary, nil
}

func (e *Engine) endConversation(ctx context.Context, sessionID string) (*models.ConversationSummary, error) {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	sess.State.IsActive = false
	sess.State.LastUpdated = now
	sess.LastActivity = now
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	activeID, err := e.store.GetActiveSessionID(ctx, sess.AgentName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up active session: %w", err)
	}
	if activeID == sessionID {
		if err := e.store.ClearActiveSession(ctx, sess.AgentName); err != nil {
			return nil, fmt.Errorf("failed to clear active session: %w", err)
		}
	}

	score := sess.State.CompletionScore
	closing := fmt.Sprintf("Conversation ended with completion score %.2f", score)
	if err := e.appendTurn(ctx, sessionID, models.TurnTypeSystem, closing, map[string]string{
		models.MetaKeyEvent: "end",
		models.MetaKeyScore: fmt.Sprintf("%.2f", score),
	}); err != nil {
		return nil, err
	}

	summary := &models.ConversationSummary{
		SessionID:         sessionID,
		AgentName:         sess.AgentName,
		QuestionsAsked:    sess.State.QuestionsAsked,
		QuestionsAnswered: len(sess.State.AnsweredQuestions),
		Duration:          now.Sub(sess.CreatedAt),
		CompletionScore:   score,
		ExtractedData:     sess.Clone().State.ExtractedData,
	}
	e.logger.Info("Engine conversation ended", "sessionID", sessionID, "agent", sess.AgentName,
		"score", score, "asked", summary.QuestionsAsked, "answered", summary.QuestionsAnswered)
	return summary, nil
}

// PauseConversation marks the session inactive without releasing the agent's pointer.
func (e *Engine) PauseConversation(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.setActive(ctx, sessionID, false); err != nil {
		e.logger.Error("Engine PauseConversation failed", "error", err, "sessionID", sessionID)
		return wrapError(CodePauseConversationFailed, sessionID, err)
	}
	return nil
}

// ResumeConversation reactivates a paused session and makes it the agent's
// active session, ending whichever session held that slot.
func (e *Engine) ResumeConversation(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.setActive(ctx, sessionID, true); err != nil {
		e.logger.Error("Engine ResumeConversation failed", "error", err, "sessionID", sessionID)
		return wrapError(CodeResumeConversationFailed, sessionID, err)
	}
	return nil
}

func (e *Engine) setActive(ctx context.Context, sessionID string, active bool) error {
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return err
	}

	event := "pause"
	content := "Conversation paused"
	if active {
		event = "resume"
		content = "Conversation resumed"
		otherID, err := e.store.GetActiveSessionID(ctx, sess.AgentName)
		if err != nil {
			return fmt.Errorf("failed to look up active session: %w", err)
		}
		if otherID != "" && otherID != sessionID {
			if _, err := e.endConversation(ctx, otherID); err != nil && !errors.Is(err, ErrSessionNotFound) {
				return fmt.Errorf("failed to end session %s: %w", otherID, err)
			}
		}
		if err := e.store.SetActiveSession(ctx, sess.AgentName, sessionID); err != nil {
			return fmt.Errorf("failed to set active session: %w", err)
		}
	}

	now := e.now()
	sess.State.IsActive = active
	sess.State.LastUpdated = now
	sess.LastActivity = now
	if err := e.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if err := e.appendTurn(ctx, sessionID, models.TurnTypeSystem, content, map[string]string{models.MetaKeyEvent: event}); err != nil {
		return err
	}
	e.logger.Info("Engine conversation "+event+"d", "sessionID", sessionID, "agent", sess.AgentName)
	return nil
}

// GetSession returns the session, or nil if it does not exist.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.GetSession(ctx, sessionID)
}

// GetActiveSession returns the agent's active session, or nil if it has none.
func (e *Engine) GetActiveSession(ctx context.Context, agentName string) (*models.ConversationSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := e.store.GetActiveSessionID(ctx, agentName)
	if err != nil || id == "" {
		return nil, err
	}
	return e.store.GetSession(ctx, id)
}

// GetConversationHistory returns the session's turns in recorded order.
func (e *Engine) GetConversationHistory(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.loadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.store.GetTurns(ctx, sessionID)
}

// ListSessions returns all sessions, ended ones included.
func (e *Engine) ListSessions(ctx context.Context) ([]*models.ConversationSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListSessions(ctx)
}

// CalculateProgress returns the tracker's latest snapshot, falling back to one
// computed from the stored session.
func (e *Engine) CalculateProgress(ctx context.Context, sessionID string) (models.ProgressSnapshot, error) {
	if e.progress != nil {
		if snap, ok := e.progress.CalculateProgress(sessionID); ok {
			return snap, nil
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	sess, err := e.loadSession(ctx, sessionID)
	if err != nil {
		return models.ProgressSnapshot{}, err
	}
	remaining := len(sess.CurrentQuestionSet) - sess.State.CurrentQuestionIndex
	return e.snapshot(ctx, sess, remaining), nil
}

func (e *Engine) loadSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, newError(CodeSessionNotFound, sessionID, nil)
	}
	if sess.State.AnsweredQuestions == nil {
		sess.State.AnsweredQuestions = make(map[string]string)
	}
	if sess.State.ExtractedData == nil {
		sess.State.ExtractedData = make(map[string]string)
	}
	return sess, nil
}

func (e *Engine) appendTurn(ctx context.Context, sessionID string, typ models.TurnType, content string, meta map[string]string) error {
	turn := models.ConversationTurn{
		ID:        util.GenerateTurnID(),
		SessionID: sessionID,
		Timestamp: e.now(),
		Type:      typ,
		Content:   content,
		Metadata:  meta,
	}
	if err := e.store.AppendTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to append %s turn: %w", typ, err)
	}
	return nil
}

func (e *Engine) replaceQuestionSet(sess *models.ConversationSession, qs []models.Question) {
	sess.CurrentQuestionSet = qs
	sess.State.CurrentQuestionIndex = 0
}

// captureUpdates writes extracted entities to the session's document. Failures
// only cost the update list.
func (e *Engine) captureUpdates(ctx context.Context, sess *models.ConversationSession, q models.Question, response string, analysis models.AnalysisResult) []models.DocumentUpdate {
	updates := []models.DocumentUpdate{}
	if e.capture == nil || sess.Context.DocumentPath == "" {
		return updates
	}

	for _, ent := range analysis.ExtractedEntities {
		if ent.Type == "" || strings.TrimSpace(ent.Value) == "" {
			continue
		}
		updates = append(updates, models.DocumentUpdate{
			Section: SectionTitle(ent.Type),
			Content: ent.Value,
			Mode:    models.UpdateModeAppend,
		})
	}
	if len(updates) == 0 && q.Category != "" && !analysis.NeedsClarification && strings.TrimSpace(response) != "" {
		updates = append(updates, models.DocumentUpdate{
			Section: SectionTitle(q.Category),
			Content: strings.TrimSpace(response),
			Mode:    models.UpdateModeAppend,
		})
	}
	if len(updates) == 0 {
		return updates
	}

	result, err := e.capture.UpdateDocument(ctx, sess.Context.DocumentPath, updates)
	if err != nil || !result.Success {
		e.logger.Warn("Engine document update failed", "error", err, "captureError", result.Error,
			"sessionID", sess.SessionID, "path", sess.Context.DocumentPath)
		return []models.DocumentUpdate{}
	}
	return updates
}

func (e *Engine) snapshot(ctx context.Context, sess *models.ConversationSession, remaining int) models.ProgressSnapshot {
	return models.ProgressSnapshot{
		SessionID:              sess.SessionID,
		AgentName:              sess.AgentName,
		Phase:                  sess.State.CurrentPhase,
		CompletionScore:        sess.State.CompletionScore,
		QuestionsAsked:         sess.State.QuestionsAsked,
		QuestionsAnswered:      len(sess.State.AnsweredQuestions),
		EstimatedTimeRemaining: util.FormatDuration(util.EstimateConversationDuration(remaining)),
		UpdatedAt:              e.now(),
	}
}

func (e *Engine) pushProgress(sess *models.ConversationSession, asked, remaining int) {
	e.reportProgress(models.ProgressSnapshot{
		SessionID:              sess.SessionID,
		AgentName:              sess.AgentName,
		Phase:                  sess.State.CurrentPhase,
		QuestionsAsked:         min(asked, len(sess.CurrentQuestionSet)),
		EstimatedTimeRemaining: util.FormatDuration(util.EstimateConversationDuration(remaining)),
		UpdatedAt:              e.now(),
	})
}

func (e *Engine) reportProgress(snap models.ProgressSnapshot) {
	if e.progress != nil {
		e.progress.UpdateProgress(snap.SessionID, snap)
	}
}

func clarificationQuestion(original models.Question) models.Question {
	topic := original.Category
	if topic == "" {
		topic = "this"
	}
	return models.Question{
		ID:       util.GenerateQuestionID("clarify"),
		Text:     fmt.Sprintf("Could you add a bit more detail about %s?", topic),
		Kind:     models.QuestionKindOpen,
		Required: true,
		Category: original.Category,
		Priority: original.Priority,
	}
}

func completionQuestion(phase models.WorkflowPhase) models.Question {
	return models.Question{
		ID:       util.GenerateQuestionID("complete"),
		Text:     fmt.Sprintf("Is there anything else you'd like to add before we wrap up the %s phase?", phase),
		Kind:     models.QuestionKindOpen,
		Category: CompletionCategory,
	}
}

func phaseCompleteMessage(phase models.WorkflowPhase, s models.WorkflowSuggestion) string {
	if s.NextPhase == phase {
		return fmt.Sprintf("We've covered everything for the %s phase. %s", phase, s.Reason)
	}
	msg := fmt.Sprintf("We've covered everything for the %s phase. Next up is %s", phase, s.NextPhase)
	if s.RecommendedAgent != "" {
		msg += " with " + s.RecommendedAgent
	}
	msg += "."
	if s.Reason != "" {
		msg += " " + s.Reason
	}
	return msg
}

func questionMeta(q models.Question) map[string]string {
	meta := map[string]string{models.MetaKeyQuestionID: q.ID}
	if q.Category != "" {
		meta[models.MetaKeyCategory] = q.Category
	}
	return meta
}

// SectionTitle turns an entity type or category such as "target_users" into a
// document section title ("Target Users").
func SectionTitle(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

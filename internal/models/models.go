// Package models defines the core data structures for DocFlow.
//
// It includes questions, conversation sessions and turns, router metadata, and the
// workflow phase types shared across the engine, orchestrator, and router.
package models

import (
	"errors"
	"time"
)

// Validation constants for input validation
const (
	// MaxResponseLength defines the maximum accepted length of a single user response
	MaxResponseLength = 16384
	// MaxAgentNameLength defines the maximum allowed length for agent names
	MaxAgentNameLength = 64
)

// Error variables for better error handling and testability
var (
	ErrEmptyAgentName      = errors.New("agent name cannot be empty")
	ErrAgentNameTooLong    = errors.New("agent name exceeds maximum length")
	ErrEmptyQuestionID     = errors.New("question id cannot be empty")
	ErrEmptyQuestionText   = errors.New("question text cannot be empty")
	ErrInvalidQuestionKind = errors.New("invalid question kind")
	ErrResponseTooLong     = errors.New("response exceeds maximum length")
)

// Question is a single prompt put to the user. Questions are immutable once generated.
type Question struct {
	ID               string              `json:"id" yaml:"id"`
	Text             string              `json:"text" yaml:"text"`
	Kind             QuestionKind        `json:"kind" yaml:"kind"`
	Examples         []string            `json:"examples,omitempty" yaml:"examples,omitempty"`
	Required         bool                `json:"required" yaml:"required"`
	Category         string              `json:"category" yaml:"category"`
	Priority         int                 `json:"priority" yaml:"priority"`
	FollowupTriggers map[string][]string `json:"followup_triggers,omitempty" yaml:"followup_triggers,omitempty"` // keyword -> follow-up question IDs
}

// Validate checks if the question has all required fields.
func (q Question) Validate() error {
	if q.ID == "" {
		return ErrEmptyQuestionID
	}
	if q.Text == "" {
		return ErrEmptyQuestionText
	}
	if q.Kind != "" && !IsValidQuestionKind(q.Kind) {
		return ErrInvalidQuestionKind
	}
	return nil
}

// ConversationContext carries what the caller knows when a conversation starts.
type ConversationContext struct {
	DocumentPath string        `json:"document_path,omitempty"`
	TemplateID   string        `json:"template_id,omitempty"`
	Phase        WorkflowPhase `json:"phase,omitempty"`
	InitialInput string        `json:"initial_input,omitempty"`
}

// ConversationState is the mutable progress record of one session.
type ConversationState struct {
	SessionID            string            `json:"session_id"`
	AgentName            string            `json:"agent_name"`
	CurrentPhase         WorkflowPhase     `json:"current_phase"`
	CurrentQuestionIndex int               `json:"current_question_index"`
	AnsweredQuestions    map[string]string `json:"answered_questions"`
	ExtractedData        map[string]string `json:"extracted_data"`
	CompletionScore      float64           `json:"completion_score"`
	QuestionsAsked       int               `json:"questions_asked"` // survives turn-log trimming
	IsActive             bool              `json:"is_active"`
	LastUpdated          time.Time         `json:"last_updated"`
}

// ConversationSession is one conversation's state plus the question set currently in play.
type ConversationSession struct {
	SessionID          string              `json:"session_id"`
	AgentName          string              `json:"agent_name"`
	CurrentQuestionSet []Question          `json:"current_question_set"`
	State              ConversationState   `json:"state"`
	Context            ConversationContext `json:"context"`
	CreatedAt          time.Time           `json:"created_at"`
	LastActivity       time.Time           `json:"last_activity"`
}

// CurrentQuestion returns the question at the current index, if the index is valid.
func (s *ConversationSession) CurrentQuestion() (Question, bool) {
	idx := s.State.CurrentQuestionIndex
	if idx < 0 || idx >= len(s.CurrentQuestionSet) {
		return Question{}, false
	}
	return s.CurrentQuestionSet[idx], true
}

// Clone returns a deep copy so stores never share mutable maps with callers.
func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	c := *s
	c.CurrentQuestionSet = append([]Question(nil), s.CurrentQuestionSet...)
	c.State.AnsweredQuestions = cloneStringMap(s.State.AnsweredQuestions)
	c.State.ExtractedData = cloneStringMap(s.State.ExtractedData)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ConversationTurn is one append-only entry in a session's history.
type ConversationTurn struct {
	ID        string            `json:"id"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      TurnType          `json:"type"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionMetadata is the router's view of a session, independent of engine internals.
type SessionMetadata struct {
	SessionID     string    `json:"session_id"`
	AgentName     string    `json:"agent_name"`
	DocumentPath  string    `json:"document_path,omitempty"`
	TemplateID    string    `json:"template_id,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	LastActivity  time.Time `json:"last_activity"`
	QuestionCount int       `json:"question_count"`
	ResponseCount int       `json:"response_count"`
}

// ExtractedEntity is one typed value pulled out of a free-text response.
type ExtractedEntity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// AnalysisResult is what a response analyzer reports about one answer.
type AnalysisResult struct {
	ExtractedEntities  []ExtractedEntity `json:"extracted_entities"`
	NeedsClarification bool              `json:"needs_clarification"`
	SuggestedFollowups []string          `json:"suggested_followups,omitempty"`
	Completeness       float64           `json:"completeness"`
	Confidence         float64           `json:"confidence"`
}

// DocumentUpdate describes a change to one section of the document being authored.
type DocumentUpdate struct {
	Section string     `json:"section"`
	Content string     `json:"content"`
	Mode    UpdateMode `json:"mode"`
}

// CaptureResult reports the outcome of a document update.
type CaptureResult struct {
	Success         bool     `json:"success"`
	SectionsUpdated []string `json:"sections_updated,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// ProgressSnapshot is a point-in-time view of a session's progress.
type ProgressSnapshot struct {
	SessionID              string        `json:"session_id"`
	AgentName              string        `json:"agent_name"`
	Phase                  WorkflowPhase `json:"phase"`
	CompletionScore        float64       `json:"completion_score"`
	QuestionsAsked         int           `json:"questions_asked"`
	QuestionsAnswered      int           `json:"questions_answered"`
	EstimatedTimeRemaining string        `json:"estimated_time_remaining,omitempty"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// ConversationResponse is what the engine hands back after each user response.
type ConversationResponse struct {
	AgentMessage        string               `json:"agent_message"`
	FollowupQuestions   []Question           `json:"followup_questions"`
	DocumentUpdates     []DocumentUpdate     `json:"document_updates"`
	WorkflowSuggestions []WorkflowSuggestion `json:"workflow_suggestions"`
	Progress            ProgressSnapshot     `json:"progress"`
}

// ConversationSummary is returned when a conversation ends.
type ConversationSummary struct {
	SessionID         string            `json:"session_id"`
	AgentName         string            `json:"agent_name"`
	QuestionsAsked    int               `json:"questions_asked"`
	QuestionsAnswered int               `json:"questions_answered"`
	Duration          time.Duration     `json:"duration"`
	CompletionScore   float64           `json:"completion_score"`
	ExtractedData     map[string]string `json:"extracted_data,omitempty"`
}

// Agent is a named persona responsible for one workflow phase.
type Agent struct {
	Name         string        `json:"name" yaml:"name"`
	DisplayName  string        `json:"display_name" yaml:"display_name"`
	Description  string        `json:"description" yaml:"description"`
	Phase        WorkflowPhase `json:"phase" yaml:"phase"`
	SystemPrompt string        `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
}

// Validate checks if the agent definition is usable.
func (a Agent) Validate() error {
	if a.Name == "" {
		return ErrEmptyAgentName
	}
	if len(a.Name) > MaxAgentNameLength {
		return ErrAgentNameTooLong
	}
	return nil
}

// Package agents holds the agent personas and answers free text addressed to
// the selected agent outside of a structured conversation.
package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/BTreeMap/DocFlow/internal/genai"
	"github.com/BTreeMap/DocFlow/internal/models"
)

// PromptGenerator is the language-model call the directory uses for replies.
type PromptGenerator interface {
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// DefaultAgents are the built-in personas, one per workflow phase.
func DefaultAgents() []models.Agent {
	return []models.Agent{
		{
			Name:         "prd-creator",
			DisplayName:  "PRD Creator",
			Description:  "Shapes the product concept into a product requirements document.",
			Phase:        models.PhaseConcept,
			SystemPrompt: "You are a product manager helping a team write a concise PRD. Ask about the problem, users, goals and success metrics.",
		},
		{
			Name:         "requirements-gatherer",
			DisplayName:  "Requirements Gatherer",
			Description:  "Turns the concept into functional and non-functional requirements.",
			Phase:        models.PhaseRequirements,
			SystemPrompt: "You are a business analyst. Help turn product goals into precise, testable requirements and user stories.",
		},
		{
			Name:         "solution-architect",
			DisplayName:  "Solution Architect",
			Description:  "Designs the architecture, components and data model.",
			Phase:        models.PhaseDesign,
			SystemPrompt: "You are a pragmatic software architect. Propose simple designs and call out tradeoffs.",
		},
		{
			Name:         "specification-writer",
			DisplayName:  "Specification Writer",
			Description:  "Breaks the design into an implementation plan and tasks.",
			Phase:        models.PhaseImplementation,
			SystemPrompt: "You are a tech lead writing an implementation plan. Be concrete about tasks, testing and rollout.",
		},
	}
}

// Directory is the set of known agents plus the currently selected one.
type Directory struct {
	mu      sync.RWMutex
	agents  map[string]models.Agent
	current string
	llm     PromptGenerator
	logger  *slog.Logger
}

// NewDirectory creates a directory. llm may be nil, in which case free-text
// requests get a canned reply.
func NewDirectory(agents []models.Agent, llm PromptGenerator) (*Directory, error) {
	d := &Directory{
		agents: make(map[string]models.Agent, len(agents)),
		llm:    llm,
		logger: slog.Default().With("component", "agents"),
	}
	for _, a := range agents {
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("invalid agent %q: %w", a.Name, err)
		}
		if _, dup := d.agents[a.Name]; dup {
			return nil, fmt.Errorf("duplicate agent %q", a.Name)
		}
		d.agents[a.Name] = a
	}
	return d, nil
}

// Select makes name the current agent.
func (d *Directory) Select(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.agents[name]; !ok {
		return fmt.Errorf("unknown agent %q", name)
	}
	d.current = name
	return nil
}

// ClearSelection deselects the current agent.
func (d *Directory) ClearSelection() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = ""
}

// CurrentAgent returns the selected agent.
func (d *Directory) CurrentAgent() (models.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[d.current]
	return a, ok
}

// GetAgent looks an agent up by name.
func (d *Directory) GetAgent(name string) (models.Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.agents[name]
	return a, ok
}

// AgentForPhase returns the first agent responsible for phase.
func (d *Directory) AgentForPhase(phase models.WorkflowPhase) (models.Agent, bool) {
	for _, a := range d.List() {
		if a.Phase == phase {
			return a, true
		}
	}
	return models.Agent{}, false
}

// List returns all agents sorted by name.
func (d *Directory) List() []models.Agent {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Agent, 0, len(d.agents))
	for _, a := range d.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HandleRequest answers free text as the named agent.
func (d *Directory) HandleRequest(ctx context.Context, agentName, text string) (string, error) {
	a, ok := d.GetAgent(agentName)
	if !ok {
		return "", fmt.Errorf("unknown agent %q", agentName)
	}
	if d.llm == nil {
		return fmt.Sprintf("%s here. Start a conversation to work on the %s phase together.", a.DisplayName, a.Phase), nil
	}

	reply, err := d.llm.GeneratePrompt(ctx, a.SystemPrompt, text)
	if err != nil {
		if !errors.Is(err, genai.ErrCancelled) {
			d.logger.Error("Directory HandleRequest failed", "error", err, "agent", agentName)
		}
		return "", fmt.Errorf("agent %s could not answer: %w", agentName, err)
	}
	return reply, nil
}

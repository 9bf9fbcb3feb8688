// Package autosession tracks whether free text should implicitly go to the
// last selected agent. The flag expires after a period of inactivity and is
// persisted to a key-value store so it survives restarts.
package autosession

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/store"
)

// Defaults.
const (
	DefaultTimeout = 30 * time.Minute
	DefaultKey     = "autosession.state"
)

// Context is what the auto-session is bound to.
type Context struct {
	AgentName    string    `json:"agentName"`
	DocumentPath string    `json:"documentPath,omitempty"`
	EnabledAt    time.Time `json:"enabledAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// State is the persisted record.
type State struct {
	IsActive     bool     `json:"isActive"`
	Context      *Context `json:"context,omitempty"`
	MessageCount int      `json:"messageCount"`
}

// Manager owns the auto-session record.
type Manager struct {
	mu      sync.Mutex
	kv      store.KVStore
	key     string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTimeout sets the inactivity timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithKey sets the storage key.
func WithKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager persisting to kv.
func NewManager(kv store.KVStore, opts ...Option) *Manager {
	m := &Manager{
		kv:      kv,
		key:     DefaultKey,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "autosession")
	return m
}

// Enable starts an auto-session for agentName, replacing any existing one.
func (m *Manager) Enable(ctx context.Context, agentName, documentPath string) error {
	if agentName == "" {
		return fmt.Errorf("agent name cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	st := State{
		IsActive: true,
		Context: &Context{
			AgentName:    agentName,
			DocumentPath: documentPath,
			EnabledAt:    now,
			LastActivity: now,
		},
	}
	if err := m.save(ctx, st); err != nil {
		return err
	}
	m.logger.Info("AutoSession enabled", "agent", agentName, "documentPath", documentPath)
	return nil
}

// Disable clears the auto-session.
func (m *Manager) Disable(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.kv.Delete(ctx, m.key); err != nil {
		return fmt.Errorf("failed to clear auto-session: %w", err)
	}
	m.logger.Info("AutoSession disabled")
	return nil
}

// IsAutoChatActive reports whether the auto-session is live. An expired
// session is cleared by the same call.
func (m *Manager) IsAutoChatActive(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.current(ctx)
	if err != nil {
		return false, err
	}
	return st.IsActive, nil
}

// RecordActivity bumps the last-activity time and message count. It is a
// no-op when no auto-session is live.
func (m *Manager) RecordActivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.current(ctx)
	if err != nil || !st.IsActive {
		return err
	}
	st.Context.LastActivity = m.now()
	st.MessageCount++
	return m.save(ctx, st)
}

// CurrentAgent returns the agent free text goes to while the auto-session is live.
func (m *Manager) CurrentAgent(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, err := m.current(ctx)
	if err != nil || !st.IsActive {
		return "", false, err
	}
	return st.Context.AgentName, true, nil
}

// AgentSelector is the part of an agent directory SelectFallbackAgent needs.
type AgentSelector interface {
	CurrentAgent() (models.Agent, bool)
	Select(name string) error
}

// SelectFallbackAgent selects the auto-session agent when no agent is
// selected. It returns the agent now selected, or "" if there is none.
func (m *Manager) SelectFallbackAgent(ctx context.Context, sel AgentSelector) (string, error) {
	if a, ok := sel.CurrentAgent(); ok {
		return a.Name, nil
	}
	name, ok, err := m.CurrentAgent(ctx)
	if err != nil || !ok {
		return "", err
	}
	if err := sel.Select(name); err != nil {
		return "", fmt.Errorf("auto-session agent %q: %w", name, err)
	}
	m.logger.Debug("AutoSession fallback agent selected", "agent", name)
	return name, nil
}

// State returns the live record, applying expiry first.
func (m *Manager) State(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current(ctx)
}

// SetTimeout changes the inactivity timeout. Values <= 0 are ignored.
func (m *Manager) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = d
}

// current loads the record and expires it if idle past the timeout. Callers hold m.mu.
func (m *Manager) current(ctx context.Context) (State, error) {
	raw, ok, err := m.kv.Get(ctx, m.key)
	if err != nil {
		return State{}, fmt.Errorf("failed to load auto-session: %w", err)
	}
	if !ok {
		return State{}, nil
	}

	var st State
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		m.logger.Warn("AutoSession discarding unreadable record", "error", err)
		return State{}, m.kv.Delete(ctx, m.key)
	}
	if !st.IsActive || st.Context == nil {
		return State{}, nil
	}

	if idle := m.now().Sub(st.Context.LastActivity); idle > m.timeout {
		m.logger.Info("AutoSession expired", "agent", st.Context.AgentName, "idle", idle)
		if err := m.kv.Delete(ctx, m.key); err != nil {
			return State{}, fmt.Errorf("failed to clear expired auto-session: %w", err)
		}
		return State{}, nil
	}
	return st, nil
}

func (m *Manager) save(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode auto-session: %w", err)
	}
	if err := m.kv.Set(ctx, m.key, string(data)); err != nil {
		return fmt.Errorf("failed to save auto-session: %w", err)
	}
	return nil
}

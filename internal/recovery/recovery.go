// Package recovery restores conversation state after a restart. Components
// register Recoverable implementations; infrastructure (the session router)
// registers callbacks that receive each recovered session.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
	"github.com/BTreeMap/DocFlow/internal/store"
)

// Recoverable defines the interface for components that can recover their state
type Recoverable interface {
	// RecoverState is called during application startup to restore component state
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// SessionRecoveryInfo describes one session that was active when the process stopped.
type SessionRecoveryInfo struct {
	Session      *models.ConversationSession
	SessionID    string
	AgentName    string
	DocumentPath string
	Phase        models.WorkflowPhase
	LastActivity time.Time
}

// RecoveryRegistry provides services that components can use during recovery
type RecoveryRegistry struct {
	store        store.SessionStore
	sessionInfos []SessionRecoveryInfo

	sessionRecoveryFunc func(SessionRecoveryInfo) error
}

// NewRecoveryRegistry creates a new recovery registry
func NewRecoveryRegistry(st store.SessionStore) *RecoveryRegistry {
	return &RecoveryRegistry{
		store:        st,
		sessionInfos: make([]SessionRecoveryInfo, 0),
	}
}

// RegisterSessionRecovery registers the callback that receives recovered sessions
func (r *RecoveryRegistry) RegisterSessionRecovery(fn func(SessionRecoveryInfo) error) {
	r.sessionRecoveryFunc = fn
}

// RecoverSession hands a recovered session to the registered callback
func (r *RecoveryRegistry) RecoverSession(info SessionRecoveryInfo) error {
	if r.sessionRecoveryFunc == nil {
		return fmt.Errorf("no session recovery handler registered")
	}
	if err := r.sessionRecoveryFunc(info); err != nil {
		return err
	}
	r.sessionInfos = append(r.sessionInfos, info)
	return nil
}

// RecoveredSessions lists sessions recovered so far, in recovery order
func (r *RecoveryRegistry) RecoveredSessions() []SessionRecoveryInfo {
	return append([]SessionRecoveryInfo(nil), r.sessionInfos...)
}

// GetStore provides access to the store for recovery operations
func (r *RecoveryRegistry) GetStore() store.SessionStore {
	return r.store
}

// RecoveryManager orchestrates recovery of all registered components
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []Recoverable
}

// NewRecoveryManager creates a new recovery manager
func NewRecoveryManager(st store.SessionStore) *RecoveryManager {
	return &RecoveryManager{
		registry:     NewRecoveryRegistry(st),
		recoverables: make([]Recoverable, 0),
	}
}

// RegisterRecoverable adds a component that can be recovered
func (rm *RecoveryManager) RegisterRecoverable(r Recoverable) {
	rm.recoverables = append(rm.recoverables, r)
}

// RegisterSessionRecovery registers the session recovery infrastructure
func (rm *RecoveryManager) RegisterSessionRecovery(fn func(SessionRecoveryInfo) error) {
	rm.registry.RegisterSessionRecovery(fn)
}

// RecoverAll performs recovery of all registered components
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting application recovery", "components", len(rm.recoverables))

	recoveredCount := 0
	errorCount := 0

	for _, recoverable := range rm.recoverables {
		if err := recoverable.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("Component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Info("Application recovery completed", "recovered", recoveredCount, "errors", errorCount,
		"sessions", len(rm.registry.sessionInfos))

	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(rm.recoverables))
	}

	return nil
}

// GetRegistry provides access to the recovery registry for infrastructure setup
func (rm *RecoveryManager) GetRegistry() *RecoveryRegistry {
	return rm.registry
}

// ActiveSessionRecovery recovers every session an agent's active pointer still
// references. Pointers to missing or ended sessions are cleared. Sessions are
// recovered oldest activity first, so the most recent one is handled last.
type ActiveSessionRecovery struct{}

func (ActiveSessionRecovery) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	st := registry.GetStore()
	pointers, err := st.ListActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active sessions: %w", err)
	}

	var infos []SessionRecoveryInfo
	for agent, sessionID := range pointers {
		sess, err := st.GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}
		if sess == nil || !sess.State.IsActive {
			slog.Warn("Clearing stale active session pointer", "agent", agent, "sessionID", sessionID)
			if err := st.ClearActiveSession(ctx, agent); err != nil {
				return fmt.Errorf("failed to clear stale pointer for %s: %w", agent, err)
			}
			continue
		}
		infos = append(infos, SessionRecoveryInfo{
			Session:      sess,
			SessionID:    sess.SessionID,
			AgentName:    sess.AgentName,
			DocumentPath: sess.Context.DocumentPath,
			Phase:        sess.State.CurrentPhase,
			LastActivity: sess.LastActivity,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].LastActivity.Before(infos[j].LastActivity) })

	for _, info := range infos {
		if err := registry.RecoverSession(info); err != nil {
			return fmt.Errorf("failed to recover session %s: %w", info.SessionID, err)
		}
	}
	return nil
}

package recovery

import (
	"fmt"
	"log/slog"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// SessionAdopter is the router side of session recovery.
type SessionAdopter interface {
	AdoptSession(sess *models.ConversationSession, makeActive bool)
}

// RouterRecoveryHandler returns a callback that registers each recovered
// session with the router. Every session is made active in turn, so the last
// one recovered ends up as the routing target.
func RouterRecoveryHandler(router SessionAdopter) func(SessionRecoveryInfo) error {
	return func(info SessionRecoveryInfo) error {
		if info.Session == nil {
			return fmt.Errorf("session %s has no state to recover", info.SessionID)
		}
		slog.Info("Recovering session",
			"sessionID", info.SessionID,
			"agent", info.AgentName,
			"phase", info.Phase,
			"lastActivity", info.LastActivity)

		router.AdoptSession(info.Session, true)
		return nil
	}
}

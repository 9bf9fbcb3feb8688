// Package store provides storage backends for DocFlow.
//
// It includes an in-memory store (the default, nothing survives a restart) and
// SQLite/PostgreSQL stores for sessions, turn history, per-agent active-session
// pointers, and the small key-value records the auto-session manager persists.
package store

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// SessionStore holds conversation sessions, their turn logs, and active pointers.
type SessionStore interface {
	// SaveSession inserts or replaces a session
	SaveSession(ctx context.Context, s *models.ConversationSession) error
	// GetSession returns the session or nil if it does not exist
	GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error)
	// ListSessions returns every known session, ordered by creation time
	ListSessions(ctx context.Context) ([]*models.ConversationSession, error)

	// AppendTurn appends a turn to the session's history
	AppendTurn(ctx context.Context, turn models.ConversationTurn) error
	// GetTurns returns the session's history in recorded order
	GetTurns(ctx context.Context, sessionID string) ([]models.ConversationTurn, error)

	// SetActiveSession points an agent at a session
	SetActiveSession(ctx context.Context, agentName, sessionID string) error
	// GetActiveSessionID returns the agent's active session ID or "" if none
	GetActiveSessionID(ctx context.Context, agentName string) (string, error)
	// ClearActiveSession removes the agent's active pointer
	ClearActiveSession(ctx context.Context, agentName string) error
	// ListActiveSessions returns agent name -> session ID for every pointer
	ListActiveSessions(ctx context.Context) (map[string]string, error)
}

// KVStore is the host key-value store small records are persisted to.
type KVStore interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store combines session storage with key-value storage.
type Store interface {
	SessionStore
	KVStore
	Close() error
}

// Opts holds configuration shared by store implementations.
type Opts struct {
	DSN                string
	MaxTurnsPerSession int // 0 keeps every turn
}

// Option configures a store.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithMaxTurnsPerSession caps each session's turn log. The opening turn is always kept.
func WithMaxTurnsPerSession(n int) Option {
	return func(o *Opts) {
		if n < 0 {
			n = 0
		}
		o.MaxTurnsPerSession = n
	}
}

// DetectDSNType reports "postgres" for PostgreSQL URLs or keyword DSNs and "sqlite" otherwise.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") || strings.Contains(d, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// Open returns the store the DSN points at, or an in-memory store when dsn is empty.
func Open(dsn string, opts ...Option) (Store, error) {
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return NewInMemoryStore(opts...), nil
	}
	if DetectDSNType(dsn) == "postgres" {
		st, err := NewPostgresStore(append(opts, WithPostgresDSN(dsn))...)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := NewSQLiteStore(append(opts, WithSQLiteDSN(dsn))...)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// InMemoryStore keeps everything in process memory. One RWMutex guards all maps.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.ConversationSession
	turns    map[string][]models.ConversationTurn
	active   map[string]string
	kv       map[string]string
	maxTurns int
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	return &InMemoryStore{
		sessions: make(map[string]*models.ConversationSession),
		turns:    make(map[string][]models.ConversationTurn),
		active:   make(map[string]string),
		kv:       make(map[string]string),
		maxTurns: cfg.MaxTurnsPerSession,
	}
}

var _ Store = (*InMemoryStore)(nil)

func (s *InMemoryStore) SaveSession(ctx context.Context, sess *models.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.SessionID] = sess.Clone()
	return nil
}

func (s *InMemoryStore) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) ListSessions(ctx context.Context) ([]*models.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ConversationSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) AppendTurn(ctx context.Context, turn models.ConversationTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.turns[turn.SessionID], turn)
	s.turns[turn.SessionID] = trimTurns(turns, s.maxTurns)
	return nil
}

// trimTurns keeps the first turn plus the newest limit-1 turns.
func trimTurns(turns []models.ConversationTurn, limit int) []models.ConversationTurn {
	if limit <= 0 || len(turns) <= limit {
		return turns
	}
	if limit == 1 {
		return turns[:1]
	}
	kept := make([]models.ConversationTurn, 0, limit)
	kept = append(kept, turns[0])
	kept = append(kept, turns[len(turns)-(limit-1):]...)
	return kept
}

func (s *InMemoryStore) GetTurns(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ConversationTurn(nil), s.turns[sessionID]...), nil
}

func (s *InMemoryStore) SetActiveSession(ctx context.Context, agentName, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[agentName] = sessionID
	return nil
}

func (s *InMemoryStore) GetActiveSessionID(ctx context.Context, agentName string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[agentName], nil
}

func (s *InMemoryStore) ClearActiveSession(ctx context.Context, agentName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, agentName)
	return nil
}

func (s *InMemoryStore) ListActiveSessions(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.active))
	for k, v := range s.active {
		out[k] = v
	}
	return out, nil
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	return v, ok, nil
}

func (s *InMemoryStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv[key] = value
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.kv, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

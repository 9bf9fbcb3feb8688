package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/DocFlow/internal/models"
)

// sqlBackend implements Store over database/sql. Queries are written with "?"
// placeholders and rebound for drivers that need numbered ones.
type sqlBackend struct {
	db       *sql.DB
	name     string
	numbered bool
	maxTurns int
}

// rebind rewrites "?" placeholders to "$1", "$2", ... when the driver needs it.
func (b *sqlBackend) rebind(query string) string {
	if !b.numbered {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (b *sqlBackend) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.rebind(query), args...)
}

func (b *sqlBackend) SaveSession(ctx context.Context, s *models.ConversationSession) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.SessionID, err)
	}
	_, err = b.exec(ctx, `INSERT INTO conversation_sessions (session_id, agent_name, is_active, payload, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			agent_name = excluded.agent_name,
			is_active = excluded.is_active,
			payload = excluded.payload,
			last_activity = excluded.last_activity`,
		s.SessionID, s.AgentName, s.State.IsActive, string(payload), s.CreatedAt.UnixNano(), s.LastActivity.UnixNano())
	if err != nil {
		slog.Error(b.name+" SaveSession failed", "error", err, "sessionID", s.SessionID)
		return fmt.Errorf("failed to save session %s: %w", s.SessionID, err)
	}
	slog.Debug(b.name+" SaveSession succeeded", "sessionID", s.SessionID, "active", s.State.IsActive)
	return nil
}

func (b *sqlBackend) GetSession(ctx context.Context, sessionID string) (*models.ConversationSession, error) {
	var payload string
	err := b.db.QueryRowContext(ctx, b.rebind(`SELECT payload FROM conversation_sessions WHERE session_id = ?`), sessionID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error(b.name+" GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return decodeSession(payload)
}

func (b *sqlBackend) ListSessions(ctx context.Context) ([]*models.ConversationSession, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT payload FROM conversation_sessions ORDER BY created_at ASC`)
	if err != nil {
		slog.Error(b.name+" ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ConversationSession
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		s, err := decodeSession(payload)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug(b.name+" ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

func decodeSession(payload string) (*models.ConversationSession, error) {
	var s models.ConversationSession
	if err := json.Unmarshal([]byte(payload), &s); err != nil {
		return nil, fmt.Errorf("failed to decode session payload: %w", err)
	}
	if s.State.AnsweredQuestions == nil {
		s.State.AnsweredQuestions = make(map[string]string)
	}
	if s.State.ExtractedData == nil {
		s.State.ExtractedData = make(map[string]string)
	}
	return &s, nil
}

func (b *sqlBackend) AppendTurn(ctx context.Context, turn models.ConversationTurn) error {
	var meta any
	if len(turn.Metadata) > 0 {
		raw, err := json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode turn metadata: %w", err)
		}
		meta = string(raw)
	}
	_, err := b.exec(ctx, `INSERT INTO conversation_turns (turn_id, session_id, turn_type, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.SessionID, string(turn.Type), turn.Content, meta, turn.Timestamp.UnixNano())
	if err != nil {
		slog.Error(b.name+" AppendTurn failed", "error", err, "sessionID", turn.SessionID, "type", turn.Type)
		return fmt.Errorf("failed to append turn for %s: %w", turn.SessionID, err)
	}
	if b.maxTurns > 0 {
		if err := b.trimTurns(ctx, turn.SessionID); err != nil {
			slog.Warn(b.name+" turn retention failed", "error", err, "sessionID", turn.SessionID)
		}
	}
	return nil
}

// trimTurns keeps the session's first turn plus the newest maxTurns-1 turns.
func (b *sqlBackend) trimTurns(ctx context.Context, sessionID string) error {
	keepNewest := b.maxTurns - 1
	_, err := b.exec(ctx, `DELETE FROM conversation_turns
		WHERE session_id = ?
		AND seq <> (SELECT MIN(seq) FROM conversation_turns WHERE session_id = ?)
		AND seq NOT IN (SELECT seq FROM conversation_turns WHERE session_id = ? ORDER BY seq DESC LIMIT ?)`,
		sessionID, sessionID, sessionID, keepNewest)
	return err
}

func (b *sqlBackend) GetTurns(ctx context.Context, sessionID string) ([]models.ConversationTurn, error) {
	rows, err := b.db.QueryContext(ctx, b.rebind(`SELECT turn_id, session_id, turn_type, content, metadata, created_at
		FROM conversation_turns WHERE session_id = ? ORDER BY seq ASC`), sessionID)
	if err != nil {
		slog.Error(b.name+" GetTurns query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	return turns, nil
}

// scanTurn scans a ConversationTurn from sql.Rows.
func scanTurn(rows *sql.Rows) (models.ConversationTurn, error) {
	var t models.ConversationTurn
	var turnType string
	var meta sql.NullString
	var ts int64
	if err := rows.Scan(&t.ID, &t.SessionID, &turnType, &t.Content, &meta, &ts); err != nil {
		return t, fmt.Errorf("scan turn failed: %w", err)
	}
	t.Type = models.TurnType(turnType)
	t.Timestamp = time.Unix(0, ts)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &t.Metadata); err != nil {
			return t, fmt.Errorf("decode turn metadata failed: %w", err)
		}
	}
	return t, nil
}

func (b *sqlBackend) SetActiveSession(ctx context.Context, agentName, sessionID string) error {
	_, err := b.exec(ctx, `INSERT INTO active_sessions (agent_name, session_id, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (agent_name) DO UPDATE SET session_id = excluded.session_id, updated_at = excluded.updated_at`,
		agentName, sessionID, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set active session for %s: %w", agentName, err)
	}
	return nil
}

func (b *sqlBackend) GetActiveSessionID(ctx context.Context, agentName string) (string, error) {
	var id string
	err := b.db.QueryRowContext(ctx, b.rebind(`SELECT session_id FROM active_sessions WHERE agent_name = ?`), agentName).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get active session for %s: %w", agentName, err)
	}
	return id, nil
}

func (b *sqlBackend) ClearActiveSession(ctx context.Context, agentName string) error {
	if _, err := b.exec(ctx, `DELETE FROM active_sessions WHERE agent_name = ?`, agentName); err != nil {
		return fmt.Errorf("failed to clear active session for %s: %w", agentName, err)
	}
	return nil
}

func (b *sqlBackend) ListActiveSessions(ctx context.Context) (map[string]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT agent_name, session_id FROM active_sessions`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var agent, id string
		if err := rows.Scan(&agent, &id); err != nil {
			return nil, fmt.Errorf("failed to scan active session row: %w", err)
		}
		out[agent] = id
	}
	return out, rows.Err()
}

func (b *sqlBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := b.db.QueryRowContext(ctx, b.rebind(`SELECT value FROM kv_store WHERE key = ?`), key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return v, true, nil
}

func (b *sqlBackend) Set(ctx context.Context, key, value string) error {
	_, err := b.exec(ctx, `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (b *sqlBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.exec(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (b *sqlBackend) Close() error {
	slog.Debug(b.name + " closing database")
	return b.db.Close()
}

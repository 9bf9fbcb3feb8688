package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/DocFlow/internal/models"
)

func newTestSession(id, agent string, created time.Time) *models.ConversationSession {
	return &models.ConversationSession{
		SessionID:          id,
		AgentName:          agent,
		CurrentQuestionSet: []models.Question{{ID: "q1", Text: "What problem are we solving?", Kind: models.QuestionKindOpen}},
		State: models.ConversationState{
			SessionID:         id,
			AgentName:         agent,
			CurrentPhase:      models.PhaseConcept,
			AnsweredQuestions: map[string]string{},
			ExtractedData:     map[string]string{},
			IsActive:          true,
			LastUpdated:       created,
		},
		CreatedAt:    created,
		LastActivity: created,
	}
}

func turn(sessionID, id string, typ models.TurnType, content string) models.ConversationTurn {
	return models.ConversationTurn{ID: id, SessionID: sessionID, Type: typ, Content: content, Timestamp: time.Now()}
}

// exerciseStore runs the same contract checks against any Store implementation.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	missing, err := s.GetSession(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := newTestSession("s1", "prd-creator", base)
	second := newTestSession("s2", "solution-architect", base.Add(time.Minute))
	require.NoError(t, s.SaveSession(ctx, second))
	require.NoError(t, s.SaveSession(ctx, first))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "prd-creator", got.AgentName)
	assert.Len(t, got.CurrentQuestionSet, 1)
	assert.True(t, got.State.IsActive)

	got.State.AnsweredQuestions["q1"] = "a parking app"
	got.State.IsActive = false
	require.NoError(t, s.SaveSession(ctx, got))

	reloaded, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, reloaded.State.IsActive)
	assert.Equal(t, "a parking app", reloaded.State.AnsweredQuestions["q1"])

	all, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s1", all[0].SessionID, "sessions are ordered by creation time")

	require.NoError(t, s.AppendTurn(ctx, turn("s1", "t1", models.TurnTypeSystem, "start")))
	require.NoError(t, s.AppendTurn(ctx, turn("s1", "t2", models.TurnTypeResponse, "hello")))
	q := turn("s1", "t3", models.TurnTypeQuestion, "next?")
	q.Metadata = map[string]string{models.MetaKeyQuestionID: "q2"}
	require.NoError(t, s.AppendTurn(ctx, q))

	turns, err := s.GetTurns(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, models.TurnTypeSystem, turns[0].Type)
	assert.Equal(t, "q2", turns[2].Metadata[models.MetaKeyQuestionID])

	id, err := s.GetActiveSessionID(ctx, "prd-creator")
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, s.SetActiveSession(ctx, "prd-creator", "s1"))
	require.NoError(t, s.SetActiveSession(ctx, "prd-creator", "s3"))
	id, err = s.GetActiveSessionID(ctx, "prd-creator")
	require.NoError(t, err)
	assert.Equal(t, "s3", id)

	active, err := s.ListActiveSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"prd-creator": "s3"}, active)

	require.NoError(t, s.ClearActiveSession(ctx, "prd-creator"))
	id, err = s.GetActiveSessionID(ctx, "prd-creator")
	require.NoError(t, err)
	assert.Empty(t, id)

	_, ok, err := s.Get(ctx, "autosession")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, s.Set(ctx, "autosession", `{"isActive":true}`))
	require.NoError(t, s.Set(ctx, "autosession", `{"isActive":false}`))
	v, ok, err := s.Get(ctx, "autosession")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"isActive":false}`, v)
	require.NoError(t, s.Delete(ctx, "autosession"))
	_, ok, err = s.Get(ctx, "autosession")
	require.NoError(t, err)
	assert.False(t, ok)
}

func exerciseRetention(t *testing.T, s Store) {
	ctx := context.Background()
	for i, typ := range []models.TurnType{
		models.TurnTypeSystem, models.TurnTypeResponse, models.TurnTypeQuestion,
		models.TurnTypeResponse, models.TurnTypeQuestion,
	} {
		require.NoError(t, s.AppendTurn(ctx, turn("r1", "rt"+string(rune('a'+i)), typ, "turn")))
	}
	turns, err := s.GetTurns(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "rta", turns[0].ID, "opening turn is always kept")
	assert.Equal(t, "rtd", turns[1].ID)
	assert.Equal(t, "rte", turns[2].ID)
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestInMemoryStore_Retention(t *testing.T) {
	exerciseRetention(t, NewInMemoryStore(WithMaxTurnsPerSession(3)))
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.SaveSession(ctx, newTestSession("s1", "prd-creator", time.Now())))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	got.State.ExtractedData["target_users"] = "drivers"

	again, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, again.State.ExtractedData, "mutating a returned session must not leak into the store")
}

func createTestSQLiteStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "docflow.db")
	s, err := NewSQLiteStore(append(opts, WithSQLiteDSN(dbPath))...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, createTestSQLiteStore(t))
}

func TestSQLiteStore_Retention(t *testing.T) {
	exerciseRetention(t, createTestSQLiteStore(t, WithMaxTurnsPerSession(3)))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "docflow.db")

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	require.NoError(t, err)
	require.NoError(t, s1.SaveSession(ctx, newTestSession("s1", "prd-creator", time.Now())))
	require.NoError(t, s1.SetActiveSession(ctx, "prd-creator", "s1"))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	id, err := s2.GetActiveSessionID(ctx, "prd-creator")
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
}

func TestNewSQLiteStore_RequiresDSN(t *testing.T) {
	_, err := NewSQLiteStore()
	assert.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; set DATABASE_URL to enable.
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		t.Skip("env DATABASE_URL not set")
	}
	pg, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pg.Close()
	for _, table := range []string{"conversation_sessions", "conversation_turns", "active_sessions", "kv_store"} {
		_, err := pg.db.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
	exerciseStore(t, pg)
}

func TestRedisKVStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("env REDIS_ADDR not set")
	}
	ctx := context.Background()
	kv, err := NewRedisKVStore(ctx, addr, "docflow-test:")
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	defer kv.Close()

	require.NoError(t, kv.Set(ctx, "k", "v"))
	v, ok, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	require.NoError(t, kv.Delete(ctx, "k"))
	_, ok, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectDSNType(t *testing.T) {
	assert.Equal(t, "postgres", DetectDSNType("postgres://user@localhost/docflow"))
	assert.Equal(t, "postgres", DetectDSNType("postgresql://localhost/docflow"))
	assert.Equal(t, "postgres", DetectDSNType("host=localhost dbname=docflow"))
	assert.Equal(t, "sqlite", DetectDSNType("/var/lib/docflow/docflow.db"))
}

func TestOpen_EmptyDSNIsInMemory(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	_, ok := s.(*InMemoryStore)
	assert.True(t, ok)
}

func TestRebind(t *testing.T) {
	b := &sqlBackend{numbered: true}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", b.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	b.numbered = false
	assert.Equal(t, "x = ?", b.rebind("x = ?"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "state/docflow.db?_busy_timeout=5000", sqliteDSN("state/docflow.db"))
	assert.Equal(t, "a.db?cache=shared&_busy_timeout=5000", sqliteDSN("a.db?cache=shared"))
	assert.Equal(t, "a.db?_busy_timeout=10", sqliteDSN("a.db?_busy_timeout=10"))
}

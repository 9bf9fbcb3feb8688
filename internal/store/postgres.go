package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	_ "github.com/lib/pq"
)

// Connection pool limits for PostgreSQL.
const (
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions to PostgreSQL.
type PostgresStore struct {
	*sqlBackend
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the PostgreSQL server named by the DSN and applies the schema.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, errDSNNotSet
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := migrate(db, postgresMigrations); err != nil {
		slog.Error("PostgresStore migration failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("PostgresStore opened", "maxTurns", cfg.MaxTurnsPerSession)

	return &PostgresStore{sqlBackend: &sqlBackend{db: db, name: "PostgresStore", numbered: true, maxTurns: cfg.MaxTurnsPerSession}}, nil
}

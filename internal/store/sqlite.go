package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDirPermissions is used when creating the database file's directory.
	DefaultDirPermissions = 0755
	// sqliteBusyTimeoutMs lets a second process wait briefly instead of failing with SQLITE_BUSY.
	sqliteBusyTimeoutMs = 5000
)

var errDSNNotSet = errors.New("database DSN not set")

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions to a single SQLite file.
type SQLiteStore struct {
	*sqlBackend
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the SQLite file named by the DSN and
// applies the schema. The file's parent directory is created when missing.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, errDSNNotSet
	}

	path := cfg.DSN
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			slog.Error("SQLiteStore directory create failed", "dir", dir, "error", err)
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", sqliteDSN(cfg.DSN))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// Connections to one file serialize writes anyway; a single connection keeps
	// the busy timeout from being the only thing standing between writers.
	db.SetMaxOpenConns(1)

	if err := migrate(db, sqliteMigrations); err != nil {
		slog.Error("SQLiteStore migration failed", "path", path, "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("SQLiteStore opened", "path", path, "maxTurns", cfg.MaxTurnsPerSession)

	return &SQLiteStore{sqlBackend: &sqlBackend{db: db, name: "SQLiteStore", maxTurns: cfg.MaxTurnsPerSession}}, nil
}

// sqliteDSN appends the busy timeout unless the caller already set one.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d", dsn, sep, sqliteBusyTimeoutMs)
}

// migrate checks connectivity and applies an idempotent schema script.
func migrate(db *sql.DB, schema string) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

//go:embed sql/*.sql
var scripts embed.FS

// MemoryPath selects an in-memory database that starts empty.
const MemoryPath = ":memory:"

// ErrNotInitialized is returned by every operation attempted before Init or
// after Cleanup.
var ErrNotInitialized = errors.New("database has not been initialized")

// Store owns the SQLite connection and the initialized gate.
// Registry, resolver and loader reach the database only through Conn.
type Store struct {
	path string
	log  zerolog.Logger

	mu          sync.Mutex
	db          *sql.DB
	initialized bool
}

// New creates a store for the database at path. Nothing is opened until Init.
func New(path string, logger zerolog.Logger) *Store {
	return &Store{
		path: path,
		log:  logger.With().Str("component", "store").Logger(),
	}
}

// Path returns the configured database path.
func (s *Store) Path() string {
	return s.path
}

// Initialized reports whether the schema has been applied and not reset since.
func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// Init connects to the database, creating an empty file first if needed, and
// applies sql/create.sql in one transaction. The gate opens only if the whole
// schema applies.
//
// Init is idempotent: on an open connection it re-applies the schema, which
// uses IF NOT EXISTS throughout.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		db, err := connect(ctx, s.path)
		if err != nil {
			s.log.Error().Err(err).Str("path", s.path).Msg("failed to connect")
			return err
		}
		s.db = db
	}

	if err := s.runScript(ctx, "sql/create.sql"); err != nil {
		s.log.Error().Err(err).Msg("failed to initialize database")
		return fmt.Errorf("apply schema: %w", err)
	}

	s.initialized = true
	s.log.Debug().Str("path", s.path).Msg("database initialized")
	return nil
}

// Cleanup DELETES EVERY CATEGORY, DOMAIN AND LOAD RECORD in the database.
// It runs sql/delete.sql in one transaction and always closes the gate, so
// Init must be called again before further use.
func (s *Store) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return ErrNotInitialized
	}
	defer func() { s.initialized = false }()

	if err := s.runScript(ctx, "sql/delete.sql"); err != nil {
		s.log.Error().Err(err).Msg("failed to clean up database")
		return fmt.Errorf("reset database: %w", err)
	}

	s.log.Warn().Str("path", s.path).Msg("database reset")
	return nil
}

// Close releases the connection. Failures are logged, never returned.
// Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = false
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.log.Error().Err(err).Msg("failed to close sqlite db")
	}
	s.db = nil
}

// Conn returns the database handle, or ErrNotInitialized when the gate is
// closed.
func (s *Store) Conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure. Other constraint classes (NOT NULL, FOREIGN KEY) and
// all other errors return false.
func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
		se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// connect opens path with the required pragmas and a single connection.
func connect(ctx context.Context, path string) (*sql.DB, error) {
	if path != MemoryPath {
		if err := touch(path); err != nil {
			return nil, fmt.Errorf("failed to create database file: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// disappears with its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyPragmas(ctx, db, path == MemoryPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return db, nil
}

// touch creates an empty file at path if none exists.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB, inMemory bool) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if !inMemory {
		pragmas = append([]string{"PRAGMA journal_mode = WAL"}, pragmas...)
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// runScript executes the non-empty lines of an embedded script as separate
// statements inside one transaction.
func (s *Store) runScript(ctx context.Context, name string) error {
	stmts, err := loadScript(name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// loadScript returns the statements of an embedded script, one per non-empty line.
func loadScript(name string) ([]string, error) {
	data, err := scripts.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var stmts []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			stmts = append(stmts, line)
		}
	}
	return stmts, nil
}

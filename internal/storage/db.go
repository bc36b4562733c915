package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique column already holds the value
	ErrDuplicate = errors.New("already exists")
)

// DuplicateError names the column whose unique constraint was violated
type DuplicateError struct {
	Column string
}

func (e *DuplicateError) Error() string {
	return e.Column + " " + ErrDuplicate.Error()
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

// asDuplicate converts sqlite unique violations into *DuplicateError.
// Message format: "UNIQUE constraint failed: users.email"
func asDuplicate(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	const marker = "UNIQUE constraint failed: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return err
	}
	column := msg[i+len(marker):]
	if j := strings.IndexAny(column, ", )"); j >= 0 {
		column = column[:j]
	}
	if k := strings.LastIndexByte(column, '.'); k >= 0 {
		column = column[k+1:]
	}
	return &DuplicateError{Column: column}
}

// InitDB initializes the SQLite database with production settings
func InitDB(path string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// - journal_mode(WAL): readers don't block the single writer
	// - busy_timeout(5000): wait up to 5 seconds if database is locked
	// - foreign_keys(1): sessions and notifications cascade with their user
	// - _time_format=sqlite: one timestamp layout for every written time
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite needs a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// runMigrations creates all necessary tables and indices
func runMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			role TEXT NOT NULL CHECK (role IN ('student', 'instructor', 'admin')),
			student_id TEXT UNIQUE,
			employee_id TEXT UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			message TEXT NOT NULL,
			link TEXT,
			read_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications(user_id, created_at DESC) WHERE read_at IS NULL`,
	}

	// Execute migrations in a transaction
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, migration := range migrations {
		if _, err := tx.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO schema_version (version) VALUES (1)"); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	return nil
}

// nullString maps "" to NULL so unique columns accept many empty values
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

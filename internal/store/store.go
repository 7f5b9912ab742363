// Package store persists conversation turns in an append-only SQLite table.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"LocalChat/internal/session"
	"LocalChat/internal/telemetry"
)

var (
	// ErrStorage wraps every failure of the underlying database
	ErrStorage = errors.New("storage error")
	// ErrInvalidTurn is returned for turns with an unknown role
	ErrInvalidTurn = errors.New("invalid turn")
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL DEFAULT 'default',
	timestamp DATETIME,
	role TEXT NOT NULL,
	content TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);`

// Store is the durable turn log for one session key. Positions come from the
// AUTOINCREMENT rowid, so they stay monotonic across restarts.
type Store struct {
	db         *sql.DB
	sessionKey string
	logger     *slog.Logger
}

// Open opens (creating if needed) the database at path and its schema
func Open(ctx context.Context, path, sessionKey string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create database directory: %w", ErrStorage, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStorage, err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, sessionKey: sessionKey, logger: telemetry.Logger(logger)}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to create messages table: %w", ErrStorage, err)
	}
	return nil
}

// Append durably records one turn at the next position
func (s *Store) Append(ctx context.Context, turn session.Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidTurn, turn.Role)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, timestamp, role, content) VALUES (?, ?, ?, ?)",
		s.sessionKey, turn.CreatedAt, string(turn.Role), turn.Content,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save message: %w", ErrStorage, err)
	}

	if id, err := res.LastInsertId(); err == nil {
		s.logger.Debug("turn saved", "position", id, "role", turn.Role)
	}
	return nil
}

// LoadAll returns every turn of the session in insertion order
func (s *Store) LoadAll(ctx context.Context) ([]session.Turn, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id ASC",
		s.sessionKey,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load messages: %w", ErrStorage, err)
	}
	defer rows.Close()

	turns := []session.Turn{}
	for rows.Next() {
		var (
			turn session.Turn
			role string
			ts   sql.NullTime
		)
		if err := rows.Scan(&role, &turn.Content, &ts); err != nil {
			return nil, fmt.Errorf("%w: failed to scan message: %w", ErrStorage, err)
		}
		turn.Role = session.Role(role)
		turn.CreatedAt = ts.Time
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read messages: %w", ErrStorage, err)
	}

	return turns, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

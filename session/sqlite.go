package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/hupe1980/opsmesh/core"
)

// SQLiteStore is a durable SessionStore backed by SQLite. Events are kept in
// insertion order using an autoincrement sequence column.
type SQLiteStore struct {
	db *sql.DB
	// writes are serialized to avoid SQLITE_BUSY under concurrent turns.
	writeMu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at path and initializes the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// modernc applies _pragma parameters to every new pooled connection.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		metadata_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		invocation_id TEXT,
		author TEXT NOT NULL,
		role TEXT,
		text TEXT,
		metadata_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create creates the session, replacing any existing history.
func (s *SQLiteStore) Create(ctx context.Context, sessionID string) (*core.Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sessionID); err != nil {
		return nil, fmt.Errorf("clear events: %w", err)
	}

	sess := core.NewSession(sessionID)
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO sessions (session_id, metadata_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		metadata_json = excluded.metadata_json,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`,
		sessionID, "{}", sess.Created.UnixNano(), sess.Updated.UnixNano()); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session: %w", err)
	}
	return sess, nil
}

// Get loads a session and its events, creating an empty session lazily.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	sess, err := s.load(ctx, sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		if err := s.ensureSession(ctx, sessionID); err != nil {
			return nil, err
		}
		return s.load(ctx, sessionID)
	}
	return sess, err
}

// AppendEvent persists an event, creating the session when needed.
func (s *SQLiteStore) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return err
	}

	metadata, err := marshalMetadata(ev.CustomMetadata)
	if err != nil {
		return err
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
	INSERT INTO events (session_id, event_id, invocation_id, author, role, text, metadata_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, ev.ID, ev.InvocationID, ev.Author, ev.Role, ev.Text, metadata, ts.UnixNano()); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE session_id = ?`,
		time.Now().UTC().UnixNano(), sessionID); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Delete removes a session and its events.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ensureSession(ctx context.Context, sessionID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC().UnixNano()
	if _, err := s.db.ExecContext(ctx, `
	INSERT INTO sessions (session_id, metadata_json, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(session_id) DO NOTHING`, sessionID, "{}", now, now); err != nil {
		return fmt.Errorf("ensure session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) load(ctx context.Context, sessionID string) (*core.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT metadata_json, created_at, updated_at FROM sessions WHERE session_id = ?`, sessionID)

	var (
		metadataJSON         sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&metadataJSON, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess := core.NewSession(sessionID)
	sess.Created = time.Unix(0, createdAt).UTC()
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &sess.Metadata); err != nil {
			return nil, fmt.Errorf("decode session metadata: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT event_id, invocation_id, author, role, text, metadata_json, created_at
	FROM events WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev                       core.Event
			invocationID, role, text sql.NullString
			evMetadata               sql.NullString
			ts                       int64
		)
		if err := rows.Scan(&ev.ID, &invocationID, &ev.Author, &role, &text, &evMetadata, &ts); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		ev.InvocationID = invocationID.String
		ev.Role = role.String
		ev.Text = text.String
		ev.Timestamp = time.Unix(0, ts).UTC()
		if evMetadata.Valid && evMetadata.String != "" && evMetadata.String != "null" {
			if err := json.Unmarshal([]byte(evMetadata.String), &ev.CustomMetadata); err != nil {
				return nil, fmt.Errorf("decode event metadata: %w", err)
			}
		}
		sess.Events = append(sess.Events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	sess.Updated = time.Unix(0, updatedAt).UTC()
	return sess, nil
}

func marshalMetadata(md map[string]string) (string, error) {
	if len(md) == 0 {
		return "", nil
	}
	b, err := json.Marshal(md)
	if err != nil {
		return "", fmt.Errorf("encode event metadata: %w", err)
	}
	return string(b), nil
}

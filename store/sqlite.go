// ABOUTME: SQLite-backed checkpoint history for concept graph sessions.
// ABOUTME: Each checkpoint records the action, constraints, and rendered DOT and elements under a ULID.
package store

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/conceptgraph/dot"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when a checkpoint or session does not exist.
var ErrNotFound = errors.New("not found")

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// SessionRow summarizes a stored session.
type SessionRow struct {
	SessionID   string
	Title       string
	Checkpoints int
	UpdatedAt   string
}

// Checkpoint is one recorded snapshot of a session's rendered graph.
type Checkpoint struct {
	ID          ulid.ULID
	SessionID   string
	Action      string
	Constraints []string
	DOT         string
	Elements    string
	CreatedAt   time.Time
}

// SqliteStore persists checkpoints. It is a history, not the live state:
// sessions are rebuilt from problem files, not from here.
type SqliteStore struct {
	db      *sql.DB
	now     func() time.Time
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// OpenSqlite opens or creates a checkpoint database at path and migrates it.
func OpenSqlite(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			action TEXT NOT NULL,
			constraints TEXT NOT NULL,
			dot TEXT NOT NULL,
			elements TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS checkpoints_by_session ON checkpoints(session_id, checkpoint_id);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{
		db:      db,
		now:     func() time.Time { return time.Now().UTC() },
		entropy: ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// UpsertSession creates a session row or renames an existing one.
func (s *SqliteStore) UpsertSession(sessionID, title string) error {
	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, title, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at`,
		sessionID, title, s.now().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// SaveCheckpoint records g as the result of action on the session. The
// session row is created if missing.
func (s *SqliteStore) SaveCheckpoint(sessionID, action string, constraints []string, g *dot.Graph) (ulid.ULID, error) {
	elements, err := dot.MarshalElements(g)
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("encode elements: %w", err)
	}
	now := s.now()
	id := s.newID(now)
	ts := now.Format(timeLayout)

	tx, err := s.db.Begin()
	if err != nil {
		return ulid.ULID{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO sessions (session_id, title, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, sessionID, ts); err != nil {
		return ulid.ULID{}, fmt.Errorf("touch session: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO checkpoints (checkpoint_id, session_id, action, constraints, dot, elements, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), sessionID, action, strings.Join(constraints, "\n"),
		dot.Serialize(g), string(elements), ts); err != nil {
		return ulid.ULID{}, fmt.Errorf("insert checkpoint: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ulid.ULID{}, fmt.Errorf("commit checkpoint: %w", err)
	}
	return id, nil
}

// GetCheckpoint loads one checkpoint by id.
func (s *SqliteStore) GetCheckpoint(id ulid.ULID) (*Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT checkpoint_id, session_id, action, constraints, dot, elements, created_at
		 FROM checkpoints WHERE checkpoint_id = ?`, id.String())
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checkpoint %s: %w", id, ErrNotFound)
	}
	return cp, err
}

// ListCheckpoints returns a session's checkpoints oldest first.
func (s *SqliteStore) ListCheckpoints(sessionID string) ([]*Checkpoint, error) {
	rows, err := s.db.Query(
		`SELECT checkpoint_id, session_id, action, constraints, dot, elements, created_at
		 FROM checkpoints WHERE session_id = ? ORDER BY checkpoint_id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// Latest returns the newest checkpoint of a session.
func (s *SqliteStore) Latest(sessionID string) (*Checkpoint, error) {
	row := s.db.QueryRow(
		`SELECT checkpoint_id, session_id, action, constraints, dot, elements, created_at
		 FROM checkpoints WHERE session_id = ? ORDER BY checkpoint_id DESC LIMIT 1`, sessionID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return cp, err
}

// ListSessions returns all sessions, most recently updated first.
func (s *SqliteStore) ListSessions() ([]SessionRow, error) {
	rows, err := s.db.Query(
		`SELECT s.session_id, s.title, s.updated_at, COUNT(c.checkpoint_id)
		 FROM sessions s LEFT JOIN checkpoints c ON c.session_id = s.session_id
		 GROUP BY s.session_id
		 ORDER BY s.updated_at DESC, s.session_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		if err := rows.Scan(&r.SessionID, &r.Title, &r.UpdatedAt, &r.Checkpoints); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its checkpoints.
func (s *SqliteStore) DeleteSession(sessionID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// PRAGMA foreign_keys is per connection, so the cascade is not relied on.
	if _, err := tx.Exec("DELETE FROM checkpoints WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("delete checkpoints: %w", err)
	}
	res, err := tx.Exec("DELETE FROM sessions WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// newID returns ids that sort in creation order, even within one millisecond.
func (s *SqliteStore) newID(t time.Time) ulid.ULID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(r scanner) (*Checkpoint, error) {
	var (
		cp                  Checkpoint
		id, constraints, ts string
	)
	if err := r.Scan(&id, &cp.SessionID, &cp.Action, &constraints, &cp.DOT, &cp.Elements, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan checkpoint row: %w", err)
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse checkpoint id %q: %w", id, err)
	}
	cp.ID = parsed
	if constraints != "" {
		cp.Constraints = strings.Split(constraints, "\n")
	}
	if cp.CreatedAt, err = time.Parse(timeLayout, ts); err != nil {
		return nil, fmt.Errorf("parse checkpoint time %q: %w", ts, err)
	}
	return &cp, nil
}

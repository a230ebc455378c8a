package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dialkit/dialkit/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore persists sessions in SQLite, one row per call ID. It is
// the optional durable backend; the memory store is the default.
type SQLiteStore struct {
	db      *sql.DB
	nowFunc func() time.Time
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS call_sessions (
	call_id          TEXT PRIMARY KEY,
	stage            TEXT NOT NULL,
	history          TEXT NOT NULL,
	last_response    TEXT NOT NULL,
	customer_info    TEXT NOT NULL,
	last_interaction INTEGER NOT NULL,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_call_sessions_last_interaction
	ON call_sessions(last_interaction);
`

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:"
// for an ephemeral store in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sessions: open sqlite: %w", err)
	}
	// SQLite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent turns.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sessions: init schema: %w", err)
	}

	return &SQLiteStore{db: db, nowFunc: time.Now}, nil
}

// SetNowFunc overrides the clock, for tests.
func (s *SQLiteStore) SetNowFunc(fn func() time.Time) {
	s.nowFunc = fn
}

func (s *SQLiteStore) GetOrCreate(ctx context.Context, callID string) (*models.CallSession, error) {
	if callID == "" {
		return nil, errors.New("sessions: call id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	session, err := scanSession(tx.QueryRowContext(ctx, `
		SELECT call_id, stage, history, last_response, customer_info, last_interaction, created_at
		FROM call_sessions WHERE call_id = ?
	`, callID))
	if err == nil {
		return session, tx.Commit()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	session = newSession(callID, s.nowFunc())
	if err := insertSession(ctx, tx, session); err != nil {
		return nil, err
	}
	return session, tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, callID string) (*models.CallSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT call_id, stage, history, last_response, customer_info, last_interaction, created_at
		FROM call_sessions WHERE call_id = ?
	`, callID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return session, err
}

func (s *SQLiteStore) Put(ctx context.Context, session *models.CallSession) error {
	if session == nil || session.CallID == "" {
		return errors.New("sessions: session with call id is required")
	}

	history, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("sessions: marshal history: %w", err)
	}
	info, err := json.Marshal(session.CustomerInfo)
	if err != nil {
		return fmt.Errorf("sessions: marshal customer info: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO call_sessions (call_id, stage, history, last_response, customer_info, last_interaction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			stage = excluded.stage,
			history = excluded.history,
			last_response = excluded.last_response,
			customer_info = excluded.customer_info,
			last_interaction = excluded.last_interaction
	`, session.CallID, string(session.Stage), string(history), session.LastResponse,
		string(info), session.LastInteraction.UnixNano(), session.CreatedAt.UnixNano())
	return err
}

func (s *SQLiteStore) Delete(ctx context.Context, callID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM call_sessions WHERE call_id = ?`, callID)
	return err
}

func (s *SQLiteStore) StaleIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT call_id FROM call_sessions WHERE last_interaction < ?
	`, cutoff.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Sweep(ctx context.Context, idleThreshold time.Duration) (int, error) {
	cutoff := s.nowFunc().Add(-idleThreshold)
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM call_sessions WHERE last_interaction < ?
	`, cutoff.UnixNano())
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func insertSession(ctx context.Context, tx *sql.Tx, session *models.CallSession) error {
	history, err := json.Marshal(session.History)
	if err != nil {
		return fmt.Errorf("sessions: marshal history: %w", err)
	}
	info, err := json.Marshal(session.CustomerInfo)
	if err != nil {
		return fmt.Errorf("sessions: marshal customer info: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO call_sessions (call_id, stage, history, last_response, customer_info, last_interaction, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, session.CallID, string(session.Stage), string(history), session.LastResponse,
		string(info), session.LastInteraction.UnixNano(), session.CreatedAt.UnixNano())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.CallSession, error) {
	var (
		session         models.CallSession
		stage           string
		history         string
		info            string
		lastInteraction int64
		createdAt       int64
	)
	err := row.Scan(&session.CallID, &stage, &history, &session.LastResponse,
		&info, &lastInteraction, &createdAt)
	if err != nil {
		return nil, err
	}

	session.Stage = models.Stage(stage)
	if err := json.Unmarshal([]byte(history), &session.History); err != nil {
		return nil, fmt.Errorf("sessions: unmarshal history: %w", err)
	}
	if err := json.Unmarshal([]byte(info), &session.CustomerInfo); err != nil {
		return nil, fmt.Errorf("sessions: unmarshal customer info: %w", err)
	}
	session.LastInteraction = time.Unix(0, lastInteraction)
	session.CreatedAt = time.Unix(0, createdAt)
	return &session, nil
}

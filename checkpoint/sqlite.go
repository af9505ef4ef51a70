package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/groundcheck/paperagent/agent"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_checkpoints (
	session_id  TEXT PRIMARY KEY,
	state_json  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
`

var _ agent.CheckpointStore = (*SQLite)(nil)

// SQLite persists one checkpoint row per session so sessions survive process
// restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database and runs migrations.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Save(ctx context.Context, sessionID string, state *agent.State) error {
	raw, err := sonic.MarshalString(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_checkpoints (session_id, state_json, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
		 	state_json = excluded.state_json,
		 	updated_at = excluded.updated_at`,
		sessionID, raw, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, sessionID string) (*agent.State, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json FROM session_checkpoints WHERE session_id = ?`, sessionID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load checkpoint: %w", err)
	}
	state := agent.NewState()
	if err := sonic.UnmarshalString(raw, state); err != nil {
		return nil, false, fmt.Errorf("unmarshal state: %w", err)
	}
	return state, true, nil
}

func (s *SQLite) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_checkpoints WHERE session_id = ?`, sessionID,
	); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

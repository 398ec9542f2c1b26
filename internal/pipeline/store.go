package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/blue-scarf/paystamp/constants"
	"github.com/blue-scarf/paystamp/internal/common"
)

// Store persists session snapshots and page images in SQLite so sessions
// survive a restart. Snapshots are whole-session JSON; pages are PNG blobs.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    state      TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    snapshot   BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS session_pages (
    session_id TEXT NOT NULL,
    page_no    INTEGER NOT NULL,
    stamped    INTEGER NOT NULL DEFAULT 0,
    data       BLOB NOT NULL,
    PRIMARY KEY (session_id, page_no, stamped)
);
CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
`

// OpenStore opens (or creates) the session database at path. ":memory:"
// gives an ephemeral store for tests.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// modernc sqlite serializes writes itself; one connection avoids
	// SQLITE_BUSY on concurrent sessions.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}
	logger.Info("store.open", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (st *Store) Close() error { return st.db.Close() }

// Save upserts the session snapshot.
func (st *Store) Save(ctx context.Context, s *Session) error {
	blob, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	_, err = st.db.ExecContext(ctx, `
INSERT INTO sessions (id, state, name, created_at, updated_at, snapshot)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    state = excluded.state,
    updated_at = excluded.updated_at,
    snapshot = excluded.snapshot`,
		s.ID.String(), string(s.State), s.DocumentName, s.CreatedAt, s.UpdatedAt, blob)
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Get loads one session snapshot.
func (st *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var blob []byte
	err := st.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions WHERE id = ?`, id.String()).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, common.NewAppError(common.ErrNotFound,
			fmt.Sprintf("session %s not found", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	var s Session
	if err := json.Unmarshal(blob, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// SessionSummary is the listing row, cheap enough to return in bulk.
type SessionSummary struct {
	ID        uuid.UUID              `json:"id"`
	State     constants.SessionState `json:"state"`
	Name      string                 `json:"name"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// List returns summaries, newest first.
func (st *Store) List(ctx context.Context) ([]SessionSummary, error) {
	rows, err := st.db.QueryContext(ctx,
		`SELECT id, state, name, created_at, updated_at FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			raw   string
			state string
			s     SessionSummary
		)
		if err := rows.Scan(&raw, &state, &s.Name, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("bad session id %q: %w", raw, err)
		}
		s.ID = id
		s.State = constants.SessionState(state)
		out = append(out, s)
	}
	return out, rows.Err()
}

// SavePages stores the page images for one side of a session (original or
// stamped), replacing any previous set.
func (st *Store) SavePages(ctx context.Context, id uuid.UUID, stamped bool, pages [][]byte) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pages tx: %w", err)
	}
	defer tx.Rollback()

	flag := 0
	if stamped {
		flag = 1
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_pages WHERE session_id = ? AND stamped = ?`, id.String(), flag); err != nil {
		return fmt.Errorf("clear pages: %w", err)
	}
	for i, data := range pages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_pages (session_id, page_no, stamped, data) VALUES (?, ?, ?, ?)`,
			id.String(), i, flag, data); err != nil {
			return fmt.Errorf("insert page %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadPages returns the stored page images in page order.
func (st *Store) LoadPages(ctx context.Context, id uuid.UUID, stamped bool) ([][]byte, error) {
	flag := 0
	if stamped {
		flag = 1
	}
	rows, err := st.db.QueryContext(ctx,
		`SELECT data FROM session_pages WHERE session_id = ? AND stamped = ? ORDER BY page_no`,
		id.String(), flag)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		out = append(out, data)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.NewAppError(common.ErrNotFound,
			fmt.Sprintf("no pages stored for session %s", id), nil)
	}
	return out, nil
}

// Delete removes a session and its pages.
func (st *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_pages WHERE session_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError(common.ErrNotFound,
			fmt.Sprintf("session %s not found", id), nil)
	}
	return tx.Commit()
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/zhouzirui/gemini-chat/backend/internal/model/chat"
)

const schema = `
CREATE TABLE IF NOT EXISTS turns (
	session_id TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	id         TEXT    NOT NULL,
	role       TEXT    NOT NULL,
	text       TEXT,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (session_id, seq)
);`

// SQLite archives transcripts in a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens dsn and creates the schema if needed.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite %q", dsn)
	}
	// One connection keeps ":memory:" databases alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping sqlite")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create turns table")
	}
	return &SQLite{db: db}, nil
}

// Append writes turn after the session's last stored turn.
func (s *SQLite) Append(ctx context.Context, sessionID string, turn chat.Turn) error {
	const q = `
INSERT INTO turns (session_id, seq, id, role, text, created_at)
SELECT ?, COALESCE(MAX(seq), -1) + 1, ?, ?, ?, ? FROM turns WHERE session_id = ?`

	_, err := s.db.ExecContext(ctx, q,
		sessionID,
		turn.ID,
		string(turn.Role),
		turn.Text,
		turn.CreatedAt.UTC().Format(time.RFC3339Nano),
		sessionID,
	)
	if err != nil {
		return errors.Wrapf(err, "append turn for session %s", sessionID)
	}
	return nil
}

// Load reads the session's transcript in order. Rows without text or with an
// unknown role come back as chat.MalformedTurn.
func (s *SQLite) Load(ctx context.Context, sessionID string) ([]chat.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, text, created_at FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, errors.Wrapf(err, "query turns for session %s", sessionID)
	}
	defer rows.Close()

	var entries []chat.Entry
	for rows.Next() {
		var (
			id, role, createdAt string
			text                sql.NullString
		)
		if err := rows.Scan(&id, &role, &text, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan turn")
		}
		entries = append(entries, decodeRow(len(entries), id, role, text, createdAt))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate turns")
	}
	return entries, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func decodeRow(position int, id, role string, text sql.NullString, createdAt string) chat.Entry {
	r := chat.Role(role)
	switch {
	case !r.Valid():
		return chat.MalformedTurn{Position: position, Role: role, Reason: fmt.Sprintf("unknown role %q", role)}
	case !text.Valid || strings.TrimSpace(text.String) == "":
		return chat.MalformedTurn{Position: position, Role: role, Reason: "missing text"}
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		ts = time.Time{}
	}
	return chat.Turn{ID: id, Role: r, Text: text.String, CreatedAt: ts}
}

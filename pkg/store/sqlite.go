// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 BarCoin Systems

// Package store persists finalized counting sessions in SQLite. The core
// pipeline only depends on the session.Saver interface; this is the one
// concrete implementation shipped with the tool.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/barcoin/sentimo/pkg/coinwire"
	"github.com/barcoin/sentimo/pkg/session"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("store: session not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	started_at_ms  INTEGER NOT NULL,
	ended_at_ms    INTEGER NOT NULL,
	status         TEXT    NOT NULL,
	total_coins    INTEGER NOT NULL,
	total_centavos INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS session_coins (
	session_id   TEXT    NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	denomination INTEGER NOT NULL,
	count        INTEGER NOT NULL,
	PRIMARY KEY (session_id, denomination)
);
`

// SQLite is a session.Saver backed by a local SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the session database at path.
func Open(path string, logger *slog.Logger) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db, logger: logger}, nil
}

// Close closes the database handle.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSession upserts one finalized session and its per-denomination
// counts in a single transaction. Retrying with the same session id
// overwrites rather than duplicates.
func (s *SQLite) SaveSession(ctx context.Context, sess session.Session) error {
	if sess.ID == "" {
		return fmt.Errorf("session id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, started_at_ms, ended_at_ms, status, total_coins, total_centavos)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			started_at_ms = excluded.started_at_ms,
			ended_at_ms = excluded.ended_at_ms,
			status = excluded.status,
			total_coins = excluded.total_coins,
			total_centavos = excluded.total_centavos`,
		sess.ID,
		sess.StartTime.UTC().UnixMilli(),
		sess.EndTime.UTC().UnixMilli(),
		sess.Status.String(),
		sess.Tally.Coins,
		sess.Tally.Centavos,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_coins WHERE session_id = ?`, sess.ID); err != nil {
		return fmt.Errorf("clear session coins: %w", err)
	}
	for _, denom := range coinwire.Denominations {
		count := sess.Tally.Counts[denom]
		if count == 0 {
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO session_coins (session_id, denomination, count) VALUES (?, ?, ?)`,
			sess.ID, int64(denom), count)
		if err != nil {
			return fmt.Errorf("insert session coins: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("session saved", "session", sess.ID, "coins", sess.Tally.Coins)
	return nil
}

// LoadSession reads one finalized session by id.
func (s *SQLite) LoadSession(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at_ms, ended_at_ms, status, total_coins, total_centavos
		FROM sessions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Session{}, ErrNotFound
		}
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT denomination, count FROM session_coins WHERE session_id = ?`, id)
	if err != nil {
		return session.Session{}, fmt.Errorf("load session coins: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var denom, count int64
		if err := rows.Scan(&denom, &count); err != nil {
			return session.Session{}, fmt.Errorf("scan session coins: %w", err)
		}
		sess.Tally.Counts[coinwire.Denomination(denom)] = uint64(count)
	}
	if err := rows.Err(); err != nil {
		return session.Session{}, fmt.Errorf("iterate session coins: %w", err)
	}
	return sess, nil
}

// ListSessions returns the most recently ended sessions, newest first,
// without per-denomination detail.
func (s *SQLite) ListSessions(ctx context.Context, limit int) ([]session.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at_ms, ended_at_ms, status, total_coins, total_centavos
		FROM sessions ORDER BY ended_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (session.Session, error) {
	var (
		sess           session.Session
		startMs, endMs int64
		statusText     string
		coins          uint64
		centavos       int64
	)
	if err := row.Scan(&sess.ID, &startMs, &endMs, &statusText, &coins, &centavos); err != nil {
		return session.Session{}, err
	}
	status, err := session.ParseStatus(statusText)
	if err != nil {
		return session.Session{}, err
	}
	sess.StartTime = time.UnixMilli(startMs).UTC()
	sess.EndTime = time.UnixMilli(endMs).UTC()
	sess.Status = status
	sess.Tally = session.TallySnapshot{
		Counts:   make(map[coinwire.Denomination]uint64),
		Coins:    coins,
		Centavos: centavos,
	}
	return sess, nil
}

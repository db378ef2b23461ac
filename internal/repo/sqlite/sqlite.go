// Package sqlite is the single-file storage backend, selected with
// DATABASE_URL=sqlite://path.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamed0406/serverwatch/internal/domain"
	"github.com/hamed0406/serverwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const maxHistoryLimit = 500

const schema = `
CREATE TABLE IF NOT EXISTS servers (
	id               TEXT PRIMARY KEY,
	scope            TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL DEFAULT '',
	host             TEXT NOT NULL,
	port             INTEGER NOT NULL,
	secret           TEXT NOT NULL DEFAULT '',
	channel          TEXT NOT NULL DEFAULT '',
	is_active        INTEGER NOT NULL DEFAULT 1,
	poll_interval_ms INTEGER NOT NULL DEFAULT 0,
	created_at       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS server_status (
	server_id   TEXT PRIMARY KEY,
	online      INTEGER NOT NULL,
	name        TEXT NOT NULL,
	map         TEXT NOT NULL,
	players     INTEGER NOT NULL,
	max_players INTEGER NOT NULL,
	game        TEXT NOT NULL,
	version     TEXT NOT NULL,
	latency_ms  INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	observed_at TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS server_history (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	server_id   TEXT NOT NULL,
	online      INTEGER NOT NULL,
	players     INTEGER NOT NULL,
	max_players INTEGER NOT NULL,
	map         TEXT NOT NULL,
	latency_ms  INTEGER NOT NULL,
	observed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_server_time ON server_history (server_id, observed_at DESC);
`

// timestamps are stored as fixed-width UTC text so they sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file (and its directory) if needed and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := openDB(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// openDB opens a SQLite database with WAL mode and a busy timeout.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	return db, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertTarget(ctx context.Context, t domain.Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO servers (id, scope, name, host, port, secret, channel, is_active, poll_interval_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		 scope = excluded.scope, name = excluded.name, host = excluded.host, port = excluded.port,
		 secret = excluded.secret, channel = excluded.channel, is_active = excluded.is_active,
		 poll_interval_ms = excluded.poll_interval_ms`,
		string(t.ID), t.Scope, t.Name, t.Host, t.Port, t.Secret, t.Channel, boolToInt(t.Active),
		t.PollInterval.Milliseconds(), formatTime(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert server: %w", err)
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context, scope string) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scope, name, host, port, secret, channel, poll_interval_ms, created_at
		   FROM servers
		  WHERE is_active = 1 AND (? = '' OR scope = ?)
		  ORDER BY id`, scope, scope)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var (
			t         domain.Target
			id        string
			pollMS    int64
			createdAt string
		)
		if err := rows.Scan(&id, &t.Scope, &t.Name, &t.Host, &t.Port, &t.Secret, &t.Channel, &pollMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		t.ID = domain.TargetID(id)
		t.Active = true
		t.PollInterval = time.Duration(pollMS) * time.Millisecond
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) UpsertStatus(ctx context.Context, id domain.TargetID, r domain.StatusRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_status
		 (server_id, online, name, map, players, max_players, game, version, latency_ms, error, observed_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(server_id) DO UPDATE SET
		 online = excluded.online, name = excluded.name, map = excluded.map,
		 players = excluded.players, max_players = excluded.max_players,
		 game = excluded.game, version = excluded.version, latency_ms = excluded.latency_ms,
		 error = excluded.error, observed_at = excluded.observed_at, updated_at = excluded.updated_at`,
		string(id), boolToInt(r.Online()), r.Name, r.Map, r.Players, r.MaxPlayers, r.Game, r.Version,
		r.Latency.Milliseconds(), r.Error, formatTime(r.ObservedAt), formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, id domain.TargetID, r domain.StatusRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_history (server_id, online, players, max_players, map, latency_ms, observed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(id), boolToInt(r.Online()), r.Players, r.MaxPlayers, r.Map, r.Latency.Milliseconds(), formatTime(r.ObservedAt),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.CurrentStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT server_id, online, name, map, players, max_players, game, version, latency_ms, error, observed_at, updated_at
		   FROM server_status
		  ORDER BY server_id`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []domain.CurrentStatus
	for rows.Next() {
		var (
			cs                  domain.CurrentStatus
			id                  string
			online              int
			latencyMS           int64
			observed, updatedAt string
		)
		r := &cs.Record
		if err := rows.Scan(&id, &online, &r.Name, &r.Map, &r.Players, &r.MaxPlayers, &r.Game, &r.Version,
			&latencyMS, &r.Error, &observed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		cs.TargetID = domain.TargetID(id)
		r.Reachability = domain.Offline
		if online != 0 {
			r.Reachability = domain.Online
		}
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		if r.ObservedAt, err = parseTime(observed); err != nil {
			return nil, err
		}
		if cs.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT online, players, max_players, map, latency_ms, observed_at
		   FROM server_history
		  WHERE server_id = ?
		  ORDER BY observed_at DESC, id DESC
		  LIMIT ?`, string(id), repo.NormalizeLimit(limit, maxHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var (
			h         = domain.HistoryEntry{TargetID: id}
			online    int
			latencyMS int64
			observed  string
		)
		if err := rows.Scan(&online, &h.Players, &h.MaxPlayers, &h.Map, &latencyMS, &observed); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Online = online != 0
		h.Latency = time.Duration(latencyMS) * time.Millisecond
		if h.ObservedAt, err = parseTime(observed); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM server_history WHERE observed_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", v, err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

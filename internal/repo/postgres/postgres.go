package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/domain"
	"github.com/hamed0406/serverwatch/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const maxHistoryLimit = 500

// Schema creates the tables on a fresh database. Safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS servers (
  id               TEXT PRIMARY KEY,
  scope            TEXT NOT NULL DEFAULT '',
  name             TEXT NOT NULL DEFAULT '',
  host             TEXT NOT NULL,
  port             INTEGER NOT NULL,
  secret           TEXT NOT NULL DEFAULT '',
  channel          TEXT NOT NULL DEFAULT '',
  is_active        BOOLEAN NOT NULL DEFAULT TRUE,
  poll_interval_ms BIGINT NOT NULL DEFAULT 0,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS server_status (
  server_id    TEXT PRIMARY KEY REFERENCES servers(id) ON DELETE CASCADE,
  online       BOOLEAN NOT NULL,
  name         TEXT NOT NULL,
  map          TEXT NOT NULL,
  players      INTEGER NOT NULL,
  max_players  INTEGER NOT NULL,
  game         TEXT NOT NULL,
  version      TEXT NOT NULL,
  latency_ms   BIGINT NOT NULL,
  error        TEXT NOT NULL DEFAULT '',
  observed_at  TIMESTAMPTZ NOT NULL,
  updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS server_history (
  id           BIGSERIAL PRIMARY KEY,
  server_id    TEXT NOT NULL REFERENCES servers(id) ON DELETE CASCADE,
  online       BOOLEAN NOT NULL,
  players      INTEGER NOT NULL,
  max_players  INTEGER NOT NULL,
  map          TEXT NOT NULL,
  latency_ms   BIGINT NOT NULL,
  observed_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_server_time ON server_history (server_id, observed_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_observed_at ON server_history (observed_at);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	s.log.Info("schema_applied", zap.String("backend", "postgres"))
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- TargetRegistry ----

func (s *Store) UpsertTarget(ctx context.Context, t domain.Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO servers (id, scope, name, host, port, secret, channel, is_active, poll_interval_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   scope = EXCLUDED.scope, name = EXCLUDED.name, host = EXCLUDED.host, port = EXCLUDED.port,
		   secret = EXCLUDED.secret, channel = EXCLUDED.channel, is_active = EXCLUDED.is_active,
		   poll_interval_ms = EXCLUDED.poll_interval_ms`,
		string(t.ID), t.Scope, t.Name, t.Host, t.Port, t.Secret, t.Channel, t.Active,
		t.PollInterval.Milliseconds(), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert server: %w", err)
	}
	return nil
}

func (s *Store) ListActive(ctx context.Context, scope string) ([]domain.Target, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scope, name, host, port, secret, channel, poll_interval_ms, created_at
		   FROM servers
		  WHERE is_active AND ($1 = '' OR scope = $1)
		  ORDER BY id`, scope)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var (
			t      domain.Target
			id     string
			pollMS int64
		)
		if err := rows.Scan(&id, &t.Scope, &t.Name, &t.Host, &t.Port, &t.Secret, &t.Channel, &pollMS, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		t.ID = domain.TargetID(id)
		t.Active = true
		t.PollInterval = time.Duration(pollMS) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- StatusSink ----

func (s *Store) UpsertStatus(ctx context.Context, id domain.TargetID, r domain.StatusRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO server_status
		   (server_id, online, name, map, players, max_players, game, version, latency_ms, error, observed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		 ON CONFLICT (server_id) DO UPDATE SET
		   online = EXCLUDED.online, name = EXCLUDED.name, map = EXCLUDED.map,
		   players = EXCLUDED.players, max_players = EXCLUDED.max_players,
		   game = EXCLUDED.game, version = EXCLUDED.version, latency_ms = EXCLUDED.latency_ms,
		   error = EXCLUDED.error, observed_at = EXCLUDED.observed_at, updated_at = now()`,
		string(id), r.Online(), r.Name, r.Map, r.Players, r.MaxPlayers, r.Game, r.Version,
		r.Latency.Milliseconds(), r.Error, r.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert status: %w", err)
	}
	return nil
}

func (s *Store) AppendHistory(ctx context.Context, id domain.TargetID, r domain.StatusRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO server_history (server_id, online, players, max_players, map, latency_ms, observed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(id), r.Online(), r.Players, r.MaxPlayers, r.Map, r.Latency.Milliseconds(), r.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// ---- StatusReader ----

func (s *Store) Latest(ctx context.Context) ([]domain.CurrentStatus, error) {
	rows, err := s.pool.Query(ctx, `
SELECT server_id, online, name, map, players, max_players, game, version, latency_ms, error, observed_at, updated_at
  FROM server_status
 ORDER BY server_id`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []domain.CurrentStatus
	for rows.Next() {
		var (
			id        string
			online    bool
			latencyMS int64
			cs        domain.CurrentStatus
		)
		r := &cs.Record
		if err := rows.Scan(&id, &online, &r.Name, &r.Map, &r.Players, &r.MaxPlayers, &r.Game, &r.Version,
			&latencyMS, &r.Error, &r.ObservedAt, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		cs.TargetID = domain.TargetID(id)
		r.Reachability = reachability(online)
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, cs)
	}
	return out, rows.Err()
}

func (s *Store) History(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT online, players, max_players, map, latency_ms, observed_at
		   FROM server_history
		  WHERE server_id = $1
		  ORDER BY observed_at DESC, id DESC
		  LIMIT $2`, string(id), repo.NormalizeLimit(limit, maxHistoryLimit))
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		h := domain.HistoryEntry{TargetID: id}
		var latencyMS int64
		if err := rows.Scan(&h.Online, &h.Players, &h.MaxPlayers, &h.Map, &latencyMS, &h.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.Latency = time.Duration(latencyMS) * time.Millisecond
		out = append(out, h)
	}
	return out, rows.Err()
}

// ---- HistoryPruner ----

func (s *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM server_history WHERE observed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func reachability(online bool) domain.Reachability {
	if online {
		return domain.Online
	}
	return domain.Offline
}


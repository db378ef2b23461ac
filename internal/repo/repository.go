package repo

import (
	"context"
	"time"

	"github.com/hamed0406/serverwatch/internal/domain"
)

// DefaultHistoryLimit is used when a caller asks for history without a limit.
const DefaultHistoryLimit = 10

// Ports (interfaces). Every storage adapter implements all of them.

// TargetRegistry hands out the targets to monitor. An empty scope means all scopes.
type TargetRegistry interface {
	ListActive(ctx context.Context, scope string) ([]domain.Target, error)
}

// TargetSeeder inserts or replaces a target, used to load TARGETS_FILE into a database.
type TargetSeeder interface {
	UpsertTarget(ctx context.Context, t domain.Target) error
}

// StatusSink records cycle outcomes. UpsertStatus is idempotent; AppendHistory only inserts.
type StatusSink interface {
	UpsertStatus(ctx context.Context, id domain.TargetID, rec domain.StatusRecord) error
	AppendHistory(ctx context.Context, id domain.TargetID, rec domain.StatusRecord) error
}

// StatusReader serves the read API.
type StatusReader interface {
	Latest(ctx context.Context) ([]domain.CurrentStatus, error)
	// History returns the newest entries first.
	History(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryEntry, error)
}

// HistoryPruner deletes history observed before the cutoff and reports how many rows went.
type HistoryPruner interface {
	PruneHistory(ctx context.Context, before time.Time) (int64, error)
}

// Store is everything `serve` needs from one backend.
type Store interface {
	TargetRegistry
	TargetSeeder
	StatusSink
	StatusReader
	HistoryPruner
	Close() error
}

// NormalizeLimit clamps a history limit to [1, max].
func NormalizeLimit(limit, max int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > max {
		return max
	}
	return limit
}

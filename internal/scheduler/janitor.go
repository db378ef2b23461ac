package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/serverwatch/internal/repo"
)

const defaultSweepInterval = 24 * time.Hour

// Janitor deletes history older than the retention window, once at start and
// then every sweep interval.
type Janitor struct {
	logger    *zap.Logger
	pruner    repo.HistoryPruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewJanitor(logger *zap.Logger, pruner repo.HistoryPruner, retention time.Duration) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		logger:    logger,
		pruner:    pruner,
		retention: retention,
		interval:  defaultSweepInterval,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled. A retention <= 0 disables pruning.
func (j *Janitor) Run(ctx context.Context) error {
	if j.retention <= 0 || j.pruner == nil {
		j.logger.Info("janitor_disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	t := time.NewTicker(j.interval)
	defer t.Stop()

	// initial pass
	_, _ = j.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_, _ = j.sweepOnce(ctx)
		}
	}
}

func (j *Janitor) sweepOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	n, err := j.pruner.PruneHistory(ctx, cutoff)
	if err != nil {
		j.logger.Warn("janitor_prune_failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0, err
	}
	j.logger.Info("janitor_pruned", zap.Int64("rows", n), zap.Time("cutoff", cutoff))
	return n, nil
}

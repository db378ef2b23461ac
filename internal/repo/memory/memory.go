package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/serverwatch/internal/domain"
	"github.com/hamed0406/serverwatch/internal/repo"
)

const maxHistoryLimit = 500

type Store struct {
	mu      sync.RWMutex
	targets map[domain.TargetID]domain.Target
	status  map[domain.TargetID]domain.CurrentStatus
	history map[domain.TargetID][]domain.HistoryEntry
	now     func() time.Time
}

func New(targets ...domain.Target) *Store {
	s := &Store{
		targets: make(map[domain.TargetID]domain.Target),
		status:  make(map[domain.TargetID]domain.CurrentStatus),
		history: make(map[domain.TargetID][]domain.HistoryEntry),
		now:     time.Now,
	}
	for _, t := range targets {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now().UTC()
		}
		s.targets[t.ID] = t
	}
	return s
}

func (m *Store) Close() error { return nil }

// ---- TargetRegistry ----

func (m *Store) UpsertTarget(ctx context.Context, t domain.Target) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.targets[t.ID]; ok && t.CreatedAt.IsZero() {
		t.CreatedAt = prev.CreatedAt
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now().UTC()
	}
	m.targets[t.ID] = t
	return nil
}

func (m *Store) ListActive(ctx context.Context, scope string) ([]domain.Target, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Target, 0, len(m.targets))
	for _, t := range m.targets {
		if !t.Active || (scope != "" && t.Scope != scope) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- StatusSink ----

func (m *Store) UpsertStatus(ctx context.Context, id domain.TargetID, rec domain.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[id] = domain.CurrentStatus{TargetID: id, Record: rec, UpdatedAt: m.now().UTC()}
	return nil
}

func (m *Store) AppendHistory(ctx context.Context, id domain.TargetID, rec domain.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[id] = append(m.history[id], domain.HistoryFromRecord(id, rec))
	return nil
}

// ---- StatusReader ----

func (m *Store) Latest(ctx context.Context) ([]domain.CurrentStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CurrentStatus, 0, len(m.status))
	for _, s := range m.status {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

func (m *Store) History(ctx context.Context, id domain.TargetID, limit int) ([]domain.HistoryEntry, error) {
	limit = repo.NormalizeLimit(limit, maxHistoryLimit)
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.history[id]
	out := make([]domain.HistoryEntry, 0, min(limit, len(rows)))
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

// ---- HistoryPruner ----

func (m *Store) PruneHistory(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, rows := range m.history {
		kept := rows[:0]
		for _, r := range rows {
			if r.ObservedAt.Before(before) {
				n++
				continue
			}
			kept = append(kept, r)
		}
		m.history[id] = kept
	}
	return n, nil
}

var _ repo.Store = (*Store)(nil)

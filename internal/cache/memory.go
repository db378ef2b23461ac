package cache

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/hamed0406/serverwatch/internal/domain"
)

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[domain.TargetID]Entry
}

// Memory is an in-process Cache. Keys are spread over shards so that
// concurrent tasks for different targets rarely share a lock.
type Memory struct {
	shards [shardCount]*shard
	now    func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock is NewMemory with an injectable clock, used by tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := &Memory{now: now}
	for i := range m.shards {
		m.shards[i] = &shard{entries: make(map[domain.TargetID]Entry)}
	}
	return m
}

func (m *Memory) shardFor(id domain.TargetID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return m.shards[h.Sum32()%shardCount]
}

func (m *Memory) Get(_ context.Context, id domain.TargetID) (domain.StatusRecord, bool, error) {
	s := m.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return domain.StatusRecord{}, false, nil
	}
	if !e.Valid(m.now()) {
		delete(s.entries, id)
		return domain.StatusRecord{}, false, nil
	}
	return e.Record, true, nil
}

func (m *Memory) Set(_ context.Context, id domain.TargetID, rec domain.StatusRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s := m.shardFor(id)
	s.mu.Lock()
	s.entries[id] = Entry{Record: rec, ExpiresAt: m.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(_ context.Context, id domain.TargetID) error {
	s := m.shardFor(id)
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

// Len counts stored entries, including expired ones not yet read.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.Lock()
		n += len(s.entries)
		s.mu.Unlock()
	}
	return n
}

var _ Cache = (*Memory)(nil)

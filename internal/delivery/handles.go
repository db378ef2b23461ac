package delivery

import (
	"hash/fnv"
	"sync"

	"github.com/hamed0406/serverwatch/internal/domain"
)

// HandleStore keeps the last delivered message per target. Entries are
// overwritten, never accumulated.
type HandleStore interface {
	Get(id domain.TargetID) (Handle, bool)
	Put(id domain.TargetID, h Handle)
	Delete(id domain.TargetID)
}

const handleShards = 16

type handleShard struct {
	mu sync.RWMutex
	m  map[domain.TargetID]Handle
}

// MemoryHandles is an in-process HandleStore. Handles are lost on restart,
// which costs one duplicate message per target.
type MemoryHandles struct {
	shards [handleShards]*handleShard
}

func NewMemoryHandles() *MemoryHandles {
	h := &MemoryHandles{}
	for i := range h.shards {
		h.shards[i] = &handleShard{m: make(map[domain.TargetID]Handle)}
	}
	return h
}

func (h *MemoryHandles) shard(id domain.TargetID) *handleShard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(id))
	return h.shards[f.Sum32()%handleShards]
}

func (h *MemoryHandles) Get(id domain.TargetID) (Handle, bool) {
	s := h.shard(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[id]
	return v, ok
}

func (h *MemoryHandles) Put(id domain.TargetID, v Handle) {
	s := h.shard(id)
	s.mu.Lock()
	s.m[id] = v
	s.mu.Unlock()
}

func (h *MemoryHandles) Delete(id domain.TargetID) {
	s := h.shard(id)
	s.mu.Lock()
	delete(s.m, id)
	s.mu.Unlock()
}

// Len counts stored handles across shards.
func (h *MemoryHandles) Len() int {
	n := 0
	for _, s := range h.shards {
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}

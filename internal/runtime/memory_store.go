package runtime

import (
	"context"
	"sync"

	"bubblemap-bypass/internal/types"
)

// MemoryStore 是进程内的签名判重实现，用于本地运行与测试
type MemoryStore struct {
	mu   sync.Mutex
	seen map[types.Signature]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[types.Signature]struct{})}
}

func (s *MemoryStore) MarkProcessed(_ context.Context, sig types.Signature) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[sig]; ok {
		return false, nil
	}
	s.seen[sig] = struct{}{}
	return true, nil
}

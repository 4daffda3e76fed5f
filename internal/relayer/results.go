package relayer

import (
	"sync"

	"github.com/knotx/relayer/pkg/types"
)

const defaultResultCapacity = 256

// ResultStore keeps the most recent relay results in memory for the ops API.
// It is a fixed-size ring; older entries are overwritten once full. There is
// no durable persistence behind it.
type ResultStore struct {
	mu        sync.RWMutex
	results   []*types.RelayResult
	next      int
	full      bool
	delivered uint64
	failed    uint64
}

func NewResultStore(capacity int) *ResultStore {
	if capacity <= 0 {
		capacity = defaultResultCapacity
	}
	return &ResultStore{results: make([]*types.RelayResult, capacity)}
}

func (s *ResultStore) Record(result *types.RelayResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[s.next] = result
	s.next = (s.next + 1) % len(s.results)
	if s.next == 0 {
		s.full = true
	}
	if result.Success {
		s.delivered++
	} else {
		s.failed++
	}
}

// Recent returns the stored results, newest first.
func (s *ResultStore) Recent() []*types.RelayResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	size := s.next
	if s.full {
		size = len(s.results)
	}
	out := make([]*types.RelayResult, 0, size)
	for i := 1; i <= size; i++ {
		idx := (s.next - i + len(s.results)) % len(s.results)
		out = append(out, s.results[idx])
	}
	return out
}

func (s *ResultStore) Counts() (delivered, failed uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.delivered, s.failed
}

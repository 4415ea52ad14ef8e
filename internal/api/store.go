package api

import "sync"

// DefaultStoreCapacity bounds the number of solutions a SolutionStore keeps.
const DefaultStoreCapacity = 256

// SolutionStore keeps recent solve responses by id. When full, the oldest
// entry is evicted.
type SolutionStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	byID     map[string]SolveResponse
}

func NewSolutionStore(capacity int) *SolutionStore {
	if capacity <= 0 {
		capacity = DefaultStoreCapacity
	}
	return &SolutionStore{
		capacity: capacity,
		byID:     make(map[string]SolveResponse),
	}
}

func (s *SolutionStore) Save(resp SolveResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[resp.ID]; !ok {
		s.order = append(s.order, resp.ID)
	}
	s.byID[resp.ID] = resp
	for len(s.order) > s.capacity {
		delete(s.byID, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *SolutionStore) Get(id string) (SolveResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.byID[id]
	return resp, ok
}

func (s *SolutionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *SolutionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

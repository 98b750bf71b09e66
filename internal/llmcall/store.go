package llmcall

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of calls a Store keeps.
const DefaultCapacity = 500

// Store keeps the most recent calls in a ring buffer.
type Store struct {
	mu    sync.RWMutex
	calls []*Call
	next  int
	full  bool
}

// NewStore creates a store holding up to capacity calls.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{calls: make([]*Call, capacity)}
}

// QueryFilter specifies filters for listing calls.
type QueryFilter struct {
	PaperKey  string
	Stage     string
	PromptKey string
	Provider  string
	After     *time.Time
	Before    *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Add appends a call, overwriting the oldest when full.
func (s *Store) Add(call *Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[s.next] = call
	s.next = (s.next + 1) % len(s.calls)
	if s.next == 0 {
		s.full = true
	}
}

// Get retrieves a single call by ID.
func (s *Store) Get(id string) (*Call, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.calls {
		if c != nil && c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// List returns calls matching the filter, newest first.
func (s *Store) List(filter QueryFilter) []*Call {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.calls)
	}

	var out []*Call
	skipped := 0
	for i := 0; i < n; i++ {
		idx := (s.next - 1 - i + len(s.calls)) % len(s.calls)
		c := s.calls[idx]
		if c == nil || !filter.matches(c) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Len returns the number of stored calls.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.full {
		return len(s.calls)
	}
	return s.next
}

func (f QueryFilter) matches(c *Call) bool {
	switch {
	case f.PaperKey != "" && c.PaperKey != f.PaperKey:
		return false
	case f.Stage != "" && c.Stage != f.Stage:
		return false
	case f.PromptKey != "" && c.PromptKey != f.PromptKey:
		return false
	case f.Provider != "" && c.Provider != f.Provider:
		return false
	case f.After != nil && !c.Timestamp.After(*f.After):
		return false
	case f.Before != nil && !c.Timestamp.Before(*f.Before):
		return false
	case f.Success != nil && c.Success != *f.Success:
		return false
	}
	return true
}

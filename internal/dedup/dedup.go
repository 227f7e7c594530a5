// Package dedup tracks which targets were already surfaced during one run.
package dedup

import "sync"

// Set is an in-memory set of target ids. The zero value is not usable; call New.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// MarkSeen adds id to the set.
func (s *Set) MarkSeen(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = struct{}{}
}

// WasSeen reports whether id was marked.
func (s *Set) WasSeen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of ids marked.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// Reset forgets every id.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]struct{})
}

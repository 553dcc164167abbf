package fetcher

import (
	"sync"

	"dhtcrawler/krpc"
)

// inFlightSet tracks which info_hashes currently have a search and/or
// fetch attempt in progress, so the orchestrator never starts a second
// one for the same torrent while the first is still running.
type inFlightSet struct {
	mu sync.Mutex
	m  map[krpc.ID]struct{}
}

func newInFlightSet() *inFlightSet {
	return &inFlightSet{m: make(map[krpc.ID]struct{})}
}

// Add reports whether infoHash was newly added (true) or already present
// (false).
func (s *inFlightSet) Add(infoHash krpc.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[infoHash]; ok {
		return false
	}
	s.m[infoHash] = struct{}{}
	return true
}

func (s *inFlightSet) Contains(infoHash krpc.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[infoHash]
	return ok
}

// Remove always succeeds, even if infoHash wasn't present — every
// fetch/search path removes unconditionally on its way out, matching the
// "always clean up" requirement regardless of how it finished.
func (s *inFlightSet) Remove(infoHash krpc.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, infoHash)
}

func (s *inFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

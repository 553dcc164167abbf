// Package searcher implements the iterative get_peers lookup: for a given
// info_hash, fan out get_peers queries toward increasingly close
// nodes until the closest set stops changing (a fixed point) or the
// attempt budget is exhausted.
package searcher

import (
	"sort"
	"sync"
	"time"

	"dhtcrawler/krpc"
)

// InitialAttempts is the number of *stagnant* rounds (the closest-16 set
// to the target failing to change) a fresh searcher tolerates before it
// gives up, mirroring original_source/spyder.py's attempts_count: it is a
// stagnation budget, not a hard cap on total rounds.
const InitialAttempts = 8

// ClosestTracked is the width of the closest-node set a searcher tracks
// for its fixed-point check, matching fetch_k_closest_nodes(n, info_hash,
// 16) in original_source/spyder.py and crawler.py.
const ClosestTracked = 16

// TTL is the hard lifetime of a searcher regardless of activity — the
// sweeper kills anything older than this.
const TTL = 120 * time.Second

// SweepInterval is how often the registry's sweeper looks for expired
// searchers.
const SweepInterval = 1 * time.Second

// Searcher tracks one in-flight get_peers lookup.
type Searcher struct {
	ID       uint32 // registry key; the transaction-id counter value it was born with
	InfoHash krpc.ID

	CreatedAt time.Time

	nodes            map[krpc.ID]krpc.Node // every node seen so far
	contacted        map[krpc.ID]bool
	AttemptsLeft     int
	lastRoundClosest []krpc.ID // sorted ids from the previous round, for fixed-point comparison

	Peers []krpc.Peer

	mu sync.Mutex
}

func newSearcher(id uint32, infoHash krpc.ID, seed []krpc.Node) *Searcher {
	s := &Searcher{
		ID:           id,
		InfoHash:     infoHash,
		CreatedAt:    time.Now(),
		nodes:        make(map[krpc.ID]krpc.Node),
		contacted:    make(map[krpc.ID]bool),
		AttemptsLeft: InitialAttempts,
	}
	for _, n := range seed {
		s.nodes[n.ID] = n
	}
	return s
}

// Pending returns up to n known nodes that this searcher has never
// queried, in no particular order (not sorted by distance to the target).
func (s *Searcher) Pending(n int) []krpc.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]krpc.Node, 0, n)
	for id, node := range s.nodes {
		if s.contacted[id] {
			continue
		}
		out = append(out, node)
		if len(out) >= n {
			break
		}
	}
	return out
}

// MarkContacted records that node has been sent a query; the mark is kept
// for the searcher's whole lifetime.
func (s *Searcher) MarkContacted(id krpc.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacted[id] = true
}

// AddNodes merges newly discovered nodes into the closest set.
func (s *Searcher) AddNodes(nodes []krpc.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
}

// AddPeers appends directly-discovered peers (a get_peers reply with
// "values" instead of "nodes").
func (s *Searcher) AddPeers(peers []krpc.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Peers = append(s.Peers, peers...)
}

// EndRound reports whether the closest-ClosestTracked set to the target
// stayed the same this round (stagnant — no closer nodes turned up), and
// decrements the attempt budget only when it did — attemptsLeft is a
// stagnation counter, not a per-round one, so a searcher that keeps
// turning up closer nodes keeps running past InitialAttempts rounds. The
// caller should terminate the searcher once attemptsLeft reaches zero.
func (s *Searcher) EndRound() (stagnant bool, attemptsLeft int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.closestIDs()
	stagnant = sameIDSet(s.lastRoundClosest, current)
	if stagnant {
		s.AttemptsLeft--
	}
	s.lastRoundClosest = current
	return stagnant, s.AttemptsLeft
}

// closestIDs returns the ids of the ClosestTracked nodes nearest to the
// target info_hash by XOR distance, the subset EndRound's fixed-point
// check compares round over round.
func (s *Searcher) closestIDs() []krpc.ID {
	all := make([]krpc.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool {
		di := krpc.XOR(s.InfoHash, all[i].ID)
		dj := krpc.XOR(s.InfoHash, all[j].ID)
		return di.Less(dj)
	})
	if len(all) > ClosestTracked {
		all = all[:ClosestTracked]
	}
	out := make([]krpc.ID, len(all))
	for i, n := range all {
		out[i] = n.ID
	}
	return out
}

func sameIDSet(a, b []krpc.ID) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[krpc.ID]bool, len(a))
	for _, id := range a {
		seen[id] = true
	}
	for _, id := range b {
		if !seen[id] {
			return false
		}
	}
	return true
}

// Expired reports whether the searcher has outlived TTL.
func (s *Searcher) Expired() bool {
	return time.Since(s.CreatedAt) > TTL
}

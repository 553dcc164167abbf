package searcher

import (
	"sync"
	"time"

	"dhtcrawler/krpc"

	"github.com/sirupsen/logrus"
)

// Registry owns the set of live searchers, keyed by a wrapping 4-byte
// counter (the same value used as the KRPC transaction id for the
// searcher's outbound queries, so inbound replies can be routed back by
// looking the counter up directly instead of scanning).
type Registry struct {
	mu       sync.Mutex
	next     uint32
	byID     map[uint32]*Searcher
	byHash   map[krpc.ID]*Searcher // at most one live searcher per info_hash
	log      logrus.FieldLogger
	stopOnce sync.Once
	stop     chan struct{}

	Peers *PeerCache // outlives individual searchers; see peercache.go

	OnExpire func(*Searcher) // called (outside the lock) when a searcher is swept for TTL or exhaustion
}

// NewRegistry builds an empty registry and starts its 1s sweeper goroutine.
func NewRegistry(log logrus.FieldLogger) *Registry {
	r := &Registry{
		byID:   make(map[uint32]*Searcher),
		byHash: make(map[krpc.ID]*Searcher),
		log:    log,
		stop:   make(chan struct{}),
		Peers:  NewPeerCache(),
	}
	go r.sweepLoop()
	return r
}

// Start creates a new searcher for infoHash seeded with the given nodes,
// unless one is already in flight for that info_hash, in which case the
// existing searcher is returned and started is false.
func (r *Registry) Start(infoHash krpc.ID, seed []krpc.Node) (s *Searcher, started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byHash[infoHash]; ok {
		return existing, false
	}
	id := r.next
	r.next++
	s = newSearcher(id, infoHash, seed)
	r.byID[id] = s
	r.byHash[infoHash] = s
	return s, true
}

// Lookup finds the searcher a reply's transaction id belongs to.
func (r *Registry) Lookup(id uint32) (*Searcher, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	return s, ok
}

// Terminate removes a searcher from the registry immediately, regardless
// of its attempt budget or age.
func (r *Registry) Terminate(s *Searcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, s.ID)
	if r.byHash[s.InfoHash] == s {
		delete(r.byHash, s.InfoHash)
	}
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweepOnce()
		}
	}
}

func (r *Registry) sweepOnce() {
	var expired []*Searcher
	r.mu.Lock()
	for _, s := range r.byID {
		if s.Expired() || s.AttemptsLeft <= 0 {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		delete(r.byID, s.ID)
		if r.byHash[s.InfoHash] == s {
			delete(r.byHash, s.InfoHash)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		if r.log != nil {
			r.log.WithField("info_hash", s.InfoHash.String()).Debug("searcher expired")
		}
		if r.OnExpire != nil {
			r.OnExpire(s)
		}
	}
}

// Close stops the sweeper goroutine.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// All returns a snapshot of every currently live searcher, for the
// engine's round-driving ticker.
func (r *Registry) All() []*Searcher {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Searcher, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, s)
	}
	return out
}

// Len reports the number of in-flight searchers, for metrics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

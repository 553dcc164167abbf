package searcher

import (
	"sync"

	"dhtcrawler/krpc"

	"github.com/golang/groupcache/lru"
)

// peerCacheSize bounds how many distinct info_hashes the cache remembers
// peers for. Beyond that, the least recently touched info_hash is evicted.
const peerCacheSize = 4096

// PeerCache remembers the peers a search has surfaced for an info_hash
// even after the Searcher itself has been swept from the registry, so a
// second announce_peer or get_peers for the same torrent shortly after
// the first can be served from memory instead of waiting on a fresh
// lookup to converge.
type PeerCache struct {
	mu sync.Mutex
	c  *lru.Cache
}

// NewPeerCache builds an empty cache bounded at peerCacheSize entries.
func NewPeerCache() *PeerCache {
	return &PeerCache{c: lru.New(peerCacheSize)}
}

// Add records peers as belonging to infoHash, merging with anything
// already cached for it.
func (p *PeerCache) Add(infoHash krpc.ID, peers []krpc.Peer) {
	if len(peers) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	existing, _ := p.c.Get(infoHash)
	set, _ := existing.(map[string]krpc.Peer)
	if set == nil {
		set = make(map[string]krpc.Peer, len(peers))
	}
	for _, peer := range peers {
		set[peer.Addr().String()] = peer
	}
	p.c.Add(infoHash, set)
}

// Get returns the peers cached for infoHash, or nil if none are known.
func (p *PeerCache) Get(infoHash krpc.ID) []krpc.Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.c.Get(infoHash)
	if !ok {
		return nil
	}
	set := v.(map[string]krpc.Peer)
	out := make([]krpc.Peer, 0, len(set))
	for _, peer := range set {
		out = append(out, peer)
	}
	return out
}

// Len reports the number of distinct info_hashes currently cached.
func (p *PeerCache) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Len()
}

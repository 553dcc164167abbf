package engine

import "dhtcrawler/krpc"

// candidatePool is a bounded set of nodes the dig loop fires find_node at,
// one per tick, cycling through its members; Take does not remove a node,
// so each one is dug again on later passes. It grows from every inbound query and every
// response to our own find_node traffic, and sheds a uniformly random
// member once it hits capacity rather than evicting oldest-first — the
// crawl doesn't care about recency, only about staying diverse across the
// id space.
type candidatePool struct {
	nodes []krpc.Node
	seen  map[krpc.ID]int // id -> index in nodes, for O(1) membership + removal
	next  int             // round-robin cursor for Take
	rng   func(n int) int
}

func newCandidatePool(rng func(n int) int) *candidatePool {
	return &candidatePool{
		seen: make(map[krpc.ID]int),
		rng:  rng,
	}
}

// Add inserts node if not already present, evicting a uniformly random
// existing member if the pool is at capacity.
func (p *candidatePool) Add(node krpc.Node) {
	if _, ok := p.seen[node.ID]; ok {
		return
	}
	if len(p.nodes) >= CandidatePoolCap {
		victim := p.rng(len(p.nodes))
		evictedID := p.nodes[victim].ID
		p.nodes[victim] = node
		delete(p.seen, evictedID)
		p.seen[node.ID] = victim
		return
	}
	p.seen[node.ID] = len(p.nodes)
	p.nodes = append(p.nodes, node)
}

// Take returns the next candidate for the dig loop to probe, cycling
// through the pool rather than always picking the same end.
func (p *candidatePool) Take() (krpc.Node, bool) {
	if len(p.nodes) == 0 {
		return krpc.Node{}, false
	}
	p.next %= len(p.nodes)
	n := p.nodes[p.next]
	p.next++
	return n, true
}

func (p *candidatePool) Len() int { return len(p.nodes) }

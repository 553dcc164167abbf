// Package routingtable implements the 160-bucket Kademlia-style routing
// table described in BEP-5, sized for a crawler rather than a well-behaved
// participant: buckets hold far more entries than the standard 8, because
// a crawler wants breadth more than it wants correctness of the classic
// Kademlia lookup guarantee.
package routingtable

import (
	"math/rand"
	"sync"
	"time"

	"dhtcrawler/krpc"
)

// KBucket is the maximum number of entries held per bucket. The mainline
// swarm is enormous and bursty; 1500 gives the dig loop a much wider pool
// of live contacts per distance band than the textbook k=8.
const KBucket = 1500

// NumBuckets is the number of XOR-distance buckets: one per bit of the
// 160-bit id space.
const NumBuckets = krpc.IDLen * 8

// Entry is one routing table contact plus the bookkeeping needed to decide
// whether it's worth keeping.
type Entry struct {
	Node      krpc.Node
	LastSeen  time.Time
	AddedAt   time.Time
}

// ProbeFunc is called when a bucket is full and a candidate wants in. It is
// handed the incumbent losing the coin flip and the candidate replacing it;
// the caller (the engine, which owns a KRPC transport) is responsible for
// firing a health-check find_node at the incumbent and calling Replace or
// Touch once it learns the outcome. RoutingTable never does I/O itself.
type ProbeFunc func(incumbent Entry, candidate krpc.Node)

type bucket struct {
	entries []Entry
}

// RoutingTable is not safe for concurrent use — it is designed to be owned
// by a single goroutine (the engine's event loop), the same way the
// teacher's routing table is only ever touched from its own loop.
type RoutingTable struct {
	self    krpc.ID
	buckets [NumBuckets]*bucket
	probe   ProbeFunc
	rand    *rand.Rand

	mu sync.Mutex // guards Len()/Closest() when called from outside the owning goroutine (e.g. metrics scrape)
}

// New builds an empty routing table for a local node identified by self.
// probe may be nil, in which case a full bucket still replaces an incumbent
// on the outright-replace half of Insert's coin flip and drops the
// candidate on the other half.
func New(self krpc.ID, probe ProbeFunc) *RoutingTable {
	rt := &RoutingTable{
		self:  self,
		probe: probe,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for i := range rt.buckets {
		rt.buckets[i] = &bucket{}
	}
	return rt
}

func (rt *RoutingTable) bucketFor(id krpc.ID) *bucket {
	idx := krpc.BucketIndex(krpc.XOR(rt.self, id))
	return rt.buckets[idx]
}

// Insert adds or refreshes node in the table. If node's bucket is full, it
// flips a coin: on tails a uniformly-chosen incumbent is replaced outright;
// on heads a uniformly-chosen incumbent is instead handed to ProbeFunc so
// the caller can verify it's actually gone (a health-check find_node)
// before evicting it.
func (rt *RoutingTable) Insert(node krpc.Node) {
	if node.ID == rt.self {
		return
	}
	b := rt.bucketFor(node.ID)
	now := time.Now()
	for i, e := range b.entries {
		if e.Node.ID == node.ID {
			b.entries[i].Node = node
			b.entries[i].LastSeen = now
			return
		}
	}
	if len(b.entries) < KBucket {
		b.entries = append(b.entries, Entry{Node: node, LastSeen: now, AddedAt: now})
		return
	}
	victim := rt.rand.Intn(len(b.entries))
	if rt.rand.Intn(2) == 0 {
		// tails: replace the incumbent outright, no health check
		b.entries[victim] = Entry{Node: node, LastSeen: now, AddedAt: now}
		return
	}
	if rt.probe == nil {
		return
	}
	rt.probe(b.entries[victim], node)
}

// Replace evicts incumbent (by id) from its bucket and inserts candidate in
// its place. Called by the engine once a health-check probe against the
// incumbent times out.
func (rt *RoutingTable) Replace(incumbent krpc.ID, candidate krpc.Node) {
	b := rt.bucketFor(incumbent)
	for i, e := range b.entries {
		if e.Node.ID == incumbent {
			b.entries[i] = Entry{Node: candidate, LastSeen: time.Now(), AddedAt: time.Now()}
			return
		}
	}
}

// Touch refreshes an entry's LastSeen without changing its position,
// called by the engine when a probed incumbent answers after all.
func (rt *RoutingTable) Touch(id krpc.ID) {
	b := rt.bucketFor(id)
	for i, e := range b.entries {
		if e.Node.ID == id {
			b.entries[i].LastSeen = time.Now()
			return
		}
	}
}

// Remove drops a node unconditionally, e.g. after it's confirmed dead by
// any path other than the coin-flip probe (a neighbor report, a refused
// connection, etc).
func (rt *RoutingTable) Remove(id krpc.ID) {
	b := rt.bucketFor(id)
	for i, e := range b.entries {
		if e.Node.ID == id {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return
		}
	}
}

// Closest returns up to k nodes nearest target, scanning outward from
// target's own bucket and breaking ties lexicographically by id.
func (rt *RoutingTable) Closest(target krpc.ID, k int) []krpc.Node {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	idx := krpc.BucketIndex(krpc.XOR(rt.self, target))
	candidates := make([]krpc.Node, 0, k*2)
	for offset := 0; offset < NumBuckets && len(candidates) < k*4; offset++ {
		for _, d := range []int{idx + offset, idx - offset} {
			if offset == 0 && d != idx {
				continue
			}
			if d < 0 || d >= NumBuckets {
				continue
			}
			for _, e := range rt.buckets[d].entries {
				candidates = append(candidates, e.Node)
			}
			if offset == 0 {
				break
			}
		}
	}
	sortByDistance(candidates, target)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

func sortByDistance(nodes []krpc.Node, target krpc.ID) {
	less := func(i, j int) bool {
		di := krpc.XOR(nodes[i].ID, target)
		dj := krpc.XOR(nodes[j].ID, target)
		for b := 0; b < krpc.IDLen; b++ {
			if di[b] != dj[b] {
				return di[b] < dj[b]
			}
		}
		return nodes[i].ID.Less(nodes[j].ID)
	}
	// Closest stops gathering once it has k*4 candidates, but takes whole
	// buckets at a time, so a slice can hold up to one full bucket or more;
	// insertion sort keeps this allocation-free.
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

// Len returns the total number of entries across all buckets.
func (rt *RoutingTable) Len() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	n := 0
	for _, b := range rt.buckets {
		n += len(b.entries)
	}
	return n
}

// Random returns up to n entries, taken in bucket order starting from
// bucket 0.
func (rt *RoutingTable) Random(n int) []krpc.Node {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]krpc.Node, 0, n)
	for _, b := range rt.buckets {
		for _, e := range b.entries {
			out = append(out, e.Node)
			if len(out) >= n {
				return out
			}
		}
	}
	return out
}

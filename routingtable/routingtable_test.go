package routingtable

import (
	"net"
	"testing"

	"dhtcrawler/krpc"

	"github.com/stretchr/testify/require"
)

func randNode() krpc.Node {
	return krpc.Node{ID: krpc.RandomID(), Host: net.IPv4(127, 0, 0, 1), Port: 6881}
}

func TestInsertAndClosest(t *testing.T) {
	self := krpc.RandomID()
	rt := New(self, nil)

	var target krpc.Node
	for i := 0; i < 50; i++ {
		n := randNode()
		if i == 25 {
			target = n
		}
		rt.Insert(n)
	}
	require.Equal(t, 50, rt.Len())

	closest := rt.Closest(target.ID, 5)
	require.NotEmpty(t, closest)
	require.Equal(t, target.ID, closest[0].ID, "the exact node queried for must be its own closest match")
}

func TestInsertIgnoresSelf(t *testing.T) {
	self := krpc.RandomID()
	rt := New(self, nil)
	rt.Insert(krpc.Node{ID: self, Host: net.IPv4(1, 1, 1, 1), Port: 1})
	require.Equal(t, 0, rt.Len())
}

func TestInsertRefreshesExisting(t *testing.T) {
	self := krpc.RandomID()
	rt := New(self, nil)
	n := randNode()
	rt.Insert(n)
	n.Port = 9999
	rt.Insert(n)
	require.Equal(t, 1, rt.Len())
	got := rt.Closest(n.ID, 1)
	require.Equal(t, uint16(9999), got[0].Port)
}

// fillOneBucket builds a routing table with KBucket entries all sharing a
// bucket with self, returning the table and the id of an extra candidate
// that lands in the same bucket.
func fillOneBucket(t *testing.T, self krpc.ID, probe ProbeFunc) (*RoutingTable, krpc.ID) {
	t.Helper()
	rt := New(self, probe)
	// Insert KBucket nodes that all land in bucket 159: each id differs from
	// self in the top bit of the first byte (fixing the highest set bit of
	// the distance) and in a distinct value in its last two bytes.
	for i := 0; i < KBucket; i++ {
		id := self
		id[0] ^= 0x80
		id[krpc.IDLen-2] ^= byte(i / 256)
		id[krpc.IDLen-1] ^= byte(i % 256)
		rt.Insert(krpc.Node{ID: id, Host: net.IPv4(127, 0, 0, 1), Port: uint16(1024 + i)})
	}
	require.LessOrEqual(t, rt.Len(), KBucket)

	extra := self
	extra[0] ^= 0x80 // same highest distance bit: bucket 159
	extra[1] ^= 0x01 // differs from every filler id, which only vary in the last two bytes
	return rt, extra
}

// TestFullBucketEitherReplacesOrProbes exercises Insert's 50/50 full-bucket
// split over many trials: a full bucket should sometimes replace a random
// incumbent outright (no probe, candidate now present) and sometimes defer
// to ProbeFunc for a health check — never anything else.
func TestFullBucketEitherReplacesOrProbes(t *testing.T) {
	var replaced, probedCount int
	for trial := 0; trial < 200; trial++ {
		self := krpc.RandomID()
		var probed bool
		rt, extra := fillOneBucket(t, self, func(incumbent Entry, candidate krpc.Node) {
			probed = true
		})

		before := rt.Len()
		rt.Insert(krpc.Node{ID: extra, Host: net.IPv4(127, 0, 0, 1), Port: 2000})

		require.Equal(t, before, rt.Len(), "a full bucket never grows past KBucket")
		if probed {
			probedCount++
			continue
		}
		// Not probed: the coin landed on the outright-replace half, so the
		// candidate must now be present in the bucket.
		got := rt.Closest(extra, 1)
		require.NotEmpty(t, got)
		if got[0].ID == extra {
			replaced++
		}
	}
	require.Greater(t, replaced, 0, "outright replacement should happen on some trials")
	require.Greater(t, probedCount, 0, "health-check probing should happen on some trials")
}

// TestFullBucketNoProbeFuncStillReplaces covers the nil-ProbeFunc case: with
// no probe to hand off to, a full bucket can still take the outright-replace
// half of the coin flip.
func TestFullBucketNoProbeFuncStillReplaces(t *testing.T) {
	var replaced int
	for trial := 0; trial < 200; trial++ {
		self := krpc.RandomID()
		rt, extra := fillOneBucket(t, self, nil)
		before := rt.Len()
		rt.Insert(krpc.Node{ID: extra, Host: net.IPv4(127, 0, 0, 1), Port: 2000})
		require.Equal(t, before, rt.Len())
		got := rt.Closest(extra, 1)
		if len(got) > 0 && got[0].ID == extra {
			replaced++
		}
	}
	require.Greater(t, replaced, 0, "nil ProbeFunc should not block the outright-replace half")
}

func TestReplaceAndRemove(t *testing.T) {
	self := krpc.RandomID()
	rt := New(self, nil)
	n := randNode()
	rt.Insert(n)

	replacement := randNode()
	rt.Replace(n.ID, replacement)
	require.Equal(t, 1, rt.Len())
	got := rt.Closest(replacement.ID, 1)
	require.Equal(t, replacement.ID, got[0].ID)

	rt.Remove(replacement.ID)
	require.Equal(t, 0, rt.Len())
}

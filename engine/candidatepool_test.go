package engine

import (
	"net"
	"testing"

	"dhtcrawler/krpc"

	"github.com/stretchr/testify/require"
)

func TestCandidatePoolDedupes(t *testing.T) {
	p := newCandidatePool(func(n int) int { return 0 })
	n := krpc.Node{ID: krpc.RandomID(), Host: net.IPv4(1, 1, 1, 1), Port: 1}
	p.Add(n)
	p.Add(n)
	require.Equal(t, 1, p.Len())
}

func TestCandidatePoolEvictsAtCapacity(t *testing.T) {
	evictIdx := 0
	p := newCandidatePool(func(n int) int { return evictIdx })
	for i := 0; i < CandidatePoolCap; i++ {
		p.Add(krpc.Node{ID: krpc.RandomID(), Host: net.IPv4(1, 1, 1, 1), Port: uint16(i % 65535)})
	}
	require.Equal(t, CandidatePoolCap, p.Len())

	extra := krpc.Node{ID: krpc.RandomID(), Host: net.IPv4(2, 2, 2, 2), Port: 2}
	p.Add(extra)
	require.Equal(t, CandidatePoolCap, p.Len(), "pool must not grow past its cap")
}

func TestCandidatePoolTakeCycles(t *testing.T) {
	p := newCandidatePool(func(n int) int { return 0 })
	a := krpc.Node{ID: krpc.RandomID(), Host: net.IPv4(1, 1, 1, 1), Port: 1}
	b := krpc.Node{ID: krpc.RandomID(), Host: net.IPv4(2, 2, 2, 2), Port: 2}
	p.Add(a)
	p.Add(b)

	first, ok := p.Take()
	require.True(t, ok)
	second, _ := p.Take()
	require.NotEqual(t, first.ID, second.ID, "consecutive Take calls should not repeat immediately")
}

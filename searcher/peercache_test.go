package searcher

import (
	"testing"

	"dhtcrawler/krpc"

	"github.com/stretchr/testify/require"
)

func TestPeerCacheAddGet(t *testing.T) {
	c := NewPeerCache()
	ih := krpc.RandomID()
	p1 := krpc.Peer{Host: []byte{1, 2, 3, 4}, Port: 6881}
	p2 := krpc.Peer{Host: []byte{5, 6, 7, 8}, Port: 6882}

	c.Add(ih, []krpc.Peer{p1})
	c.Add(ih, []krpc.Peer{p1, p2})

	got := c.Get(ih)
	require.ElementsMatch(t, []krpc.Peer{p1, p2}, got)
	require.Equal(t, 1, c.Len())
}

func TestPeerCacheGetUnknown(t *testing.T) {
	c := NewPeerCache()
	require.Nil(t, c.Get(krpc.RandomID()))
}

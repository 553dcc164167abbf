package fetcher

import (
	"testing"

	"dhtcrawler/krpc"

	"github.com/stretchr/testify/require"
)

func TestInFlightAddOnce(t *testing.T) {
	s := newInFlightSet()
	ih := krpc.RandomID()
	require.True(t, s.Add(ih))
	require.False(t, s.Add(ih))
	require.Equal(t, 1, s.Len())
}

func TestInFlightRemove(t *testing.T) {
	s := newInFlightSet()
	ih := krpc.RandomID()
	s.Add(ih)
	s.Remove(ih)
	require.False(t, s.Contains(ih))
	require.Equal(t, 0, s.Len())
}

func TestInFlightRemoveUnknownIsNoop(t *testing.T) {
	s := newInFlightSet()
	require.NotPanics(t, func() { s.Remove(krpc.RandomID()) })
}

package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := newTokenStore(time.Minute)
	tok := ts.Issue("1.2.3.4:6881")
	require.True(t, ts.Valid("1.2.3.4:6881", tok))
}

func TestTokenRejectsWrongAddr(t *testing.T) {
	ts := newTokenStore(time.Minute)
	tok := ts.Issue("1.2.3.4:6881")
	require.False(t, ts.Valid("5.6.7.8:6881", tok))
}

func TestTokenExpires(t *testing.T) {
	ts := newTokenStore(time.Millisecond)
	tok := ts.Issue("1.2.3.4:6881")
	time.Sleep(5 * time.Millisecond)
	require.False(t, ts.Valid("1.2.3.4:6881", tok))
}

func TestTokenSweepRemovesExpired(t *testing.T) {
	ts := newTokenStore(time.Millisecond)
	ts.Issue("1.2.3.4:6881")
	time.Sleep(5 * time.Millisecond)
	ts.Sweep()
	ts.mu.Lock()
	n := len(ts.byAddr)
	ts.mu.Unlock()
	require.Equal(t, 0, n)
}

package fetcher

import (
	"testing"
	"time"

	"dhtcrawler/engine"
	"dhtcrawler/krpc"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type stubSink struct {
	existing map[krpc.ID]bool
	saved    map[krpc.ID][]byte
}

func newStubSink() *stubSink {
	return &stubSink{existing: map[krpc.ID]bool{}, saved: map[krpc.ID][]byte{}}
}

func (s *stubSink) Exists(ih krpc.ID) (bool, error) { return s.existing[ih], nil }
func (s *stubSink) Save(ih krpc.ID, info []byte) error {
	s.saved[ih] = info
	return nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *stubSink) {
	t.Helper()
	cfg := engine.NewConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.BootstrapNodes = nil
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	eng, err := engine.New(cfg, log, nil)
	require.NoError(t, err)
	sk := newStubSink()
	o := New(eng, sk, eng.SelfID(), false, nil, log)
	return o, sk
}

func TestMaybeStartSearchSkipsExisting(t *testing.T) {
	o, sk := newTestOrchestrator(t)
	defer o.eng.Close()

	ih := krpc.RandomID()
	sk.existing[ih] = true
	o.maybeStartSearch(ih)
	require.False(t, o.inFlight.Contains(ih))
}

func TestMaybeStartSearchDedupes(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.eng.Close()

	ih := krpc.RandomID()
	o.maybeStartSearch(ih)
	require.True(t, o.inFlight.Contains(ih))
	// Second call for the same info_hash must not add it again or panic.
	o.maybeStartSearch(ih)
	require.Equal(t, 1, o.inFlight.Len())
}

func TestTryBatchRemovesFromInFlightWithNoPeers(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	defer o.eng.Close()

	ih := krpc.RandomID()
	o.inFlight.Add(ih)

	// With no peers to race, tryBatch has nothing to wait on and must
	// return at once rather than waiting for BatchTimeout.
	done := make(chan struct{})
	go func() {
		o.tryBatch(ih, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tryBatch with no peers should return immediately")
	}
	require.False(t, o.inFlight.Contains(ih))
}

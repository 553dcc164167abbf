package engine

import (
	"net"
	"testing"
	"time"

	"dhtcrawler/krpc"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, bootstrap []string) *Engine {
	t.Helper()
	cfg := NewConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.BootstrapNodes = bootstrap
	cfg.DigInterval = 20 * time.Millisecond
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	e, err := New(cfg, log, nil)
	require.NoError(t, err)
	return e
}

func TestBootstrapPopulatesRoutingTable(t *testing.T) {
	seed := newTestEngine(t, nil)
	defer seed.Close()
	go seed.Run()

	crawler := newTestEngine(t, []string{seed.LocalAddr().String()})
	defer crawler.Close()
	go crawler.Run()

	require.Eventually(t, func() bool {
		return seed.RoutingTable().Len() > 0
	}, 2*time.Second, 10*time.Millisecond, "seed should learn about the crawler via its bootstrap find_node")
}

func TestGetPeersQueryPublishesEvent(t *testing.T) {
	seed := newTestEngine(t, nil)
	defer seed.Close()
	go seed.Run()

	crawler := newTestEngine(t, []string{seed.LocalAddr().String()})
	defer crawler.Close()
	go crawler.Run()

	time.Sleep(100 * time.Millisecond) // let bootstrap settle

	infoHash := krpc.RandomID()
	crawler.StartSearch(infoHash)

	select {
	case <-seed.Events:
		// seed's handleQuery path published EventGetPeers for the crawler's probe
	case <-time.After(5 * time.Second):
		t.Fatal("seed did not observe a get_peers event in time")
	}
}

func TestServingAQueryTriggersFollowUpFindNode(t *testing.T) {
	e := newTestEngine(t, nil)
	defer e.Close()
	go e.Run()

	querier, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer querier.Close()

	queryingNode := krpc.RandomID()
	ping := krpc.Query{Txn: []byte("aa"), Method: krpc.MethodPing, From: queryingNode}
	_, err = querier.WriteToUDP(krpc.EncodeQuery(ping), e.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)

	buf := make([]byte, 4096)
	require.NoError(t, querier.SetReadDeadline(time.Now().Add(2*time.Second)))

	// First datagram back is the ping reply; the follow-up find_node
	// should arrive right behind it on the same socket.
	n, _, err := querier.ReadFromUDP(buf)
	require.NoError(t, err)
	_, err = krpc.Decode(buf[:n])
	require.NoError(t, err)

	n, _, err = querier.ReadFromUDP(buf)
	require.NoError(t, err, "expected a follow-up query after the ping reply")
	msg, err := krpc.Decode(buf[:n])
	require.NoError(t, err)
	q, ok := msg.(*krpc.Query)
	require.True(t, ok, "follow-up message should be a query")
	require.Equal(t, krpc.MethodFindNode, q.Method)
}
